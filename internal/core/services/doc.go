// Package services contains the core business logic, implementing the
// driving ports using the driven ports.
//
// Services are the only code that composes stores, the embedding
// service and the vector store into complete operations. They enforce
// the two invariants everything else depends on: every vector store
// write carries an owner tag, and every read is filtered by a
// visibility set resolved fresh from relationship state.
package services
