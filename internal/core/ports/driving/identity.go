package driving

import (
	"context"

	"github.com/custodia-labs/carevault/internal/core/domain"
)

// IdentityService provisions authenticated identities. Authentication
// itself belongs to the upstream proxy; this records who it has vouched
// for so relationship endpoints and role checks can resolve them.
type IdentityService interface {
	// Ensure records the identity on first sight and keeps its stored
	// role current.
	Ensure(ctx context.Context, id domain.Identity) error
}
