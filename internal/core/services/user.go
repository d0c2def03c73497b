package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/carevault/internal/core/domain"
	"github.com/custodia-labs/carevault/internal/core/ports/driven"
	"github.com/custodia-labs/carevault/internal/core/ports/driving"
)

// Ensure UserService implements the interface.
var _ driving.IdentityService = (*UserService)(nil)

// UserService records identities the authentication proxy has vouched
// for. Without it the users table stays empty and no relationship can
// ever validate its endpoints.
type UserService struct {
	users driven.UserStore
}

// NewUserService creates a user service.
func NewUserService(users driven.UserStore) *UserService {
	return &UserService{users: users}
}

// Ensure upserts the identity. The proxy is authoritative for roles, so
// a changed role overwrites the stored one; the display name is kept.
func (s *UserService) Ensure(ctx context.Context, id domain.Identity) error {
	if id.UserID == "" || !id.Role.Valid() {
		return fmt.Errorf("%w: missing or invalid identity", domain.ErrInvalidInput)
	}

	existing, err := s.users.Get(ctx, id.UserID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return s.users.Save(ctx, &domain.User{ID: id.UserID, Role: id.Role})
	case err != nil:
		return fmt.Errorf("look up user %s: %w", id.UserID, err)
	}

	if existing.Role == id.Role {
		return nil
	}
	existing.Role = id.Role
	return s.users.Save(ctx, existing)
}
