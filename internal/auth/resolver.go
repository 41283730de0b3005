package auth

import (
	"context"

	"github.com/memberdesk/memberdesk/internal/shared"
)

// Resolver turns the session snapshot for the current request back into
// canonical account data.
type Resolver struct {
	repo Repository
}

// NewResolver constructs a Resolver.
func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// GetCurrentUser re-fetches the canonical profile for the logged-in user.
// When the request carries no authenticated session it fails with
// shared.ErrUnauthenticated; callers catch that and render a login prompt
// instead of an error page. The password digest is never included.
func (r *Resolver) GetCurrentUser(ctx context.Context) (*Profile, error) {
	snapshot := r.FetchSessionUser(ctx)
	if snapshot == nil || snapshot.Email == "" {
		return nil, shared.ErrUnauthenticated
	}
	user, err := r.repo.FindByEmail(ctx, snapshot.Email)
	if err != nil {
		return nil, err
	}
	return user.Profile(), nil
}

// FetchSessionUser is the non-failing probe: it reports the session snapshot
// for the current request, or nil when nobody is logged in. It never touches
// the user store, so the snapshot may be stale relative to the canonical row.
func (r *Resolver) FetchSessionUser(ctx context.Context) *shared.SessionUser {
	sess := shared.SessionFromContext(ctx)
	if sess == nil {
		return nil
	}
	return sess.User()
}
