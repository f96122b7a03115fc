package booking

import (
	"context"
	"errors"
	"strings"
)

// UserDirectory holds registered user profiles.
type UserDirectory struct {
	store Store
}

func NewUserDirectory(store Store) *UserDirectory {
	return &UserDirectory{store: store}
}

// Register stores p, replacing any previous profile for the same identity.
func (d *UserDirectory) Register(ctx context.Context, p UserProfile) (UserProfile, error) {
	p.DisplayName = strings.TrimSpace(p.DisplayName)
	if p.Identity == "" {
		return UserProfile{}, invalidf("identity is required")
	}
	if p.DisplayName == "" {
		return UserProfile{}, invalidf("display name is required")
	}
	if err := d.store.SaveProfile(ctx, p); err != nil {
		return UserProfile{}, err
	}
	return p, nil
}

func (d *UserDirectory) IsRegistered(ctx context.Context, id Identity) (bool, error) {
	_, err := d.store.GetProfile(ctx, id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (d *UserDirectory) Profile(ctx context.Context, id Identity) (UserProfile, error) {
	return d.store.GetProfile(ctx, id)
}
