package booking

import (
	"context"
	"strings"
)

// VenueRegistry validates and persists venue records.
// Authorization is the engine's job; the registry trusts its caller.
type VenueRegistry struct {
	store Store
}

func NewVenueRegistry(store Store) *VenueRegistry {
	return &VenueRegistry{store: store}
}

// Add creates an active venue with the next sequential ID.
func (r *VenueRegistry) Add(ctx context.Context, name string, capacity int) (Venue, error) {
	name = strings.TrimSpace(name)
	if err := validateVenue(name, capacity); err != nil {
		return Venue{}, err
	}
	return r.store.CreateVenue(ctx, Venue{Name: name, Capacity: capacity, Active: true})
}

// Update overwrites every field of an existing venue.
// Lowering capacity never invalidates bookings already admitted.
func (r *VenueRegistry) Update(ctx context.Context, v Venue) (Venue, error) {
	v.Name = strings.TrimSpace(v.Name)
	if err := validateVenue(v.Name, v.Capacity); err != nil {
		return Venue{}, err
	}
	if err := r.store.SaveVenue(ctx, v); err != nil {
		return Venue{}, err
	}
	return v, nil
}

func (r *VenueRegistry) Get(ctx context.Context, id VenueID) (Venue, error) {
	return r.store.GetVenue(ctx, id)
}

func (r *VenueRegistry) List(ctx context.Context) ([]Venue, error) {
	return r.store.ListVenues(ctx)
}

func validateVenue(name string, capacity int) error {
	if name == "" {
		return invalidf("venue name is required")
	}
	if capacity <= 0 {
		return invalidf("venue capacity must be positive, got %d", capacity)
	}
	return nil
}
