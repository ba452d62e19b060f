package offer

import "context"

type Repository interface {
	// FindByIdentifier looks up a catalog record by numeric id or code.
	FindByIdentifier(ctx context.Context, identifier string) (*Offer, error)
	ListPacks(ctx context.Context) ([]Offer, error)
}
