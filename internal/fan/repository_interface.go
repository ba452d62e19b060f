package fan

import "context"

type Repository interface {
	Create(ctx context.Context, creatorID int, name, email, passwordHash, role string) (*Fan, error)
	FindByID(ctx context.Context, id int) (*Fan, error)
	FindByEmail(ctx context.Context, email string) (*Fan, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	ConfirmAdult(ctx context.Context, id int) error
	RecordPurchaseSignal(ctx context.Context, id int, preview string) error
}
