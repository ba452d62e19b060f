package fan

import "time"

// Temperature buckets. The score is a coarse engagement signal bumped on
// every committed purchase.
const (
	BucketCold = "cold"
	BucketWarm = "warm"
	BucketHot  = "hot"

	PurchaseBoost = 5

	warmThreshold = 10
	hotThreshold  = 30
)

type Fan struct {
	ID             int    `db:"id" json:"id"`
	CreatorID      int    `db:"creator_id" json:"creator_id"`
	Email          string `db:"email" json:"email"`
	Name           string `db:"name" json:"name"`
	PasswordHash   string `db:"password_hash" json:"-"`
	Role           string `db:"role" json:"role"`
	AdultConfirmed bool   `db:"adult_confirmed" json:"adult_confirmed"`

	LastPurchaseAt  *time.Time `db:"last_purchase_at" json:"last_purchase_at,omitempty"`
	Temperature     int        `db:"temperature" json:"temperature"`
	TempBucket      string     `db:"temp_bucket" json:"temp_bucket"`
	ActivityPreview string     `db:"activity_preview" json:"activity_preview"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Bucket classifies a temperature score.
func Bucket(temperature int) string {
	switch {
	case temperature >= hotThreshold:
		return BucketHot
	case temperature >= warmThreshold:
		return BucketWarm
	default:
		return BucketCold
	}
}

type RegisterRequest struct {
	Name      string `json:"name" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	CreatorID int    `json:"creator_id" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Fan          Fan    `json:"fan"`
}
