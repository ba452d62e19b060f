package grant

import "time"

// Type identifies a content tier a grant unlocks.
type Type string

const (
	TypeTrial   Type = "trial"
	TypeMonthly Type = "monthly"
	TypeSpecial Type = "special"
)

// Fixed per-type validity windows.
var durations = map[Type]time.Duration{
	TypeTrial:   7 * 24 * time.Hour,
	TypeMonthly: 30 * 24 * time.Hour,
	TypeSpecial: 30 * 24 * time.Hour,
}

func (t Type) Valid() bool {
	_, ok := durations[t]
	return ok
}

func Duration(t Type) time.Duration {
	return durations[t]
}

func AllTypes() []Type {
	return []Type{TypeTrial, TypeMonthly, TypeSpecial}
}

type AccessGrant struct {
	ID        int       `db:"id" json:"id"`
	FanID     int       `db:"fan_id" json:"fan_id"`
	Type      Type      `db:"type" json:"type"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
}

func (g AccessGrant) Active(now time.Time) bool {
	return g.ExpiresAt.After(now)
}
