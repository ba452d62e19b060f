package entitlement

import (
	"time"

	"fanledger/internal/grant"
)

// Membership statuses.
const (
	StatusNew      = "new"
	StatusActive   = "active"
	StatusExpiring = "expiring"
	StatusExpired  = "expired"
)

// Content packs unlockable by grants.
const (
	PackWelcome = "WELCOME"
	PackMonthly = "MONTHLY"
	PackSpecial = "SPECIAL"
)

// Active grants expiring within this window show as "expiring".
const expiringWindow = 3 * 24 * time.Hour

// Projection is the fan-facing access summary. It is derived on demand from
// the grant rows and never persisted.
type Projection struct {
	MembershipStatus string       `json:"membershipStatus"`
	DaysLeft         int          `json:"daysLeft"`
	HasAccessHistory bool         `json:"hasAccessHistory"`
	ActiveGrantTypes []grant.Type `json:"activeGrantTypes"`
}

// Project computes the access summary from the full grant history.
func Project(grants []grant.AccessGrant, isNew bool, now time.Time) Projection {
	p := Projection{
		HasAccessHistory: len(grants) > 0,
		ActiveGrantTypes: []grant.Type{},
	}

	var soonest time.Time
	for _, g := range grants {
		if !g.Active(now) {
			continue
		}
		p.ActiveGrantTypes = append(p.ActiveGrantTypes, g.Type)
		if soonest.IsZero() || g.ExpiresAt.Before(soonest) {
			soonest = g.ExpiresAt
		}
	}

	switch {
	case len(p.ActiveGrantTypes) > 0:
		remaining := soonest.Sub(now)
		p.DaysLeft = int(remaining.Hours() / 24)
		if remaining <= expiringWindow {
			p.MembershipStatus = StatusExpiring
		} else {
			p.MembershipStatus = StatusActive
		}
	case p.HasAccessHistory:
		p.MembershipStatus = StatusExpired
	case isNew:
		p.MembershipStatus = StatusNew
	default:
		p.MembershipStatus = StatusExpired
	}

	return p
}

// UnlockedPacksFor maps held grant types to unlocked content packs: monthly
// opens WELCOME and MONTHLY, trial opens WELCOME, special opens SPECIAL.
func UnlockedPacksFor(activeTypes []grant.Type) []string {
	held := map[grant.Type]bool{}
	for _, t := range activeTypes {
		held[t] = true
	}

	packs := []string{}
	if held[grant.TypeTrial] || held[grant.TypeMonthly] {
		packs = append(packs, PackWelcome)
	}
	if held[grant.TypeMonthly] {
		packs = append(packs, PackMonthly)
	}
	if held[grant.TypeSpecial] {
		packs = append(packs, PackSpecial)
	}
	return packs
}
