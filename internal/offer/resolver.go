package offer

import (
	"context"
	"errors"
	"strings"
	"time"

	"fanledger/internal/grant"
)

// ErrUnresolved means the identifier matched no catalog record, keyword or
// price rule and the request carried no amount to fall back on.
var ErrUnresolved = errors.New("offer could not be resolved")

// Resolver normalizes heterogeneous purchase requests (offer id, pack id,
// catalog item, gift pack name) into the canonical Resolved tuple.
type Resolver struct {
	repo Repository
}

func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve applies the ordered rules: explicit catalog record, then keyword
// match, then exact price match, then one-off. A bare amount with no
// identifier is always a one-off; price rules never fire on tips.
func (r *Resolver) Resolve(ctx context.Context, identifier string, amountCents int64) (*Resolved, error) {
	identifier = strings.TrimSpace(identifier)

	if identifier == "" {
		if amountCents < 0 {
			return nil, ErrUnresolved
		}
		return &Resolved{
			Title:       "One-off purchase",
			AmountCents: amountCents,
			ProductType: ProductOneOff,
		}, nil
	}

	o, err := r.repo.FindByIdentifier(ctx, identifier)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if o != nil && err == nil {
		return &Resolved{
			Title:          o.Title,
			AmountCents:    o.PriceCents,
			GrantType:      o.GrantType,
			ProductType:    o.ProductType,
			ExtendIfActive: o.ExtendIfActive,
		}, nil
	}

	if t, ok := GrantTypeByKeywords(identifier); ok {
		return packResolved(t), nil
	}

	if t, ok := GrantTypeByPrice(amountCents); ok {
		return packResolved(t), nil
	}

	if amountCents > 0 {
		return &Resolved{
			Title:       identifier,
			AmountCents: amountCents,
			ProductType: ProductOneOff,
		}, nil
	}

	return nil, ErrUnresolved
}

func packResolved(t grant.Type) *Resolved {
	gt := t
	return &Resolved{
		Title:       packTitle(t),
		AmountCents: PriceFor(t),
		GrantType:   &gt,
		ProductType: ProductPack,
	}
}

func packTitle(t grant.Type) string {
	switch t {
	case grant.TypeTrial:
		return "Trial Pack"
	case grant.TypeMonthly:
		return "Monthly Pack"
	case grant.TypeSpecial:
		return "Special Pack"
	default:
		return string(t)
	}
}

// Pack status for catalog packs as seen by one fan.
const (
	PackLocked   = "LOCKED"
	PackUnlocked = "UNLOCKED"
	PackActive   = "ACTIVE"
)

type ClassifiedPack struct {
	Offer     Offer       `json:"offer"`
	GrantType *grant.Type `json:"grant_type,omitempty"`
	Status    string      `json:"status"`
}

// ClassifyPackStatus resolves each pack's grant type through the rule table
// and marks it LOCKED (no grant ever), UNLOCKED (only expired grants) or
// ACTIVE (unexpired grant exists).
func ClassifyPackStatus(packs []Offer, grants []grant.AccessGrant, now time.Time) []ClassifiedPack {
	out := make([]ClassifiedPack, 0, len(packs))

	for _, p := range packs {
		cp := ClassifiedPack{Offer: p, Status: PackLocked}

		t, ok := resolvePackType(p)
		if ok {
			cp.GrantType = &t
			var everGranted, active bool
			for _, g := range grants {
				if g.Type != t {
					continue
				}
				everGranted = true
				if g.Active(now) {
					active = true
					break
				}
			}
			switch {
			case active:
				cp.Status = PackActive
			case everGranted:
				cp.Status = PackUnlocked
			}
		}

		out = append(out, cp)
	}
	return out
}

func resolvePackType(p Offer) (grant.Type, bool) {
	if p.GrantType != nil {
		return *p.GrantType, true
	}
	if t, ok := GrantTypeByKeywords(p.Code + " " + p.Title); ok {
		return t, true
	}
	return GrantTypeByPrice(p.PriceCents)
}
