package offer

import (
	"strings"

	"fanledger/internal/grant"
)

// The single ordered rule table mapping identifiers to grant types. Every
// call site goes through this table; precedence is catalog record, then
// keyword tokens, then exact price.
var grantRules = []struct {
	t          grant.Type
	tokens     []string
	priceCents int64
}{
	{grant.TypeTrial, []string{"trial", "welcome", "try"}, 700},
	{grant.TypeMonthly, []string{"monthly", "month", "membership", "sub"}, 2500},
	{grant.TypeSpecial, []string{"special", "vip", "exclusive"}, 5000},
}

// GrantTypeByKeywords matches identifier/title text against the per-type
// token sets. Text matching two different types is ambiguous and reports no
// match, leaving resolution to the price rule.
func GrantTypeByKeywords(text string) (grant.Type, bool) {
	lowered := strings.ToLower(text)

	var (
		found grant.Type
		hits  int
	)
	for _, rule := range grantRules {
		for _, token := range rule.tokens {
			if strings.Contains(lowered, token) {
				found = rule.t
				hits++
				break
			}
		}
	}
	if hits != 1 {
		return "", false
	}
	return found, true
}

// GrantTypeByPrice matches an exact known type price.
func GrantTypeByPrice(priceCents int64) (grant.Type, bool) {
	if priceCents <= 0 {
		return "", false
	}
	for _, rule := range grantRules {
		if rule.priceCents == priceCents {
			return rule.t, true
		}
	}
	return "", false
}

// PriceFor returns the configured price of a grant type.
func PriceFor(t grant.Type) int64 {
	for _, rule := range grantRules {
		if rule.t == t {
			return rule.priceCents
		}
	}
	return 0
}
