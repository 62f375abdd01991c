// Package license provides license tiers and feature policy.
package license

import (
	"fmt"
	"strings"
)

// Tier is a license level.
type Tier string

const (
	TierBasic      Tier = "basic"
	TierStandard   Tier = "standard"
	TierGold       Tier = "gold"
	TierPlatinum   Tier = "platinum"
	TierEnterprise Tier = "enterprise"
	TierTrial      Tier = "trial"
)

// tierRank orders the paid tiers. Trial is handled separately and unlocks
// every feature while the license is active.
var tierRank = map[Tier]int{
	TierBasic:      1,
	TierStandard:   2,
	TierGold:       3,
	TierPlatinum:   4,
	TierEnterprise: 5,
}

// ParseTier converts a case-insensitive name to a Tier.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if t == TierTrial {
		return t, nil
	}
	if _, ok := tierRank[t]; !ok {
		return "", fmt.Errorf("unknown license tier %q", s)
	}
	return t, nil
}

// IsValid reports whether t is a known tier.
func (t Tier) IsValid() bool {
	_, ok := tierRank[t]
	return ok || t == TierTrial
}

// AtLeast reports whether t covers min. A trial minimum ranks below basic,
// so every known tier covers it.
func (t Tier) AtLeast(min Tier) bool {
	if t == TierTrial {
		return true
	}
	have, ok := tierRank[t]
	if !ok {
		return false
	}
	if min == TierTrial {
		return true
	}
	need, ok := tierRank[min]
	if !ok {
		return false
	}
	return have >= need
}

// Policy maps features to the minimum tier that unlocks them.
type Policy struct {
	// Default applies to features without an explicit entry.
	Default Tier
	// MinTier holds per-feature overrides.
	MinTier map[string]Tier
}

// DefaultPolicy requires platinum for every feature.
func DefaultPolicy() Policy {
	return Policy{Default: TierPlatinum}
}

// MinTierFor returns the tier required for feature.
func (p Policy) MinTierFor(feature string) Tier {
	if t, ok := p.MinTier[feature]; ok {
		return t
	}
	if p.Default != "" {
		return p.Default
	}
	return TierPlatinum
}
