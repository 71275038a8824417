package entities

import "math"

// TokenHolding is the normalized shape the membership directory exposes for
// a governance token. The engine never sees the raw token metadata; only the
// per-token weight multiplier matters here.
type TokenHolding struct {
	TokenID          string
	WeightMultiplier float64
}

// EligibleVoter is one entry of the eligible voter set: an active member and
// the holdings their voting power derives from.
type EligibleVoter struct {
	MemberID string
	Holdings []TokenHolding
}

// VotingPower maps a member's holdings to a voting weight. A member with no
// governance tokens votes with the one-member-one-vote baseline of 1.0; a
// token holder votes with the sum of the per-token multipliers, which
// supersedes the baseline rather than adding to it. A missing or malformed
// multiplier counts as 1.0 for that token.
func VotingPower(holdings []TokenHolding) float64 {
	if len(holdings) == 0 {
		return 1.0
	}
	power := 0.0
	for _, holding := range holdings {
		power += normalizeMultiplier(holding.WeightMultiplier)
	}
	return power
}

// TotalEligiblePower is the quorum denominator: the summed power of the
// whole eligible voter set.
func TotalEligiblePower(voters []EligibleVoter) float64 {
	total := 0.0
	for _, voter := range voters {
		total += VotingPower(voter.Holdings)
	}
	return total
}

func normalizeMultiplier(multiplier float64) float64 {
	if multiplier <= 0 || math.IsNaN(multiplier) || math.IsInf(multiplier, 0) {
		return 1.0
	}
	return multiplier
}
