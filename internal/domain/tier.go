package domain

// Tier is a coarse rank bucket derived from percentile standing.
type Tier string

const (
	TierGold   Tier = "Gold"
	TierSilver Tier = "Silver"
	TierBronze Tier = "Bronze"
)

// TierForRank buckets a 1-based rank within a field of total competitors.
// The top 20% of the field is Gold, the next 40% Silver, the rest Bronze.
// A field of one is Gold: the raw percentile (1/1 = 1.0) would land the
// lone competitor in Bronze, and intent wins there.
func TierForRank(rank, total int) Tier {
	if total <= 0 {
		return TierBronze
	}
	if total == 1 {
		return TierGold
	}

	percentile := float64(rank) / float64(total)
	switch {
	case percentile <= 0.20:
		return TierGold
	case percentile <= 0.60:
		return TierSilver
	default:
		return TierBronze
	}
}
