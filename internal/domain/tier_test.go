package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTierForRankFieldOfTen(t *testing.T) {
	// Percentile boundaries at 0.20 and 0.60: ranks 1-2 Gold, 3-6 Silver, 7-10 Bronze.
	want := map[int]Tier{
		1: TierGold, 2: TierGold,
		3: TierSilver, 4: TierSilver, 5: TierSilver, 6: TierSilver,
		7: TierBronze, 8: TierBronze, 9: TierBronze, 10: TierBronze,
	}

	for rank, tier := range want {
		t.Run(fmt.Sprintf("rank_%d", rank), func(t *testing.T) {
			require.Equal(t, tier, TierForRank(rank, 10))
		})
	}
}

func TestTierForRankSoloCompetitorIsGold(t *testing.T) {
	// 1/1 = 1.0 would be Bronze by the raw formula; a lone leader is top tier.
	require.Equal(t, TierGold, TierForRank(1, 1))
}

func TestTierForRankSmallFields(t *testing.T) {
	// Raw percentile applies once there is an actual field to compete in.
	require.Equal(t, TierSilver, TierForRank(1, 2))
	require.Equal(t, TierGold, TierForRank(1, 5))
	require.Equal(t, TierSilver, TierForRank(2, 5))
	require.Equal(t, TierBronze, TierForRank(2, 2))
	require.Equal(t, TierSilver, TierForRank(2, 4))
}

func TestTierForRankEmptyField(t *testing.T) {
	require.Equal(t, TierBronze, TierForRank(1, 0))
}
