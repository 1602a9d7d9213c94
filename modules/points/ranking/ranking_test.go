package ranking

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	userA = common.HexToAddress("0x000000000000000000000000000000000000000a")
	userB = common.HexToAddress("0x000000000000000000000000000000000000000b")
	userC = common.HexToAddress("0x000000000000000000000000000000000000000c")
	userD = common.HexToAddress("0x000000000000000000000000000000000000000d")
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestBoostTable(t *testing.T) {
	table := BoostTable{decimal.NewFromFloat(0.5), decimal.NewFromFloat(0.3), decimal.NewFromFloat(0.1)}

	assert.True(t, table.Boost(1).Equal(decimal.NewFromFloat(0.5)))
	assert.True(t, table.Boost(3).Equal(decimal.NewFromFloat(0.1)))
	assert.True(t, table.Boost(4).IsZero())
	assert.True(t, table.Boost(0).IsZero())
	assert.True(t, table.Boost(-1).IsZero())
}

func TestRankCountsTierZeroDepositsOnly(t *testing.T) {
	// B was invited by A; with default tier weights B's deposit counts for
	// nothing towards A's group.
	deposits := map[common.Address]decimal.Decimal{
		userA: d(100),
		userB: d(50),
	}
	edges := map[common.Address]common.Address{
		userB: userA,
	}

	ranking := Rank(deposits, edges, BoostTable{decimal.NewFromFloat(0.2)}, nil, time.Now())

	require.Len(t, ranking.Groups, 1)
	group := ranking.Groups[0]
	assert.Equal(t, userA, group.GroupId)
	assert.True(t, group.TotalStake.Equal(d(100)), "got %s", group.TotalStake)
	assert.Equal(t, 1, group.Rank)
	assert.True(t, group.CurrentBoost.Equal(decimal.NewFromFloat(0.2)))
}

func TestRankTierWeights(t *testing.T) {
	deposits := map[common.Address]decimal.Decimal{
		userA: d(100),
		userB: d(50),
		userC: d(40),
	}
	// C -> B -> A
	edges := map[common.Address]common.Address{
		userB: userA,
		userC: userB,
	}
	tiers := TierWeights{d(1), decimal.NewFromFloat(0.5)}

	ranking := Rank(deposits, edges, nil, tiers, time.Now())

	require.Len(t, ranking.Groups, 1)
	// 100 + 50*0.5 + 40*0 (depth 2 past the table)
	assert.True(t, ranking.Groups[0].TotalStake.Equal(d(125)), "got %s", ranking.Groups[0].TotalStake)
}

func TestRankOrderingAndTieBreak(t *testing.T) {
	deposits := map[common.Address]decimal.Decimal{
		userA: d(100),
		userB: d(300),
		userC: d(100),
	}

	ranking := Rank(deposits, nil, BoostTable{d(1), d(1)}, nil, time.Now())

	require.Len(t, ranking.Groups, 3)
	assert.Equal(t, userB, ranking.Groups[0].GroupId)
	// Equal stakes order by address.
	assert.Equal(t, userA, ranking.Groups[1].GroupId)
	assert.Equal(t, userC, ranking.Groups[2].GroupId)

	assert.Equal(t, 1, ranking.Groups[0].Rank)
	assert.Equal(t, 2, ranking.Groups[1].Rank)
	assert.Equal(t, 3, ranking.Groups[2].Rank)
	assert.True(t, ranking.Groups[2].CurrentBoost.IsZero())
}

func TestRankSkipsNonDepositorTerminals(t *testing.T) {
	// D never deposited; A's chain terminates at D, so A's deposit belongs to
	// no ranked group.
	deposits := map[common.Address]decimal.Decimal{
		userA: d(100),
		userB: d(50),
	}
	edges := map[common.Address]common.Address{
		userA: userD,
	}

	ranking := Rank(deposits, edges, nil, nil, time.Now())

	require.Len(t, ranking.Groups, 1)
	assert.Equal(t, userB, ranking.Groups[0].GroupId)
}

func TestRankDeterministic(t *testing.T) {
	deposits := map[common.Address]decimal.Decimal{
		userA: d(10), userB: d(10), userC: d(10), userD: d(10),
	}

	first := Rank(deposits, nil, nil, nil, time.Now())
	for i := 0; i < 10; i++ {
		again := Rank(deposits, nil, nil, nil, time.Now())
		for j := range first.Groups {
			assert.Equal(t, first.Groups[j].GroupId, again.Groups[j].GroupId)
		}
	}
}
