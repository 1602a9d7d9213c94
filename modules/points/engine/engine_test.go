package engine

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/pointsflow/points-indexer/modules/points/entity"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	userA = common.HexToAddress("0x000000000000000000000000000000000000000a")
	userB = common.HexToAddress("0x000000000000000000000000000000000000000b")
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func df(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func balances(category entity.RewardCategory, byUser map[common.Address]decimal.Decimal) map[entity.RewardCategory]map[common.Address]decimal.Decimal {
	return map[entity.RewardCategory]map[common.Address]decimal.Decimal{category: byUser}
}

func rankingOf(groups ...*entity.Group) *entity.GroupRanking {
	return &entity.GroupRanking{Id: uuid.New(), CreatedAt: time.Now(), Groups: groups}
}

func TestCalculateGroupBoostOnly(t *testing.T) {
	// Sole staker, no secondary assets: multiplier is 1 plus the group boost.
	in := Input{
		Series:      "points",
		BlockHeight: 1000,
		Balances:    balances(entity.CategoryStaking, map[common.Address]decimal.Decimal{userA: d(100)}),
		Flows:       balances(entity.CategoryStaking, map[common.Address]decimal.Decimal{userA: d(100)}),
		Ranking:     rankingOf(&entity.Group{GroupId: userA, Rank: 1, CurrentBoost: df(0.2)}),
	}

	snapshot := Calculate(Config{}, in, time.Now())

	require.Len(t, snapshot.Records, 1)
	record := snapshot.Records[0]
	assert.Equal(t, userA, record.User)
	assert.Equal(t, 1, record.Rank)
	assert.True(t, record.Multiplier.Equal(df(1.2)), "got %s", record.Multiplier)
	assert.True(t, record.DailyPoints[entity.CategoryStaking].Equal(d(120)), "got %s", record.DailyPoints[entity.CategoryStaking])
	assert.True(t, record.TotalPoints.Equal(d(120)))
}

func TestCalculateBoostFactorCapped(t *testing.T) {
	in := Input{
		Series:      "points",
		BlockHeight: 1000,
		Balances: map[entity.RewardCategory]map[common.Address]decimal.Decimal{
			// A holds 10% of stake but 100% of LP.
			entity.CategoryStaking: {userA: d(10), userB: d(90)},
			entity.CategoryLP:      {userA: d(50)},
		},
		Flows: balances(entity.CategoryStaking, map[common.Address]decimal.Decimal{userA: d(10)}),
	}
	cfg := Config{
		BoostRules: []BoostRule{{Category: entity.CategoryLP, Cap: df(1.5)}},
	}

	snapshot := Calculate(cfg, in, time.Now())

	record := snapshot.RecordByUser()[userA]
	require.NotNil(t, record)
	// Raw factor 1 / 0.1 = 10, capped at 1.5.
	assert.True(t, record.BoostFactors[entity.CategoryLP].Equal(df(1.5)), "got %s", record.BoostFactors[entity.CategoryLP])
	assert.True(t, record.Multiplier.Equal(df(2.5)), "got %s", record.Multiplier)
}

func TestCalculateNoBoostWithoutSecondaryBalance(t *testing.T) {
	in := Input{
		Series:      "points",
		BlockHeight: 1000,
		Balances:    balances(entity.CategoryStaking, map[common.Address]decimal.Decimal{userA: d(100)}),
		Flows:       balances(entity.CategoryStaking, map[common.Address]decimal.Decimal{userA: d(100)}),
	}
	cfg := Config{
		BoostRules: []BoostRule{{Category: entity.CategoryLP, Cap: df(2)}},
	}

	snapshot := Calculate(cfg, in, time.Now())

	record := snapshot.RecordByUser()[userA]
	require.NotNil(t, record)
	assert.True(t, record.BoostFactors[entity.CategoryLP].IsZero())
	assert.True(t, record.Multiplier.Equal(d(1)))
}

func TestCalculateNegativeFlowFlooredAtZero(t *testing.T) {
	in := Input{
		Series:      "points",
		BlockHeight: 1000,
		Balances:    balances(entity.CategoryStaking, map[common.Address]decimal.Decimal{userA: d(100)}),
		Flows:       balances(entity.CategoryStaking, map[common.Address]decimal.Decimal{userA: d(-40)}),
	}

	snapshot := Calculate(Config{}, in, time.Now())

	record := snapshot.RecordByUser()[userA]
	require.NotNil(t, record)
	assert.True(t, record.DailyBase[entity.CategoryStaking].IsZero())
	assert.True(t, record.DailyPoints[entity.CategoryStaking].IsZero())
}

func TestCalculateNegativePrimaryBalanceFactorFloored(t *testing.T) {
	// Sources crawl independently, so A's unstakes can land before the
	// matching stakes and leave a transiently negative staking balance. The
	// boost factor must floor at zero; the multiplier never drops below 1.
	in := Input{
		Series:      "points",
		BlockHeight: 1000,
		Balances: map[entity.RewardCategory]map[common.Address]decimal.Decimal{
			entity.CategoryStaking: {userA: d(-1), userB: d(101)},
			entity.CategoryLP:      {userA: d(5)},
		},
		Flows: balances(entity.CategoryStaking, map[common.Address]decimal.Decimal{userA: d(50)}),
	}
	cfg := Config{
		BoostRules: []BoostRule{{Category: entity.CategoryLP, Cap: df(0.5)}},
	}

	snapshot := Calculate(cfg, in, time.Now())

	record := snapshot.RecordByUser()[userA]
	require.NotNil(t, record)
	assert.False(t, record.BoostFactors[entity.CategoryLP].IsNegative(), "boost factor went negative: %s", record.BoostFactors[entity.CategoryLP])
	assert.True(t, record.BoostFactors[entity.CategoryLP].IsZero(), "got %s", record.BoostFactors[entity.CategoryLP])
	assert.True(t, record.Multiplier.Equal(d(1)), "got %s", record.Multiplier)
	assert.True(t, record.DailyPoints[entity.CategoryStaking].Equal(d(50)), "got %s", record.DailyPoints[entity.CategoryStaking])
	assert.False(t, record.TotalPoints.IsNegative())
}

func TestCalculateCumulativeAccrual(t *testing.T) {
	previous := &entity.PointsSnapshot{
		Id:          uuid.New(),
		Series:      "points",
		BlockHeight: 500,
		Records: []*entity.PointsRecord{{
			User:       userA,
			Cumulative: map[entity.RewardCategory]decimal.Decimal{entity.CategoryStaking: d(50)},
		}},
	}
	in := Input{
		Series:      "points",
		BlockHeight: 1000,
		Balances:    balances(entity.CategoryStaking, map[common.Address]decimal.Decimal{userA: d(100)}),
		Flows:       balances(entity.CategoryStaking, map[common.Address]decimal.Decimal{userA: d(10)}),
		Previous:    previous,
	}

	snapshot := Calculate(Config{}, in, time.Now())

	record := snapshot.RecordByUser()[userA]
	require.NotNil(t, record)
	assert.True(t, record.Cumulative[entity.CategoryStaking].Equal(d(60)), "got %s", record.Cumulative[entity.CategoryStaking])
	assert.True(t, record.TotalPoints.Equal(d(60)))
}

func TestCalculateCarriesPreviousHoldersWithNoActivity(t *testing.T) {
	// A holder present only in the previous snapshot keeps its cumulative
	// total in the new one.
	previous := &entity.PointsSnapshot{
		Id:          uuid.New(),
		Series:      "points",
		BlockHeight: 500,
		Records: []*entity.PointsRecord{{
			User:       userB,
			Cumulative: map[entity.RewardCategory]decimal.Decimal{entity.CategoryLP: d(30)},
		}},
	}
	in := Input{
		Series:      "points",
		BlockHeight: 1000,
		Balances:    balances(entity.CategoryStaking, map[common.Address]decimal.Decimal{userA: d(100)}),
		Flows:       balances(entity.CategoryStaking, map[common.Address]decimal.Decimal{userA: d(10)}),
		Previous:    previous,
	}

	snapshot := Calculate(Config{}, in, time.Now())

	require.Len(t, snapshot.Records, 2)
	record := snapshot.RecordByUser()[userB]
	require.NotNil(t, record)
	assert.True(t, record.Cumulative[entity.CategoryLP].Equal(d(30)))
	assert.True(t, record.DailyPoints[entity.CategoryLP].IsZero())
}

func TestCalculateGroupBoostViaReferralChain(t *testing.T) {
	// B's chain resolves to A; B receives A's group boost.
	in := Input{
		Series:      "points",
		BlockHeight: 1000,
		Balances:    balances(entity.CategoryStaking, map[common.Address]decimal.Decimal{userA: d(100), userB: d(50)}),
		Flows:       balances(entity.CategoryStaking, map[common.Address]decimal.Decimal{userB: d(50)}),
		Edges:       map[common.Address]common.Address{userB: userA},
		Ranking:     rankingOf(&entity.Group{GroupId: userA, Rank: 1, CurrentBoost: df(0.3)}),
	}

	snapshot := Calculate(Config{}, in, time.Now())

	record := snapshot.RecordByUser()[userB]
	require.NotNil(t, record)
	assert.Equal(t, userA, record.Group)
	assert.True(t, record.GroupBoost.Equal(df(0.3)))
	assert.True(t, record.Multiplier.Equal(df(1.3)))
	assert.True(t, record.DailyPoints[entity.CategoryStaking].Equal(d(65)), "got %s", record.DailyPoints[entity.CategoryStaking])
}

func TestCalculateDeterministicRecordOrder(t *testing.T) {
	in := Input{
		Series:      "points",
		BlockHeight: 1000,
		Balances: balances(entity.CategoryStaking, map[common.Address]decimal.Decimal{
			userA: d(1), userB: d(2),
		}),
	}

	first := Calculate(Config{}, in, time.Now())
	for i := 0; i < 5; i++ {
		again := Calculate(Config{}, in, time.Now())
		require.Len(t, again.Records, len(first.Records))
		for j := range first.Records {
			assert.Equal(t, first.Records[j].User, again.Records[j].User)
		}
	}
}
