package engine

import (
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/pointsflow/points-indexer/modules/points/entity"
	"github.com/pointsflow/points-indexer/modules/points/referral"
	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// BoostRule awards a secondary-asset boost factor, individually capped.
type BoostRule struct {
	Category entity.RewardCategory
	Cap      decimal.Decimal
}

// Config is the per-series calculation configuration.
type Config struct {
	// PrimaryCategory is the deposit category weights are measured against.
	PrimaryCategory entity.RewardCategory
	BoostRules      []BoostRule
}

// Input carries everything one calculation run reads. All auxiliary state
// (balances, ranking, previous snapshot) is referenced consistently within
// the run; callers must not mutate it concurrently.
type Input struct {
	Series      string
	BlockHeight uint64

	// Balances are current per-category holder balances at BlockHeight.
	Balances map[entity.RewardCategory]map[common.Address]decimal.Decimal

	// Flows are per-category net accruals (inflows minus outflows) since the
	// previous run. May be negative; daily bases are floored at zero.
	Flows map[entity.RewardCategory]map[common.Address]decimal.Decimal

	Edges    map[common.Address]common.Address
	Ranking  *entity.GroupRanking
	Previous *entity.PointsSnapshot
}

// Calculate produces one new immutable points snapshot. It never rewrites
// history: a holder's cumulative total is the previous snapshot's total plus
// this run's boosted daily points.
func Calculate(cfg Config, in Input, now time.Time) *entity.PointsSnapshot {
	if cfg.PrimaryCategory == "" {
		cfg.PrimaryCategory = entity.CategoryStaking
	}

	totals := make(map[entity.RewardCategory]decimal.Decimal, len(in.Balances))
	for category, balances := range in.Balances {
		total := decimal.Zero
		for _, balance := range balances {
			total = total.Add(balance)
		}
		totals[category] = total
	}

	boostsByGroup := in.Ranking.BoostByGroup()
	previousByUser := in.Previous.RecordByUser()

	records := make([]*entity.PointsRecord, 0, len(previousByUser))
	for _, user := range holders(in) {
		record := &entity.PointsRecord{
			User:         user,
			BoostFactors: make(map[entity.RewardCategory]decimal.Decimal, len(cfg.BoostRules)),
			DailyBase:    make(map[entity.RewardCategory]decimal.Decimal, len(entity.Categories)),
			DailyPoints:  make(map[entity.RewardCategory]decimal.Decimal, len(entity.Categories)),
			Cumulative:   make(map[entity.RewardCategory]decimal.Decimal, len(entity.Categories)),
		}

		primaryWeight := weight(in.Balances[cfg.PrimaryCategory], totals[cfg.PrimaryCategory], user)

		factorSum := decimal.Zero
		for _, rule := range cfg.BoostRules {
			factor := decimal.Zero
			if balance := in.Balances[rule.Category][user]; balance.IsPositive() {
				factor = weight(in.Balances[rule.Category], totals[rule.Category], user).Div(primaryWeight)
				if factor.GreaterThan(rule.Cap) {
					factor = rule.Cap
				}
				// Sources crawl independently, so outflows can be ingested
				// ahead of their matching inflows and leave a weight
				// transiently negative. Factors never reduce the multiplier.
				if factor.IsNegative() {
					factor = decimal.Zero
				}
			}
			record.BoostFactors[rule.Category] = factor
			factorSum = factorSum.Add(factor)
		}

		groupBoost := decimal.Zero
		root := referral.ResolveChain(user, in.Edges)
		if group, ok := boostsByGroup[root]; ok {
			record.Group = group.GroupId
			record.Rank = group.Rank
			groupBoost = group.CurrentBoost
		}
		record.GroupBoost = groupBoost
		record.Multiplier = one.Add(factorSum).Add(groupBoost)

		previous := previousByUser[user]
		for _, category := range entity.Categories {
			base := in.Flows[category][user]
			if base.IsNegative() {
				// Outflows may exceed tracked inflows in a window; the daily
				// base is never negative.
				base = decimal.Zero
			}

			daily := base.Mul(record.Multiplier)
			cumulative := daily
			if previous != nil {
				cumulative = previous.Cumulative[category].Add(daily)
			}

			record.DailyBase[category] = base
			record.DailyPoints[category] = daily
			record.Cumulative[category] = cumulative
			record.TotalPoints = record.TotalPoints.Add(cumulative)
		}

		records = append(records, record)
	}

	return &entity.PointsSnapshot{
		Id:          uuid.New(),
		Series:      in.Series,
		BlockHeight: in.BlockHeight,
		CreatedAt:   now,
		Records:     records,
	}
}

// weight is the holder's share of the category total, defaulting to 1 when
// the holder balance or the total is zero. The default avoids division by
// zero while still awarding the base rate.
func weight(balances map[common.Address]decimal.Decimal, total decimal.Decimal, user common.Address) decimal.Decimal {
	balance := balances[user]
	if balance.IsZero() || total.IsZero() {
		return one
	}
	return balance.Div(total)
}

// holders returns the union of all users seen in balances, flows and the
// previous snapshot, in deterministic address order.
func holders(in Input) []common.Address {
	seen := make(map[common.Address]struct{})
	for _, balances := range in.Balances {
		for user := range balances {
			seen[user] = struct{}{}
		}
	}
	for _, flows := range in.Flows {
		for user := range flows {
			seen[user] = struct{}{}
		}
	}
	if in.Previous != nil {
		for _, record := range in.Previous.Records {
			seen[record.User] = struct{}{}
		}
	}

	users := make([]common.Address, 0, len(seen))
	for user := range seen {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].Hex() < users[j].Hex()
	})
	return users
}
