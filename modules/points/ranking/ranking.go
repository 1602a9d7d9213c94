package ranking

import (
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/pointsflow/points-indexer/modules/points/entity"
	"github.com/pointsflow/points-indexer/modules/points/referral"
	"github.com/shopspring/decimal"
)

// BoostTable is the fixed rank -> boost lookup. Index rank-1; ranks past the
// table's length get zero boost.
type BoostTable []decimal.Decimal

// Boost returns the boost for the 1-based rank.
func (t BoostTable) Boost(rank int) decimal.Decimal {
	if rank < 1 || rank > len(t) {
		return decimal.Zero
	}
	return t[rank-1]
}

// TierWeights are the fractions at which deposits count towards a group's
// stake by referral depth: index 0 is the root's own (tier-0) deposits,
// index 1 direct invitees, and so on. Depths past the slice count at zero.
type TierWeights []decimal.Decimal

// DefaultTierWeights counts tier-0 deposits at full value only.
var DefaultTierWeights = TierWeights{decimal.NewFromInt(1)}

func (w TierWeights) Weight(depth int) decimal.Decimal {
	if depth < 0 || depth >= len(w) {
		return decimal.Zero
	}
	return w[depth]
}

// Rank identifies referral-root groups, aggregates each group's stake and
// assigns ranks and boosts. Roots are depositors with no resolvable inviter;
// every depositor contributes its deposit, weighted by referral depth, to
// the group its chain terminates at.
//
// Groups are sorted descending by total stake. Ties are broken by address
// order so repeated runs over the same inputs produce the same ranking.
func Rank(depositsByUser map[common.Address]decimal.Decimal, edges map[common.Address]common.Address, boosts BoostTable, tiers TierWeights, now time.Time) *entity.GroupRanking {
	if len(tiers) == 0 {
		tiers = DefaultTierWeights
	}

	roots := make(map[common.Address]struct{})
	for user := range depositsByUser {
		if referral.IsRoot(user, edges) {
			roots[user] = struct{}{}
		}
	}

	stakes := make(map[common.Address]decimal.Decimal, len(roots))
	for user, deposit := range depositsByUser {
		root, depth := referral.ResolveChainDepth(user, edges)
		if _, ok := roots[root]; !ok {
			// Chain terminates at a non-depositor; no ranked group exists.
			continue
		}
		stakes[root] = stakes[root].Add(deposit.Mul(tiers.Weight(depth)))
	}

	groups := make([]*entity.Group, 0, len(roots))
	for root := range roots {
		groups = append(groups, &entity.Group{
			GroupId:    root,
			TotalStake: stakes[root],
		})
	}
	sort.SliceStable(groups, func(i, j int) bool {
		if cmp := groups[i].TotalStake.Cmp(groups[j].TotalStake); cmp != 0 {
			return cmp > 0
		}
		return groups[i].GroupId.Hex() < groups[j].GroupId.Hex()
	})

	for i, group := range groups {
		group.Rank = i + 1
		group.CurrentBoost = boosts.Boost(group.Rank)
	}

	return &entity.GroupRanking{
		Id:        uuid.New(),
		CreatedAt: now,
		Groups:    groups,
	}
}
