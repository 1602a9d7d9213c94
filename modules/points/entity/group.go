package entity

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Group is a referral-chain root user together with the aggregate tier-0
// stake of all users whose referral chain resolves to it. Groups and ranks
// are recomputed from scratch on each ranking run and are not stable
// identifiers across time.
type Group struct {
	GroupId      common.Address
	TotalStake   decimal.Decimal
	Rank         int // 1-based, descending by stake
	CurrentBoost decimal.Decimal
}

// GroupRanking is one immutable ranking snapshot. Consumers must always read
// the latest snapshot.
type GroupRanking struct {
	Id        uuid.UUID
	CreatedAt time.Time
	Groups    []*Group
}

// BoostByGroup indexes the ranking's boosts by group id.
func (r *GroupRanking) BoostByGroup() map[common.Address]*Group {
	if r == nil {
		return nil
	}
	byGroup := make(map[common.Address]*Group, len(r.Groups))
	for _, group := range r.Groups {
		byGroup[group.GroupId] = group
	}
	return byGroup
}
