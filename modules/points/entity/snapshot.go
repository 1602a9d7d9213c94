package entity

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PointsSnapshot is one immutable output of a calculation run. Snapshots form
// an append-only time series; history is never rewritten, so "points earned
// between two dates" is the diff of two snapshots' cumulative totals.
type PointsSnapshot struct {
	Id     uuid.UUID
	Series string

	// BlockHeight is the upper event-store bound this run observed. Daily
	// bases of the next run cover (BlockHeight, nextHeight].
	BlockHeight uint64

	CreatedAt time.Time
	Records   []*PointsRecord
}

// PointsRecord is one holder's figures within a snapshot. Self-contained:
// prior-run fields needed for display are embedded, not referenced.
type PointsRecord struct {
	User common.Address

	// Group fields are zero values when the holder resolves to no group.
	Group      common.Address
	Rank       int
	GroupBoost decimal.Decimal

	// BoostFactors holds the individually capped secondary-asset factors.
	BoostFactors map[RewardCategory]decimal.Decimal

	// Multiplier = 1 + sum(BoostFactors) + GroupBoost.
	Multiplier decimal.Decimal

	DailyBase   map[RewardCategory]decimal.Decimal
	DailyPoints map[RewardCategory]decimal.Decimal
	Cumulative  map[RewardCategory]decimal.Decimal

	// TotalPoints is the sum of Cumulative across categories.
	TotalPoints decimal.Decimal
}

// RecordByUser indexes the snapshot's records by holder address.
func (s *PointsSnapshot) RecordByUser() map[common.Address]*PointsRecord {
	if s == nil {
		return nil
	}
	byUser := make(map[common.Address]*PointsRecord, len(s.Records))
	for _, record := range s.Records {
		byUser[record.User] = record
	}
	return byUser
}
