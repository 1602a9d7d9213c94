package entity

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// RewardCategory groups event kinds into the sub-systems points accrue from.
type RewardCategory string

const (
	CategoryStaking RewardCategory = "staking"
	CategoryLP      RewardCategory = "lp"
	CategoryLending RewardCategory = "lending"
	CategoryVault   RewardCategory = "vault"
)

// Categories lists all reward categories in their canonical (CSV column) order.
var Categories = []RewardCategory{CategoryStaking, CategoryLP, CategoryLending, CategoryVault}

func (c RewardCategory) IsValid() bool {
	for _, category := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

// EventKind is the closed set of decoded on-chain event shapes.
type EventKind string

const (
	EventKindStake         EventKind = "stake"
	EventKindUnstake       EventKind = "unstake"
	EventKindLPAdd         EventKind = "lp_add"
	EventKindLPRemove      EventKind = "lp_remove"
	EventKindSupply        EventKind = "supply"
	EventKindRedeem        EventKind = "redeem"
	EventKindVaultDeposit  EventKind = "vault_deposit"
	EventKindVaultWithdraw EventKind = "vault_withdraw"
)

var eventKindCategories = map[EventKind]RewardCategory{
	EventKindStake:         CategoryStaking,
	EventKindUnstake:       CategoryStaking,
	EventKindLPAdd:         CategoryLP,
	EventKindLPRemove:      CategoryLP,
	EventKindSupply:        CategoryLending,
	EventKindRedeem:        CategoryLending,
	EventKindVaultDeposit:  CategoryVault,
	EventKindVaultWithdraw: CategoryVault,
}

var eventKindInflow = map[EventKind]bool{
	EventKindStake:        true,
	EventKindLPAdd:        true,
	EventKindSupply:       true,
	EventKindVaultDeposit: true,
}

func (k EventKind) IsValid() bool {
	_, ok := eventKindCategories[k]
	return ok
}

// Category returns the reward category the kind accrues to.
func (k EventKind) Category() RewardCategory {
	return eventKindCategories[k]
}

// IsInflow reports whether the kind increases the user's tracked balance.
func (k EventKind) IsInflow() bool {
	return eventKindInflow[k]
}

func (k EventKind) String() string {
	return string(k)
}

// Event is one decoded log occurrence. Append-only: rows are never mutated
// except by explicit backfill that patches the derived Sender field.
// (SourceId, TxHash, LogIndex) is unique.
type Event struct {
	SourceId    string
	Kind        EventKind
	BlockNumber uint64
	TxHash      common.Hash
	LogIndex    uint
	User        common.Address
	Amount      decimal.Decimal

	// ReferralCode is the raw obfuscated referral token submitted with the
	// event, empty if none. Decoding is deferred to the referral resolver.
	ReferralCode string

	// Sender is the transaction sender, backfilled out-of-band via
	// getTransaction. Nil until patched.
	Sender *common.Address
}
