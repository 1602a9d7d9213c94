package entity

import (
	"github.com/ethereum/go-ethereum/common"
)

// ReferralSubmission is one user-submitted referral token occurrence.
// Submissions are user-controlled data: tokens may be malformed and edge sets
// may contain adversarial cycles.
type ReferralSubmission struct {
	User        common.Address
	Code        string
	BlockNumber uint64
}
