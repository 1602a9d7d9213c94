package referral

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/pointsflow/points-indexer/modules/points/entity"
)

// EdgesFromSubmissions builds the referral edge map user -> inviter from raw
// submissions. The oldest valid decode per user wins; later submissions from
// the same user are ignored. Submissions that do not decode to a valid
// address are dropped. Submissions must be passed in ascending block order.
func EdgesFromSubmissions(submissions []entity.ReferralSubmission) map[common.Address]common.Address {
	edges := make(map[common.Address]common.Address)
	for _, submission := range submissions {
		if _, ok := edges[submission.User]; ok {
			continue
		}
		inviter, ok := Decode(submission.Code)
		if !ok {
			continue
		}
		edges[submission.User] = inviter
	}
	return edges
}

// ResolveChain walks user -> inviter -> inviter's own inviter until the
// chain terminates, and returns the terminal (root) address. Referral data
// is user-submitted, so cycles are adversarial-possible, not theoretical:
// the walk keeps a visited set and terminates in bounded steps.
//
// Termination conditions, checked before each step: no edge for the current
// node, the next inviter equals the original user (self-referral guard), or
// the next inviter was already visited in this walk (cycle guard).
func ResolveChain(user common.Address, edges map[common.Address]common.Address) common.Address {
	terminal, _ := ResolveChainDepth(user, edges)
	return terminal
}

// ResolveChainDepth is ResolveChain returning also the number of hops taken
// to reach the terminal.
func ResolveChainDepth(user common.Address, edges map[common.Address]common.Address) (common.Address, int) {
	visited := map[common.Address]struct{}{user: {}}
	current, depth := user, 0
	for {
		inviter, ok := edges[current]
		if !ok {
			return current, depth
		}
		if inviter == user {
			return current, depth
		}
		if _, seen := visited[inviter]; seen {
			return current, depth
		}
		visited[inviter] = struct{}{}
		current = inviter
		depth++
	}
}

// IsRoot reports whether the user has no resolvable inviter.
func IsRoot(user common.Address, edges map[common.Address]common.Address) bool {
	return ResolveChain(user, edges) == user
}
