package referral

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pointsflow/points-indexer/modules/points/entity"
	"github.com/stretchr/testify/assert"
)

var (
	userA = common.HexToAddress("0x000000000000000000000000000000000000000a")
	userB = common.HexToAddress("0x000000000000000000000000000000000000000b")
	userC = common.HexToAddress("0x000000000000000000000000000000000000000c")
	userD = common.HexToAddress("0x000000000000000000000000000000000000000d")
)

func TestEdgesFromSubmissionsOldestWins(t *testing.T) {
	submissions := []entity.ReferralSubmission{
		{User: userA, Code: Encode(userB), BlockNumber: 100},
		{User: userA, Code: Encode(userC), BlockNumber: 200},
	}

	edges := EdgesFromSubmissions(submissions)

	assert.Equal(t, map[common.Address]common.Address{userA: userB}, edges)
}

func TestEdgesFromSubmissionsSkipsInvalid(t *testing.T) {
	submissions := []entity.ReferralSubmission{
		{User: userA, Code: "not-a-valid-token", BlockNumber: 100},
		{User: userA, Code: Encode(userC), BlockNumber: 200},
		{User: userB, Code: "", BlockNumber: 300},
	}

	edges := EdgesFromSubmissions(submissions)

	// The invalid first submission does not consume userA's slot.
	assert.Equal(t, map[common.Address]common.Address{userA: userC}, edges)
}

func TestResolveChain(t *testing.T) {
	edges := map[common.Address]common.Address{
		userA: userB,
		userB: userC,
	}

	root, depth := ResolveChainDepth(userA, edges)
	assert.Equal(t, userC, root)
	assert.Equal(t, 2, depth)

	root, depth = ResolveChainDepth(userC, edges)
	assert.Equal(t, userC, root)
	assert.Equal(t, 0, depth)

	root, depth = ResolveChainDepth(userD, edges)
	assert.Equal(t, userD, root)
	assert.Equal(t, 0, depth)
}

func TestResolveChainSelfReferral(t *testing.T) {
	edges := map[common.Address]common.Address{
		userA: userA,
	}

	root, depth := ResolveChainDepth(userA, edges)
	assert.Equal(t, userA, root)
	assert.Equal(t, 0, depth)
}

func TestResolveChainCycle(t *testing.T) {
	edges := map[common.Address]common.Address{
		userA: userB,
		userB: userC,
		userC: userA,
	}

	// Walk from A stops when the next hop would revisit A.
	root, depth := ResolveChainDepth(userA, edges)
	assert.Equal(t, userC, root)
	assert.Equal(t, 2, depth)

	// Two-node cycle.
	edges = map[common.Address]common.Address{
		userA: userB,
		userB: userA,
	}
	root, depth = ResolveChainDepth(userA, edges)
	assert.Equal(t, userB, root)
	assert.Equal(t, 1, depth)
}

func TestIsRoot(t *testing.T) {
	edges := map[common.Address]common.Address{
		userA: userB,
	}

	assert.False(t, IsRoot(userA, edges))
	assert.True(t, IsRoot(userB, edges))
	assert.True(t, IsRoot(userC, edges))
}
