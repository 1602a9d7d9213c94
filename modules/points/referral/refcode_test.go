package referral

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	addresses := []common.Address{
		common.HexToAddress("0x1234567890abcdef1234567890abcdef12345678"),
		common.HexToAddress("0x0000000000000000000000000000000000000001"),
		common.HexToAddress("0xffffffffffffffffffffffffffffffffffffffff"),
	}
	for _, address := range addresses {
		code := Encode(address)
		decoded, ok := Decode(code)
		require.True(t, ok, "code %q should decode", code)
		assert.Equal(t, address, decoded)
	}
}

func TestEncodeAppliesPaddingAndCipher(t *testing.T) {
	address := common.HexToAddress("0x1234567890abcdef1234567890abcdef12345678")
	code := Encode(address)

	require.Len(t, code, 44)
	assert.Equal(t, byte('k'), code[0])
	assert.Equal(t, byte('k'), code[len(code)-1])
	// "0x" prefix enciphers to "mz"
	assert.Equal(t, "mz", code[1:3])
}

func TestDecodePlainAddressPassthrough(t *testing.T) {
	decoded, ok := Decode("0x1234567890AbcdEF1234567890aBcdef12345678")
	require.True(t, ok)
	assert.Equal(t, common.HexToAddress("0x1234567890abcdef1234567890abcdef12345678"), decoded)
}

func TestDecodeInvalid(t *testing.T) {
	testcases := []struct {
		name string
		code string
	}{
		{name: "empty", code: ""},
		{name: "single char", code: "k"},
		{name: "0x prefix but too short", code: "0x1234"},
		{name: "0x prefix but not hex", code: "0xzz34567890abcdef1234567890abcdef12345678"},
		{name: "cipher char outside table", code: "kmzwiphdvusgn!qxrjwiphdvusgnqxrjwiphdvusgnk"},
		{name: "decodes to wrong length", code: "kmzwik"},
		{name: "padding only", code: "kk"},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			decoded, ok := Decode(tc.code)
			assert.False(t, ok)
			assert.Equal(t, common.Address{}, decoded)
		})
	}
}
