package referral

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Referral tokens obfuscate the inviter address with a fixed single-character
// substitution cipher over the token interior; the first and last characters
// are padding. A decoded token must be a 0x-prefixed 40-hex-character string
// (42 characters total) or it is invalid and discarded entirely.

const (
	addressLength = 42 // "0x" + 40 hex chars
	padChar       = "k"
)

// encodeTable maps the address alphabet (lowercase hex plus the "0x" prefix
// characters) to cipher characters. Changing it invalidates every token in
// the wild.
var encodeTable = map[rune]rune{
	'0': 'm', '1': 'w', '2': 'i', '3': 'p',
	'4': 'h', '5': 'd', '6': 'v', '7': 'u',
	'8': 's', '9': 'g', 'a': 'n', 'b': 't',
	'c': 'q', 'd': 'x', 'e': 'r', 'f': 'j',
	'x': 'z',
}

var decodeTable = func() map[rune]rune {
	table := make(map[rune]rune, len(encodeTable))
	for plain, cipher := range encodeTable {
		table[cipher] = plain
	}
	return table
}()

// Decode recovers the inviter address from a referral token. If the token
// already starts with the native address prefix it is returned unchanged
// (already-decoded convention). The second return value reports validity;
// invalid results must never be partially used.
func Decode(code string) (common.Address, bool) {
	if strings.HasPrefix(code, "0x") {
		if len(code) != addressLength || !common.IsHexAddress(code) {
			return common.Address{}, false
		}
		return common.HexToAddress(code), true
	}

	if len(code) < 2 {
		return common.Address{}, false
	}

	// Strip padding, substitute the interior.
	interior := code[1 : len(code)-1]
	var decoded strings.Builder
	decoded.Grow(len(interior))
	for _, c := range interior {
		plain, ok := decodeTable[c]
		if !ok {
			return common.Address{}, false
		}
		decoded.WriteRune(plain)
	}

	address := decoded.String()
	if len(address) != addressLength || !common.IsHexAddress(address) {
		return common.Address{}, false
	}
	return common.HexToAddress(address), true
}

// Encode produces the referral token for an address. Inverse of Decode.
func Encode(address common.Address) string {
	plain := strings.ToLower(address.Hex())
	var encoded strings.Builder
	encoded.Grow(len(plain) + 2)
	encoded.WriteString(padChar)
	for _, c := range plain {
		encoded.WriteRune(encodeTable[c])
	}
	encoded.WriteString(padChar)
	return encoded.String()
}
