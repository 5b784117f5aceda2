// Package format converts between wei strings and human display forms.
// Prices travel as minor-unit integers end to end; only display rounds.
package format

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/params"
)

const displayDecimals = 4

var weiPerEther = new(big.Int).SetUint64(params.Ether)

// FormatEther renders a wei string as ether with fixed 4-decimal rounding.
// Malformed input renders as "0.0000" rather than failing, matching how the
// storefront treats unparseable prices.
func FormatEther(wei string) string {
	n, ok := new(big.Int).SetString(strings.TrimSpace(wei), 10)
	if !ok {
		return "0.0000"
	}
	r := new(big.Rat).SetFrac(n, weiPerEther)
	return r.FloatString(displayDecimals)
}

// ParseEther converts a decimal ether string into a wei string. Malformed or
// negative input yields "0".
func ParseEther(ether string) string {
	r, ok := new(big.Rat).SetString(strings.TrimSpace(ether))
	if !ok || r.Sign() < 0 {
		return "0"
	}
	r.Mul(r, new(big.Rat).SetInt(weiPerEther))
	if !r.IsInt() {
		// Sub-wei precision is truncated.
		return new(big.Int).Quo(r.Num(), r.Denom()).String()
	}
	return r.Num().String()
}

// ShortAddress renders 0x1234567890abcdef... as "0x1234...cdef" for display.
func ShortAddress(addr string) string {
	if len(addr) < 10 {
		return addr
	}
	return fmt.Sprintf("%s...%s", addr[:6], addr[len(addr)-4:])
}
