package models

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Course mirrors a catalog/on-chain course record. Price is wei as a decimal
// string; the chain never hands out floats and neither do we.
type Course struct {
	CourseID    uint64 `json:"courseId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Author      string `json:"author"`
	Price       string `json:"price"`
	CreatedAt   int64  `json:"createdAt"`
}

// IsAuthoredBy reports whether addr published the course. Addresses compare
// case-insensitively since wallets and the catalog disagree on checksum case.
func (c Course) IsAuthoredBy(addr string) bool {
	return addr != "" && strings.EqualFold(c.Author, addr)
}

// Purchase is the off-chain record written after a transaction confirms.
// Append-only: there is no update or delete path.
type Purchase struct {
	CourseID        uint64 `json:"courseId"`
	Buyer           string `json:"buyer"`
	Price           string `json:"price"`
	TransactionHash string `json:"transactionHash"`
	PurchasedAt     int64  `json:"purchasedAt,omitempty"`
}

// PurchaseReceipt is what a confirmed on-chain purchase returns.
type PurchaseReceipt struct {
	TransactionHash string `json:"transactionHash"`
	GasUsed         uint64 `json:"gasUsed"`
}

// NormalizeAddress lowercases a hex address, the canonical form the session
// stores and the catalog keys on.
func NormalizeAddress(addr string) string {
	return strings.ToLower(addr)
}

// IsHexAddress reports whether s looks like a 20-byte hex address.
func IsHexAddress(s string) bool {
	return common.IsHexAddress(s)
}
