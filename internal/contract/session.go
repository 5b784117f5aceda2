// Package contract owns the course-marketplace contract binding and keeps it
// consistent with the wallet session: no operation ever runs against a
// binding built for a different account or network.
package contract

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"github.com/course-marketplace/storefront/internal/models"
	"github.com/course-marketplace/storefront/internal/wallet"
)

const marketplaceABI = `[
	{"type":"function","name":"purchaseCourse","stateMutability":"payable","inputs":[{"name":"courseId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"getCourse","stateMutability":"view","inputs":[{"name":"courseId","type":"uint256"}],"outputs":[{"name":"title","type":"string"},{"name":"description","type":"string"},{"name":"author","type":"address"},{"name":"price","type":"uint256"},{"name":"createdAt","type":"uint256"}]},
	{"type":"function","name":"getUserPurchasedCourses","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"courseIds","type":"uint256[]"}]},
	{"type":"function","name":"hasUserPurchasedCourse","stateMutability":"view","inputs":[{"name":"courseId","type":"uint256"},{"name":"user","type":"address"}],"outputs":[{"name":"purchased","type":"bool"}]}
]`

// binding couples the fixed contract address/interface to the wallet state it
// was built against. It is stale as soon as the wallet's address or network
// differ.
type binding struct {
	from    string
	chainID string
}

type Session struct {
	provider  wallet.Provider
	wallet    *wallet.Session
	address   common.Address
	abi       abi.ABI
	txPoll    time.Duration
	txTimeout time.Duration
	log       *zap.Logger

	mu       sync.Mutex
	binding  *binding
	inflight map[uint64]struct{}
}

func NewSession(provider wallet.Provider, ws *wallet.Session, contractAddr string, txPoll, txTimeout time.Duration, log *zap.Logger) (*Session, error) {
	parsed, err := abi.JSON(strings.NewReader(marketplaceABI))
	if err != nil {
		return nil, fmt.Errorf("parse marketplace abi: %w", err)
	}
	if !common.IsHexAddress(contractAddr) {
		return nil, fmt.Errorf("invalid contract address %q", contractAddr)
	}
	return &Session{
		provider:  provider,
		wallet:    ws,
		address:   common.HexToAddress(contractAddr),
		abi:       parsed,
		txPoll:    txPoll,
		txTimeout: txTimeout,
		log:       log,
		inflight:  make(map[uint64]struct{}),
	}, nil
}

// IsInitialized reports whether a binding exists for the current wallet state.
func (s *Session) IsInitialized() bool {
	st := s.wallet.State()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.binding != nil && s.binding.from == st.Address && s.binding.chainID == st.NetworkID
}

// ensureBinding returns a binding valid for the current wallet state,
// rebuilding a stale one. Idempotent when already valid; concurrent rebuilds
// race benignly, last write wins.
func (s *Session) ensureBinding(ctx context.Context) (*binding, error) {
	if s.provider == nil {
		return nil, wallet.ErrProviderUnavailable
	}
	st := s.wallet.State()
	if !st.IsConnected() {
		return nil, fmt.Errorf("%w: wallet not connected", ErrBindingFailed)
	}

	s.mu.Lock()
	if s.binding != nil && s.binding.from == st.Address && s.binding.chainID == st.NetworkID {
		b := s.binding
		s.mu.Unlock()
		return b, nil
	}
	b := &binding{from: st.Address, chainID: st.NetworkID}
	s.binding = b
	s.mu.Unlock()

	s.log.Debug("contract binding rebuilt",
		zap.String("from", b.from),
		zap.String("chain_id", b.chainID),
	)
	return b, nil
}

// PurchaseCourse submits a payable purchase transaction sending exactly
// priceWei and suspends until it is mined. A second purchase of the same
// course while one is outstanding is rejected locally before any provider
// call; the in-flight marker is released on every exit path.
func (s *Session) PurchaseCourse(ctx context.Context, courseID uint64, priceWei string) (models.PurchaseReceipt, error) {
	var zero models.PurchaseReceipt

	s.mu.Lock()
	if _, busy := s.inflight[courseID]; busy {
		s.mu.Unlock()
		return zero, fmt.Errorf("%w: course %d", ErrAlreadyInFlight, courseID)
	}
	s.inflight[courseID] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.inflight, courseID)
		s.mu.Unlock()
	}()

	b, err := s.ensureBinding(ctx)
	if err != nil {
		return zero, err
	}

	value, ok := new(big.Int).SetString(priceWei, 10)
	if !ok || value.Sign() < 0 {
		return zero, fmt.Errorf("%w: price %q is not a wei amount", ErrBindingFailed, priceWei)
	}
	data, err := s.abi.Pack("purchaseCourse", new(big.Int).SetUint64(courseID))
	if err != nil {
		return zero, fmt.Errorf("%w: %v", ErrBindingFailed, err)
	}

	msg := map[string]string{
		"from":  b.from,
		"to":    s.address.Hex(),
		"value": hexutil.EncodeBig(value),
		"data":  hexutil.Encode(data),
	}
	raw, err := s.provider.Request(ctx, "eth_sendTransaction", msg)
	if err != nil {
		if isUserRejection(err) {
			return zero, fmt.Errorf("%w: %v", ErrTransactionRejected, err)
		}
		if reason, ok := revertReason(err); ok {
			return zero, &RevertError{Reason: reason}
		}
		return zero, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	var txHash string
	if err := json.Unmarshal(raw, &txHash); err != nil {
		return zero, fmt.Errorf("%w: malformed transaction hash: %v", ErrNetworkError, err)
	}

	s.log.Info("purchase submitted",
		zap.Uint64("course_id", courseID),
		zap.String("tx", txHash),
	)

	rcpt, err := s.waitMined(ctx, txHash)
	if err != nil {
		return zero, err
	}
	if !rcpt.succeeded() {
		reason := s.callRevertReason(ctx, msg, rcpt.BlockNumber)
		return zero, &RevertError{Reason: reason}
	}

	gasUsed, err := hexutil.DecodeUint64(rcpt.GasUsed)
	if err != nil {
		s.log.Warn("malformed gasUsed in receipt",
			zap.String("tx", txHash),
			zap.String("gas_used", rcpt.GasUsed),
			zap.Error(err),
		)
	}
	s.log.Info("purchase confirmed",
		zap.Uint64("course_id", courseID),
		zap.String("tx", txHash),
		zap.Uint64("gas_used", gasUsed),
	)
	return models.PurchaseReceipt{TransactionHash: txHash, GasUsed: gasUsed}, nil
}

// GetCourse reads a course record from the chain. Errors propagate.
func (s *Session) GetCourse(ctx context.Context, courseID uint64) (models.Course, error) {
	var zero models.Course
	out, err := s.call(ctx, "getCourse", new(big.Int).SetUint64(courseID))
	if err != nil {
		return zero, err
	}
	vals, err := s.abi.Unpack("getCourse", out)
	if err != nil {
		return zero, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	return models.Course{
		CourseID:    courseID,
		Title:       vals[0].(string),
		Description: vals[1].(string),
		Author:      models.NormalizeAddress(vals[2].(common.Address).Hex()),
		Price:       vals[3].(*big.Int).String(),
		CreatedAt:   vals[4].(*big.Int).Int64(),
	}, nil
}

// GetUserPurchasedCourses degrades to an empty list on any failure: purchase
// history being unavailable must never block browsing.
func (s *Session) GetUserPurchasedCourses(ctx context.Context, addr string) []uint64 {
	out, err := s.call(ctx, "getUserPurchasedCourses", common.HexToAddress(addr))
	if err != nil {
		s.log.Warn("purchased-course query failed", zap.String("address", addr), zap.Error(err))
		return []uint64{}
	}
	vals, err := s.abi.Unpack("getUserPurchasedCourses", out)
	if err != nil {
		s.log.Warn("purchased-course decode failed", zap.Error(err))
		return []uint64{}
	}
	raw := vals[0].([]*big.Int)
	ids := make([]uint64, 0, len(raw))
	for _, id := range raw {
		ids = append(ids, id.Uint64())
	}
	return ids
}

// HasUserPurchasedCourse reports ownership. Errors propagate, unlike the list
// query, because callers act on the answer.
func (s *Session) HasUserPurchasedCourse(ctx context.Context, courseID uint64, addr string) (bool, error) {
	out, err := s.call(ctx, "hasUserPurchasedCourse", new(big.Int).SetUint64(courseID), common.HexToAddress(addr))
	if err != nil {
		return false, err
	}
	vals, err := s.abi.Unpack("hasUserPurchasedCourse", out)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	return vals[0].(bool), nil
}

func (s *Session) call(ctx context.Context, method string, args ...any) ([]byte, error) {
	b, err := s.ensureBinding(ctx)
	if err != nil {
		return nil, err
	}
	data, err := s.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBindingFailed, err)
	}

	raw, err := s.provider.Request(ctx, "eth_call", map[string]string{
		"from": b.from,
		"to":   s.address.Hex(),
		"data": hexutil.Encode(data),
	}, "latest")
	if err != nil {
		if reason, ok := revertReason(err); ok {
			return nil, &RevertError{Reason: reason}
		}
		return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	var hex string
	if err := json.Unmarshal(raw, &hex); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	out, err := hexutil.Decode(hex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	return out, nil
}

type txReceipt struct {
	TransactionHash string `json:"transactionHash"`
	Status          string `json:"status"`
	GasUsed         string `json:"gasUsed"`
	BlockNumber     string `json:"blockNumber"`
}

func (r *txReceipt) succeeded() bool { return r.Status == "0x1" }

// waitMined polls for the receipt until the transaction is mined or the wait
// budget runs out.
func (s *Session) waitMined(ctx context.Context, txHash string) (*txReceipt, error) {
	ctx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	ticker := time.NewTicker(s.txPoll)
	defer ticker.Stop()

	for {
		raw, err := s.provider.Request(ctx, "eth_getTransactionReceipt", txHash)
		if err == nil && string(raw) != "null" && len(raw) > 0 {
			var rcpt txReceipt
			if err := json.Unmarshal(raw, &rcpt); err != nil {
				return nil, fmt.Errorf("%w: malformed receipt: %v", ErrNetworkError, err)
			}
			return &rcpt, nil
		}
		if err != nil {
			s.log.Debug("receipt poll failed", zap.String("tx", txHash), zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: confirmation for %s not observed: %v", ErrNetworkError, txHash, ctx.Err())
		case <-ticker.C:
		}
	}
}

// callRevertReason replays the transaction as a call at its block to recover
// the revert reason. Best effort; an empty string falls back to the generic
// message.
func (s *Session) callRevertReason(ctx context.Context, msg map[string]string, blockNumber string) string {
	block := blockNumber
	if block == "" {
		block = "latest"
	}
	_, err := s.provider.Request(ctx, "eth_call", msg, block)
	if err != nil {
		if reason, ok := revertReason(err); ok {
			return reason
		}
	}
	return ""
}
