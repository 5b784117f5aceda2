package wallet

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// ENSResolver performs best-effort reverse resolution of an address to its
// primary name and avatar text record. All failures degrade to empty results;
// display metadata is never allowed to block a session refresh.
type ENSResolver struct {
	provider Provider
	registry common.Address
	log      *zap.Logger
}

func NewENSResolver(provider Provider, registry string, log *zap.Logger) *ENSResolver {
	return &ENSResolver{
		provider: provider,
		registry: common.HexToAddress(registry),
		log:      log,
	}
}

var (
	selResolver = crypto.Keccak256([]byte("resolver(bytes32)"))[:4:4]
	selName     = crypto.Keccak256([]byte("name(bytes32)"))[:4:4]
	selText     = crypto.Keccak256([]byte("text(bytes32,string)"))[:4:4]

	bytes32Type, _ = abi.NewType("bytes32", "", nil)
	addressType, _ = abi.NewType("address", "", nil)
	stringType, _  = abi.NewType("string", "", nil)
)

// Lookup resolves the primary name and avatar for addr. Either result may be
// empty; errors are logged at debug and swallowed.
func (r *ENSResolver) Lookup(ctx context.Context, addr string) (name, avatar string) {
	reverse := strings.TrimPrefix(strings.ToLower(addr), "0x") + ".addr.reverse"
	node := NameHash(reverse)

	name, err := r.resolveName(ctx, node)
	if err != nil || name == "" {
		if err != nil {
			r.log.Debug("ens reverse lookup failed", zap.String("address", addr), zap.Error(err))
		}
		return "", ""
	}

	avatar, err = r.resolveText(ctx, NameHash(name), "avatar")
	if err != nil {
		r.log.Debug("ens avatar lookup failed", zap.String("name", name), zap.Error(err))
		avatar = ""
	}
	return name, avatar
}

func (r *ENSResolver) resolveName(ctx context.Context, node [32]byte) (string, error) {
	resolver, err := r.resolverOf(ctx, node)
	if err != nil {
		return "", err
	}
	if resolver == (common.Address{}) {
		return "", nil
	}

	data, err := abi.Arguments{{Type: bytes32Type}}.Pack(node)
	if err != nil {
		return "", err
	}
	out, err := r.call(ctx, resolver, append(selName, data...))
	if err != nil {
		return "", err
	}
	return unpackString(out)
}

func (r *ENSResolver) resolveText(ctx context.Context, node [32]byte, key string) (string, error) {
	resolver, err := r.resolverOf(ctx, node)
	if err != nil {
		return "", err
	}
	if resolver == (common.Address{}) {
		return "", nil
	}

	data, err := abi.Arguments{{Type: bytes32Type}, {Type: stringType}}.Pack(node, key)
	if err != nil {
		return "", err
	}
	out, err := r.call(ctx, resolver, append(selText, data...))
	if err != nil {
		return "", err
	}
	return unpackString(out)
}

func (r *ENSResolver) resolverOf(ctx context.Context, node [32]byte) (common.Address, error) {
	data, err := abi.Arguments{{Type: bytes32Type}}.Pack(node)
	if err != nil {
		return common.Address{}, err
	}
	out, err := r.call(ctx, r.registry, append(selResolver, data...))
	if err != nil {
		return common.Address{}, err
	}

	vals, err := abi.Arguments{{Type: addressType}}.Unpack(out)
	if err != nil {
		return common.Address{}, err
	}
	return vals[0].(common.Address), nil
}

func (r *ENSResolver) call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	raw, err := r.provider.Request(ctx, "eth_call", map[string]string{
		"to":   to.Hex(),
		"data": hexutil.Encode(data),
	}, "latest")
	if err != nil {
		return nil, err
	}
	var hex string
	if err := json.Unmarshal(raw, &hex); err != nil {
		return nil, err
	}
	return hexutil.Decode(hex)
}

func unpackString(out []byte) (string, error) {
	if len(out) == 0 {
		return "", nil
	}
	vals, err := abi.Arguments{{Type: stringType}}.Unpack(out)
	if err != nil {
		return "", err
	}
	return vals[0].(string), nil
}

// NameHash implements the EIP-137 recursive name hash.
func NameHash(name string) [32]byte {
	var node [32]byte
	if name == "" {
		return node
	}
	labels := strings.Split(name, ".")
	for i := len(labels) - 1; i >= 0; i-- {
		labelHash := crypto.Keccak256([]byte(labels[i]))
		copy(node[:], crypto.Keccak256(node[:], labelHash))
	}
	return node
}
