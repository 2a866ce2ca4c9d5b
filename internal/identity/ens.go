package identity

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// lookupCacheTTL bounds how stale a cached Lookup result may be: long
// enough to absorb repeated reputation-check traffic against the same
// handle, short enough that an UpdateAttributes call a moment ago is picked
// up soon.
const lookupCacheTTL = 30 * time.Second

const resolverABIJSON = `[
	{"inputs":[{"name":"node","type":"bytes32"},{"name":"key","type":"string"},{"name":"value","type":"string"}],"name":"setText","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"node","type":"bytes32"},{"name":"key","type":"string"}],"name":"text","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"node","type":"bytes32"},{"name":"a","type":"address"}],"name":"setAddr","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"node","type":"bytes32"}],"name":"addr","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"}
]`

// ENSAdapter writes and reads worker attributes through an ENS-style text
// resolver: one subdomain per handle under a configured parent namespace,
// with attributes written via the resolver's setText/text functions.
type ENSAdapter struct {
	client          *ethclient.Client
	resolverABI     abi.ABI
	resolverAddress common.Address
	signerKey       []byte
	signerAddress   common.Address
	chainID         *big.Int
	parentNamespace string

	mu       sync.Mutex
	nonce    uint64
	nonceSet bool

	lookupCache *ristretto.Cache
}

type ENSAdapterOptions struct {
	Client          *ethclient.Client
	ResolverAddress common.Address
	SignerKeyHex    string
	ChainID         *big.Int
	ParentNamespace string
}

func NewENSAdapter(opts ENSAdapterOptions) (*ENSAdapter, error) {
	resolverABI, err := abi.JSON(strings.NewReader(resolverABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parsing resolver ABI: %w", err)
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(opts.SignerKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parsing identity signer key: %w", err)
	}
	signerAddress := crypto.PubkeyToAddress(privateKey.PublicKey)

	lookupCache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     1_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("building identity lookup cache: %w", err)
	}

	return &ENSAdapter{
		client:          opts.Client,
		resolverABI:     resolverABI,
		resolverAddress: opts.ResolverAddress,
		signerKey:       crypto.FromECDSA(privateKey),
		signerAddress:   signerAddress,
		chainID:         opts.ChainID,
		parentNamespace: opts.ParentNamespace,
		lookupCache:     lookupCache,
	}, nil
}

// NodeHash computes the ENS namehash of "<handle>.<parentNamespace>",
// following the standard iterative labelhash/keccak256 construction.
func (a *ENSAdapter) NodeHash(handle string) common.Hash {
	return namehash(fmt.Sprintf("%s.%s", handle, a.parentNamespace))
}

func namehash(name string) common.Hash {
	node := common.Hash{}
	if name == "" {
		return node
	}
	labels := strings.Split(name, ".")
	for i := len(labels) - 1; i >= 0; i-- {
		labelHash := crypto.Keccak256Hash([]byte(labels[i]))
		node = crypto.Keccak256Hash(node.Bytes(), labelHash.Bytes())
	}
	return node
}

// Register is idempotent: it looks up an existing text record before
// writing, and returns the existing NodeRef with no on-chain effect if the
// handle already resolves.
func (a *ENSAdapter) Register(ctx context.Context, handle, wallet string, initialAttributes map[string]string) (string, error) {
	node := a.NodeHash(handle)

	if existing, err := a.readText(ctx, node, AttrRole); err == nil && existing != "" {
		return node.Hex(), nil
	}

	attrs := map[string]string{}
	for k, v := range initialAttributes {
		attrs[k] = v
	}
	if _, ok := attrs[AttrReputation]; !ok {
		attrs[AttrReputation] = "50"
	}
	if _, ok := attrs[AttrTasksCompleted]; !ok {
		attrs[AttrTasksCompleted] = "0"
	}
	if _, ok := attrs[AttrTasksFailed]; !ok {
		attrs[AttrTasksFailed] = "0"
	}

	if err := a.writeText(ctx, node, attrs); err != nil {
		return "", err
	}
	if err := a.setAddr(ctx, node, wallet); err != nil {
		return "", err
	}
	return node.Hex(), nil
}

func (a *ENSAdapter) UpdateAttributes(ctx context.Context, nodeRef string, attrs map[string]string) error {
	node := common.HexToHash(nodeRef)
	if existing, err := a.readText(ctx, node, AttrRole); err != nil || existing == "" {
		return ErrNotRegistered
	}
	return a.writeText(ctx, node, attrs)
}

func (a *ENSAdapter) Lookup(ctx context.Context, handle string) (*Record, error) {
	if cached, ok := a.lookupCache.Get(handle); ok {
		record := cached.(Record)
		return &record, nil
	}

	node := a.NodeHash(handle)

	role, err := a.readText(ctx, node, AttrRole)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
	if role == "" {
		return nil, ErrNotFound
	}

	attrs := map[string]string{}
	for _, key := range []string{AttrRole, AttrSkills, AttrReputation, AttrTasksCompleted, AttrTasksFailed, AttrDescription} {
		value, err := a.readText(ctx, node, key)
		if err != nil {
			return nil, fmt.Errorf("%w: reading attribute %s: %w", ErrBackendUnavailable, key, err)
		}
		attrs[key] = value
	}

	wallet, err := a.readAddr(ctx, node)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}

	record := Record{NodeRef: node.Hex(), Wallet: wallet, Attributes: attrs}
	a.lookupCache.SetWithTTL(handle, record, 1, lookupCacheTTL)
	return &record, nil
}

func (a *ENSAdapter) readText(ctx context.Context, node common.Hash, key string) (string, error) {
	data, err := a.resolverABI.Pack("text", node, key)
	if err != nil {
		return "", fmt.Errorf("packing text call: %w", err)
	}
	result, err := a.client.CallContract(ctx, ethereum.CallMsg{To: &a.resolverAddress, Data: data}, nil)
	if err != nil {
		return "", fmt.Errorf("calling text(%s): %w", key, err)
	}
	var value string
	if err := a.resolverABI.UnpackIntoInterface(&value, "text", result); err != nil {
		return "", fmt.Errorf("unpacking text(%s): %w", key, err)
	}
	return value, nil
}

func (a *ENSAdapter) readAddr(ctx context.Context, node common.Hash) (string, error) {
	data, err := a.resolverABI.Pack("addr", node)
	if err != nil {
		return "", fmt.Errorf("packing addr call: %w", err)
	}
	result, err := a.client.CallContract(ctx, ethereum.CallMsg{To: &a.resolverAddress, Data: data}, nil)
	if err != nil {
		return "", fmt.Errorf("calling addr: %w", err)
	}
	var addr common.Address
	if err := a.resolverABI.UnpackIntoInterface(&addr, "addr", result); err != nil {
		return "", fmt.Errorf("unpacking addr: %w", err)
	}
	return addr.Hex(), nil
}

func (a *ENSAdapter) writeText(ctx context.Context, node common.Hash, attrs map[string]string) error {
	for key, value := range attrs {
		data, err := a.resolverABI.Pack("setText", node, key, value)
		if err != nil {
			return fmt.Errorf("packing setText(%s): %w", key, err)
		}
		if err := a.sendTransaction(ctx, data); err != nil {
			return fmt.Errorf("%w: setText(%s): %w", ErrBackendUnavailable, key, err)
		}
	}
	return nil
}

func (a *ENSAdapter) setAddr(ctx context.Context, node common.Hash, wallet string) error {
	data, err := a.resolverABI.Pack("setAddr", node, common.HexToAddress(wallet))
	if err != nil {
		return fmt.Errorf("packing setAddr: %w", err)
	}
	if err := a.sendTransaction(ctx, data); err != nil {
		return fmt.Errorf("%w: setAddr: %w", ErrBackendUnavailable, err)
	}
	return nil
}

// sendTransaction signs and submits a raw call to the resolver contract,
// serializing nonce allocation per §5's "identity adapter is serialized per
// handle" requirement at the transaction layer.
func (a *ENSAdapter) sendTransaction(ctx context.Context, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	privateKey, err := crypto.ToECDSA(a.signerKey)
	if err != nil {
		return fmt.Errorf("restoring signer key: %w", err)
	}

	if !a.nonceSet {
		nonce, err := a.client.PendingNonceAt(ctx, a.signerAddress)
		if err != nil {
			return fmt.Errorf("fetching nonce: %w", err)
		}
		a.nonce = nonce
		a.nonceSet = true
	}

	gasPrice, err := a.client.SuggestGasPrice(ctx)
	if err != nil {
		return fmt.Errorf("fetching gas price: %w", err)
	}

	tx := types.NewTransaction(a.nonce, a.resolverAddress, big.NewInt(0), 150000, gasPrice, data)
	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(a.chainID), privateKey)
	if err != nil {
		return fmt.Errorf("signing transaction: %w", err)
	}

	if err := a.client.SendTransaction(ctx, signedTx); err != nil {
		return fmt.Errorf("sending transaction: %w", err)
	}
	a.nonce++

	receipt, err := bind.WaitMined(ctx, a.client, signedTx)
	if err != nil {
		return fmt.Errorf("waiting for transaction: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("transaction %s reverted", signedTx.Hash().Hex())
	}
	return nil
}

var _ Adapter = (*ENSAdapter)(nil)
