// Package evm derives constructor arguments for EVM contracts from their
// creation transaction.
package evm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/pendergraft/explorer-cache/internal/chains"
)

// DefaultTimeout bounds every RPC call made by a Resolver.
const DefaultTimeout = 15 * time.Second

var (
	// ErrNotConfigured is returned when no RPC endpoint is available.
	ErrNotConfigured = chains.ErrNotConfigured
	// ErrNotFound is returned when the creation transaction cannot be located.
	ErrNotFound = errors.New("creation transaction not found")
	// ErrInvalidRequest is returned for missing or malformed inputs.
	ErrInvalidRequest = errors.New("invalid request")
)

// Resolver looks up creation transactions over JSON-RPC. Clients are dialed
// once per endpoint and reused.
type Resolver struct {
	httpClient *http.Client
	timeout    time.Duration
	clients    sync.Map // rpc url -> *rpc.Client
	logger     *slog.Logger
}

// NewResolver creates a resolver whose calls are bounded by timeout.
func NewResolver(timeout time.Duration, logger *slog.Logger) *Resolver {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Resolver{
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
		logger:     logger,
	}
}

// contractCreator is the result of ots_getContractCreator
type contractCreator struct {
	Hash    string `json:"hash"`
	Creator string `json:"creator"`
}

// transaction holds the fields of eth_getTransactionByHash used here
type transaction struct {
	Hash  string `json:"hash"`
	Input string `json:"input"`
}

// Resolve returns the constructor arguments of the contract at address.
// When txHash is empty the creation transaction is found with
// ots_getContractCreator, which requires an Otterscan-capable node.
func (r *Resolver) Resolve(ctx context.Context, rpcURL, address, txHash, bytecode string) (string, error) {
	if rpcURL == "" {
		return "", ErrNotConfigured
	}
	if bytecode == "" {
		return "", fmt.Errorf("%w: bytecode is required", ErrInvalidRequest)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	client, err := r.client(ctx, rpcURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotConfigured, err)
	}

	if txHash == "" {
		var creator *contractCreator
		if err := client.CallContext(ctx, &creator, "ots_getContractCreator", address); err != nil {
			return "", fmt.Errorf("%w: ots_getContractCreator: %v", ErrNotFound, err)
		}
		if creator == nil || creator.Hash == "" {
			return "", fmt.Errorf("%w: no creator recorded for %s", ErrNotFound, address)
		}
		txHash = creator.Hash
	}

	var tx *transaction
	if err := client.CallContext(ctx, &tx, "eth_getTransactionByHash", txHash); err != nil {
		return "", fmt.Errorf("%w: eth_getTransactionByHash: %v", ErrNotFound, err)
	}
	if tx == nil || tx.Input == "" {
		return "", fmt.Errorf("%w: transaction %s", ErrNotFound, txHash)
	}

	r.logger.Debug("resolved creation transaction", "address", address, "tx_hash", txHash)
	return ExtractConstructorArgs(tx.Input, bytecode), nil
}

// Close closes every cached RPC client.
func (r *Resolver) Close() {
	r.clients.Range(func(key, value any) bool {
		value.(*rpc.Client).Close()
		r.clients.Delete(key)
		return true
	})
}

func (r *Resolver) client(ctx context.Context, url string) (*rpc.Client, error) {
	if c, ok := r.clients.Load(url); ok {
		return c.(*rpc.Client), nil
	}

	c, err := rpc.DialOptions(ctx, url, rpc.WithHTTPClient(r.httpClient))
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}
	if actual, loaded := r.clients.LoadOrStore(url, c); loaded {
		c.Close()
		return actual.(*rpc.Client), nil
	}
	return c, nil
}

// ExtractConstructorArgs returns the last len(creationCode)-len(bytecode)
// characters of creationCode. Lengths are taken on the strings as given, so a
// 0x prefix on only one side shifts the cut by two characters.
// When creationCode is not longer than bytecode the result is "".
func ExtractConstructorArgs(creationCode, bytecode string) string {
	length := len(creationCode) - len(bytecode)
	if length <= 0 {
		return ""
	}
	return creationCode[len(creationCode)-length:]
}
