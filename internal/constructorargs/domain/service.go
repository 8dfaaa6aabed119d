package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/pendergraft/explorer-cache/internal/chains/evm"
	metadata "github.com/pendergraft/explorer-cache/internal/metadata/domain"
	"github.com/pendergraft/explorer-cache/internal/observability/metrics"
	"github.com/pendergraft/explorer-cache/internal/validation"
)

// Common errors returned by the constructor args service.
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrNotConfigured  = evm.ErrNotConfigured
	ErrNotFound       = evm.ErrNotFound
)

// MetadataService is the guarded explorer lookup used for the explorer path.
type MetadataService interface {
	GetVerified(ctx context.Context, key metadata.Key) (*metadata.Result, error)
}

// ChainRegistry resolves the RPC endpoint for a provider's chain.
type ChainRegistry interface {
	RPCURL(provider string) (string, error)
}

// Resolver derives constructor arguments from the creation transaction.
type Resolver interface {
	Resolve(ctx context.Context, rpcURL, address, txHash, bytecode string) (string, error)
}

type service struct {
	metadata  MetadataService
	chains    ChainRegistry
	resolver  Resolver
	providers map[string]struct{}
}

// NewService creates a new constructor args service.
func NewService(md MetadataService, chains ChainRegistry, resolver Resolver, providers []string) *service {
	known := make(map[string]struct{}, len(providers))
	for _, p := range providers {
		known[p] = struct{}{}
	}
	return &service{
		metadata:  md,
		chains:    chains,
		resolver:  resolver,
		providers: known,
	}
}

// ConstructorArgs returns the constructor arguments for req.Address. The
// explorer's verified source record is used when it carries arguments;
// otherwise they are derived on chain. Callers cannot tell which path ran.
func (s *service) ConstructorArgs(ctx context.Context, req Request) (*Result, error) {
	address, err := validation.CanonicalAddress(req.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if _, ok := s.providers[req.Provider]; !ok {
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidRequest, req.Provider)
	}
	if req.CreationTxHash != "" {
		if err := validation.ValidateTxHash(req.CreationTxHash); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
	}
	if req.Bytecode != "" {
		if err := validation.ValidateBytecode(req.Bytecode); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
	}

	rpcURL, err := s.chains.RPCURL(req.Provider)
	if err != nil {
		return nil, err
	}

	if !req.OnChainLookup {
		args, err := s.fromExplorer(ctx, req.Provider, address)
		if err != nil {
			return nil, err
		}
		if args != "" {
			return &Result{Address: address, ConstructorArgs: args}, nil
		}
	}

	args, err := s.onChain(ctx, rpcURL, req.Provider, address, req)
	if err != nil {
		return nil, err
	}
	return &Result{Address: address, ConstructorArgs: args}, nil
}

// fromExplorer reads ConstructorArguments from the getsourcecode record,
// verified or not. It returns "" when the explorer has nothing usable.
func (s *service) fromExplorer(ctx context.Context, provider, address string) (string, error) {
	result, err := s.metadata.GetVerified(ctx, metadata.Key{
		Provider: provider,
		Module:   metadata.ModuleContract,
		Action:   metadata.ActionGetSourceCode,
		Address:  address,
	})
	if err != nil {
		return "", err
	}

	env, err := result.Response.Envelope()
	if err != nil || env.Message != "OK" {
		return "", nil
	}
	entries, ok := env.SourceCodeEntries()
	if !ok || len(entries) == 0 {
		return "", nil
	}
	return entries[0].ConstructorArguments, nil
}

func (s *service) onChain(ctx context.Context, rpcURL, provider, address string, req Request) (string, error) {
	args, err := s.resolver.Resolve(ctx, rpcURL, address, req.CreationTxHash, req.Bytecode)
	switch {
	case err == nil:
		metrics.OnChainLookup(provider, "found")
	case errors.Is(err, evm.ErrNotConfigured):
		metrics.OnChainLookup(provider, "not_configured")
	case errors.Is(err, evm.ErrNotFound):
		metrics.OnChainLookup(provider, "not_found")
	case errors.Is(err, evm.ErrInvalidRequest):
		metrics.OnChainLookup(provider, "invalid")
		return "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	default:
		metrics.OnChainLookup(provider, "error")
	}
	return args, err
}
