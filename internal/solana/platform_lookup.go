package solana

import (
	"context"
	"fmt"

	"solana-token-lab/internal/domain"
)

// programIDPlatforms mirrors platform.programIDPlatforms so this package
// doesn't need to import platform (which would create an import cycle,
// since platform is the consumer of PlatformLookup).
var programIDPlatforms = map[string]domain.Platform{
	"6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P": domain.PlatformPump,
	"BonkFN1yVCbNzQdxNAJPMe6D9UvyUEbdU4E7fkbNZAHK": domain.PlatformBonk,
	"675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8": domain.PlatformRaydium,
}

// PlatformLookup is the authoritative fallback for platform detection
// (spec.md §4.1 stage 3): it fetches the mint's oldest known transaction
// and inspects the account keys involved for a recognized launch program.
type PlatformLookup struct {
	rpc RPCClient
}

// NewPlatformLookup wraps an RPCClient as a platform.AuthoritativeLookup.
func NewPlatformLookup(rpc RPCClient) *PlatformLookup {
	return &PlatformLookup{rpc: rpc}
}

// LookupPlatform implements platform.AuthoritativeLookup.
func (l *PlatformLookup) LookupPlatform(ctx context.Context, mint string) (domain.Platform, error) {
	sigs, err := l.rpc.GetSignaturesForAddress(ctx, mint, &SignaturesOpts{Limit: 1000})
	if err != nil {
		return domain.PlatformUnknown, fmt.Errorf("solana: get signatures for %s: %w", mint, err)
	}
	if len(sigs) == 0 {
		return domain.PlatformUnknown, fmt.Errorf("solana: no transaction history for mint %s", mint)
	}

	// The creation transaction is the oldest signature returned.
	earliest := sigs[len(sigs)-1]
	tx, err := l.rpc.GetTransaction(ctx, earliest.Signature)
	if err != nil {
		return domain.PlatformUnknown, fmt.Errorf("solana: get transaction %s: %w", earliest.Signature, err)
	}
	if tx == nil || tx.Message == nil {
		return domain.PlatformUnknown, fmt.Errorf("solana: creation transaction %s not found", earliest.Signature)
	}

	for _, key := range tx.Message.AccountKeys {
		if p, ok := programIDPlatforms[key]; ok {
			return p, nil
		}
	}
	return domain.PlatformUnknown, fmt.Errorf("solana: no recognized launch program in creation tx for mint %s", mint)
}
