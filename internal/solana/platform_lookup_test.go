package solana_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-token-lab/internal/domain"
	"solana-token-lab/internal/solana"
	"solana-token-lab/internal/solana/stub"
)

func TestPlatformLookup_MatchesLaunchProgram(t *testing.T) {
	rpc := stub.NewRPCClient()
	mint := "So11111111111111111111111111111111111111"

	rpc.AddSignatures(mint, []solana.SignatureInfo{
		{Signature: "newest"},
		{Signature: "creation"},
	})
	rpc.AddTransaction(&solana.Transaction{
		Signature: "creation",
		Message: &solana.TransactionMessage{
			AccountKeys: []string{mint, "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"},
		},
	})

	lookup := solana.NewPlatformLookup(rpc)
	p, err := lookup.LookupPlatform(context.Background(), mint)
	require.NoError(t, err)
	assert.Equal(t, domain.PlatformPump, p)
}

func TestPlatformLookup_NoSignatures(t *testing.T) {
	rpc := stub.NewRPCClient()
	lookup := solana.NewPlatformLookup(rpc)

	_, err := lookup.LookupPlatform(context.Background(), "unknown-mint")
	assert.Error(t, err)
}

func TestPlatformLookup_UnrecognizedProgram(t *testing.T) {
	rpc := stub.NewRPCClient()
	mint := "So11111111111111111111111111111111111111"

	rpc.AddSignatures(mint, []solana.SignatureInfo{{Signature: "creation"}})
	rpc.AddTransaction(&solana.Transaction{
		Signature: "creation",
		Message:   &solana.TransactionMessage{AccountKeys: []string{mint, "SomeOtherProgram"}},
	})

	lookup := solana.NewPlatformLookup(rpc)
	_, err := lookup.LookupPlatform(context.Background(), mint)
	assert.Error(t, err)
}
