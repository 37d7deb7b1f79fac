package domain

import (
	"errors"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

var (
	ErrMintEmpty      = errors.New("mint address is empty")
	ErrMintNotBase58  = errors.New("mint address is not valid base58")
	ErrMintWrongSize  = errors.New("mint address does not decode to 32 bytes")
	ErrMintOffCurve   = errors.New("mint address is not a valid ed25519 point")
)

// ValidateMint checks that mint is a syntactically valid Solana public key:
// base58-encoded, decoding to exactly 32 bytes, and on the ed25519 curve.
// The on-curve check rejects garbage that happens to base58-decode to the
// right length but was never a real key.
func ValidateMint(mint string) error {
	if mint == "" {
		return ErrMintEmpty
	}
	decoded, err := base58.Decode(mint)
	if err != nil {
		return ErrMintNotBase58
	}
	if len(decoded) != 32 {
		return ErrMintWrongSize
	}
	if _, err := new(edwards25519.Point).SetBytes(decoded); err != nil {
		return ErrMintOffCurve
	}
	return nil
}
