// Package solana builds, signs and confirms the token transactions: the
// one-of-one mint and the transfer to the requester's wallet.
package solana

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"filippo.io/edwards25519"
	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"
	"github.com/mr-tron/base58"
)

var (
	ErrInvalidAddress = errors.New("solana: invalid address")
	ErrInvalidKeypair = errors.New("solana: invalid keypair")
)

const keypairLength = 64

// ParseKeypair decodes a signing keypair given as comma-separated decimal
// bytes ("12,34,...") or as a solana-keygen JSON array ("[12,34,...]").
func ParseKeypair(raw string) (types.Account, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return types.Account{}, fmt.Errorf("%w: empty", ErrInvalidKeypair)
	}

	var ints []int
	if strings.HasPrefix(s, "[") {
		if err := json.Unmarshal([]byte(s), &ints); err != nil {
			return types.Account{}, fmt.Errorf("%w: not a json int array: %v", ErrInvalidKeypair, err)
		}
	} else {
		for i, part := range strings.Split(s, ",") {
			v, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return types.Account{}, fmt.Errorf("%w: byte %d: %v", ErrInvalidKeypair, i, err)
			}
			ints = append(ints, v)
		}
	}

	if len(ints) != keypairLength {
		return types.Account{}, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidKeypair, keypairLength, len(ints))
	}
	b := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return types.Account{}, fmt.Errorf("%w: byte out of range at %d: %d", ErrInvalidKeypair, i, v)
		}
		b[i] = byte(v)
	}

	acc, err := types.AccountFromBytes(b)
	if err != nil {
		return types.Account{}, fmt.Errorf("%w: %v", ErrInvalidKeypair, err)
	}
	return acc, nil
}

// ParseAddress decodes a base58 account address. Anything that is not
// exactly 32 bytes is rejected.
func ParseAddress(s string) (common.PublicKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return common.PublicKey{}, fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	b, err := base58.Decode(s)
	if err != nil {
		return common.PublicKey{}, fmt.Errorf("%w: %q: %v", ErrInvalidAddress, maskShort(s), err)
	}
	if len(b) != common.PublicKeyLength {
		return common.PublicKey{}, fmt.Errorf("%w: %q decodes to %d bytes", ErrInvalidAddress, maskShort(s), len(b))
	}
	return common.PublicKeyFromBytes(b), nil
}

// IsOnCurve reports whether pk is a valid ed25519 point, i.e. a key some
// wallet can sign for. Program-derived addresses are off the curve.
func IsOnCurve(pk common.PublicKey) bool {
	_, err := new(edwards25519.Point).SetBytes(pk[:])
	return err == nil
}

func maskShort(s string) string {
	t := strings.TrimSpace(s)
	if len(t) <= 10 {
		return t
	}
	return t[:4] + "***" + t[len(t)-4:]
}
