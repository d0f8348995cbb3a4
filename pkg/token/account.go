package token

import (
	"bytes"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/token-client/pkg/solana"
	tokenprogram "github.com/code-payments/token-client/pkg/solana/token"
)

// GetAccount fetches and decodes a token account, validating only that
// the token program owns it.
func (t *Token) GetAccount(account ed25519.PublicKey, commitment solana.Commitment) (*tokenprogram.Account, []byte, error) {
	info, err := t.client.GetAccountInfo(account, commitment)
	if err == solana.ErrNoAccountInfo {
		return nil, nil, ErrAccountNotFound
	} else if err != nil {
		return nil, nil, errors.Wrap(err, "failed to get account info")
	}

	if !bytes.Equal(info.Owner, tokenprogram.ProgramKey) {
		return nil, nil, ErrAccountInvalidOwner
	}

	var decoded tokenprogram.Account
	if !decoded.Unmarshal(info.Data) {
		return nil, nil, errors.New("invalid token account data")
	}

	return &decoded, info.Data, nil
}

// GetAccountInfo is GetAccount plus a mint check against the handle.
func (t *Token) GetAccountInfo(account ed25519.PublicKey, commitment solana.Commitment) (*tokenprogram.Account, []byte, error) {
	decoded, data, err := t.GetAccount(account, commitment)
	if err != nil {
		return nil, nil, err
	}

	if !bytes.Equal(decoded.Mint, t.mint) {
		return nil, nil, ErrAccountInvalidMint
	}

	return decoded, data, nil
}

// GetMintInfo fetches and decodes the handle's mint, validating the
// configured decimals when set.
func (t *Token) GetMintInfo(commitment solana.Commitment) (*tokenprogram.Mint, []byte, error) {
	info, err := t.client.GetAccountInfo(t.mint, commitment)
	if err == solana.ErrNoAccountInfo {
		return nil, nil, ErrAccountNotFound
	} else if err != nil {
		return nil, nil, errors.Wrap(err, "failed to get account info")
	}

	if !bytes.Equal(info.Owner, tokenprogram.ProgramKey) {
		return nil, nil, ErrAccountInvalidOwner
	}

	var mint tokenprogram.Mint
	if !mint.Unmarshal(info.Data) {
		return nil, nil, errors.New("invalid mint account data")
	}

	if t.decimals != nil && *t.decimals != mint.Decimals {
		return nil, nil, ErrInvalidDecimals
	}

	return &mint, info.Data, nil
}

// GetAssociatedTokenAddress derives the associated token address for a
// wallet on this mint.
func (t *Token) GetAssociatedTokenAddress(owner ed25519.PublicKey) (ed25519.PublicKey, error) {
	return tokenprogram.GetAssociatedAccount(owner, t.mint)
}

// CreateAssociatedTokenAccount creates the associated token account for
// a wallet, funded by the payer.
func (t *Token) CreateAssociatedTokenAccount(owner ed25519.PublicKey) (solana.Signature, ed25519.PublicKey, error) {
	ix, addr, err := tokenprogram.CreateAssociatedTokenAccount(t.Payer(), owner, t.mint)
	if err != nil {
		return solana.Signature{}, nil, errors.Wrap(err, "failed to derive associated account")
	}

	sig, err := t.ProcessIxs([]solana.Instruction{ix})
	if err != nil {
		return sig, nil, err
	}
	return sig, addr, nil
}

// GetOrCreateAssociatedAccountInfo returns the wallet's associated
// account, creating it when absent. Calling it repeatedly for the same
// wallet always yields the same address and never creates a second
// account; creation uses the idempotent instruction so concurrent
// callers cannot race into a failure.
func (t *Token) GetOrCreateAssociatedAccountInfo(owner ed25519.PublicKey) (*tokenprogram.Account, ed25519.PublicKey, error) {
	addr, err := t.GetAssociatedTokenAddress(owner)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to derive associated account")
	}

	decoded, _, err := t.GetAccountInfo(addr, solana.CommitmentConfirmed)
	if err == nil {
		if !bytes.Equal(decoded.Owner, owner) {
			return nil, nil, ErrAccountInvalidAssociatedAddress
		}
		return decoded, addr, nil
	}
	if err != ErrAccountNotFound {
		return nil, nil, err
	}

	ix, _, err := tokenprogram.CreateAssociatedTokenAccountIdempotent(t.Payer(), owner, t.mint)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to derive associated account")
	}
	if _, err := t.ProcessIxs([]solana.Instruction{ix}); err != nil {
		return nil, nil, err
	}

	decoded, _, err = t.GetAccountInfo(addr, solana.CommitmentConfirmed)
	if err != nil {
		return nil, nil, err
	}
	return decoded, addr, nil
}
