package token

import (
	"bytes"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/token-client/pkg/solana"
	tokenprogram "github.com/code-payments/token-client/pkg/solana/token"
)

// withMultisig rewrites an instruction built for direct authority
// signing into its multisig form: the authority meta is demoted to a
// non-signer and the multisig signers are appended.
func withMultisig(ix solana.Instruction, authority ed25519.PublicKey, multisig []ed25519.PublicKey) solana.Instruction {
	if len(multisig) == 0 {
		return ix
	}

	for i := range ix.Accounts {
		if bytes.Equal(ix.Accounts[i].PublicKey, authority) {
			ix.Accounts[i].IsSigner = false
		}
	}
	for _, signer := range multisig {
		ix.Accounts = append(ix.Accounts, solana.NewReadonlyAccountMeta(signer, true))
	}
	return ix
}

func isZeroKey(key ed25519.PublicKey) bool {
	for _, b := range key {
		if b != 0 {
			return false
		}
	}
	return true
}

// resolveTransferHookMetas returns the extra accounts a configured
// transfer hook program requires on transfer instructions. When the
// handle carries a configured list, it is returned verbatim with no
// network calls; otherwise the hook program's on-chain extra account
// metas are consulted.
func (t *Token) resolveTransferHookMetas() ([]solana.AccountMeta, error) {
	if t.transferHookAccounts != nil {
		return t.transferHookAccounts, nil
	}

	_, mintData, err := t.GetMintInfo(solana.CommitmentConfirmed)
	if err != nil {
		return nil, err
	}

	hook, err := tokenprogram.GetTransferHook(mintData)
	if err != nil {
		// No hook extension on the mint.
		return nil, nil
	}
	if isZeroKey(hook.ProgramID) {
		return nil, nil
	}

	validationAddr, err := tokenprogram.GetExtraAccountMetaAddress(t.mint, hook.ProgramID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive extra account metas address")
	}

	info, err := t.client.GetAccountInfo(validationAddr, solana.CommitmentConfirmed)
	if err != nil {
		return nil, ErrAccountNotFound
	}

	metas, err := tokenprogram.ParseExtraAccountMetaList(info.Data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse extra account metas")
	}

	resolved := make([]solana.AccountMeta, 0, len(metas)+2)
	for _, meta := range metas {
		accountMeta, err := meta.ResolveAddress()
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, accountMeta)
	}
	resolved = append(resolved,
		solana.NewReadonlyAccountMeta(hook.ProgramID, false),
		solana.NewReadonlyAccountMeta(validationAddr, false),
	)
	return resolved, nil
}

// Transfer moves amount from source to dest with a decimals check,
// appending whatever accounts a configured transfer hook requires.
func (t *Token) Transfer(source, dest ed25519.PublicKey, authority ed25519.PrivateKey, amount uint64, signers ...ed25519.PrivateKey) (solana.Signature, error) {
	if t.decimals == nil {
		return solana.Signature{}, ErrMissingDecimals
	}

	authorityPub := authority.Public().(ed25519.PublicKey)
	multisig, signingKeys := resolveAuthority(authority, signers)

	var ix solana.Instruction
	if len(multisig) == 0 {
		ix = tokenprogram.TransferChecked(source, t.mint, dest, authorityPub, amount, *t.decimals)
	} else {
		ix = tokenprogram.TransferCheckedMultisig(source, t.mint, dest, authorityPub, amount, *t.decimals, multisig...)
	}

	hookMetas, err := t.resolveTransferHookMetas()
	if err != nil {
		return solana.Signature{}, err
	}
	ix.Accounts = append(ix.Accounts, hookMetas...)

	return t.ProcessIxs([]solana.Instruction{ix}, signingKeys...)
}

// TransferWithFee is Transfer against a mint with a transfer fee
// config; the expected fee is computed from the mint's current schedule
// and encoded into the instruction.
func (t *Token) TransferWithFee(source, dest ed25519.PublicKey, authority ed25519.PrivateKey, amount uint64, signers ...ed25519.PrivateKey) (solana.Signature, error) {
	if t.decimals == nil {
		return solana.Signature{}, ErrMissingDecimals
	}

	_, mintData, err := t.GetMintInfo(solana.CommitmentConfirmed)
	if err != nil {
		return solana.Signature{}, err
	}

	feeConfig, err := tokenprogram.GetTransferFeeConfig(mintData)
	if err != nil {
		return solana.Signature{}, errors.Wrap(err, "failed to get transfer fee config")
	}

	authorityPub := authority.Public().(ed25519.PublicKey)
	multisig, signingKeys := resolveAuthority(authority, signers)

	ix := tokenprogram.TransferCheckedWithFee(source, t.mint, dest, authorityPub, amount, *t.decimals, feeConfig.CalculateFee(amount))
	ix = withMultisig(ix, authorityPub, multisig)

	hookMetas, err := t.resolveTransferHookMetas()
	if err != nil {
		return solana.Signature{}, err
	}
	ix.Accounts = append(ix.Accounts, hookMetas...)

	return t.ProcessIxs([]solana.Instruction{ix}, signingKeys...)
}

// CreateRecipientAssociatedAccountAndTransfer creates the recipient's
// associated account (idempotently) and transfers in one transaction.
func (t *Token) CreateRecipientAssociatedAccountAndTransfer(source, recipient ed25519.PublicKey, authority ed25519.PrivateKey, amount uint64, signers ...ed25519.PrivateKey) (solana.Signature, ed25519.PublicKey, error) {
	if t.decimals == nil {
		return solana.Signature{}, nil, ErrMissingDecimals
	}

	createIx, addr, err := tokenprogram.CreateAssociatedTokenAccountIdempotent(t.Payer(), recipient, t.mint)
	if err != nil {
		return solana.Signature{}, nil, errors.Wrap(err, "failed to derive associated account")
	}

	authorityPub := authority.Public().(ed25519.PublicKey)
	multisig, signingKeys := resolveAuthority(authority, signers)

	var transferIx solana.Instruction
	if len(multisig) == 0 {
		transferIx = tokenprogram.TransferChecked(source, t.mint, addr, authorityPub, amount, *t.decimals)
	} else {
		transferIx = tokenprogram.TransferCheckedMultisig(source, t.mint, addr, authorityPub, amount, *t.decimals, multisig...)
	}

	hookMetas, err := t.resolveTransferHookMetas()
	if err != nil {
		return solana.Signature{}, nil, err
	}
	transferIx.Accounts = append(transferIx.Accounts, hookMetas...)

	sig, err := t.ProcessIxs([]solana.Instruction{createIx, transferIx}, signingKeys...)
	if err != nil {
		return sig, nil, err
	}
	return sig, addr, nil
}

// SetAuthority changes an authority on an account or the mint.
func (t *Token) SetAuthority(account ed25519.PublicKey, currentAuthority ed25519.PrivateKey, newAuthority ed25519.PublicKey, authorityType tokenprogram.AuthorityType, signers ...ed25519.PrivateKey) (solana.Signature, error) {
	authorityPub := currentAuthority.Public().(ed25519.PublicKey)
	multisig, signingKeys := resolveAuthority(currentAuthority, signers)

	var ix solana.Instruction
	if len(multisig) == 0 {
		ix = tokenprogram.SetAuthority(account, authorityPub, newAuthority, authorityType)
	} else {
		ix = tokenprogram.SetAuthorityMultisig(account, authorityPub, newAuthority, authorityType, multisig)
	}

	return t.ProcessIxs([]solana.Instruction{ix}, signingKeys...)
}

// MintTo mints amount to dest, using the checked variant when decimals
// are configured.
func (t *Token) MintTo(dest ed25519.PublicKey, authority ed25519.PrivateKey, amount uint64, signers ...ed25519.PrivateKey) (solana.Signature, error) {
	authorityPub := authority.Public().(ed25519.PublicKey)
	multisig, signingKeys := resolveAuthority(authority, signers)

	var ix solana.Instruction
	if t.decimals != nil {
		ix = tokenprogram.MintToChecked(t.mint, dest, authorityPub, amount, *t.decimals)
	} else {
		ix = tokenprogram.MintTo(t.mint, dest, authorityPub, amount)
	}

	return t.ProcessIxs([]solana.Instruction{withMultisig(ix, authorityPub, multisig)}, signingKeys...)
}

// Burn burns amount from source, using the checked variant when
// decimals are configured.
func (t *Token) Burn(source ed25519.PublicKey, authority ed25519.PrivateKey, amount uint64, signers ...ed25519.PrivateKey) (solana.Signature, error) {
	authorityPub := authority.Public().(ed25519.PublicKey)
	multisig, signingKeys := resolveAuthority(authority, signers)

	var ix solana.Instruction
	if t.decimals != nil {
		ix = tokenprogram.BurnChecked(source, t.mint, authorityPub, amount, *t.decimals)
	} else {
		ix = tokenprogram.Burn(source, t.mint, authorityPub, amount)
	}

	return t.ProcessIxs([]solana.Instruction{withMultisig(ix, authorityPub, multisig)}, signingKeys...)
}

// Approve delegates amount from source to delegate.
func (t *Token) Approve(source, delegate ed25519.PublicKey, authority ed25519.PrivateKey, amount uint64, signers ...ed25519.PrivateKey) (solana.Signature, error) {
	authorityPub := authority.Public().(ed25519.PublicKey)
	multisig, signingKeys := resolveAuthority(authority, signers)

	ix := tokenprogram.Approve(source, delegate, authorityPub, amount)
	return t.ProcessIxs([]solana.Instruction{withMultisig(ix, authorityPub, multisig)}, signingKeys...)
}

// Revoke clears any delegation on source.
func (t *Token) Revoke(source ed25519.PublicKey, authority ed25519.PrivateKey, signers ...ed25519.PrivateKey) (solana.Signature, error) {
	authorityPub := authority.Public().(ed25519.PublicKey)
	multisig, signingKeys := resolveAuthority(authority, signers)

	ix := tokenprogram.Revoke(source, authorityPub)
	return t.ProcessIxs([]solana.Instruction{withMultisig(ix, authorityPub, multisig)}, signingKeys...)
}

// FreezeAccount freezes a token account using the mint's freeze
// authority.
func (t *Token) FreezeAccount(account ed25519.PublicKey, authority ed25519.PrivateKey, signers ...ed25519.PrivateKey) (solana.Signature, error) {
	authorityPub := authority.Public().(ed25519.PublicKey)
	multisig, signingKeys := resolveAuthority(authority, signers)

	ix := tokenprogram.FreezeAccount(account, t.mint, authorityPub)
	return t.ProcessIxs([]solana.Instruction{withMultisig(ix, authorityPub, multisig)}, signingKeys...)
}

// ThawAccount unfreezes a token account.
func (t *Token) ThawAccount(account ed25519.PublicKey, authority ed25519.PrivateKey, signers ...ed25519.PrivateKey) (solana.Signature, error) {
	authorityPub := authority.Public().(ed25519.PublicKey)
	multisig, signingKeys := resolveAuthority(authority, signers)

	ix := tokenprogram.ThawAccount(account, t.mint, authorityPub)
	return t.ProcessIxs([]solana.Instruction{withMultisig(ix, authorityPub, multisig)}, signingKeys...)
}

// CloseAccount closes a token account, sending its lamports to dest. If
// dest looks like a wrapped native token account, a sync is appended so
// the received lamports show up in its token balance; a failed probe
// means "not wrapped", not an error.
func (t *Token) CloseAccount(account, dest ed25519.PublicKey, authority ed25519.PrivateKey, signers ...ed25519.PrivateKey) (solana.Signature, error) {
	authorityPub := authority.Public().(ed25519.PublicKey)
	multisig, signingKeys := resolveAuthority(authority, signers)

	ixs := []solana.Instruction{
		withMultisig(tokenprogram.CloseAccount(account, dest, authorityPub), authorityPub, multisig),
	}

	if decoded, _, err := t.GetAccount(dest, solana.CommitmentConfirmed); err == nil && decoded.IsNative != nil {
		ixs = append(ixs, tokenprogram.SyncNative(dest))
	}

	return t.ProcessIxs(ixs, signingKeys...)
}
