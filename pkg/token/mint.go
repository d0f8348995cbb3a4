package token

import (
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/token-client/pkg/solana"
	"github.com/code-payments/token-client/pkg/solana/system"
	tokenprogram "github.com/code-payments/token-client/pkg/solana/token"
)

// CreateMint creates the handle's mint with the provided extensions in
// one transaction. Extension initializers run after the mint account is
// created and before the base mint initialization, in caller order; the
// program requires all extension space to be allocated and configured
// before the mint is finalized.
func (t *Token) CreateMint(mint ed25519.PrivateKey, mintAuthority, freezeAuthority ed25519.PublicKey, extensions ...ExtensionInitializationParams) (solana.Signature, error) {
	if t.decimals == nil {
		return solana.Signature{}, ErrMissingDecimals
	}

	extensionTypes := make([]tokenprogram.Extension, len(extensions))
	for i, ext := range extensions {
		extensionTypes[i] = ext.ExtensionType()
	}

	size, err := tokenprogram.CalculateMintLen(extensionTypes)
	if err != nil {
		return solana.Signature{}, errors.Wrap(err, "failed to calculate mint size")
	}

	lamports, err := t.client.GetMinimumBalanceForRentExemption(uint64(size))
	if err != nil {
		return solana.Signature{}, errors.Wrap(err, "failed to get minimum balance for rent exemption")
	}

	mintPub := mint.Public().(ed25519.PublicKey)

	ixs := make([]solana.Instruction, 0, len(extensions)+2)
	ixs = append(ixs, system.CreateAccount(t.Payer(), mintPub, tokenprogram.ProgramKey, lamports, uint64(size)))
	for _, ext := range extensions {
		ixs = append(ixs, ext.Instruction(mintPub))
	}
	ixs = append(ixs, tokenprogram.InitializeMint(mintPub, mintAuthority, freezeAuthority, *t.decimals))

	return t.ProcessIxs(ixs, mint)
}

// CreateAuxiliaryTokenAccount creates a non-associated token account
// for the mint, sized for whatever account extensions the mint's
// configuration requires.
func (t *Token) CreateAuxiliaryTokenAccount(account ed25519.PrivateKey, owner ed25519.PublicKey) (solana.Signature, error) {
	return t.CreateAuxiliaryTokenAccountWithExtensionSpace(account, owner)
}

// CreateAuxiliaryTokenAccountWithExtensionSpace creates a
// non-associated token account with space for the union of the
// mint-required account extensions and the caller's extras. An
// ImmutableOwner extra is configured before the account is initialized.
func (t *Token) CreateAuxiliaryTokenAccountWithExtensionSpace(account ed25519.PrivateKey, owner ed25519.PublicKey, extensions ...tokenprogram.Extension) (solana.Signature, error) {
	accountPub := account.Public().(ed25519.PublicKey)

	associated, err := t.GetAssociatedTokenAddress(owner)
	if err != nil {
		return solana.Signature{}, errors.Wrap(err, "failed to derive associated account")
	}
	if string(associated) == string(accountPub) {
		return solana.Signature{}, ErrAccountInvalidAuxiliaryAddress
	}

	_, mintData, err := t.GetMintInfo(solana.CommitmentConfirmed)
	if err != nil {
		return solana.Signature{}, err
	}

	required := tokenprogram.RequiredAccountExtensions(tokenprogram.GetExtensionTypes(mintData))
	for _, ext := range extensions {
		var present bool
		for _, existing := range required {
			if existing == ext {
				present = true
				break
			}
		}
		if !present {
			required = append(required, ext)
		}
	}

	size, err := tokenprogram.CalculateAccountLen(required)
	if err != nil {
		return solana.Signature{}, errors.Wrap(err, "failed to calculate account size")
	}

	lamports, err := t.client.GetMinimumBalanceForRentExemption(uint64(size))
	if err != nil {
		return solana.Signature{}, errors.Wrap(err, "failed to get minimum balance for rent exemption")
	}

	ixs := []solana.Instruction{
		system.CreateAccount(t.Payer(), accountPub, tokenprogram.ProgramKey, lamports, uint64(size)),
	}
	for _, ext := range required {
		if ext == tokenprogram.ExtensionImmutableOwner {
			ixs = append(ixs, tokenprogram.InitializeImmutableOwner(accountPub))
			break
		}
	}
	ixs = append(ixs, tokenprogram.InitializeAccount3(accountPub, t.mint, owner))

	return t.ProcessIxs(ixs, account)
}

// CreateMultisig creates a multisig authority account requiring
// requiredSigners of the provided signer keys.
func (t *Token) CreateMultisig(account ed25519.PrivateKey, requiredSigners byte, signers ...ed25519.PublicKey) (solana.Signature, error) {
	lamports, err := t.client.GetMinimumBalanceForRentExemption(tokenprogram.MultisigAccountSize)
	if err != nil {
		return solana.Signature{}, errors.Wrap(err, "failed to get minimum balance for rent exemption")
	}

	accountPub := account.Public().(ed25519.PublicKey)
	ixs := []solana.Instruction{
		system.CreateAccount(t.Payer(), accountPub, tokenprogram.ProgramKey, lamports, tokenprogram.MultisigAccountSize),
		tokenprogram.InitializeMultisig(accountPub, requiredSigners, signers...),
	}

	return t.ProcessIxs(ixs, account)
}
