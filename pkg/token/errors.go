package token

import "github.com/pkg/errors"

var (
	// ErrAccountNotFound indicates the requested account does not exist
	// on the ledger.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountInvalidOwner indicates a fetched account is not owned by
	// the token program.
	ErrAccountInvalidOwner = errors.New("account is not owned by the token program")

	// ErrAccountInvalidMint indicates a fetched token account belongs to
	// a different mint.
	ErrAccountInvalidMint = errors.New("account mint mismatch")

	// ErrAccountInvalidAssociatedAddress indicates an account is not at
	// its expected associated token address.
	ErrAccountInvalidAssociatedAddress = errors.New("account is not at the derived associated address")

	// ErrAccountInvalidAuxiliaryAddress indicates an aux account address
	// unexpectedly collides with an associated token address.
	ErrAccountInvalidAuxiliaryAddress = errors.New("auxiliary account address is an associated address")

	// ErrProofGeneration indicates the proof capability failed to
	// produce a proof artifact.
	ErrProofGeneration = errors.New("proof generation failed")

	// ErrAccountDecryption indicates a balance could not be decrypted or
	// re-encrypted, typically a key mismatch.
	ErrAccountDecryption = errors.New("account decryption failed")

	// ErrMissingDecimals indicates the operation requires the handle to
	// be configured with the mint's decimals.
	ErrMissingDecimals = errors.New("decimals not configured")

	// ErrInvalidDecimals indicates the configured decimals disagree with
	// the mint.
	ErrInvalidDecimals = errors.New("decimals mismatch with mint")

	// ErrMissingMemoSigner indicates the configured memo requires a
	// signer not present in the signing set.
	ErrMissingMemoSigner = errors.New("memo requires a signer not present in signing set")

	// ErrMaximumDepositExceeded indicates a confidential deposit exceeds
	// the maximum confidential transfer amount.
	ErrMaximumDepositExceeded = errors.New("amount exceeds maximum deposit")
)
