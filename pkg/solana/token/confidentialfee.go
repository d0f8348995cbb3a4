package token

import (
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/token-client/pkg/solana"
)

type ConfidentialTransferFeeCommand byte

const (
	CommandInitializeConfidentialTransferFeeConfig ConfidentialTransferFeeCommand = iota
	CommandConfidentialWithdrawWithheldTokensFromMint
	CommandConfidentialWithdrawWithheldTokensFromAccounts
	CommandConfidentialHarvestWithheldTokensToMint
	CommandEnableHarvestToMint
	CommandDisableHarvestToMint
)

// ConfidentialTransferFeeConfig is the mint-level confidential fee
// extension state. Fees withheld on confidential transfers accumulate
// here as ciphertext under the withdraw withheld authority's key.
type ConfidentialTransferFeeConfig struct {
	Authority                              ed25519.PublicKey
	WithdrawWithheldAuthorityElGamalPubkey []byte
	HarvestToMintEnabled                   bool
	WithheldAmount                         []byte
}

func (c *ConfidentialTransferFeeConfig) Unmarshal(b []byte) bool {
	if len(b) != extensionSizes[ExtensionConfidentialTransferFeeConfig] {
		return false
	}

	c.Authority = append([]byte(nil), b[0:32]...)
	c.WithdrawWithheldAuthorityElGamalPubkey = append([]byte(nil), b[32:64]...)
	c.HarvestToMintEnabled = b[64] == 1
	c.WithheldAmount = append([]byte(nil), b[65:129]...)
	return true
}

// GetConfidentialTransferFeeConfig extracts the confidential fee
// extension from raw mint account data.
func GetConfidentialTransferFeeConfig(mintData []byte) (*ConfidentialTransferFeeConfig, error) {
	value, ok := GetExtension(mintData, ExtensionConfidentialTransferFeeConfig)
	if !ok {
		return nil, errors.New("mint has no confidential transfer fee extension")
	}

	var config ConfidentialTransferFeeConfig
	if !config.Unmarshal(value) {
		return nil, errors.New("invalid confidential transfer fee config state")
	}
	return &config, nil
}

// GetConfidentialWithheldAmount extracts the withheld fee ciphertext
// from raw token account data.
func GetConfidentialWithheldAmount(accountData []byte) ([]byte, error) {
	value, ok := GetExtension(accountData, ExtensionConfidentialTransferFeeAmount)
	if !ok {
		return nil, errors.New("account has no confidential transfer fee extension")
	}
	if len(value) != extensionSizes[ExtensionConfidentialTransferFeeAmount] {
		return nil, errors.New("invalid confidential transfer fee amount state")
	}
	return append([]byte(nil), value...), nil
}

// InitializeConfidentialTransferFeeConfig must come before
// InitializeMint in the same transaction, and requires both the
// transfer fee and confidential transfer extensions on the mint.
func InitializeConfidentialTransferFeeConfig(mint, authority ed25519.PublicKey, withdrawWithheldAuthorityElGamalPubkey []byte) solana.Instruction {
	data := make([]byte, 2+ed25519.PublicKeySize+ElGamalPubkeySize)
	data[0] = byte(CommandConfidentialTransferFeeExtension)
	data[1] = byte(CommandInitializeConfidentialTransferFeeConfig)
	copy(data[2:], authority)
	copy(data[2+ed25519.PublicKeySize:], withdrawWithheldAuthorityElGamalPubkey)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(mint, false),
	)
}

// ConfidentialWithdrawWithheldTokensFromMint moves the mint's withheld
// fee ciphertext into dest's pending balance. The equality proof tying
// the withheld ciphertext to dest's key must have been verified into
// proofContext beforehand.
func ConfidentialWithdrawWithheldTokensFromMint(mint, dest, proofContext, authority ed25519.PublicKey, signers ...ed25519.PublicKey) solana.Instruction {
	data := []byte{
		byte(CommandConfidentialTransferFeeExtension),
		byte(CommandConfidentialWithdrawWithheldTokensFromMint),
		contextStateProofOffset,
	}

	accounts := []solana.AccountMeta{
		solana.NewAccountMeta(mint, false),
		solana.NewAccountMeta(dest, false),
		solana.NewReadonlyAccountMeta(proofContext, false),
		solana.NewReadonlyAccountMeta(authority, len(signers) == 0),
	}
	for _, signer := range signers {
		accounts = append(accounts, solana.NewReadonlyAccountMeta(signer, true))
	}

	return solana.NewInstruction(ProgramKey, data, accounts...)
}

// ConfidentialWithdrawWithheldTokensFromAccounts sweeps withheld fee
// ciphertext out of the given token accounts into dest's pending
// balance.
func ConfidentialWithdrawWithheldTokensFromAccounts(mint, dest, proofContext, authority ed25519.PublicKey, sources []ed25519.PublicKey, signers ...ed25519.PublicKey) solana.Instruction {
	data := []byte{
		byte(CommandConfidentialTransferFeeExtension),
		byte(CommandConfidentialWithdrawWithheldTokensFromAccounts),
		byte(len(sources)),
		contextStateProofOffset,
	}

	accounts := []solana.AccountMeta{
		solana.NewAccountMeta(mint, false),
		solana.NewAccountMeta(dest, false),
		solana.NewReadonlyAccountMeta(proofContext, false),
		solana.NewReadonlyAccountMeta(authority, len(signers) == 0),
	}
	for _, signer := range signers {
		accounts = append(accounts, solana.NewReadonlyAccountMeta(signer, true))
	}
	for _, source := range sources {
		accounts = append(accounts, solana.NewAccountMeta(source, false))
	}

	return solana.NewInstruction(ProgramKey, data, accounts...)
}

// ConfidentialHarvestWithheldTokensToMint is permissionless, so anyone
// can sweep withheld fees back to the mint when harvest-to-mint is
// enabled.
func ConfidentialHarvestWithheldTokensToMint(mint ed25519.PublicKey, sources ...ed25519.PublicKey) solana.Instruction {
	accounts := []solana.AccountMeta{
		solana.NewAccountMeta(mint, false),
	}
	for _, source := range sources {
		accounts = append(accounts, solana.NewAccountMeta(source, false))
	}

	return solana.NewInstruction(
		ProgramKey,
		[]byte{
			byte(CommandConfidentialTransferFeeExtension),
			byte(CommandConfidentialHarvestWithheldTokensToMint),
		},
		accounts...,
	)
}

func EnableHarvestToMint(mint, authority ed25519.PublicKey, signers ...ed25519.PublicKey) solana.Instruction {
	return harvestToMintToggle(CommandEnableHarvestToMint, mint, authority, signers)
}

func DisableHarvestToMint(mint, authority ed25519.PublicKey, signers ...ed25519.PublicKey) solana.Instruction {
	return harvestToMintToggle(CommandDisableHarvestToMint, mint, authority, signers)
}

func harvestToMintToggle(cmd ConfidentialTransferFeeCommand, mint, authority ed25519.PublicKey, signers []ed25519.PublicKey) solana.Instruction {
	accounts := []solana.AccountMeta{
		solana.NewAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(authority, len(signers) == 0),
	}
	for _, signer := range signers {
		accounts = append(accounts, solana.NewReadonlyAccountMeta(signer, true))
	}

	return solana.NewInstruction(
		ProgramKey,
		[]byte{byte(CommandConfidentialTransferFeeExtension), byte(cmd)},
		accounts...,
	)
}
