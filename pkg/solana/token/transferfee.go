package token

import (
	"crypto/ed25519"
	"encoding/binary"
	"math/bits"

	"github.com/pkg/errors"

	"github.com/code-payments/token-client/pkg/solana"
)

type TransferFeeCommand byte

const (
	CommandInitializeTransferFeeConfig TransferFeeCommand = iota
	CommandTransferCheckedWithFee
	CommandWithdrawWithheldTokensFromMint
	CommandWithdrawWithheldTokensFromAccounts
	CommandHarvestWithheldTokensToMint
	CommandSetTransferFee
)

// TransferFee is one epoch's fee schedule.
type TransferFee struct {
	Epoch                  uint64
	MaximumFee             uint64
	TransferFeeBasisPoints uint16
}

// TransferFeeConfig is the mint-level transfer fee extension state.
type TransferFeeConfig struct {
	TransferFeeConfigAuthority ed25519.PublicKey
	WithdrawWithheldAuthority  ed25519.PublicKey
	WithheldAmount             uint64
	OlderTransferFee           TransferFee
	NewerTransferFee           TransferFee
}

// CalculateFee computes the fee for transferring amount under this
// config, using the newer fee schedule.
func (c *TransferFeeConfig) CalculateFee(amount uint64) uint64 {
	fee := c.NewerTransferFee
	if fee.TransferFeeBasisPoints == 0 || amount == 0 {
		return 0
	}

	// Round up, matching on-chain ceiling division. The product is
	// computed at 128 bits, as on chain, so large amounts do not wrap.
	hi, lo := bits.Mul64(amount, uint64(fee.TransferFeeBasisPoints))
	lo, carry := bits.Add64(lo, 9999, 0)
	hi += carry
	if hi >= 10000 {
		return fee.MaximumFee
	}
	raw, _ := bits.Div64(hi, lo, 10000)
	if raw > fee.MaximumFee {
		return fee.MaximumFee
	}
	return raw
}

func (c *TransferFeeConfig) Unmarshal(b []byte) bool {
	if len(b) != extensionSizes[ExtensionTransferFeeConfig] {
		return false
	}

	c.TransferFeeConfigAuthority = append([]byte(nil), b[0:32]...)
	c.WithdrawWithheldAuthority = append([]byte(nil), b[32:64]...)
	c.WithheldAmount = binary.LittleEndian.Uint64(b[64:])

	for i, fee := range []*TransferFee{&c.OlderTransferFee, &c.NewerTransferFee} {
		offset := 72 + i*18
		fee.Epoch = binary.LittleEndian.Uint64(b[offset:])
		fee.MaximumFee = binary.LittleEndian.Uint64(b[offset+8:])
		fee.TransferFeeBasisPoints = binary.LittleEndian.Uint16(b[offset+16:])
	}

	return true
}

// GetTransferFeeConfig extracts the transfer fee config from raw mint
// account data.
func GetTransferFeeConfig(mintData []byte) (*TransferFeeConfig, error) {
	value, ok := GetExtension(mintData, ExtensionTransferFeeConfig)
	if !ok {
		return nil, errors.New("mint has no transfer fee config extension")
	}

	var config TransferFeeConfig
	if !config.Unmarshal(value) {
		return nil, errors.New("invalid transfer fee config state")
	}
	return &config, nil
}

// InitializeTransferFeeConfig must come before InitializeMint in the
// same transaction.
func InitializeTransferFeeConfig(mint, configAuthority, withdrawAuthority ed25519.PublicKey, basisPoints uint16, maximumFee uint64) solana.Instruction {
	data := []byte{byte(CommandTransferFeeExtension), byte(CommandInitializeTransferFeeConfig)}

	data = appendOptionalKey(data, configAuthority)
	data = appendOptionalKey(data, withdrawAuthority)

	var fee [10]byte
	binary.LittleEndian.PutUint16(fee[0:], basisPoints)
	binary.LittleEndian.PutUint64(fee[2:], maximumFee)
	data = append(data, fee[:]...)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(mint, false),
	)
}

// TransferCheckedWithFee transfers amount with a caller-asserted fee.
// The transfer fails if the asserted fee doesn't match the mint's fee
// schedule.
func TransferCheckedWithFee(source, mint, dest, owner ed25519.PublicKey, amount uint64, decimals byte, fee uint64) solana.Instruction {
	// Accounts expected by this instruction:
	//
	//   0. `[writable]` The source account.
	//   1. `[]` The token mint.
	//   2. `[writable]` The destination account.
	//   3. `[signer]` The source account's owner/delegate.
	data := make([]byte, 2+8+1+8)
	data[0] = byte(CommandTransferFeeExtension)
	data[1] = byte(CommandTransferCheckedWithFee)
	binary.LittleEndian.PutUint64(data[2:], amount)
	data[10] = decimals
	binary.LittleEndian.PutUint64(data[11:], fee)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(source, false),
		solana.NewReadonlyAccountMeta(mint, false),
		solana.NewAccountMeta(dest, false),
		solana.NewReadonlyAccountMeta(owner, true),
	)
}

// WithdrawWithheldTokensFromMint moves fees withheld on the mint itself
// to a token account.
func WithdrawWithheldTokensFromMint(mint, dest, authority ed25519.PublicKey, signers ...ed25519.PublicKey) solana.Instruction {
	accounts := []solana.AccountMeta{
		solana.NewAccountMeta(mint, false),
		solana.NewAccountMeta(dest, false),
		solana.NewReadonlyAccountMeta(authority, len(signers) == 0),
	}
	for _, signer := range signers {
		accounts = append(accounts, solana.NewReadonlyAccountMeta(signer, true))
	}

	return solana.NewInstruction(
		ProgramKey,
		[]byte{byte(CommandTransferFeeExtension), byte(CommandWithdrawWithheldTokensFromMint)},
		accounts...,
	)
}

// WithdrawWithheldTokensFromAccounts moves fees withheld on the given
// source accounts to a token account.
func WithdrawWithheldTokensFromAccounts(mint, dest, authority ed25519.PublicKey, sources []ed25519.PublicKey, signers ...ed25519.PublicKey) solana.Instruction {
	data := []byte{byte(CommandTransferFeeExtension), byte(CommandWithdrawWithheldTokensFromAccounts), byte(len(sources))}

	accounts := []solana.AccountMeta{
		solana.NewReadonlyAccountMeta(mint, false),
		solana.NewAccountMeta(dest, false),
		solana.NewReadonlyAccountMeta(authority, len(signers) == 0),
	}
	for _, signer := range signers {
		accounts = append(accounts, solana.NewReadonlyAccountMeta(signer, true))
	}
	for _, source := range sources {
		accounts = append(accounts, solana.NewAccountMeta(source, false))
	}

	return solana.NewInstruction(
		ProgramKey,
		data,
		accounts...,
	)
}

// HarvestWithheldTokensToMint is permissionless: anyone can sweep
// withheld fees from accounts back to the mint.
func HarvestWithheldTokensToMint(mint ed25519.PublicKey, sources ...ed25519.PublicKey) solana.Instruction {
	accounts := []solana.AccountMeta{
		solana.NewAccountMeta(mint, false),
	}
	for _, source := range sources {
		accounts = append(accounts, solana.NewAccountMeta(source, false))
	}

	return solana.NewInstruction(
		ProgramKey,
		[]byte{byte(CommandTransferFeeExtension), byte(CommandHarvestWithheldTokensToMint)},
		accounts...,
	)
}

// SetTransferFee updates the fee schedule, effective two epochs out.
func SetTransferFee(mint, configAuthority ed25519.PublicKey, basisPoints uint16, maximumFee uint64) solana.Instruction {
	data := make([]byte, 2+2+8)
	data[0] = byte(CommandTransferFeeExtension)
	data[1] = byte(CommandSetTransferFee)
	binary.LittleEndian.PutUint16(data[2:], basisPoints)
	binary.LittleEndian.PutUint64(data[4:], maximumFee)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(configAuthority, true),
	)
}

func appendOptionalKey(data []byte, key ed25519.PublicKey) []byte {
	if len(key) > 0 {
		data = append(data, 1)
		return append(data, key...)
	}
	return append(data, 0)
}
