package token

import (
	"crypto/ed25519"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/code-payments/token-client/pkg/solana"
)

const (
	// ElGamalPubkeySize is the byte size of a compressed curve point
	// used as a twisted ElGamal public key.
	ElGamalPubkeySize = 32

	// ElGamalCiphertextSize is the byte size of a twisted ElGamal
	// ciphertext (commitment + decrypt handle).
	ElGamalCiphertextSize = 64

	// DecryptableBalanceSize is the byte size of an authenticated
	// encryption ciphertext of a 64-bit balance.
	DecryptableBalanceSize = 36
)

type ConfidentialTransferCommand byte

const (
	CommandConfidentialInitializeMint ConfidentialTransferCommand = iota
	CommandConfidentialUpdateMint
	CommandConfidentialConfigureAccount
	CommandConfidentialApproveAccount
	CommandConfidentialEmptyAccount
	CommandConfidentialDeposit
	CommandConfidentialWithdraw
	CommandConfidentialTransfer
	CommandConfidentialApplyPendingBalance
	CommandConfidentialEnableConfidentialCredits
	CommandConfidentialDisableConfidentialCredits
	CommandConfidentialEnableNonConfidentialCredits
	CommandConfidentialDisableNonConfidentialCredits
	CommandConfidentialTransferWithSplitProofs
	CommandConfidentialTransferWithFeeAndSplitProofs
)

// contextStateProofOffset marks that the proof for an instruction was
// verified ahead of time into a context state account instead of being
// inlined as a sibling instruction.
const contextStateProofOffset = 0

// ConfidentialTransferMint is the mint-level confidential transfer
// extension state.
type ConfidentialTransferMint struct {
	Authority              ed25519.PublicKey
	AutoApproveNewAccounts bool
	AuditorElGamalPubkey   []byte
}

func (m *ConfidentialTransferMint) Unmarshal(b []byte) bool {
	if len(b) != extensionSizes[ExtensionConfidentialTransferMint] {
		return false
	}

	m.Authority = append([]byte(nil), b[0:32]...)
	m.AutoApproveNewAccounts = b[32] == 1
	m.AuditorElGamalPubkey = append([]byte(nil), b[33:65]...)
	return true
}

// ConfidentialTransferAccount is the account-level confidential transfer
// extension state. Ciphertexts stay opaque; decryption is the owner's
// problem.
type ConfidentialTransferAccount struct {
	Approved                            bool
	ElGamalPubkey                       []byte
	PendingBalanceLo                    []byte
	PendingBalanceHi                    []byte
	AvailableBalance                    []byte
	DecryptableAvailableBalance         []byte
	AllowConfidentialCredits            bool
	AllowNonConfidentialCredits         bool
	PendingBalanceCreditCounter         uint64
	MaximumPendingBalanceCreditCounter  uint64
	ExpectedPendingBalanceCreditCounter uint64
	ActualPendingBalanceCreditCounter   uint64
}

func (a *ConfidentialTransferAccount) Unmarshal(b []byte) bool {
	if len(b) != extensionSizes[ExtensionConfidentialTransferAccount] {
		return false
	}

	a.Approved = b[0] == 1
	a.ElGamalPubkey = append([]byte(nil), b[1:33]...)
	a.PendingBalanceLo = append([]byte(nil), b[33:97]...)
	a.PendingBalanceHi = append([]byte(nil), b[97:161]...)
	a.AvailableBalance = append([]byte(nil), b[161:225]...)
	a.DecryptableAvailableBalance = append([]byte(nil), b[225:261]...)
	a.AllowConfidentialCredits = b[261] == 1
	a.AllowNonConfidentialCredits = b[262] == 1
	a.PendingBalanceCreditCounter = binary.LittleEndian.Uint64(b[263:])
	a.MaximumPendingBalanceCreditCounter = binary.LittleEndian.Uint64(b[271:])
	a.ExpectedPendingBalanceCreditCounter = binary.LittleEndian.Uint64(b[279:])
	a.ActualPendingBalanceCreditCounter = binary.LittleEndian.Uint64(b[287:])
	return true
}

// GetConfidentialTransferAccount extracts the confidential transfer
// extension from raw token account data.
func GetConfidentialTransferAccount(accountData []byte) (*ConfidentialTransferAccount, error) {
	value, ok := GetExtension(accountData, ExtensionConfidentialTransferAccount)
	if !ok {
		return nil, errors.New("account has no confidential transfer extension")
	}

	var state ConfidentialTransferAccount
	if !state.Unmarshal(value) {
		return nil, errors.New("invalid confidential transfer account state")
	}
	return &state, nil
}

// GetConfidentialTransferMint extracts the confidential transfer
// extension from raw mint account data.
func GetConfidentialTransferMint(mintData []byte) (*ConfidentialTransferMint, error) {
	value, ok := GetExtension(mintData, ExtensionConfidentialTransferMint)
	if !ok {
		return nil, errors.New("mint has no confidential transfer extension")
	}

	var state ConfidentialTransferMint
	if !state.Unmarshal(value) {
		return nil, errors.New("invalid confidential transfer mint state")
	}
	return &state, nil
}

// ConfidentialInitializeMint must come before InitializeMint in the
// same transaction.
func ConfidentialInitializeMint(mint, authority ed25519.PublicKey, autoApproveNewAccounts bool, auditorElGamalPubkey []byte) solana.Instruction {
	data := make([]byte, 2+ed25519.PublicKeySize+1+ElGamalPubkeySize)
	data[0] = byte(CommandConfidentialTransferExtension)
	data[1] = byte(CommandConfidentialInitializeMint)
	copy(data[2:], authority)
	if autoApproveNewAccounts {
		data[2+ed25519.PublicKeySize] = 1
	}
	copy(data[3+ed25519.PublicKeySize:], auditorElGamalPubkey)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(mint, false),
	)
}

func ConfidentialUpdateMint(mint, authority ed25519.PublicKey, autoApproveNewAccounts bool, auditorElGamalPubkey []byte) solana.Instruction {
	data := make([]byte, 2+1+ElGamalPubkeySize)
	data[0] = byte(CommandConfidentialTransferExtension)
	data[1] = byte(CommandConfidentialUpdateMint)
	if autoApproveNewAccounts {
		data[2] = 1
	}
	copy(data[3:], auditorElGamalPubkey)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(authority, true),
	)
}

// ConfidentialConfigureAccount readies a token account for confidential
// transfers. The pubkey validity proof must have been verified into
// proofContext beforehand.
func ConfidentialConfigureAccount(account, mint, proofContext, authority ed25519.PublicKey, decryptableZeroBalance []byte, maxPendingBalanceCreditCounter uint64, signers ...ed25519.PublicKey) solana.Instruction {
	data := make([]byte, 2+DecryptableBalanceSize+8+1)
	data[0] = byte(CommandConfidentialTransferExtension)
	data[1] = byte(CommandConfidentialConfigureAccount)
	copy(data[2:], decryptableZeroBalance)
	binary.LittleEndian.PutUint64(data[2+DecryptableBalanceSize:], maxPendingBalanceCreditCounter)
	data[2+DecryptableBalanceSize+8] = contextStateProofOffset

	accounts := []solana.AccountMeta{
		solana.NewAccountMeta(account, false),
		solana.NewReadonlyAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(proofContext, false),
		solana.NewReadonlyAccountMeta(authority, len(signers) == 0),
	}
	for _, signer := range signers {
		accounts = append(accounts, solana.NewReadonlyAccountMeta(signer, true))
	}

	return solana.NewInstruction(ProgramKey, data, accounts...)
}

// ConfidentialApproveAccount is used by the mint's confidential transfer
// authority when new accounts aren't auto-approved.
func ConfidentialApproveAccount(account, mint, authority ed25519.PublicKey) solana.Instruction {
	return solana.NewInstruction(
		ProgramKey,
		[]byte{byte(CommandConfidentialTransferExtension), byte(CommandConfidentialApproveAccount)},
		solana.NewAccountMeta(account, false),
		solana.NewReadonlyAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(authority, true),
	)
}

// ConfidentialEmptyAccount zeroes the available balance so the account
// can be closed. The zero-balance proof must have been verified into
// proofContext beforehand.
func ConfidentialEmptyAccount(account, proofContext, authority ed25519.PublicKey, signers ...ed25519.PublicKey) solana.Instruction {
	data := []byte{byte(CommandConfidentialTransferExtension), byte(CommandConfidentialEmptyAccount), contextStateProofOffset}

	accounts := []solana.AccountMeta{
		solana.NewAccountMeta(account, false),
		solana.NewReadonlyAccountMeta(proofContext, false),
		solana.NewReadonlyAccountMeta(authority, len(signers) == 0),
	}
	for _, signer := range signers {
		accounts = append(accounts, solana.NewReadonlyAccountMeta(signer, true))
	}

	return solana.NewInstruction(ProgramKey, data, accounts...)
}

// ConfidentialDeposit moves public balance into the pending confidential
// balance.
func ConfidentialDeposit(account, mint, authority ed25519.PublicKey, amount uint64, decimals byte, signers ...ed25519.PublicKey) solana.Instruction {
	data := make([]byte, 2+8+1)
	data[0] = byte(CommandConfidentialTransferExtension)
	data[1] = byte(CommandConfidentialDeposit)
	binary.LittleEndian.PutUint64(data[2:], amount)
	data[10] = decimals

	accounts := []solana.AccountMeta{
		solana.NewAccountMeta(account, false),
		solana.NewReadonlyAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(authority, len(signers) == 0),
	}
	for _, signer := range signers {
		accounts = append(accounts, solana.NewReadonlyAccountMeta(signer, true))
	}

	return solana.NewInstruction(ProgramKey, data, accounts...)
}

// ConfidentialWithdraw moves available confidential balance back into
// the public balance. The range proof over the remaining balance must
// have been verified into proofContext beforehand.
func ConfidentialWithdraw(account, mint, proofContext, authority ed25519.PublicKey, amount uint64, decimals byte, newDecryptableBalance []byte, signers ...ed25519.PublicKey) solana.Instruction {
	data := make([]byte, 2+8+1+DecryptableBalanceSize+1)
	data[0] = byte(CommandConfidentialTransferExtension)
	data[1] = byte(CommandConfidentialWithdraw)
	binary.LittleEndian.PutUint64(data[2:], amount)
	data[10] = decimals
	copy(data[11:], newDecryptableBalance)
	data[11+DecryptableBalanceSize] = contextStateProofOffset

	accounts := []solana.AccountMeta{
		solana.NewAccountMeta(account, false),
		solana.NewReadonlyAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(proofContext, false),
		solana.NewReadonlyAccountMeta(authority, len(signers) == 0),
	}
	for _, signer := range signers {
		accounts = append(accounts, solana.NewReadonlyAccountMeta(signer, true))
	}

	return solana.NewInstruction(ProgramKey, data, accounts...)
}

// ConfidentialApplyPendingBalance rolls the pending balance into the
// available balance.
func ConfidentialApplyPendingBalance(account, authority ed25519.PublicKey, expectedPendingBalanceCreditCounter uint64, newDecryptableBalance []byte, signers ...ed25519.PublicKey) solana.Instruction {
	data := make([]byte, 2+8+DecryptableBalanceSize)
	data[0] = byte(CommandConfidentialTransferExtension)
	data[1] = byte(CommandConfidentialApplyPendingBalance)
	binary.LittleEndian.PutUint64(data[2:], expectedPendingBalanceCreditCounter)
	copy(data[10:], newDecryptableBalance)

	accounts := []solana.AccountMeta{
		solana.NewAccountMeta(account, false),
		solana.NewReadonlyAccountMeta(authority, len(signers) == 0),
	}
	for _, signer := range signers {
		accounts = append(accounts, solana.NewReadonlyAccountMeta(signer, true))
	}

	return solana.NewInstruction(ProgramKey, data, accounts...)
}

func ConfidentialEnableConfidentialCredits(account, authority ed25519.PublicKey, signers ...ed25519.PublicKey) solana.Instruction {
	return confidentialToggle(CommandConfidentialEnableConfidentialCredits, account, authority, signers)
}

func ConfidentialDisableConfidentialCredits(account, authority ed25519.PublicKey, signers ...ed25519.PublicKey) solana.Instruction {
	return confidentialToggle(CommandConfidentialDisableConfidentialCredits, account, authority, signers)
}

func ConfidentialEnableNonConfidentialCredits(account, authority ed25519.PublicKey, signers ...ed25519.PublicKey) solana.Instruction {
	return confidentialToggle(CommandConfidentialEnableNonConfidentialCredits, account, authority, signers)
}

func ConfidentialDisableNonConfidentialCredits(account, authority ed25519.PublicKey, signers ...ed25519.PublicKey) solana.Instruction {
	return confidentialToggle(CommandConfidentialDisableNonConfidentialCredits, account, authority, signers)
}

func confidentialToggle(cmd ConfidentialTransferCommand, account, authority ed25519.PublicKey, signers []ed25519.PublicKey) solana.Instruction {
	accounts := []solana.AccountMeta{
		solana.NewAccountMeta(account, false),
		solana.NewReadonlyAccountMeta(authority, len(signers) == 0),
	}
	for _, signer := range signers {
		accounts = append(accounts, solana.NewReadonlyAccountMeta(signer, true))
	}

	return solana.NewInstruction(
		ProgramKey,
		[]byte{byte(CommandConfidentialTransferExtension), byte(cmd)},
		accounts...,
	)
}

// SplitProofContexts are the pre-verified proof context accounts backing
// a confidential transfer.
type SplitProofContexts struct {
	EqualityProof           ed25519.PublicKey
	CiphertextValidityProof ed25519.PublicKey
	RangeProof              ed25519.PublicKey

	// Fee proofs, only set for transfers on mints with a confidential
	// fee config.
	FeeSigmaProof              ed25519.PublicKey
	FeeCiphertextValidityProof ed25519.PublicKey
}

// ConfidentialTransferWithSplitProofs executes a confidential transfer
// whose three proofs were verified into separate context state accounts.
//
// If closeSplitContextStateOnExecution is set, the program closes the
// context accounts in the same transaction, refunding their rent to
// lamportDestination under contextStateAuthority.
func ConfidentialTransferWithSplitProofs(
	source, mint, dest ed25519.PublicKey,
	contexts SplitProofContexts,
	authority ed25519.PublicKey,
	newSourceDecryptableBalance []byte,
	noOpOnUninitializedSplitContextState bool,
	closeSplitContextStateOnExecution bool,
	lamportDestination, contextStateAuthority, zkProofProgram ed25519.PublicKey,
) solana.Instruction {
	data := make([]byte, 2+DecryptableBalanceSize+2)
	data[0] = byte(CommandConfidentialTransferExtension)
	data[1] = byte(CommandConfidentialTransferWithSplitProofs)
	copy(data[2:], newSourceDecryptableBalance)
	if noOpOnUninitializedSplitContextState {
		data[2+DecryptableBalanceSize] = 1
	}
	if closeSplitContextStateOnExecution {
		data[2+DecryptableBalanceSize+1] = 1
	}

	accounts := []solana.AccountMeta{
		solana.NewAccountMeta(source, false),
		solana.NewReadonlyAccountMeta(mint, false),
		solana.NewAccountMeta(dest, false),
		solana.NewAccountMeta(contexts.EqualityProof, false),
		solana.NewAccountMeta(contexts.CiphertextValidityProof, false),
		solana.NewAccountMeta(contexts.RangeProof, false),
	}
	if closeSplitContextStateOnExecution {
		accounts = append(accounts,
			solana.NewAccountMeta(lamportDestination, false),
			solana.NewReadonlyAccountMeta(contextStateAuthority, true),
			solana.NewReadonlyAccountMeta(zkProofProgram, false),
		)
	}
	accounts = append(accounts, solana.NewReadonlyAccountMeta(authority, true))

	return solana.NewInstruction(ProgramKey, data, accounts...)
}

// ConfidentialTransferWithFeeAndSplitProofs is the fee-bearing variant,
// requiring five pre-verified proof context accounts.
func ConfidentialTransferWithFeeAndSplitProofs(
	source, mint, dest ed25519.PublicKey,
	contexts SplitProofContexts,
	authority ed25519.PublicKey,
	newSourceDecryptableBalance []byte,
	noOpOnUninitializedSplitContextState bool,
	closeSplitContextStateOnExecution bool,
	lamportDestination, contextStateAuthority, zkProofProgram ed25519.PublicKey,
) solana.Instruction {
	data := make([]byte, 2+DecryptableBalanceSize+2)
	data[0] = byte(CommandConfidentialTransferExtension)
	data[1] = byte(CommandConfidentialTransferWithFeeAndSplitProofs)
	copy(data[2:], newSourceDecryptableBalance)
	if noOpOnUninitializedSplitContextState {
		data[2+DecryptableBalanceSize] = 1
	}
	if closeSplitContextStateOnExecution {
		data[2+DecryptableBalanceSize+1] = 1
	}

	accounts := []solana.AccountMeta{
		solana.NewAccountMeta(source, false),
		solana.NewReadonlyAccountMeta(mint, false),
		solana.NewAccountMeta(dest, false),
		solana.NewAccountMeta(contexts.EqualityProof, false),
		solana.NewAccountMeta(contexts.CiphertextValidityProof, false),
		solana.NewAccountMeta(contexts.FeeSigmaProof, false),
		solana.NewAccountMeta(contexts.FeeCiphertextValidityProof, false),
		solana.NewAccountMeta(contexts.RangeProof, false),
	}
	if closeSplitContextStateOnExecution {
		accounts = append(accounts,
			solana.NewAccountMeta(lamportDestination, false),
			solana.NewReadonlyAccountMeta(contextStateAuthority, true),
			solana.NewReadonlyAccountMeta(zkProofProgram, false),
		)
	}
	accounts = append(accounts, solana.NewReadonlyAccountMeta(authority, true))

	return solana.NewInstruction(ProgramKey, data, accounts...)
}
