package token

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"github.com/code-payments/token-client/pkg/solana"
	"github.com/code-payments/token-client/pkg/solana/system"
)

// ProgramKey is the address of the token program that should be used.
//
// Current key: TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb
//
// todo: lock this in, or make configurable.
var ProgramKey = ed25519.PublicKey{6, 221, 246, 225, 238, 117, 143, 222, 24, 66, 93, 188, 228, 108, 205, 218, 182, 26, 252, 77, 131, 185, 13, 39, 254, 189, 249, 40, 216, 161, 139, 252}

type Command byte

const (
	CommandInitializeMint Command = iota
	CommandInitializeAccount
	CommandInitializeMultisig
	CommandTransfer
	CommandApprove
	CommandRevoke
	CommandSetAuthority
	CommandMintTo
	CommandBurn
	CommandCloseAccount
	CommandFreezeAccount
	CommandThawAccount
	CommandTransferChecked
	CommandApproveChecked
	CommandMintToChecked
	CommandBurnChecked
	CommandInitializeAccount2
	CommandSyncNative
	CommandInitializeAccount3
	CommandInitializeMultisig2
	CommandInitializeMint2
	CommandGetAccountDataSize
	CommandInitializeImmutableOwner
	CommandAmountToUiAmount
	CommandUiAmountToAmount
	CommandInitializeMintCloseAuthority
	CommandTransferFeeExtension
	CommandConfidentialTransferExtension
	CommandDefaultAccountStateExtension
	CommandReallocate
	CommandMemoTransferExtension
	CommandCreateNativeMint
	CommandInitializeNonTransferableMint
	CommandInterestBearingMintExtension
	CommandCpiGuardExtension
	CommandInitializePermanentDelegate
	CommandTransferHookExtension
	CommandConfidentialTransferFeeExtension
	CommandWithdrawExcessLamports
	CommandMetadataPointerExtension
	CommandGroupPointerExtension
	CommandGroupMemberPointerExtension

	CommandUnknown = Command(math.MaxUint8)
)

const (
	// nolint:varcheck,deadcode,unused
	ErrorNotRentExempt solana.CustomError = iota
	ErrorInsufficientFunds
	// nolint:varcheck,deadcode,unused
	ErrorInvalidMint
	ErrorMintMismatch
	ErrorOwnerMismatch
	// nolint:varcheck,deadcode,unused
	ErrorFixedSupply
	// nolint:varcheck,deadcode,unused
	ErrorAlreadyInUse
	// nolint:varcheck,deadcode,unused
	ErrorInvalidNumberOfProvidedSigners
	// nolint:varcheck,deadcode,unused
	ErrorInvalidNumberOfRequiredSigners
	ErrorUninitializedState
	// nolint:varcheck,deadcode,unused
	ErrorNativeNotSupported
	// nolint:varcheck,deadcode,unused
	ErrorNonNativeHasBalance
	// nolint:varcheck,deadcode,unused
	ErrorInvalidInstruction
	// nolint:varcheck,deadcode,unused
	ErrorInvalidState
	// nolint:varcheck,deadcode,unused
	ErrorOverflow
	// nolint:varcheck,deadcode,unused
	ErrorAuthorityTypeNotSupported
	// nolint:varcheck,deadcode,unused
	ErrorMintCannotFreeze
	ErrorAccountFrozen
	ErrorMintDecimalsMismatch
)

func GetCommand(m solana.Message, index int) (Command, error) {
	if index >= len(m.Instructions) {
		return CommandUnknown, errors.Errorf("instruction doesn't exist at %d", index)
	}

	i := m.Instructions[index]

	if !bytes.Equal(m.Accounts[i.ProgramIndex], ProgramKey) {
		return CommandUnknown, solana.ErrIncorrectProgram
	}
	if len(i.Data) == 0 {
		return CommandUnknown, errors.New("token instruction missing data")
	}

	return Command(i.Data[0]), nil
}

// Reference: https://github.com/solana-labs/solana-program-library/blob/master/token/program-2022/src/instruction.rs
func InitializeMint(mint, mintAuthority, freezeAuthority ed25519.PublicKey, decimals byte) solana.Instruction {
	// Accounts expected by this instruction:
	//
	//   0. `[writable]` The mint to initialize.
	//   1. `[]` Rent sysvar
	data := []byte{byte(CommandInitializeMint), decimals}
	data = append(data, mintAuthority...)
	if len(freezeAuthority) > 0 {
		data = append(data, 1)
		data = append(data, freezeAuthority...)
	} else {
		data = append(data, 0)
	}

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(system.RentSysVar, false),
	)
}

type DecompiledInitializeMint struct {
	Mint            ed25519.PublicKey
	MintAuthority   ed25519.PublicKey
	FreezeAuthority ed25519.PublicKey
	Decimals        byte
}

func DecompileInitializeMint(m solana.Message, index int) (*DecompiledInitializeMint, error) {
	if index >= len(m.Instructions) {
		return nil, errors.Errorf("instruction doesn't exist at %d", index)
	}

	i := m.Instructions[index]

	if !bytes.Equal(m.Accounts[i.ProgramIndex], ProgramKey) {
		return nil, solana.ErrIncorrectProgram
	}
	if !bytes.HasPrefix(i.Data, []byte{byte(CommandInitializeMint)}) {
		return nil, solana.ErrIncorrectInstruction
	}
	if len(i.Accounts) < 1 {
		return nil, errors.Errorf("invalid number of accounts: %d", len(i.Accounts))
	}
	if len(i.Data) != 2+ed25519.PublicKeySize+1 && len(i.Data) != 2+2*ed25519.PublicKeySize+1 {
		return nil, errors.Errorf("invalid data size: %d", len(i.Data))
	}

	decompiled := &DecompiledInitializeMint{
		Mint:          m.Accounts[i.Accounts[0]],
		Decimals:      i.Data[1],
		MintAuthority: i.Data[2 : 2+ed25519.PublicKeySize],
	}
	if i.Data[2+ed25519.PublicKeySize] == 1 {
		decompiled.FreezeAuthority = i.Data[3+ed25519.PublicKeySize:]
	}

	return decompiled, nil
}

// Reference: https://github.com/solana-labs/solana-program-library/blob/b011698251981b5a12088acba18fad1d41c3719a/token/program/src/instruction.rs#L41-L55
func InitializeAccount(account, mint, owner ed25519.PublicKey) solana.Instruction {
	// Accounts expected by this instruction:
	//
	//   0. `[writable]`  The account to initialize.
	//   1. `[]` The mint this account will be associated with.
	//   2. `[]` The new account's owner/multisignature.
	//   3. `[]` Rent sysvar
	return solana.NewInstruction(
		ProgramKey,
		[]byte{byte(CommandInitializeAccount)},
		solana.NewAccountMeta(account, true),
		solana.NewReadonlyAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(owner, false),
		solana.NewReadonlyAccountMeta(system.RentSysVar, false),
	)
}

// InitializeAccount3 is InitializeAccount without the rent sysvar and
// without requiring the new account to sign, with the owner passed in
// the instruction data.
func InitializeAccount3(account, mint, owner ed25519.PublicKey) solana.Instruction {
	// Accounts expected by this instruction:
	//
	//   0. `[writable]`  The account to initialize.
	//   1. `[]` The mint this account will be associated with.
	data := make([]byte, 1+ed25519.PublicKeySize)
	data[0] = byte(CommandInitializeAccount3)
	copy(data[1:], owner)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(account, false),
		solana.NewReadonlyAccountMeta(mint, false),
	)
}

type DecompiledInitializeAccount struct {
	Account ed25519.PublicKey
	Mint    ed25519.PublicKey
	Owner   ed25519.PublicKey
}

func DecompileInitializeAccount(m solana.Message, index int) (*DecompiledInitializeAccount, error) {
	if index >= len(m.Instructions) {
		return nil, errors.Errorf("instruction doesn't exist at %d", index)
	}

	i := m.Instructions[index]

	if !bytes.Equal(m.Accounts[i.ProgramIndex], ProgramKey) {
		return nil, solana.ErrIncorrectProgram
	}
	if !bytes.Equal([]byte{byte(CommandInitializeAccount)}, i.Data) {
		return nil, solana.ErrIncorrectInstruction
	}
	if len(i.Accounts) != 4 {
		return nil, errors.Errorf("invalid number of accounts: %d", len(i.Accounts))
	}
	if !bytes.Equal(system.RentSysVar, m.Accounts[i.Accounts[3]]) {
		return nil, errors.Errorf("invalid rent program")
	}

	return &DecompiledInitializeAccount{
		Account: m.Accounts[i.Accounts[0]],
		Mint:    m.Accounts[i.Accounts[1]],
		Owner:   m.Accounts[i.Accounts[2]],
	}, nil
}

// Reference: https://github.com/solana-labs/solana-program-library/blob/b011698251981b5a12088acba18fad1d41c3719a/token/program/src/instruction.rs#L41-L55
func InitializeMultisig(account ed25519.PublicKey, requiredSigners byte, signers ...ed25519.PublicKey) solana.Instruction {
	// Accounts expected by this instruction:
	//
	//   0. `[writable]` The multisignature account to initialize.
	//   1. `[]` Rent sysvar
	//   2. ..2+N. `[]` The signer accounts, must equal to N where 1 <= N <= 11.
	accounts := make([]solana.AccountMeta, 2+len(signers))
	accounts[0] = solana.NewAccountMeta(account, false)
	accounts[1] = solana.NewReadonlyAccountMeta(system.RentSysVar, false)
	for i := 0; i < len(signers); i++ {
		accounts[i+2] = solana.NewReadonlyAccountMeta(signers[i], false)
	}

	return solana.NewInstruction(
		ProgramKey,
		[]byte{byte(CommandInitializeMultisig), requiredSigners},
		accounts...,
	)
}

type AuthorityType byte

const (
	AuthorityTypeMintTokens AuthorityType = iota
	AuthorityTypeFreezeAccount
	AuthorityTypeAccountHolder
	AuthorityTypeCloseAccount
	AuthorityTypeTransferFeeConfig
	AuthorityTypeWithheldWithdraw
	AuthorityTypeCloseMint
	AuthorityTypeInterestRate
	AuthorityTypePermanentDelegate
	AuthorityTypeConfidentialTransferMint
	AuthorityTypeTransferHookProgramID
	AuthorityTypeConfidentialTransferFeeConfig
	AuthorityTypeMetadataPointer
	AuthorityTypeGroupPointer
	AuthorityTypeGroupMemberPointer
)

// Reference: https://github.com/solana-labs/solana-program-library/blob/b011698251981b5a12088acba18fad1d41c3719a/token/program/src/instruction.rs#L128-L139
func SetAuthority(account, currentAuthority, newAuthority ed25519.PublicKey, authorityType AuthorityType) solana.Instruction {
	// Sets a new authority of a mint or account.
	//
	// Accounts expected by this instruction:
	//
	//   * Single authority
	//   0. `[writable]` The mint or account to change the authority of.
	//   1. `[signer]` The current authority of the mint or account.
	//
	//   * Multisignature authority
	//   0. `[writable]` The mint or account to change the authority of.
	//   1. `[]` The mint's or account's multisignature authority.
	//   2. ..2+M `[signer]` M signer accounts
	data := []byte{byte(CommandSetAuthority), byte(authorityType), 0}
	if len(newAuthority) > 0 {
		data[2] = 1
		data = append(data, newAuthority...)
	}

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(account, false),
		solana.NewReadonlyAccountMeta(currentAuthority, true),
	)
}

func SetAuthorityMultisig(account, multisigOwner, newAuthority ed25519.PublicKey, authorityType AuthorityType, signers []ed25519.PublicKey) solana.Instruction {
	data := []byte{byte(CommandSetAuthority), byte(authorityType), 0}
	if len(newAuthority) > 0 {
		data[2] = 1
		data = append(data, newAuthority...)
	}

	accounts := make([]solana.AccountMeta, 2+len(signers))
	accounts[0] = solana.NewAccountMeta(account, false)
	accounts[1] = solana.NewReadonlyAccountMeta(multisigOwner, false)
	for i := 0; i < len(signers); i++ {
		accounts[2+i] = solana.NewReadonlyAccountMeta(signers[i], true)
	}

	return solana.NewInstruction(
		ProgramKey,
		data,
		accounts...,
	)
}

type DecompiledSetAuthority struct {
	Account          ed25519.PublicKey
	CurrentAuthority ed25519.PublicKey
	NewAuthority     ed25519.PublicKey
	Type             AuthorityType
}

func DecompileSetAuthority(m solana.Message, index int) (*DecompiledSetAuthority, error) {
	if index >= len(m.Instructions) {
		return nil, errors.Errorf("instruction doesn't exist at %d", index)
	}

	i := m.Instructions[index]

	if !bytes.Equal(m.Accounts[i.ProgramIndex], ProgramKey) {
		return nil, solana.ErrIncorrectProgram
	}
	if !bytes.HasPrefix(i.Data, []byte{byte(CommandSetAuthority)}) {
		return nil, solana.ErrIncorrectInstruction
	}
	if len(i.Accounts) < 2 {
		return nil, errors.Errorf("invalid number of accounts: %d", len(i.Accounts))
	}
	if len(i.Data) < 3 {
		return nil, errors.Errorf("invalid data size: %d (expect at least 3)", len(i.Data))
	}
	if i.Data[2] == 0 && len(i.Data) != 3 {
		return nil, errors.Errorf("invalid data size: %d (expect 3)", len(i.Data))
	}
	if i.Data[2] == 1 && len(i.Data) != 3+ed25519.PublicKeySize {
		return nil, errors.Errorf("invalid data size: %d (expect %d)", len(i.Data), 3+ed25519.PublicKeySize)
	}

	decompiled := &DecompiledSetAuthority{
		Account:          m.Accounts[i.Accounts[0]],
		CurrentAuthority: m.Accounts[i.Accounts[1]],
		Type:             AuthorityType(i.Data[1]),
	}

	if i.Data[2] == 1 {
		decompiled.NewAuthority = i.Data[3 : 3+ed25519.PublicKeySize]
	}

	return decompiled, nil
}

// Reference: https://github.com/solana-labs/solana-program-library/blob/b011698251981b5a12088acba18fad1d41c3719a/token/program/src/instruction.rs#L76-L91
func Transfer(source, dest, owner ed25519.PublicKey, amount uint64) solana.Instruction {
	// Accounts expected by this instruction:
	//
	//   * Single owner/delegate
	//   0. `[writable]` The source account.
	//   1. `[writable]` The destination account.
	//   2. `[signer]` The source account's owner/delegate.
	//
	//   * Multisignature owner/delegate
	//   0. `[writable]` The source account.
	//   1. `[writable]` The destination account.
	//   2. `[]` The source account's multisignature owner/delegate.
	//   3. ..3+M `[signer]` M signer accounts.
	data := make([]byte, 1+8)
	data[0] = byte(CommandTransfer)
	binary.LittleEndian.PutUint64(data[1:], amount)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(source, false),
		solana.NewAccountMeta(dest, false),
		solana.NewReadonlyAccountMeta(owner, true),
	)
}

func TransferMultisig(source, dest, multisigOwner ed25519.PublicKey, amount uint64, signers ...ed25519.PublicKey) solana.Instruction {
	data := make([]byte, 1+8)
	data[0] = byte(CommandTransfer)
	binary.LittleEndian.PutUint64(data[1:], amount)

	accounts := make([]solana.AccountMeta, 3+len(signers))
	accounts[0] = solana.NewAccountMeta(source, false)
	accounts[1] = solana.NewAccountMeta(dest, false)
	accounts[2] = solana.NewReadonlyAccountMeta(multisigOwner, false)
	for i := 0; i < len(signers); i++ {
		accounts[3+i] = solana.NewReadonlyAccountMeta(signers[i], true)
	}

	return solana.NewInstruction(
		ProgramKey,
		data,
		accounts...,
	)
}

type DecompiledTransfer struct {
	Source      ed25519.PublicKey
	Destination ed25519.PublicKey
	Owner       ed25519.PublicKey
	Amount      uint64
}

func DecompileTransfer(m solana.Message, index int) (*DecompiledTransfer, error) {
	if index >= len(m.Instructions) {
		return nil, errors.Errorf("instruction doesn't exist at %d", index)
	}

	i := m.Instructions[index]

	if !bytes.Equal(m.Accounts[i.ProgramIndex], ProgramKey) {
		return nil, solana.ErrIncorrectProgram
	}
	if !bytes.HasPrefix(i.Data, []byte{byte(CommandTransfer)}) {
		return nil, solana.ErrIncorrectInstruction
	}
	// note: we do < 3 instead of != 3 in order to support multisig cases.
	if len(i.Accounts) < 3 {
		return nil, errors.Errorf("invalid number of accounts: %d", len(i.Accounts))
	}
	if len(i.Data) != 9 {
		return nil, errors.Errorf("invalid instruction data size: %d", len(i.Data))
	}

	v := &DecompiledTransfer{
		Source:      m.Accounts[i.Accounts[0]],
		Destination: m.Accounts[i.Accounts[1]],
		Owner:       m.Accounts[i.Accounts[2]],
	}
	v.Amount = binary.LittleEndian.Uint64(i.Data[1:])
	return v, nil
}

// Reference: https://github.com/solana-labs/solana-program-library/blob/b011698251981b5a12088acba18fad1d41c3719a/token/program/src/instruction.rs#L230-L252
func TransferChecked(source, mint, dest, owner ed25519.PublicKey, amount uint64, decimals byte) solana.Instruction {
	// Accounts expected by this instruction:
	//
	//   * Single owner/delegate
	//   0. `[writable]` The source account.
	//   1. `[]` The token mint.
	//   2. `[writable]` The destination account.
	//   3. `[signer]` The source account's owner/delegate.
	//
	//   * Multisignature owner/delegate
	//   0. `[writable]` The source account.
	//   1. `[]` The token mint.
	//   2. `[writable]` The destination account.
	//   3. `[]` The source account's multisignature owner/delegate.
	//   4. ..4+M `[signer]` M signer accounts.
	data := make([]byte, 1+8+1)
	data[0] = byte(CommandTransferChecked)
	binary.LittleEndian.PutUint64(data[1:], amount)
	data[9] = decimals

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(source, false),
		solana.NewReadonlyAccountMeta(mint, false),
		solana.NewAccountMeta(dest, false),
		solana.NewReadonlyAccountMeta(owner, true),
	)
}

// TransferCheckedMultisig is TransferChecked with a multisignature owner,
// with each of the provided signers marked as a required signer. Extra
// accounts (transfer hook metas) can be appended by the caller.
func TransferCheckedMultisig(source, mint, dest, multisigOwner ed25519.PublicKey, amount uint64, decimals byte, signers ...ed25519.PublicKey) solana.Instruction {
	data := make([]byte, 1+8+1)
	data[0] = byte(CommandTransferChecked)
	binary.LittleEndian.PutUint64(data[1:], amount)
	data[9] = decimals

	accounts := make([]solana.AccountMeta, 4+len(signers))
	accounts[0] = solana.NewAccountMeta(source, false)
	accounts[1] = solana.NewReadonlyAccountMeta(mint, false)
	accounts[2] = solana.NewAccountMeta(dest, false)
	accounts[3] = solana.NewReadonlyAccountMeta(multisigOwner, false)
	for i := 0; i < len(signers); i++ {
		accounts[4+i] = solana.NewReadonlyAccountMeta(signers[i], true)
	}

	return solana.NewInstruction(
		ProgramKey,
		data,
		accounts...,
	)
}

type DecompiledTransferChecked struct {
	Source      ed25519.PublicKey
	Mint        ed25519.PublicKey
	Destination ed25519.PublicKey
	Owner       ed25519.PublicKey
	Amount      uint64
	Decimals    byte
}

func DecompileTransferChecked(m solana.Message, index int) (*DecompiledTransferChecked, error) {
	if index >= len(m.Instructions) {
		return nil, errors.Errorf("instruction doesn't exist at %d", index)
	}

	i := m.Instructions[index]

	if !bytes.Equal(m.Accounts[i.ProgramIndex], ProgramKey) {
		return nil, solana.ErrIncorrectProgram
	}
	if !bytes.HasPrefix(i.Data, []byte{byte(CommandTransferChecked)}) {
		return nil, solana.ErrIncorrectInstruction
	}
	// note: we do < 4 instead of != 4 in order to support multisig cases.
	if len(i.Accounts) < 4 {
		return nil, errors.Errorf("invalid number of accounts: %d", len(i.Accounts))
	}
	if len(i.Data) != 10 {
		return nil, errors.Errorf("invalid instruction data size: %d", len(i.Data))
	}

	v := &DecompiledTransferChecked{
		Source:      m.Accounts[i.Accounts[0]],
		Mint:        m.Accounts[i.Accounts[1]],
		Destination: m.Accounts[i.Accounts[2]],
		Owner:       m.Accounts[i.Accounts[3]],
	}
	v.Amount = binary.LittleEndian.Uint64(i.Data[1:9])
	v.Decimals = i.Data[9]
	return v, nil
}

func Approve(source, delegate, owner ed25519.PublicKey, amount uint64) solana.Instruction {
	// Accounts expected by this instruction:
	//
	//   0. `[writable]` The source account.
	//   1. `[]` The delegate.
	//   2. `[signer]` The source account owner.
	data := make([]byte, 1+8)
	data[0] = byte(CommandApprove)
	binary.LittleEndian.PutUint64(data[1:], amount)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(source, false),
		solana.NewReadonlyAccountMeta(delegate, false),
		solana.NewReadonlyAccountMeta(owner, true),
	)
}

func Revoke(source, owner ed25519.PublicKey) solana.Instruction {
	// Accounts expected by this instruction:
	//
	//   0. `[writable]` The source account.
	//   1. `[signer]` The source account owner.
	return solana.NewInstruction(
		ProgramKey,
		[]byte{byte(CommandRevoke)},
		solana.NewAccountMeta(source, false),
		solana.NewReadonlyAccountMeta(owner, true),
	)
}

func MintTo(mint, dest, authority ed25519.PublicKey, amount uint64) solana.Instruction {
	// Accounts expected by this instruction:
	//
	//   0. `[writable]` The mint.
	//   1. `[writable]` The account to mint tokens to.
	//   2. `[signer]` The mint's minting authority.
	data := make([]byte, 1+8)
	data[0] = byte(CommandMintTo)
	binary.LittleEndian.PutUint64(data[1:], amount)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(mint, false),
		solana.NewAccountMeta(dest, false),
		solana.NewReadonlyAccountMeta(authority, true),
	)
}

func MintToChecked(mint, dest, authority ed25519.PublicKey, amount uint64, decimals byte) solana.Instruction {
	data := make([]byte, 1+8+1)
	data[0] = byte(CommandMintToChecked)
	binary.LittleEndian.PutUint64(data[1:], amount)
	data[9] = decimals

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(mint, false),
		solana.NewAccountMeta(dest, false),
		solana.NewReadonlyAccountMeta(authority, true),
	)
}

func Burn(source, mint, owner ed25519.PublicKey, amount uint64) solana.Instruction {
	// Accounts expected by this instruction:
	//
	//   0. `[writable]` The account to burn from.
	//   1. `[writable]` The token mint.
	//   2. `[signer]` The account's owner/delegate.
	data := make([]byte, 1+8)
	data[0] = byte(CommandBurn)
	binary.LittleEndian.PutUint64(data[1:], amount)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(source, false),
		solana.NewAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(owner, true),
	)
}

func BurnChecked(source, mint, owner ed25519.PublicKey, amount uint64, decimals byte) solana.Instruction {
	data := make([]byte, 1+8+1)
	data[0] = byte(CommandBurnChecked)
	binary.LittleEndian.PutUint64(data[1:], amount)
	data[9] = decimals

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(source, false),
		solana.NewAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(owner, true),
	)
}

func FreezeAccount(account, mint, authority ed25519.PublicKey) solana.Instruction {
	// Accounts expected by this instruction:
	//
	//   0. `[writable]` The account to freeze.
	//   1. `[]` The token mint.
	//   2. `[signer]` The mint freeze authority.
	return solana.NewInstruction(
		ProgramKey,
		[]byte{byte(CommandFreezeAccount)},
		solana.NewAccountMeta(account, false),
		solana.NewReadonlyAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(authority, true),
	)
}

func ThawAccount(account, mint, authority ed25519.PublicKey) solana.Instruction {
	return solana.NewInstruction(
		ProgramKey,
		[]byte{byte(CommandThawAccount)},
		solana.NewAccountMeta(account, false),
		solana.NewReadonlyAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(authority, true),
	)
}

// Reference: https://github.com/solana-labs/solana-program-library/blob/b011698251981b5a12088acba18fad1d41c3719a/token/program/src/instruction.rs#L183-L197
func CloseAccount(account, dest, owner ed25519.PublicKey) solana.Instruction {
	// Close an account by transferring all its SOL to the destination account.
	// Non-native accounts may only be closed if its token amount is zero.
	//
	// Accounts expected by this instruction:
	//
	//   * Single owner
	//   0. `[writable]` The account to close.
	//   1. `[writable]` The destination account.
	//   2. `[signer]` The account's owner.
	//
	//   * Multisignature owner
	//   0. `[writable]` The account to close.
	//   1. `[writable]` The destination account.
	//   2. `[]` The account's multisignature owner.
	//   3. ..3+M `[signer]` M signer accounts.
	return solana.NewInstruction(
		ProgramKey,
		[]byte{byte(CommandCloseAccount)},
		solana.NewAccountMeta(account, false),
		solana.NewAccountMeta(dest, false),
		solana.NewReadonlyAccountMeta(owner, true),
	)
}

type DecompiledCloseAccount struct {
	Account     ed25519.PublicKey
	Destination ed25519.PublicKey
	Owner       ed25519.PublicKey
}

func DecompileCloseAccount(m solana.Message, index int) (*DecompiledCloseAccount, error) {
	if index >= len(m.Instructions) {
		return nil, errors.Errorf("instruction doesn't exist at %d", index)
	}

	i := m.Instructions[index]

	if !bytes.Equal(m.Accounts[i.ProgramIndex], ProgramKey) {
		return nil, solana.ErrIncorrectProgram
	}
	if !bytes.Equal(i.Data, []byte{byte(CommandCloseAccount)}) {
		return nil, solana.ErrIncorrectInstruction
	}
	// note: we do < 3 instead of != 3 in order to support multisig cases.
	if len(i.Accounts) < 3 {
		return nil, errors.Errorf("invalid number of accounts: %d", len(i.Accounts))
	}

	v := &DecompiledCloseAccount{
		Account:     m.Accounts[i.Accounts[0]],
		Destination: m.Accounts[i.Accounts[1]],
		Owner:       m.Accounts[i.Accounts[2]],
	}
	return v, nil
}

// SyncNative updates a wrapped native account's token amount to reflect
// lamports deposited directly to it.
func SyncNative(account ed25519.PublicKey) solana.Instruction {
	// Accounts expected by this instruction:
	//
	//   0. `[writable]` The native account to sync.
	return solana.NewInstruction(
		ProgramKey,
		[]byte{byte(CommandSyncNative)},
		solana.NewAccountMeta(account, false),
	)
}

// InitializeImmutableOwner locks an account's owner before initialization.
// Must come before InitializeAccount in the same transaction.
func InitializeImmutableOwner(account ed25519.PublicKey) solana.Instruction {
	// Accounts expected by this instruction:
	//
	//   0. `[writable]` The account to initialize.
	return solana.NewInstruction(
		ProgramKey,
		[]byte{byte(CommandInitializeImmutableOwner)},
		solana.NewAccountMeta(account, false),
	)
}

// InitializeMintCloseAuthority must come before InitializeMint in the
// same transaction.
func InitializeMintCloseAuthority(mint, closeAuthority ed25519.PublicKey) solana.Instruction {
	// Accounts expected by this instruction:
	//
	//   0. `[writable]` The mint to initialize.
	data := []byte{byte(CommandInitializeMintCloseAuthority), 0}
	if len(closeAuthority) > 0 {
		data[1] = 1
		data = append(data, closeAuthority...)
	}

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(mint, false),
	)
}

// InitializeNonTransferableMint must come before InitializeMint in the
// same transaction.
func InitializeNonTransferableMint(mint ed25519.PublicKey) solana.Instruction {
	return solana.NewInstruction(
		ProgramKey,
		[]byte{byte(CommandInitializeNonTransferableMint)},
		solana.NewAccountMeta(mint, false),
	)
}

// InitializePermanentDelegate must come before InitializeMint in the
// same transaction.
func InitializePermanentDelegate(mint, delegate ed25519.PublicKey) solana.Instruction {
	data := make([]byte, 1+ed25519.PublicKeySize)
	data[0] = byte(CommandInitializePermanentDelegate)
	copy(data[1:], delegate)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(mint, false),
	)
}
