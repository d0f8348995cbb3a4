package token

import (
	"crypto/ed25519"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/code-payments/token-client/pkg/solana"
)

// Extension is the type tag of a TLV entry trailing the base mint or
// account state.
type Extension uint16

const (
	ExtensionUninitialized Extension = iota
	ExtensionTransferFeeConfig
	ExtensionTransferFeeAmount
	ExtensionMintCloseAuthority
	ExtensionConfidentialTransferMint
	ExtensionConfidentialTransferAccount
	ExtensionDefaultAccountState
	ExtensionImmutableOwner
	ExtensionMemoTransfer
	ExtensionNonTransferable
	ExtensionInterestBearingConfig
	ExtensionCpiGuard
	ExtensionPermanentDelegate
	ExtensionNonTransferableAccount
	ExtensionTransferHook
	ExtensionTransferHookAccount
	ExtensionConfidentialTransferFeeConfig
	ExtensionConfidentialTransferFeeAmount
	ExtensionMetadataPointer
	ExtensionTokenMetadata
	ExtensionGroupPointer
	ExtensionTokenGroup
	ExtensionGroupMemberPointer
	ExtensionTokenGroupMember
)

type AccountType byte

const (
	AccountTypeUninitialized AccountType = iota
	AccountTypeMint
	AccountTypeAccount
)

// Reference: https://github.com/solana-labs/solana-program-library/blob/master/token/program-2022/src/state.rs
const MintSize = 82

// accountTypeOffset is where the account type discriminator lives when
// any extension is present. Mints are padded out to the account size so
// the two state types can't be confused by length.
const accountTypeOffset = AccountSize

const tlvHeaderSize = 4

// extensionSizes holds the fixed value length for each extension type.
// Variable-length extensions (token metadata, groups) are not listed and
// can only appear via raw TLV reads.
var extensionSizes = map[Extension]int{
	ExtensionTransferFeeConfig:             108,
	ExtensionTransferFeeAmount:             8,
	ExtensionMintCloseAuthority:            32,
	ExtensionConfidentialTransferMint:      65,
	ExtensionConfidentialTransferAccount:   295,
	ExtensionDefaultAccountState:           1,
	ExtensionImmutableOwner:                0,
	ExtensionMemoTransfer:                  1,
	ExtensionNonTransferable:               0,
	ExtensionInterestBearingConfig:         52,
	ExtensionCpiGuard:                      1,
	ExtensionPermanentDelegate:             32,
	ExtensionNonTransferableAccount:        0,
	ExtensionTransferHook:                  64,
	ExtensionTransferHookAccount:           1,
	ExtensionConfidentialTransferFeeConfig: 129,
	ExtensionConfidentialTransferFeeAmount: 64,
	ExtensionMetadataPointer:               64,
	ExtensionGroupPointer:                  64,
	ExtensionGroupMemberPointer:            64,
}

// CalculateMintLen returns the account size required to hold a mint with
// the provided extensions.
func CalculateMintLen(extensions []Extension) (int, error) {
	if len(extensions) == 0 {
		return MintSize, nil
	}
	return calculateLen(extensions)
}

// CalculateAccountLen returns the account size required to hold a token
// account with the provided extensions.
func CalculateAccountLen(extensions []Extension) (int, error) {
	if len(extensions) == 0 {
		return AccountSize, nil
	}
	return calculateLen(extensions)
}

func calculateLen(extensions []Extension) (int, error) {
	size := accountTypeOffset + 1
	for _, ext := range extensions {
		valueLen, ok := extensionSizes[ext]
		if !ok {
			return 0, errors.Errorf("extension %d has no fixed size", ext)
		}
		size += tlvHeaderSize + valueLen
	}
	return size, nil
}

// RequiredAccountExtensions maps the extensions present on a mint to the
// extensions every account of that mint must be allocated with.
func RequiredAccountExtensions(mintExtensions []Extension) []Extension {
	var required []Extension
	for _, ext := range mintExtensions {
		switch ext {
		case ExtensionTransferFeeConfig:
			required = append(required, ExtensionTransferFeeAmount)
		case ExtensionConfidentialTransferMint:
			required = append(required, ExtensionConfidentialTransferAccount)
		case ExtensionConfidentialTransferFeeConfig:
			required = append(required, ExtensionConfidentialTransferFeeAmount)
		case ExtensionNonTransferable:
			required = append(required, ExtensionNonTransferableAccount)
		case ExtensionTransferHook:
			required = append(required, ExtensionTransferHookAccount)
		}
	}
	return required
}

// GetExtension returns the raw TLV value for the extension, if present
// in the account data.
func GetExtension(data []byte, extension Extension) ([]byte, bool) {
	if len(data) <= accountTypeOffset {
		return nil, false
	}

	tlv := data[accountTypeOffset+1:]
	for len(tlv) >= tlvHeaderSize {
		entryType := Extension(binary.LittleEndian.Uint16(tlv))
		entryLen := int(binary.LittleEndian.Uint16(tlv[2:]))

		if entryType == ExtensionUninitialized {
			return nil, false
		}
		if len(tlv) < tlvHeaderSize+entryLen {
			return nil, false
		}

		if entryType == extension {
			return tlv[tlvHeaderSize : tlvHeaderSize+entryLen], true
		}

		tlv = tlv[tlvHeaderSize+entryLen:]
	}

	return nil, false
}

// GetExtensionTypes lists the extension type tags present in the account data.
func GetExtensionTypes(data []byte) []Extension {
	if len(data) <= accountTypeOffset {
		return nil
	}

	var types []Extension
	tlv := data[accountTypeOffset+1:]
	for len(tlv) >= tlvHeaderSize {
		entryType := Extension(binary.LittleEndian.Uint16(tlv))
		entryLen := int(binary.LittleEndian.Uint16(tlv[2:]))

		if entryType == ExtensionUninitialized {
			break
		}
		if len(tlv) < tlvHeaderSize+entryLen {
			break
		}

		types = append(types, entryType)
		tlv = tlv[tlvHeaderSize+entryLen:]
	}
	return types
}

type DefaultAccountStateCommand byte

const (
	CommandInitializeDefaultAccountState DefaultAccountStateCommand = iota
	CommandUpdateDefaultAccountState
)

// InitializeDefaultAccountState must come before InitializeMint in the
// same transaction.
func InitializeDefaultAccountState(mint ed25519.PublicKey, state AccountState) solana.Instruction {
	return solana.NewInstruction(
		ProgramKey,
		[]byte{byte(CommandDefaultAccountStateExtension), byte(CommandInitializeDefaultAccountState), byte(state)},
		solana.NewAccountMeta(mint, false),
	)
}

func UpdateDefaultAccountState(mint, freezeAuthority ed25519.PublicKey, state AccountState) solana.Instruction {
	return solana.NewInstruction(
		ProgramKey,
		[]byte{byte(CommandDefaultAccountStateExtension), byte(CommandUpdateDefaultAccountState), byte(state)},
		solana.NewAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(freezeAuthority, true),
	)
}

type MemoTransferCommand byte

const (
	CommandEnableRequiredMemoTransfers MemoTransferCommand = iota
	CommandDisableRequiredMemoTransfers
)

func EnableRequiredMemoTransfers(account, owner ed25519.PublicKey) solana.Instruction {
	return solana.NewInstruction(
		ProgramKey,
		[]byte{byte(CommandMemoTransferExtension), byte(CommandEnableRequiredMemoTransfers)},
		solana.NewAccountMeta(account, false),
		solana.NewReadonlyAccountMeta(owner, true),
	)
}

func DisableRequiredMemoTransfers(account, owner ed25519.PublicKey) solana.Instruction {
	return solana.NewInstruction(
		ProgramKey,
		[]byte{byte(CommandMemoTransferExtension), byte(CommandDisableRequiredMemoTransfers)},
		solana.NewAccountMeta(account, false),
		solana.NewReadonlyAccountMeta(owner, true),
	)
}

type InterestBearingCommand byte

const (
	CommandInitializeInterestBearingMint InterestBearingCommand = iota
	CommandUpdateInterestRate
)

// InitializeInterestBearingMint must come before InitializeMint in the
// same transaction. Rate is in basis points.
func InitializeInterestBearingMint(mint, rateAuthority ed25519.PublicKey, rate int16) solana.Instruction {
	data := make([]byte, 2+ed25519.PublicKeySize+2)
	data[0] = byte(CommandInterestBearingMintExtension)
	data[1] = byte(CommandInitializeInterestBearingMint)
	copy(data[2:], rateAuthority)
	binary.LittleEndian.PutUint16(data[2+ed25519.PublicKeySize:], uint16(rate))

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(mint, false),
	)
}

func UpdateInterestRate(mint, rateAuthority ed25519.PublicKey, rate int16) solana.Instruction {
	data := make([]byte, 4)
	data[0] = byte(CommandInterestBearingMintExtension)
	data[1] = byte(CommandUpdateInterestRate)
	binary.LittleEndian.PutUint16(data[2:], uint16(rate))

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(rateAuthority, true),
	)
}

type TransferHookCommand byte

const (
	CommandInitializeTransferHook TransferHookCommand = iota
	CommandUpdateTransferHook
)

// InitializeTransferHook must come before InitializeMint in the same
// transaction.
func InitializeTransferHook(mint, authority, hookProgram ed25519.PublicKey) solana.Instruction {
	data := make([]byte, 2+2*ed25519.PublicKeySize)
	data[0] = byte(CommandTransferHookExtension)
	data[1] = byte(CommandInitializeTransferHook)
	copy(data[2:], authority)
	copy(data[2+ed25519.PublicKeySize:], hookProgram)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(mint, false),
	)
}

func UpdateTransferHook(mint, authority, hookProgram ed25519.PublicKey) solana.Instruction {
	data := make([]byte, 2+ed25519.PublicKeySize)
	data[0] = byte(CommandTransferHookExtension)
	data[1] = byte(CommandUpdateTransferHook)
	copy(data[2:], hookProgram)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(mint, false),
		solana.NewReadonlyAccountMeta(authority, true),
	)
}

// InitializeMetadataPointer must come before InitializeMint in the same
// transaction.
func InitializeMetadataPointer(mint, authority, metadataAddress ed25519.PublicKey) solana.Instruction {
	return initializePointer(CommandMetadataPointerExtension, mint, authority, metadataAddress)
}

// InitializeGroupPointer must come before InitializeMint in the same
// transaction.
func InitializeGroupPointer(mint, authority, groupAddress ed25519.PublicKey) solana.Instruction {
	return initializePointer(CommandGroupPointerExtension, mint, authority, groupAddress)
}

// InitializeGroupMemberPointer must come before InitializeMint in the
// same transaction.
func InitializeGroupMemberPointer(mint, authority, memberAddress ed25519.PublicKey) solana.Instruction {
	return initializePointer(CommandGroupMemberPointerExtension, mint, authority, memberAddress)
}

// The pointer extensions all share an initialize layout: optional
// authority followed by an optional pointee address.
func initializePointer(cmd Command, mint, authority, pointee ed25519.PublicKey) solana.Instruction {
	data := make([]byte, 2+2*ed25519.PublicKeySize)
	data[0] = byte(cmd)
	data[1] = 0
	copy(data[2:], authority)
	copy(data[2+ed25519.PublicKeySize:], pointee)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(mint, false),
	)
}
