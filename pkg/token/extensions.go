package token

import (
	"crypto/ed25519"

	"github.com/code-payments/token-client/pkg/solana"
	tokenprogram "github.com/code-payments/token-client/pkg/solana/token"
)

// ExtensionInitializationParams is one mint extension to configure at
// creation time. Each variant converts to exactly one initialization
// instruction, emitted after the mint account is created and before the
// base mint initialization.
type ExtensionInitializationParams interface {
	ExtensionType() tokenprogram.Extension
	Instruction(mint ed25519.PublicKey) solana.Instruction
}

type ConfidentialTransferMintParams struct {
	Authority              ed25519.PublicKey
	AutoApproveNewAccounts bool
	AuditorElGamalPubkey   []byte
}

func (p ConfidentialTransferMintParams) ExtensionType() tokenprogram.Extension {
	return tokenprogram.ExtensionConfidentialTransferMint
}

func (p ConfidentialTransferMintParams) Instruction(mint ed25519.PublicKey) solana.Instruction {
	return tokenprogram.ConfidentialInitializeMint(mint, p.Authority, p.AutoApproveNewAccounts, p.AuditorElGamalPubkey)
}

type DefaultAccountStateParams struct {
	State tokenprogram.AccountState
}

func (p DefaultAccountStateParams) ExtensionType() tokenprogram.Extension {
	return tokenprogram.ExtensionDefaultAccountState
}

func (p DefaultAccountStateParams) Instruction(mint ed25519.PublicKey) solana.Instruction {
	return tokenprogram.InitializeDefaultAccountState(mint, p.State)
}

type MintCloseAuthorityParams struct {
	CloseAuthority ed25519.PublicKey
}

func (p MintCloseAuthorityParams) ExtensionType() tokenprogram.Extension {
	return tokenprogram.ExtensionMintCloseAuthority
}

func (p MintCloseAuthorityParams) Instruction(mint ed25519.PublicKey) solana.Instruction {
	return tokenprogram.InitializeMintCloseAuthority(mint, p.CloseAuthority)
}

type TransferFeeConfigParams struct {
	ConfigAuthority           ed25519.PublicKey
	WithdrawWithheldAuthority ed25519.PublicKey
	TransferFeeBasisPoints    uint16
	MaximumFee                uint64
}

func (p TransferFeeConfigParams) ExtensionType() tokenprogram.Extension {
	return tokenprogram.ExtensionTransferFeeConfig
}

func (p TransferFeeConfigParams) Instruction(mint ed25519.PublicKey) solana.Instruction {
	return tokenprogram.InitializeTransferFeeConfig(mint, p.ConfigAuthority, p.WithdrawWithheldAuthority, p.TransferFeeBasisPoints, p.MaximumFee)
}

type InterestBearingConfigParams struct {
	RateAuthority ed25519.PublicKey
	Rate          int16
}

func (p InterestBearingConfigParams) ExtensionType() tokenprogram.Extension {
	return tokenprogram.ExtensionInterestBearingConfig
}

func (p InterestBearingConfigParams) Instruction(mint ed25519.PublicKey) solana.Instruction {
	return tokenprogram.InitializeInterestBearingMint(mint, p.RateAuthority, p.Rate)
}

type NonTransferableParams struct{}

func (p NonTransferableParams) ExtensionType() tokenprogram.Extension {
	return tokenprogram.ExtensionNonTransferable
}

func (p NonTransferableParams) Instruction(mint ed25519.PublicKey) solana.Instruction {
	return tokenprogram.InitializeNonTransferableMint(mint)
}

type PermanentDelegateParams struct {
	Delegate ed25519.PublicKey
}

func (p PermanentDelegateParams) ExtensionType() tokenprogram.Extension {
	return tokenprogram.ExtensionPermanentDelegate
}

func (p PermanentDelegateParams) Instruction(mint ed25519.PublicKey) solana.Instruction {
	return tokenprogram.InitializePermanentDelegate(mint, p.Delegate)
}

type TransferHookParams struct {
	Authority   ed25519.PublicKey
	HookProgram ed25519.PublicKey
}

func (p TransferHookParams) ExtensionType() tokenprogram.Extension {
	return tokenprogram.ExtensionTransferHook
}

func (p TransferHookParams) Instruction(mint ed25519.PublicKey) solana.Instruction {
	return tokenprogram.InitializeTransferHook(mint, p.Authority, p.HookProgram)
}

type MetadataPointerParams struct {
	Authority       ed25519.PublicKey
	MetadataAddress ed25519.PublicKey
}

func (p MetadataPointerParams) ExtensionType() tokenprogram.Extension {
	return tokenprogram.ExtensionMetadataPointer
}

func (p MetadataPointerParams) Instruction(mint ed25519.PublicKey) solana.Instruction {
	return tokenprogram.InitializeMetadataPointer(mint, p.Authority, p.MetadataAddress)
}

type ConfidentialTransferFeeConfigParams struct {
	Authority                              ed25519.PublicKey
	WithdrawWithheldAuthorityElGamalPubkey []byte
}

func (p ConfidentialTransferFeeConfigParams) ExtensionType() tokenprogram.Extension {
	return tokenprogram.ExtensionConfidentialTransferFeeConfig
}

func (p ConfidentialTransferFeeConfigParams) Instruction(mint ed25519.PublicKey) solana.Instruction {
	return tokenprogram.InitializeConfidentialTransferFeeConfig(mint, p.Authority, p.WithdrawWithheldAuthorityElGamalPubkey)
}

type GroupPointerParams struct {
	Authority    ed25519.PublicKey
	GroupAddress ed25519.PublicKey
}

func (p GroupPointerParams) ExtensionType() tokenprogram.Extension {
	return tokenprogram.ExtensionGroupPointer
}

func (p GroupPointerParams) Instruction(mint ed25519.PublicKey) solana.Instruction {
	return tokenprogram.InitializeGroupPointer(mint, p.Authority, p.GroupAddress)
}

type GroupMemberPointerParams struct {
	Authority     ed25519.PublicKey
	MemberAddress ed25519.PublicKey
}

func (p GroupMemberPointerParams) ExtensionType() tokenprogram.Extension {
	return tokenprogram.ExtensionGroupMemberPointer
}

func (p GroupMemberPointerParams) Instruction(mint ed25519.PublicKey) solana.Instruction {
	return tokenprogram.InitializeGroupMemberPointer(mint, p.Authority, p.MemberAddress)
}
