// Package zkproof provides instruction builders for the native ZK token
// proof program, which verifies zero-knowledge proofs either inline or
// into reusable context state accounts.
package zkproof

import (
	"crypto/ed25519"

	"github.com/code-payments/token-client/pkg/solana"
)

// ProgramKey is the address of the ZK token proof program.
//
// Current key: ZkTokenProof1111111111111111111111111111111
var ProgramKey = ed25519.PublicKey{8, 99, 186, 141, 217, 196, 194, 251, 23, 74, 5, 203, 162, 126, 42, 44, 214, 35, 87, 61, 121, 233, 11, 53, 181, 121, 252, 13, 0, 0, 0, 0}

type Command byte

const (
	CommandCloseContextState Command = iota
	CommandVerifyZeroBalance
	CommandVerifyWithdraw
	CommandVerifyCiphertextCiphertextEquality
	CommandVerifyTransfer
	CommandVerifyTransferWithFee
	CommandVerifyPubkeyValidity
	CommandVerifyRangeProofU64
	CommandVerifyBatchedRangeProofU64
	CommandVerifyBatchedRangeProofU128
	CommandVerifyBatchedRangeProofU256
	CommandVerifyCiphertextCommitmentEquality
	CommandVerifyGroupedCiphertext2HandlesValidity
	CommandVerifyBatchedGroupedCiphertext2HandlesValidity
	CommandVerifyFeeSigma
)

// Context state account sizes by verify command. A context state
// account holds the 32 byte context state authority, a proof type byte,
// then the proof's public context.
var contextStateSizes = map[Command]uint64{
	CommandVerifyZeroBalance:                              129,
	CommandVerifyWithdraw:                                 129,
	CommandVerifyPubkeyValidity:                           65,
	CommandVerifyCiphertextCommitmentEquality:             161,
	CommandVerifyBatchedGroupedCiphertext2HandlesValidity: 289,
	CommandVerifyBatchedRangeProofU64:                     297,
	CommandVerifyBatchedRangeProofU128:                    297,
	CommandVerifyBatchedRangeProofU256:                    297,
	CommandVerifyFeeSigma:                                 137,
}

// GetContextStateSize returns the account size required to hold the
// verified context of the given proof.
func GetContextStateSize(cmd Command) (uint64, bool) {
	size, ok := contextStateSizes[cmd]
	return size, ok
}

// VerifyProof verifies the given proof and writes its context into
// contextState, recording contextStateAuthority as the only key allowed
// to close it. The context state account must already exist with the
// right size and this program as owner.
func VerifyProof(cmd Command, proof []byte, contextState, contextStateAuthority ed25519.PublicKey) solana.Instruction {
	data := make([]byte, 1+len(proof))
	data[0] = byte(cmd)
	copy(data[1:], proof)

	return solana.NewInstruction(
		ProgramKey,
		data,
		solana.NewAccountMeta(contextState, false),
		solana.NewReadonlyAccountMeta(contextStateAuthority, false),
	)
}

// CloseContextState reclaims a context state account's lamports to dest.
func CloseContextState(contextState, dest, authority ed25519.PublicKey) solana.Instruction {
	return solana.NewInstruction(
		ProgramKey,
		[]byte{byte(CommandCloseContextState)},
		solana.NewAccountMeta(contextState, false),
		solana.NewAccountMeta(dest, false),
		solana.NewReadonlyAccountMeta(authority, true),
	)
}
