package token

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/token-client/pkg/solana"
)

func TestConfidentialTransferMint_Unmarshal(t *testing.T) {
	keys := generateKeys(t, 1)

	b := make([]byte, 65)
	copy(b[0:32], keys[0])
	b[32] = 1
	auditor := bytes.Repeat([]byte{7}, ElGamalPubkeySize)
	copy(b[33:65], auditor)

	var state ConfidentialTransferMint
	require.True(t, state.Unmarshal(b))
	assert.EqualValues(t, keys[0], state.Authority)
	assert.True(t, state.AutoApproveNewAccounts)
	assert.Equal(t, auditor, state.AuditorElGamalPubkey)

	assert.False(t, state.Unmarshal(b[:64]))
}

func TestConfidentialTransferAccount_Unmarshal(t *testing.T) {
	keys := generateKeys(t, 1)

	b := make([]byte, 295)
	b[0] = 1
	copy(b[1:33], keys[0])
	available := bytes.Repeat([]byte{3}, ElGamalCiphertextSize)
	copy(b[161:225], available)
	decryptable := bytes.Repeat([]byte{4}, DecryptableBalanceSize)
	copy(b[225:261], decryptable)
	b[261] = 1
	binary.LittleEndian.PutUint64(b[263:], 5)
	binary.LittleEndian.PutUint64(b[271:], 65536)
	binary.LittleEndian.PutUint64(b[279:], 4)
	binary.LittleEndian.PutUint64(b[287:], 5)

	var state ConfidentialTransferAccount
	require.True(t, state.Unmarshal(b))
	assert.True(t, state.Approved)
	assert.EqualValues(t, keys[0], state.ElGamalPubkey)
	assert.Equal(t, available, state.AvailableBalance)
	assert.Equal(t, decryptable, state.DecryptableAvailableBalance)
	assert.True(t, state.AllowConfidentialCredits)
	assert.False(t, state.AllowNonConfidentialCredits)
	assert.EqualValues(t, 5, state.PendingBalanceCreditCounter)
	assert.EqualValues(t, 65536, state.MaximumPendingBalanceCreditCounter)
	assert.EqualValues(t, 4, state.ExpectedPendingBalanceCreditCounter)
	assert.EqualValues(t, 5, state.ActualPendingBalanceCreditCounter)
}

func TestGetConfidentialTransferAccount(t *testing.T) {
	data := buildTLV(AccountTypeAccount, tlvEntry(ExtensionConfidentialTransferAccount, make([]byte, 295)))

	state, err := GetConfidentialTransferAccount(data)
	require.NoError(t, err)
	assert.False(t, state.Approved)

	_, err = GetConfidentialTransferAccount(make([]byte, AccountSize))
	assert.Error(t, err)
}

func TestConfidentialInitializeMint(t *testing.T) {
	keys := generateKeys(t, 2)
	auditor := bytes.Repeat([]byte{9}, ElGamalPubkeySize)

	instruction := ConfidentialInitializeMint(keys[0], keys[1], true, auditor)

	assert.EqualValues(t, CommandConfidentialTransferExtension, instruction.Data[0])
	assert.EqualValues(t, CommandConfidentialInitializeMint, instruction.Data[1])
	assert.EqualValues(t, keys[1], instruction.Data[2:34])
	assert.EqualValues(t, 1, instruction.Data[34])
	assert.EqualValues(t, auditor, instruction.Data[35:67])

	require.Len(t, instruction.Accounts, 1)
	assert.EqualValues(t, keys[0], instruction.Accounts[0].PublicKey)
}

func TestConfidentialUpdateMint(t *testing.T) {
	keys := generateKeys(t, 2)

	instruction := ConfidentialUpdateMint(keys[0], keys[1], false, nil)

	assert.EqualValues(t, CommandConfidentialUpdateMint, instruction.Data[1])
	assert.EqualValues(t, 0, instruction.Data[2])
	assert.Len(t, instruction.Data, 2+1+ElGamalPubkeySize)

	require.Len(t, instruction.Accounts, 2)
	assert.True(t, instruction.Accounts[1].IsSigner)
}

func TestConfidentialConfigureAccount(t *testing.T) {
	keys := generateKeys(t, 4)
	zeroBalance := bytes.Repeat([]byte{2}, DecryptableBalanceSize)

	instruction := ConfidentialConfigureAccount(keys[0], keys[1], keys[2], keys[3], zeroBalance, 65536)

	assert.EqualValues(t, CommandConfidentialConfigureAccount, instruction.Data[1])
	assert.EqualValues(t, zeroBalance, instruction.Data[2:2+DecryptableBalanceSize])
	assert.EqualValues(t, 65536, binary.LittleEndian.Uint64(instruction.Data[2+DecryptableBalanceSize:]))
	assert.EqualValues(t, contextStateProofOffset, instruction.Data[2+DecryptableBalanceSize+8])

	require.Len(t, instruction.Accounts, 4)
	assert.True(t, instruction.Accounts[0].IsWritable)
	assert.EqualValues(t, keys[2], instruction.Accounts[2].PublicKey)
	assert.True(t, instruction.Accounts[3].IsSigner)
}

func TestConfidentialWithdraw(t *testing.T) {
	keys := generateKeys(t, 4)
	newBalance := bytes.Repeat([]byte{6}, DecryptableBalanceSize)

	instruction := ConfidentialWithdraw(keys[0], keys[1], keys[2], keys[3], 123456789, 5, newBalance)

	assert.EqualValues(t, CommandConfidentialWithdraw, instruction.Data[1])
	assert.EqualValues(t, 123456789, binary.LittleEndian.Uint64(instruction.Data[2:]))
	assert.EqualValues(t, 5, instruction.Data[10])
	assert.EqualValues(t, newBalance, instruction.Data[11:11+DecryptableBalanceSize])

	require.Len(t, instruction.Accounts, 4)
	assert.True(t, instruction.Accounts[3].IsSigner)
}

func TestConfidentialWithdraw_Multisig(t *testing.T) {
	keys := generateKeys(t, 6)
	newBalance := make([]byte, DecryptableBalanceSize)

	instruction := ConfidentialWithdraw(keys[0], keys[1], keys[2], keys[3], 1, 0, newBalance, keys[4], keys[5])

	require.Len(t, instruction.Accounts, 6)
	assert.False(t, instruction.Accounts[3].IsSigner)
	assert.True(t, instruction.Accounts[4].IsSigner)
	assert.True(t, instruction.Accounts[5].IsSigner)
}

func TestConfidentialApplyPendingBalance(t *testing.T) {
	keys := generateKeys(t, 2)
	newBalance := bytes.Repeat([]byte{8}, DecryptableBalanceSize)

	instruction := ConfidentialApplyPendingBalance(keys[0], keys[1], 7, newBalance)

	assert.EqualValues(t, CommandConfidentialApplyPendingBalance, instruction.Data[1])
	assert.EqualValues(t, 7, binary.LittleEndian.Uint64(instruction.Data[2:]))
	assert.EqualValues(t, newBalance, instruction.Data[10:10+DecryptableBalanceSize])

	require.Len(t, instruction.Accounts, 2)
	assert.True(t, instruction.Accounts[1].IsSigner)
}

func TestConfidentialTransferWithSplitProofsInstruction(t *testing.T) {
	keys := generateKeys(t, 8)
	newBalance := bytes.Repeat([]byte{1}, DecryptableBalanceSize)

	contexts := SplitProofContexts{
		EqualityProof:           keys[3],
		CiphertextValidityProof: keys[4],
		RangeProof:              keys[5],
	}

	instruction := ConfidentialTransferWithSplitProofs(
		keys[0], keys[1], keys[2], contexts, keys[6], newBalance,
		false, false, nil, nil, nil,
	)

	assert.EqualValues(t, CommandConfidentialTransferWithSplitProofs, instruction.Data[1])
	assert.EqualValues(t, newBalance, instruction.Data[2:2+DecryptableBalanceSize])
	assert.EqualValues(t, 0, instruction.Data[2+DecryptableBalanceSize])
	assert.EqualValues(t, 0, instruction.Data[3+DecryptableBalanceSize])

	// source, mint, dest, three contexts, authority.
	require.Len(t, instruction.Accounts, 7)
	assert.EqualValues(t, keys[6], instruction.Accounts[6].PublicKey)
	assert.True(t, instruction.Accounts[6].IsSigner)

	// Close on execution adds the lamport destination, context authority,
	// and proof program ahead of the transfer authority.
	instruction = ConfidentialTransferWithSplitProofs(
		keys[0], keys[1], keys[2], contexts, keys[6], newBalance,
		true, true, keys[7], keys[6], ed25519.PublicKey(make([]byte, 32)),
	)

	assert.EqualValues(t, 1, instruction.Data[2+DecryptableBalanceSize])
	assert.EqualValues(t, 1, instruction.Data[3+DecryptableBalanceSize])

	require.Len(t, instruction.Accounts, 10)
	assert.EqualValues(t, keys[7], instruction.Accounts[6].PublicKey)
	assert.True(t, instruction.Accounts[6].IsWritable)
	assert.EqualValues(t, keys[6], instruction.Accounts[7].PublicKey)
	assert.True(t, instruction.Accounts[7].IsSigner)
	assert.True(t, instruction.Accounts[9].IsSigner)
}

func TestConfidentialToggles(t *testing.T) {
	keys := generateKeys(t, 2)

	for cmd, build := range map[ConfidentialTransferCommand]func(account, authority ed25519.PublicKey, signers ...ed25519.PublicKey) solana.Instruction{
		CommandConfidentialEnableConfidentialCredits:     ConfidentialEnableConfidentialCredits,
		CommandConfidentialDisableConfidentialCredits:    ConfidentialDisableConfidentialCredits,
		CommandConfidentialEnableNonConfidentialCredits:  ConfidentialEnableNonConfidentialCredits,
		CommandConfidentialDisableNonConfidentialCredits: ConfidentialDisableNonConfidentialCredits,
	} {
		instruction := build(keys[0], keys[1])
		assert.Equal(t, []byte{byte(CommandConfidentialTransferExtension), byte(cmd)}, instruction.Data)
		require.Len(t, instruction.Accounts, 2)
		assert.True(t, instruction.Accounts[1].IsSigner)
	}
}
