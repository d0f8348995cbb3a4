package token

import (
	"crypto/ed25519"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/token-client/pkg/confidential"
	"github.com/code-payments/token-client/pkg/solana"
	tokenprogram "github.com/code-payments/token-client/pkg/solana/token"
	"github.com/code-payments/token-client/pkg/solana/zkproof"
)

func setupSplitProofFixture(t *testing.T, withFee bool) (*fakeClient, *Token, ed25519.PrivateKey, ed25519.PublicKey, ed25519.PublicKey, confidential.AeKey) {
	client := newFakeClient()
	mint := public(generateKey(t))
	owner := generateKey(t)
	source := public(generateKey(t))
	dest := public(generateKey(t))

	extensions := map[tokenprogram.Extension][]byte{
		tokenprogram.ExtensionConfidentialTransferMint: make([]byte, 65),
	}
	if withFee {
		extensions[tokenprogram.ExtensionTransferFeeConfig] = make([]byte, 108)
		extensions[tokenprogram.ExtensionConfidentialTransferFeeConfig] = make([]byte, 129)
	}
	client.setAccount(mint, solana.AccountInfo{
		Data:  marshalMintData(0, extensions),
		Owner: tokenprogram.ProgramKey,
	})

	key, err := confidential.NewAeKey()
	require.NoError(t, err)
	setConfidentialAccount(t, client, source, mint, public(owner), key, 100)
	setConfidentialAccount(t, client, dest, mint, public(generateKey(t)), key, 0)

	tkn := New(client, mint, generateKey(t), WithDecimals(0))
	return client, tkn, owner, source, dest, key
}

// findTransferCopies extracts the split proof transfer instruction from
// each submitted transaction, verifying every transaction carries
// exactly one.
func findTransferCopies(t *testing.T, submitted []solana.Transaction, cmd tokenprogram.ConfidentialTransferCommand) []solana.CompiledInstruction {
	copies := make([]solana.CompiledInstruction, 0, len(submitted))
	for _, txn := range submitted {
		var found bool
		for _, ix := range txn.Message.Instructions {
			if len(ix.Data) >= 2 &&
				ix.Data[0] == byte(tokenprogram.CommandConfidentialTransferExtension) &&
				ix.Data[1] == byte(cmd) {
				require.False(t, found, "transaction carries more than one transfer")
				copies = append(copies, ix)
				found = true
			}
		}
		require.True(t, found, "transaction carries no transfer")
	}
	return copies
}

func TestToken_ConfidentialTransferWithSplitProofsParallel(t *testing.T) {
	client, tkn, owner, source, dest, key := setupSplitProofFixture(t, false)

	sigs, err := tkn.ConfidentialTransferWithSplitProofsParallel(source, dest, owner, 30, &fakeGenerator{}, key, nil)
	require.NoError(t, err)
	require.Len(t, sigs, 2)
	for _, sig := range sigs {
		assert.NotEqual(t, solana.Signature{}, sig)
	}

	submitted := client.submissions()
	require.Len(t, submitted, 2)

	// Submission order is not deterministic; identify the transactions
	// by shape.
	var equalityTx, rangeTx *solana.Transaction
	for i := range submitted {
		switch len(submitted[i].Message.Instructions) {
		case 5:
			equalityTx = &submitted[i]
		case 3:
			rangeTx = &submitted[i]
		}
	}
	require.NotNil(t, equalityTx)
	require.NotNil(t, rangeTx)

	assertProofContext(t, equalityTx.Message, 0, zkproof.CommandVerifyCiphertextCommitmentEquality, equalityProofBytes)
	assertProofContext(t, equalityTx.Message, 2, zkproof.CommandVerifyBatchedGroupedCiphertext2HandlesValidity, validityProofBytes)
	assertProofContext(t, rangeTx.Message, 0, zkproof.CommandVerifyBatchedRangeProofU128, rangeProofBytes)

	// Both transactions carry byte-identical copies of the transfer.
	copies := findTransferCopies(t, submitted, tokenprogram.CommandConfidentialTransferWithSplitProofs)
	require.Len(t, copies, 2)
	assert.Equal(t, copies[0].Data, copies[1].Data)

	// The embedded balance decrypts to the remainder, and both the
	// no-op and close-on-execution flags are set for the parallel path.
	data := copies[0].Data
	remaining, err := key.Decrypt(confidential.DecryptableBalance(data[2 : 2+tokenprogram.DecryptableBalanceSize]))
	require.NoError(t, err)
	assert.EqualValues(t, 70, remaining)
	assert.EqualValues(t, 1, data[2+tokenprogram.DecryptableBalanceSize])
	assert.EqualValues(t, 1, data[3+tokenprogram.DecryptableBalanceSize])
}

func TestToken_ConfidentialTransferWithSplitProofsParallel_InsufficientBalance(t *testing.T) {
	client, tkn, owner, source, dest, key := setupSplitProofFixture(t, false)

	_, err := tkn.ConfidentialTransferWithSplitProofsParallel(source, dest, owner, 101, &fakeGenerator{}, key, nil)
	assert.Equal(t, confidential.ErrInsufficientBalance, err)
	assert.Empty(t, client.submissions())
}

func TestToken_ConfidentialTransferWithSplitProofsParallel_SubmitFailure(t *testing.T) {
	client, tkn, owner, source, dest, key := setupSplitProofFixture(t, false)

	client.submitHook = func(solana.Transaction) error {
		return errors.New("injected submit failure")
	}

	_, err := tkn.ConfidentialTransferWithSplitProofsParallel(source, dest, owner, 30, &fakeGenerator{}, key, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "injected submit failure")
}

func TestToken_ConfidentialTransferWithSplitProofsParallel_ConfirmationRace(t *testing.T) {
	client, tkn, owner, source, dest, key := setupSplitProofFixture(t, false)

	// The range transaction loses the race: it confirms with an
	// on-chain error while the equality transaction lands cleanly.
	confirmations := 1
	client.statusHook = func(sig solana.Signature) (*solana.SignatureStatus, error) {
		for _, txn := range client.submissions() {
			if txn.Signatures[0] != sig {
				continue
			}
			if len(txn.Message.Instructions) == 3 {
				return &solana.SignatureStatus{
					ErrorResult: solana.NewTransactionError(solana.TransactionErrorAccountInUse),
				}, nil
			}
			return &solana.SignatureStatus{Confirmations: &confirmations}, nil
		}
		return nil, solana.ErrSignatureNotFound
	}

	sigs, err := tkn.ConfidentialTransferWithSplitProofsParallel(source, dest, owner, 30, &fakeGenerator{}, key, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transaction failed")

	// Both transactions were still submitted, and the surviving
	// signature is the equality transaction's.
	submitted := client.submissions()
	require.Len(t, submitted, 2)
	var equalityTx *solana.Transaction
	for i := range submitted {
		if len(submitted[i].Message.Instructions) == 5 {
			equalityTx = &submitted[i]
		}
	}
	require.NotNil(t, equalityTx)
	require.Len(t, sigs, 2)
	assert.Equal(t, equalityTx.Signatures[0], sigs[0])

	// Whichever transaction confirms carries the complete transfer with
	// the no-op and close-on-execution flags, so the failed sibling
	// rolls back without stranding rent or splitting the transfer.
	copies := findTransferCopies(t, submitted, tokenprogram.CommandConfidentialTransferWithSplitProofs)
	require.Len(t, copies, 2)
	assert.Equal(t, copies[0].Data, copies[1].Data)
	data := copies[0].Data
	assert.EqualValues(t, 1, data[2+tokenprogram.DecryptableBalanceSize])
	assert.EqualValues(t, 1, data[3+tokenprogram.DecryptableBalanceSize])
}

func TestToken_ConfidentialTransferWithFeeAndSplitProofsParallel(t *testing.T) {
	client, tkn, owner, source, dest, key := setupSplitProofFixture(t, true)

	sigs, err := tkn.ConfidentialTransferWithFeeAndSplitProofsParallel(source, dest, owner, 30, &fakeGenerator{}, key, nil)
	require.NoError(t, err)
	require.Len(t, sigs, 3)

	submitted := client.submissions()
	require.Len(t, submitted, 3)

	var equalityTx, feeTx, rangeTx *solana.Transaction
	for i := range submitted {
		m := submitted[i].Message
		switch {
		case len(m.Instructions) == 3:
			rangeTx = &submitted[i]
		case m.Instructions[1].Data[0] == byte(zkproof.CommandVerifyCiphertextCommitmentEquality):
			equalityTx = &submitted[i]
		case m.Instructions[1].Data[0] == byte(zkproof.CommandVerifyFeeSigma):
			feeTx = &submitted[i]
		}
	}
	require.NotNil(t, equalityTx)
	require.NotNil(t, feeTx)
	require.NotNil(t, rangeTx)

	assertProofContext(t, equalityTx.Message, 0, zkproof.CommandVerifyCiphertextCommitmentEquality, equalityProofBytes)
	assertProofContext(t, equalityTx.Message, 2, zkproof.CommandVerifyBatchedGroupedCiphertext2HandlesValidity, validityProofBytes)
	assertProofContext(t, feeTx.Message, 0, zkproof.CommandVerifyFeeSigma, feeSigmaProofBytes)
	assertProofContext(t, feeTx.Message, 2, zkproof.CommandVerifyBatchedGroupedCiphertext2HandlesValidity, feeValidityProofBytes)
	assertProofContext(t, rangeTx.Message, 0, zkproof.CommandVerifyBatchedRangeProofU256, rangeProofBytes)

	copies := findTransferCopies(t, submitted, tokenprogram.CommandConfidentialTransferWithFeeAndSplitProofs)
	require.Len(t, copies, 3)
	assert.Equal(t, copies[0].Data, copies[1].Data)
	assert.Equal(t, copies[1].Data, copies[2].Data)
}

func TestToken_ConfidentialTransferWithSplitProofs_PreCreated(t *testing.T) {
	client, tkn, owner, source, dest, key := setupSplitProofFixture(t, false)

	contexts := tokenprogram.SplitProofContexts{
		EqualityProof:           public(generateKey(t)),
		CiphertextValidityProof: public(generateKey(t)),
		RangeProof:              public(generateKey(t)),
	}

	newBalance, err := key.Encrypt(70)
	require.NoError(t, err)

	_, err = tkn.ConfidentialTransferWithSplitProofs(source, dest, owner, contexts, newBalance)
	require.NoError(t, err)

	m := client.submissions()[0].Message
	require.Len(t, m.Instructions, 1)

	data := m.Instructions[0].Data
	assert.EqualValues(t, byte(tokenprogram.CommandConfidentialTransferWithSplitProofs), data[1])

	// Pre-created contexts: no no-op fallback, no close-on-execution,
	// and no close account group.
	assert.EqualValues(t, 0, data[2+tokenprogram.DecryptableBalanceSize])
	assert.EqualValues(t, 0, data[3+tokenprogram.DecryptableBalanceSize])

	accounts := instructionAccounts(m, 0)
	require.Len(t, accounts, 7)
	assert.EqualValues(t, contexts.EqualityProof, accounts[3])
	assert.EqualValues(t, contexts.CiphertextValidityProof, accounts[4])
	assert.EqualValues(t, contexts.RangeProof, accounts[5])
	assert.EqualValues(t, public(owner), accounts[6])
}

func TestToken_CreateProofContextState(t *testing.T) {
	client, tkn, owner, source, dest, key := setupSplitProofFixture(t, false)

	scratch := generateKey(t)
	_, err := tkn.CreateProofContextState(zkproof.CommandVerifyBatchedRangeProofU128, scratch, public(owner), rangeProofBytes, nil)
	require.NoError(t, err)

	m := client.submissions()[0].Message
	require.Len(t, m.Instructions, 2)
	assertProofContext(t, m, 0, zkproof.CommandVerifyBatchedRangeProofU128, rangeProofBytes)

	// Resubmission shape: the same transaction with the transfer
	// attached.
	newBalance, err := key.Encrypt(70)
	require.NoError(t, err)
	transferIx := tokenprogram.ConfidentialTransferWithSplitProofs(
		source, tkn.Mint(), dest,
		tokenprogram.SplitProofContexts{
			EqualityProof:           public(generateKey(t)),
			CiphertextValidityProof: public(generateKey(t)),
			RangeProof:              scratch.Public().(ed25519.PublicKey),
		},
		public(owner), newBalance, true, true,
		tkn.Payer(), public(owner), zkproof.ProgramKey,
	)

	_, err = tkn.CreateProofContextState(zkproof.CommandVerifyBatchedRangeProofU128, scratch, public(owner), rangeProofBytes, &transferIx, owner)
	require.NoError(t, err)

	m = client.submissions()[1].Message
	require.Len(t, m.Instructions, 3)
	assert.EqualValues(t, byte(tokenprogram.CommandConfidentialTransferWithSplitProofs), m.Instructions[2].Data[1])
}

func TestToken_CloseContextState(t *testing.T) {
	client, tkn, owner, _, _, _ := setupSplitProofFixture(t, false)

	contextState := public(generateKey(t))
	_, err := tkn.CloseContextState(contextState, owner)
	require.NoError(t, err)

	m := client.submissions()[0].Message
	require.Len(t, m.Instructions, 1)
	assert.EqualValues(t, byte(zkproof.CommandCloseContextState), m.Instructions[0].Data[0])
	assert.EqualValues(t, contextState, m.Accounts[m.Instructions[0].Accounts[0]])
	assert.EqualValues(t, tkn.Payer(), m.Accounts[m.Instructions[0].Accounts[1]])
}
