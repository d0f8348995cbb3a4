package token

import (
	"bytes"
	"crypto/ed25519"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/token-client/pkg/solana"
	compute_budget "github.com/code-payments/token-client/pkg/solana/computebudget"
	"github.com/code-payments/token-client/pkg/solana/memo"
	"github.com/code-payments/token-client/pkg/solana/system"
	tokenprogram "github.com/code-payments/token-client/pkg/solana/token"
)

type fakeClient struct {
	mu sync.Mutex

	accounts map[string]solana.AccountInfo
	rent     uint64

	blockhash        solana.Blockhash
	blockhashSeq     []solana.Blockhash
	blockhashFetches int

	submitted  []solana.Transaction
	submitHook func(solana.Transaction) error
	statusHook func(solana.Signature) (*solana.SignatureStatus, error)
	simulation solana.SimulationResult
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		accounts:  make(map[string]solana.AccountInfo),
		rent:      10,
		blockhash: solana.Blockhash{1},
	}
}

func (f *fakeClient) setAccount(key ed25519.PublicKey, info solana.AccountInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[string(key)] = info
}

func (f *fakeClient) submissions() []solana.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]solana.Transaction{}, f.submitted...)
}

func (f *fakeClient) GetAccountInfo(key ed25519.PublicKey, _ solana.Commitment) (solana.AccountInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	info, ok := f.accounts[string(key)]
	if !ok {
		return solana.AccountInfo{}, solana.ErrNoAccountInfo
	}
	return info, nil
}

func (f *fakeClient) GetMinimumBalanceForRentExemption(uint64) (uint64, error) {
	return f.rent, nil
}

func (f *fakeClient) GetLatestBlockhash() (solana.Blockhash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.blockhashFetches++
	if len(f.blockhashSeq) > 0 {
		next := f.blockhashSeq[0]
		f.blockhashSeq = f.blockhashSeq[1:]
		return next, nil
	}
	return f.blockhash, nil
}

func (f *fakeClient) SimulateTransaction(solana.Transaction) (solana.SimulationResult, error) {
	return f.simulation, nil
}

func (f *fakeClient) SubmitTransaction(txn solana.Transaction, _ solana.Commitment) (solana.Signature, error) {
	f.mu.Lock()
	hook := f.submitHook
	f.submitted = append(f.submitted, txn)
	f.mu.Unlock()

	if hook != nil {
		if err := hook(txn); err != nil {
			return solana.Signature{}, err
		}
	}
	return txn.Signatures[0], nil
}

func (f *fakeClient) GetSignatureStatus(sig solana.Signature, _ solana.Commitment) (*solana.SignatureStatus, error) {
	f.mu.Lock()
	hook := f.statusHook
	f.mu.Unlock()

	if hook != nil {
		return hook(sig)
	}

	confirmations := 1
	return &solana.SignatureStatus{Confirmations: &confirmations}, nil
}

func generateKey(t *testing.T) ed25519.PrivateKey {
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return priv
}

func public(priv ed25519.PrivateKey) ed25519.PublicKey {
	return priv.Public().(ed25519.PublicKey)
}

func instructionProgram(m solana.Message, index int) ed25519.PublicKey {
	return m.Accounts[m.Instructions[index].ProgramIndex]
}

// marshalMintData builds raw token-2022 mint account data with the
// provided extension TLV entries appended.
func marshalMintData(decimals byte, extensions map[tokenprogram.Extension][]byte) []byte {
	size := tokenprogram.AccountSize + 1
	for _, value := range extensions {
		size += 4 + len(value)
	}
	if len(extensions) == 0 {
		size = tokenprogram.MintSize
	}

	data := make([]byte, size)
	data[45] = 1 // initialized
	data[44] = decimals

	if len(extensions) == 0 {
		return data[:tokenprogram.MintSize]
	}

	data[tokenprogram.AccountSize] = 1 // mint account type
	offset := tokenprogram.AccountSize + 1
	for ext, value := range extensions {
		data[offset] = byte(ext)
		data[offset+1] = byte(ext >> 8)
		data[offset+2] = byte(len(value))
		data[offset+3] = byte(len(value) >> 8)
		copy(data[offset+4:], value)
		offset += 4 + len(value)
	}
	return data
}

func TestResolveAuthority(t *testing.T) {
	authority := generateKey(t)
	a := generateKey(t)
	b := generateKey(t)

	// No distinct signers resolves to direct authorization: the
	// authority signs itself and no multisig metadata is emitted.
	multisig, signingKeys := resolveAuthority(authority, nil)
	assert.Empty(t, multisig)
	require.Len(t, signingKeys, 1)
	assert.Equal(t, authority, signingKeys[0])

	multisig, signingKeys = resolveAuthority(authority, []ed25519.PrivateKey{authority, authority})
	assert.Empty(t, multisig)
	require.Len(t, signingKeys, 1)

	// Any distinct signer makes the authority a multisig address: the
	// signer set passes through unmodified, in caller order, authority
	// included.
	multisig, signingKeys = resolveAuthority(authority, []ed25519.PrivateKey{a, authority, b})
	require.Len(t, multisig, 3)
	assert.Equal(t, public(a), multisig[0])
	assert.Equal(t, public(authority), multisig[1])
	assert.Equal(t, public(b), multisig[2])
	require.Len(t, signingKeys, 3)
	assert.Equal(t, a, signingKeys[0])
	assert.Equal(t, authority, signingKeys[1])
	assert.Equal(t, b, signingKeys[2])

	multisig, signingKeys = resolveAuthority(authority, []ed25519.PrivateKey{a, b})
	require.Len(t, multisig, 2)
	assert.Equal(t, public(a), multisig[0])
	assert.Equal(t, public(b), multisig[1])
	require.Len(t, signingKeys, 2)
	assert.Equal(t, a, signingKeys[0])
	assert.Equal(t, b, signingKeys[1])
}

func TestToken_ConstructTx_InstructionOrder(t *testing.T) {
	client := newFakeClient()
	payer := generateKey(t)
	mint := public(generateKey(t))
	tkn := New(client, mint, payer)

	op := memo.Instruction("op")
	txn, err := tkn.constructTx([]solana.Instruction{op}, 1_400_000)
	require.NoError(t, err)

	require.Len(t, txn.Message.Instructions, 2)
	assert.Equal(t, []byte("op"), txn.Message.Instructions[0].Data)
	assert.EqualValues(t, compute_budget.ProgramKey[:], instructionProgram(txn.Message, 1))
	assert.Equal(t, client.blockhash, txn.Message.RecentBlockhash)
}

func TestToken_ConstructTx_Memo(t *testing.T) {
	client := newFakeClient()
	payer := generateKey(t)
	signer := generateKey(t)
	tkn := New(client, public(generateKey(t)), payer)

	// Required memo signer missing from the signing set.
	tkn.SetMemo("ref", public(signer))
	_, err := tkn.constructTx([]solana.Instruction{memo.Instruction("op")}, 0)
	assert.Equal(t, ErrMissingMemoSigner, errors.Cause(err))

	// The failed attempt must not consume the memo.
	txn, err := tkn.constructTx([]solana.Instruction{memo.Instruction("op")}, 0, signer)
	require.NoError(t, err)
	require.Len(t, txn.Message.Instructions, 2)
	assert.Equal(t, []byte("ref"), txn.Message.Instructions[0].Data)

	// One-shot: consumed by the successful assembly.
	txn, err = tkn.constructTx([]solana.Instruction{memo.Instruction("op")}, 0)
	require.NoError(t, err)
	require.Len(t, txn.Message.Instructions, 1)
	assert.Equal(t, []byte("op"), txn.Message.Instructions[0].Data)
}

func TestToken_ConstructTx_Nonce(t *testing.T) {
	client := newFakeClient()
	payer := generateKey(t)
	nonceAuthority := generateKey(t)
	nonceAccount := public(generateKey(t))
	nonceBlockhash := solana.Blockhash{7, 7, 7}

	tkn := New(client, public(generateKey(t)), payer, WithNonce(nonceAccount, nonceAuthority, nonceBlockhash))

	txn, err := tkn.constructTx([]solana.Instruction{memo.Instruction("op")}, 0)
	require.NoError(t, err)

	// The nonce advance leads, the blockhash is frozen, and no network
	// fetch happened.
	require.Len(t, txn.Message.Instructions, 2)
	assert.Equal(t, system.ProgramKey[:], []byte(instructionProgram(txn.Message, 0)))
	assert.Equal(t, nonceBlockhash, txn.Message.RecentBlockhash)
	assert.Equal(t, 0, client.blockhashFetches)

	// Nonce authority signature is present.
	decompiled, err := system.DecompileAdvanceNonce(txn.Message, 0)
	require.NoError(t, err)
	assert.Equal(t, nonceAccount, decompiled.Nonce)
	assert.Equal(t, public(nonceAuthority), decompiled.Authority)
}

func TestToken_GetNewLatestBlockhash(t *testing.T) {
	client := newFakeClient()
	tkn := New(client, public(generateKey(t)), generateKey(t))
	tkn.pollInterval = time.Millisecond
	tkn.pollTimeout = 50 * time.Millisecond

	prev := solana.Blockhash{1}
	next := solana.Blockhash{2}

	client.blockhashSeq = []solana.Blockhash{prev, prev, next}
	latest, err := tkn.GetNewLatestBlockhash(prev)
	require.NoError(t, err)
	assert.Equal(t, next, latest)

	// The fetch never rotates: timeout with a descriptive error.
	client.blockhash = prev
	_, err = tkn.GetNewLatestBlockhash(prev)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "attempts")
}

func TestToken_ProcessIxs(t *testing.T) {
	client := newFakeClient()
	payer := generateKey(t)
	tkn := New(client, public(generateKey(t)), payer)

	sig, err := tkn.ProcessIxs([]solana.Instruction{memo.Instruction("op")})
	require.NoError(t, err)

	submitted := client.submissions()
	require.Len(t, submitted, 1)
	assert.Equal(t, submitted[0].Signatures[0], sig)
	assert.True(t, bytes.Equal(public(payer), submitted[0].Message.Accounts[0]))
}

func TestToken_ProcessIxs_Confirmation(t *testing.T) {
	client := newFakeClient()
	payer := generateKey(t)
	tkn := New(client, public(generateKey(t)), payer)

	// An on-chain failure reported by the status poll surfaces as an
	// error alongside the signature.
	client.statusHook = func(solana.Signature) (*solana.SignatureStatus, error) {
		return &solana.SignatureStatus{
			ErrorResult: solana.NewTransactionError(solana.TransactionErrorBlockhashNotFound),
		}, nil
	}
	sig, err := tkn.ProcessIxs([]solana.Instruction{memo.Instruction("op")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transaction failed")
	assert.NotEqual(t, solana.Signature{}, sig)

	// The poll itself failing is also surfaced.
	client.statusHook = func(solana.Signature) (*solana.SignatureStatus, error) {
		return nil, solana.ErrSignatureNotFound
	}
	_, err = tkn.ProcessIxs([]solana.Instruction{memo.Instruction("op")})
	require.Error(t, err)
	assert.Equal(t, solana.ErrSignatureNotFound, errors.Cause(err))
}

func TestToken_SimulateIxs(t *testing.T) {
	client := newFakeClient()
	client.simulation = solana.SimulationResult{Logs: []string{"ok"}}
	tkn := New(client, public(generateKey(t)), generateKey(t))

	result, err := tkn.SimulateIxs([]solana.Instruction{memo.Instruction("op")})
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, result.Logs)
	assert.Empty(t, client.submissions())
}
