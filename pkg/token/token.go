// Package token is the high level client for a token-2022 style mint.
// It turns operation requests into correctly signed and ordered
// transactions, including the split proof orchestration required for
// confidential transfers whose proofs do not fit one transaction.
package token

import (
	"bytes"
	"crypto/ed25519"
	"sync"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/token-client/pkg/solana"
	compute_budget "github.com/code-payments/token-client/pkg/solana/computebudget"
	"github.com/code-payments/token-client/pkg/solana/memo"
	"github.com/code-payments/token-client/pkg/solana/system"
)

const (
	blockhashPollInterval = 200 * time.Millisecond
	blockhashPollTimeout  = 5 * time.Second
)

// nonceConfig is a durable nonce based fee payment configuration. The
// blockhash is the value frozen into the nonce account; messages built
// against it skip the network blockhash fetch entirely.
type nonceConfig struct {
	account   ed25519.PublicKey
	authority ed25519.PrivateKey
	blockhash solana.Blockhash
}

type memoConfig struct {
	text    string
	signers []ed25519.PublicKey
}

// Token is a handle to a mint. The handle is immutable after
// construction except for the one shot memo slot, which is consumed by
// the next assembled transaction.
type Token struct {
	log    *logrus.Entry
	client solana.Client

	mint     ed25519.PublicKey
	decimals *uint8
	payer    ed25519.PrivateKey
	nonce    *nonceConfig

	memoMu sync.Mutex
	memo   *memoConfig

	// nil means "resolve from the hook program's on-chain config";
	// an empty non-nil slice means "no extra accounts".
	transferHookAccounts []solana.AccountMeta

	pollInterval time.Duration
	pollTimeout  time.Duration
}

type Option func(*Token)

// WithDecimals configures the mint's expected decimal precision.
// Checked instructions require it.
func WithDecimals(decimals uint8) Option {
	return func(t *Token) {
		t.decimals = &decimals
	}
}

// WithNonce configures durable nonce based fee payment. The blockhash
// must be the value currently stored in the nonce account.
func WithNonce(account ed25519.PublicKey, authority ed25519.PrivateKey, blockhash solana.Blockhash) Option {
	return func(t *Token) {
		t.nonce = &nonceConfig{
			account:   account,
			authority: authority,
			blockhash: blockhash,
		}
		if t.transferHookAccounts == nil {
			t.transferHookAccounts = []solana.AccountMeta{}
		}
	}
}

// WithTransferHookAccounts pins the extra accounts appended to transfer
// instructions, bypassing on-chain resolution.
func WithTransferHookAccounts(accounts []solana.AccountMeta) Option {
	return func(t *Token) {
		t.transferHookAccounts = accounts
	}
}

func New(client solana.Client, mint ed25519.PublicKey, payer ed25519.PrivateKey, opts ...Option) *Token {
	t := &Token{
		log:          logrus.StandardLogger().WithField("type", "token/client"),
		client:       client,
		mint:         mint,
		payer:        payer,
		pollInterval: blockhashPollInterval,
		pollTimeout:  blockhashPollTimeout,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Mint returns the mint this handle is bound to.
func (t *Token) Mint() ed25519.PublicKey {
	return t.mint
}

// Payer returns the configured fee payer's public key.
func (t *Token) Payer() ed25519.PublicKey {
	return t.payer.Public().(ed25519.PublicKey)
}

// SetMemo configures a memo to be attached to the next assembled
// transaction. Assembly fails unless every required signer is present
// in that call's signing set.
func (t *Token) SetMemo(text string, requiredSigners ...ed25519.PublicKey) {
	t.memoMu.Lock()
	defer t.memoMu.Unlock()

	t.memo = &memoConfig{
		text:    text,
		signers: requiredSigners,
	}
}

// resolveAuthority resolves the signing arrangement for an authority
// gated instruction. When the signer set is empty or contains only the
// authority itself, the authority signs directly and the program
// expects no multisig signer metadata. Otherwise the authority is a
// multisig account address and the supplied signers are listed on the
// instruction unmodified, in caller order, and sign the transaction.
// Passing signers for an account without a multisig configuration
// causes the program to reject the transaction.
func resolveAuthority(authority ed25519.PrivateKey, signers []ed25519.PrivateKey) ([]ed25519.PublicKey, []ed25519.PrivateKey) {
	authorityPub := authority.Public().(ed25519.PublicKey)

	onlyAuthority := true
	for _, signer := range signers {
		if !bytes.Equal(signer.Public().(ed25519.PublicKey), authorityPub) {
			onlyAuthority = false
			break
		}
	}
	if onlyAuthority {
		return nil, []ed25519.PrivateKey{authority}
	}

	multisig := make([]ed25519.PublicKey, len(signers))
	for i, signer := range signers {
		multisig[i] = signer.Public().(ed25519.PublicKey)
	}
	return multisig, signers
}

// GetNewLatestBlockhash returns a blockhash strictly newer than prev,
// polling until the network rotates or the timeout elapses. Use it when
// a transaction must not collide with a very recent one sharing the
// same instructions.
func (t *Token) GetNewLatestBlockhash(prev solana.Blockhash) (solana.Blockhash, error) {
	start := time.Now()

	var attempts int
	for {
		attempts++

		latest, err := t.client.GetLatestBlockhash()
		if err != nil {
			return latest, errors.Wrap(err, "failed to get latest blockhash")
		}
		if latest != prev {
			return latest, nil
		}

		if time.Since(start) >= t.pollTimeout {
			return latest, errors.Errorf(
				"blockhash unchanged after %d attempts over %dms (stale value: %s)",
				attempts,
				time.Since(start).Milliseconds(),
				base58.Encode(prev[:]),
			)
		}

		time.Sleep(t.pollInterval)
	}
}

// consumeMemo atomically takes the pending memo, verifying its required
// signers against the signing set first. A failed check leaves the memo
// in place.
func (t *Token) consumeMemo(signers []ed25519.PrivateKey) (*memoConfig, error) {
	t.memoMu.Lock()
	defer t.memoMu.Unlock()

	if t.memo == nil {
		return nil, nil
	}

	for _, required := range t.memo.signers {
		var found bool
		for _, signer := range signers {
			if bytes.Equal(signer.Public().(ed25519.PublicKey), required) {
				found = true
				break
			}
		}
		if !found {
			return nil, errors.Wrapf(ErrMissingMemoSigner, "memo requires %s", base58.Encode(required))
		}
	}

	pending := t.memo
	t.memo = nil
	return pending, nil
}

func memoInstruction(m *memoConfig) solana.Instruction {
	accounts := make([]solana.AccountMeta, len(m.signers))
	for i, signer := range m.signers {
		accounts[i] = solana.NewReadonlyAccountMeta(signer, true)
	}
	return solana.NewInstruction(memo.ProgramKey, []byte(m.text), accounts...)
}

// constructTx assembles and signs a transaction. Instruction order is
// fixed: advance nonce (if configured), memo (if pending), the
// operation instructions in caller order, then the compute budget
// override last. Callers and on-chain programs may depend on positional
// instruction indices, so this ordering is a contract.
//
// Signing order is payer, nonce authority, then co-signers.
func (t *Token) constructTx(ixs []solana.Instruction, computeBudget uint32, signers ...ed25519.PrivateKey) (solana.Transaction, error) {
	pendingMemo, err := t.consumeMemo(signers)
	if err != nil {
		return solana.Transaction{}, err
	}

	var assembled []solana.Instruction
	if t.nonce != nil {
		assembled = append(assembled, system.AdvanceNonce(t.nonce.account, t.nonce.authority.Public().(ed25519.PublicKey)))
	}
	if pendingMemo != nil {
		assembled = append(assembled, memoInstruction(pendingMemo))
	}
	assembled = append(assembled, ixs...)
	if computeBudget > 0 {
		assembled = append(assembled, compute_budget.SetComputeUnitLimit(computeBudget))
	}

	txn := solana.NewTransaction(t.Payer(), assembled...)

	if t.nonce != nil {
		txn.SetBlockhash(t.nonce.blockhash)
	} else {
		blockhash, err := t.client.GetLatestBlockhash()
		if err != nil {
			return solana.Transaction{}, errors.Wrap(err, "failed to get latest blockhash")
		}
		txn.SetBlockhash(blockhash)
	}

	signingKeys := make([]ed25519.PrivateKey, 0, len(signers)+2)
	signingKeys = append(signingKeys, t.payer)
	if t.nonce != nil {
		signingKeys = append(signingKeys, t.nonce.authority)
	}
	signingKeys = append(signingKeys, signers...)

	if err := txn.Sign(signingKeys...); err != nil {
		return solana.Transaction{}, errors.Wrap(err, "failed to sign transaction")
	}

	return txn, nil
}

// SimulateIxs assembles a transaction and dry-runs it against current
// bank state without submitting.
func (t *Token) SimulateIxs(ixs []solana.Instruction, signers ...ed25519.PrivateKey) (solana.SimulationResult, error) {
	txn, err := t.constructTx(ixs, 0, signers...)
	if err != nil {
		return solana.SimulationResult{}, err
	}

	result, err := t.client.SimulateTransaction(txn)
	if err != nil {
		return result, errors.Wrap(err, "failed to simulate transaction")
	}
	return result, nil
}

// ProcessIxs assembles a transaction and submits it.
func (t *Token) ProcessIxs(ixs []solana.Instruction, signers ...ed25519.PrivateKey) (solana.Signature, error) {
	return t.ProcessIxsWithAdditionalComputeBudget(ixs, 0, signers...)
}

// ProcessIxsWithAdditionalComputeBudget is ProcessIxs with a compute
// unit limit override appended to the instruction list.
func (t *Token) ProcessIxsWithAdditionalComputeBudget(ixs []solana.Instruction, computeBudget uint32, signers ...ed25519.PrivateKey) (solana.Signature, error) {
	txn, err := t.constructTx(ixs, computeBudget, signers...)
	if err != nil {
		return solana.Signature{}, err
	}

	sig, err := t.client.SubmitTransaction(txn, solana.CommitmentConfirmed)
	if err != nil {
		return sig, errors.Wrap(err, "failed to submit transaction")
	}

	status, err := t.client.GetSignatureStatus(sig, solana.CommitmentConfirmed)
	if err != nil {
		return sig, errors.Wrap(err, "failed to confirm transaction")
	}
	if status != nil && status.ErrorResult != nil {
		return sig, errors.Wrap(status.ErrorResult, "transaction failed")
	}
	return sig, nil
}
