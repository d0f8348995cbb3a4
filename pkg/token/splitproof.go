package token

import (
	"crypto/ed25519"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/code-payments/token-client/pkg/confidential"
	"github.com/code-payments/token-client/pkg/solana"
	tokenprogram "github.com/code-payments/token-client/pkg/solana/token"
	"github.com/code-payments/token-client/pkg/solana/zkproof"
)

// SplitProofContextAccounts holds the scratch account keypairs backing
// one confidential transfer attempt. Each scratch account is created
// empty, populated by exactly one verify instruction, referenced by
// exactly one transfer instruction, and then closed. Never reuse a set
// across transfer attempts; stale context data would let a later
// transfer observe a validated but unrelated proof.
type SplitProofContextAccounts struct {
	Equality           ed25519.PrivateKey
	CiphertextValidity ed25519.PrivateKey
	Range              ed25519.PrivateKey

	// Only set for fee-bearing transfers.
	FeeSigma              ed25519.PrivateKey
	FeeCiphertextValidity ed25519.PrivateKey
}

// NewSplitProofContextAccounts generates a fresh scratch account set.
// withFee adds the two fee proof accounts.
func NewSplitProofContextAccounts(withFee bool) (*SplitProofContextAccounts, error) {
	accounts := &SplitProofContextAccounts{}

	keys := []*ed25519.PrivateKey{&accounts.Equality, &accounts.CiphertextValidity, &accounts.Range}
	if withFee {
		keys = append(keys, &accounts.FeeSigma, &accounts.FeeCiphertextValidity)
	}
	for _, key := range keys {
		_, generated, err := ed25519.GenerateKey(nil)
		if err != nil {
			return nil, errors.Wrap(err, "failed to generate scratch account")
		}
		*key = generated
	}
	return accounts, nil
}

func (a *SplitProofContextAccounts) pubkeys() tokenprogram.SplitProofContexts {
	contexts := tokenprogram.SplitProofContexts{
		EqualityProof:           a.Equality.Public().(ed25519.PublicKey),
		CiphertextValidityProof: a.CiphertextValidity.Public().(ed25519.PublicKey),
		RangeProof:              a.Range.Public().(ed25519.PublicKey),
	}
	if a.FeeSigma != nil {
		contexts.FeeSigmaProof = a.FeeSigma.Public().(ed25519.PublicKey)
		contexts.FeeCiphertextValidityProof = a.FeeCiphertextValidity.Public().(ed25519.PublicKey)
	}
	return contexts
}

// transferSnapshot resolves the source snapshot, the re-encrypted
// balance after debiting amount, and the public keys proofs are
// generated against.
func (t *Token) transferSnapshot(source, dest ed25519.PublicKey, amount uint64, key confidential.AeKey, info *confidential.TransferAccountInfo) (snapshot *confidential.TransferAccountInfo, newBalance confidential.DecryptableBalance, currentBalance uint64, destPubkey, auditorPubkey confidential.ElGamalPubkey, err error) {
	snapshot = info
	if snapshot == nil {
		state, err := t.getConfidentialAccountState(source)
		if err != nil {
			return nil, nil, 0, nil, nil, err
		}
		snapshot = confidential.NewTransferAccountInfo(state)
	}

	newBalance, err = snapshot.NewDecryptableAvailableBalance(amount, key)
	if err == confidential.ErrInsufficientBalance {
		return nil, nil, 0, nil, nil, err
	} else if err != nil {
		return nil, nil, 0, nil, nil, errors.Wrap(ErrAccountDecryption, err.Error())
	}

	currentBalance, err = snapshot.CurrentBalance(key)
	if err != nil {
		return nil, nil, 0, nil, nil, errors.Wrap(ErrAccountDecryption, err.Error())
	}

	destState, err := t.getConfidentialAccountState(dest)
	if err != nil {
		return nil, nil, 0, nil, nil, err
	}
	destPubkey = confidential.ElGamalPubkey(destState.ElGamalPubkey)

	_, mintData, err := t.GetMintInfo(solana.CommitmentConfirmed)
	if err != nil {
		return nil, nil, 0, nil, nil, err
	}
	if mintState, err := tokenprogram.GetConfidentialTransferMint(mintData); err == nil {
		auditorPubkey = confidential.ElGamalPubkey(mintState.AuditorElGamalPubkey)
	}

	return snapshot, newBalance, currentBalance, destPubkey, auditorPubkey, nil
}

// ConfidentialTransferWithSplitProofsParallel executes a confidential
// transfer whose proofs are too large for one transaction. It verifies
// the equality and ciphertext validity proofs in one transaction and
// the range proof in another, each carrying a copy of the final
// transfer instruction, and submits both concurrently.
//
// Ordering dependency: the embedded transfer only executes once every
// scratch account from both transactions is committed. Whichever
// transaction the network confirms last is the one whose transfer
// succeeds; the earlier one's transfer fails and rolls back in full,
// including its scratch accounts, and must be resubmitted by the caller
// without the transfer to materialize its proof contexts. This is a
// property of the on-chain program, resolved by the network's own
// retry and confirmation semantics; no reordering or retrying is done
// here.
//
// If info is nil a fresh snapshot of the source account is taken.
func (t *Token) ConfidentialTransferWithSplitProofsParallel(source, dest ed25519.PublicKey, authority ed25519.PrivateKey, amount uint64, generator confidential.ProofGenerator, key confidential.AeKey, info *confidential.TransferAccountInfo, signers ...ed25519.PrivateKey) ([]solana.Signature, error) {
	snapshot, newBalance, currentBalance, destPubkey, auditorPubkey, err := t.transferSnapshot(source, dest, amount, key, info)
	if err != nil {
		return nil, err
	}

	proofs, err := generator.TransferProofs(snapshot.AvailableBalance(), currentBalance, amount, destPubkey, auditorPubkey)
	if err != nil {
		return nil, errors.Wrap(ErrProofGeneration, err.Error())
	}

	contexts, err := NewSplitProofContextAccounts(false)
	if err != nil {
		return nil, err
	}

	authorityPub := authority.Public().(ed25519.PublicKey)
	transferIx := tokenprogram.ConfidentialTransferWithSplitProofs(
		source, t.mint, dest,
		contexts.pubkeys(),
		authorityPub,
		newBalance,
		true, // no-op when the other scratch accounts aren't committed yet
		true, // reclaim the scratch accounts on execution
		t.Payer(), authorityPub, zkproof.ProgramKey,
	)

	hookMetas, err := t.resolveTransferHookMetas()
	if err != nil {
		return nil, err
	}
	transferIx.Accounts = append(transferIx.Accounts, hookMetas...)

	multisig, signingKeys := resolveAuthority(authority, signers)
	transferIx = withMultisig(transferIx, authorityPub, multisig)
	sigs := make([]solana.Signature, 2)

	t.log.WithField("method", "ConfidentialTransferWithSplitProofsParallel").Debug("submitting split proof transactions")

	var group errgroup.Group
	group.Go(func() error {
		ixs, err := t.buildProofContext(zkproof.CommandVerifyCiphertextCommitmentEquality, contexts.pubkeys().EqualityProof, authorityPub, proofs.Equality)
		if err != nil {
			return err
		}
		validityIxs, err := t.buildProofContext(zkproof.CommandVerifyBatchedGroupedCiphertext2HandlesValidity, contexts.pubkeys().CiphertextValidityProof, authorityPub, proofs.CiphertextValidity)
		if err != nil {
			return err
		}
		ixs = append(append(ixs, validityIxs...), transferIx)

		sigs[0], err = t.ProcessIxs(ixs, append([]ed25519.PrivateKey{contexts.Equality, contexts.CiphertextValidity}, signingKeys...)...)
		return err
	})
	group.Go(func() error {
		ixs, err := t.buildProofContext(zkproof.CommandVerifyBatchedRangeProofU128, contexts.pubkeys().RangeProof, authorityPub, proofs.Range)
		if err != nil {
			return err
		}
		ixs = append(ixs, transferIx)

		sigs[1], err = t.ProcessIxs(ixs, append([]ed25519.PrivateKey{contexts.Range}, signingKeys...)...)
		return err
	})
	if err := group.Wait(); err != nil {
		return sigs, err
	}
	return sigs, nil
}

// ConfidentialTransferWithFeeAndSplitProofsParallel is the fee-bearing
// variant: five proofs across three concurrent transactions, each
// carrying a copy of the final transfer instruction. The same ordering
// dependency as ConfidentialTransferWithSplitProofsParallel applies,
// with the transfer succeeding in whichever transaction confirms last.
func (t *Token) ConfidentialTransferWithFeeAndSplitProofsParallel(source, dest ed25519.PublicKey, authority ed25519.PrivateKey, amount uint64, generator confidential.ProofGenerator, key confidential.AeKey, info *confidential.TransferAccountInfo, signers ...ed25519.PrivateKey) ([]solana.Signature, error) {
	snapshot, newBalance, currentBalance, destPubkey, auditorPubkey, err := t.transferSnapshot(source, dest, amount, key, info)
	if err != nil {
		return nil, err
	}

	_, mintData, err := t.GetMintInfo(solana.CommitmentConfirmed)
	if err != nil {
		return nil, err
	}
	feeConfig, err := tokenprogram.GetTransferFeeConfig(mintData)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transfer fee config")
	}
	confidentialFeeConfig, err := tokenprogram.GetConfidentialTransferFeeConfig(mintData)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get confidential transfer fee config")
	}

	proofs, err := generator.TransferWithFeeProofs(
		snapshot.AvailableBalance(),
		currentBalance,
		amount,
		destPubkey,
		auditorPubkey,
		confidential.ElGamalPubkey(confidentialFeeConfig.WithdrawWithheldAuthorityElGamalPubkey),
		feeConfig.NewerTransferFee.TransferFeeBasisPoints,
		feeConfig.NewerTransferFee.MaximumFee,
	)
	if err != nil {
		return nil, errors.Wrap(ErrProofGeneration, err.Error())
	}

	contexts, err := NewSplitProofContextAccounts(true)
	if err != nil {
		return nil, err
	}

	authorityPub := authority.Public().(ed25519.PublicKey)
	transferIx := tokenprogram.ConfidentialTransferWithFeeAndSplitProofs(
		source, t.mint, dest,
		contexts.pubkeys(),
		authorityPub,
		newBalance,
		true,
		true,
		t.Payer(), authorityPub, zkproof.ProgramKey,
	)

	hookMetas, err := t.resolveTransferHookMetas()
	if err != nil {
		return nil, err
	}
	transferIx.Accounts = append(transferIx.Accounts, hookMetas...)

	multisig, signingKeys := resolveAuthority(authority, signers)
	transferIx = withMultisig(transferIx, authorityPub, multisig)
	sigs := make([]solana.Signature, 3)

	t.log.WithField("method", "ConfidentialTransferWithFeeAndSplitProofsParallel").Debug("submitting split proof transactions")

	var group errgroup.Group
	group.Go(func() error {
		ixs, err := t.buildProofContext(zkproof.CommandVerifyCiphertextCommitmentEquality, contexts.pubkeys().EqualityProof, authorityPub, proofs.Equality)
		if err != nil {
			return err
		}
		validityIxs, err := t.buildProofContext(zkproof.CommandVerifyBatchedGroupedCiphertext2HandlesValidity, contexts.pubkeys().CiphertextValidityProof, authorityPub, proofs.CiphertextValidity)
		if err != nil {
			return err
		}
		ixs = append(append(ixs, validityIxs...), transferIx)

		sigs[0], err = t.ProcessIxs(ixs, append([]ed25519.PrivateKey{contexts.Equality, contexts.CiphertextValidity}, signingKeys...)...)
		return err
	})
	group.Go(func() error {
		ixs, err := t.buildProofContext(zkproof.CommandVerifyFeeSigma, contexts.pubkeys().FeeSigmaProof, authorityPub, proofs.FeeSigma)
		if err != nil {
			return err
		}
		validityIxs, err := t.buildProofContext(zkproof.CommandVerifyBatchedGroupedCiphertext2HandlesValidity, contexts.pubkeys().FeeCiphertextValidityProof, authorityPub, proofs.FeeCiphertextValidity)
		if err != nil {
			return err
		}
		ixs = append(append(ixs, validityIxs...), transferIx)

		sigs[1], err = t.ProcessIxs(ixs, append([]ed25519.PrivateKey{contexts.FeeSigma, contexts.FeeCiphertextValidity}, signingKeys...)...)
		return err
	})
	group.Go(func() error {
		ixs, err := t.buildProofContext(zkproof.CommandVerifyBatchedRangeProofU256, contexts.pubkeys().RangeProof, authorityPub, proofs.Range)
		if err != nil {
			return err
		}
		ixs = append(ixs, transferIx)

		sigs[2], err = t.ProcessIxs(ixs, append([]ed25519.PrivateKey{contexts.Range}, signingKeys...)...)
		return err
	})
	if err := group.Wait(); err != nil {
		return sigs, err
	}
	return sigs, nil
}

// ConfidentialTransferWithSplitProofs issues the final transfer against
// proof context accounts created and confirmed ahead of time, avoiding
// the parallel race at the cost of serial latency. The contexts are
// trusted as-is; no consistency check is made that they were generated
// from the same snapshot and amount.
func (t *Token) ConfidentialTransferWithSplitProofs(source, dest ed25519.PublicKey, authority ed25519.PrivateKey, contexts tokenprogram.SplitProofContexts, newDecryptableBalance confidential.DecryptableBalance, signers ...ed25519.PrivateKey) (solana.Signature, error) {
	authorityPub := authority.Public().(ed25519.PublicKey)

	var transferIx solana.Instruction
	if contexts.FeeSigmaProof != nil {
		transferIx = tokenprogram.ConfidentialTransferWithFeeAndSplitProofs(
			source, t.mint, dest, contexts, authorityPub, newDecryptableBalance,
			false, false, nil, nil, nil,
		)
	} else {
		transferIx = tokenprogram.ConfidentialTransferWithSplitProofs(
			source, t.mint, dest, contexts, authorityPub, newDecryptableBalance,
			false, false, nil, nil, nil,
		)
	}

	hookMetas, err := t.resolveTransferHookMetas()
	if err != nil {
		return solana.Signature{}, err
	}
	transferIx.Accounts = append(transferIx.Accounts, hookMetas...)

	multisig, signingKeys := resolveAuthority(authority, signers)
	return t.ProcessIxs([]solana.Instruction{withMultisig(transferIx, authorityPub, multisig)}, signingKeys...)
}

// CreateProofContextState creates and populates a single proof context
// account in its own transaction. When transfer is non-nil a copy of
// the transfer instruction is attached, matching the parallel path's
// transaction shape for resubmission after a harmless rollback.
func (t *Token) CreateProofContextState(cmd zkproof.Command, scratch ed25519.PrivateKey, authority ed25519.PublicKey, proof []byte, transfer *solana.Instruction, signers ...ed25519.PrivateKey) (solana.Signature, error) {
	ixs, err := t.buildProofContext(cmd, scratch.Public().(ed25519.PublicKey), authority, proof)
	if err != nil {
		return solana.Signature{}, err
	}
	if transfer != nil {
		ixs = append(ixs, *transfer)
	}

	return t.ProcessIxs(ixs, append([]ed25519.PrivateKey{scratch}, signers...)...)
}

// CloseContextState reclaims a proof context account's rent to the
// payer.
func (t *Token) CloseContextState(contextState ed25519.PublicKey, authority ed25519.PrivateKey) (solana.Signature, error) {
	ix := zkproof.CloseContextState(contextState, t.Payer(), authority.Public().(ed25519.PublicKey))
	return t.ProcessIxs([]solana.Instruction{ix}, authority)
}
