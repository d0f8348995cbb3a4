package token

import (
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/token-client/pkg/confidential"
	"github.com/code-payments/token-client/pkg/solana"
	"github.com/code-payments/token-client/pkg/solana/system"
	tokenprogram "github.com/code-payments/token-client/pkg/solana/token"
	"github.com/code-payments/token-client/pkg/solana/zkproof"
)

const (
	// defaultMaxPendingBalanceCreditCounter is how many deposits or
	// transfers an account can receive before the pending balance must
	// be applied.
	defaultMaxPendingBalanceCreditCounter = 65536

	// maxDepositAmount bounds a single confidential deposit; amounts are
	// split into 48-bit chunks for range proofs.
	maxDepositAmount = (1 << 48) - 1
)

// buildProofContext returns the paired create account and verify proof
// instructions that materialize a proof's verification context in a
// scratch account. The scratch account must sign the transaction; the
// authority is recorded as the only key allowed to close the context.
// Nothing is submitted here, callers decide batching.
func (t *Token) buildProofContext(cmd zkproof.Command, scratch, authority ed25519.PublicKey, proof []byte) ([]solana.Instruction, error) {
	size, ok := zkproof.GetContextStateSize(cmd)
	if !ok {
		return nil, errors.Errorf("no context state size for proof command %d", cmd)
	}

	lamports, err := t.client.GetMinimumBalanceForRentExemption(size)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get minimum balance for rent exemption")
	}

	return []solana.Instruction{
		system.CreateAccount(t.Payer(), scratch, zkproof.ProgramKey, lamports, size),
		zkproof.VerifyProof(cmd, proof, scratch, authority),
	}, nil
}

func (t *Token) getConfidentialAccountState(account ed25519.PublicKey) (*tokenprogram.ConfidentialTransferAccount, error) {
	_, data, err := t.GetAccountInfo(account, solana.CommitmentConfirmed)
	if err != nil {
		return nil, err
	}
	return tokenprogram.GetConfidentialTransferAccount(data)
}

// ConfidentialTransferConfigureTokenAccount readies an existing token
// account for confidential transfers: it verifies a pubkey validity
// proof into a scratch context, configures the account with an
// encrypted zero balance, and reclaims the scratch account, all in one
// transaction.
func (t *Token) ConfidentialTransferConfigureTokenAccount(account ed25519.PublicKey, authority ed25519.PrivateKey, generator confidential.ProofGenerator, key confidential.AeKey, signers ...ed25519.PrivateKey) (solana.Signature, error) {
	proof, err := generator.PubkeyValidityProof()
	if err != nil {
		return solana.Signature{}, errors.Wrap(ErrProofGeneration, err.Error())
	}

	zeroBalance, err := key.Encrypt(0)
	if err != nil {
		return solana.Signature{}, errors.Wrap(ErrAccountDecryption, err.Error())
	}

	scratch, scratchKey, err := ed25519.GenerateKey(nil)
	if err != nil {
		return solana.Signature{}, errors.Wrap(err, "failed to generate scratch account")
	}

	authorityPub := authority.Public().(ed25519.PublicKey)
	multisig, signingKeys := resolveAuthority(authority, signers)

	ixs, err := t.buildProofContext(zkproof.CommandVerifyPubkeyValidity, scratch, authorityPub, proof)
	if err != nil {
		return solana.Signature{}, err
	}
	ixs = append(ixs,
		tokenprogram.ConfidentialConfigureAccount(account, t.mint, scratch, authorityPub, zeroBalance, defaultMaxPendingBalanceCreditCounter, multisig...),
		zkproof.CloseContextState(scratch, t.Payer(), authorityPub),
	)

	return t.ProcessIxs(ixs, append(signingKeys, scratchKey)...)
}

// ConfidentialTransferApproveAccount approves a configured account on a
// mint without auto-approval, using the mint's confidential transfer
// authority.
func (t *Token) ConfidentialTransferApproveAccount(account ed25519.PublicKey, authority ed25519.PrivateKey) (solana.Signature, error) {
	ix := tokenprogram.ConfidentialApproveAccount(account, t.mint, authority.Public().(ed25519.PublicKey))
	return t.ProcessIxs([]solana.Instruction{ix}, authority)
}

// ConfidentialTransferUpdateMint updates the mint's auto-approve policy
// and auditor key.
func (t *Token) ConfidentialTransferUpdateMint(authority ed25519.PrivateKey, autoApproveNewAccounts bool, auditorElGamalPubkey []byte) (solana.Signature, error) {
	ix := tokenprogram.ConfidentialUpdateMint(t.mint, authority.Public().(ed25519.PublicKey), autoApproveNewAccounts, auditorElGamalPubkey)
	return t.ProcessIxs([]solana.Instruction{ix}, authority)
}

// ConfidentialTransferDeposit moves public balance into the account's
// pending confidential balance.
func (t *Token) ConfidentialTransferDeposit(account ed25519.PublicKey, authority ed25519.PrivateKey, amount uint64, signers ...ed25519.PrivateKey) (solana.Signature, error) {
	if t.decimals == nil {
		return solana.Signature{}, ErrMissingDecimals
	}
	if amount > maxDepositAmount {
		return solana.Signature{}, ErrMaximumDepositExceeded
	}

	authorityPub := authority.Public().(ed25519.PublicKey)
	multisig, signingKeys := resolveAuthority(authority, signers)

	ix := tokenprogram.ConfidentialDeposit(account, t.mint, authorityPub, amount, *t.decimals, multisig...)
	return t.ProcessIxs([]solana.Instruction{ix}, signingKeys...)
}

// ConfidentialTransferWithdraw moves available confidential balance back
// to the public balance, proving the remainder is non-negative.
func (t *Token) ConfidentialTransferWithdraw(account ed25519.PublicKey, authority ed25519.PrivateKey, amount uint64, generator confidential.ProofGenerator, key confidential.AeKey, signers ...ed25519.PrivateKey) (solana.Signature, error) {
	if t.decimals == nil {
		return solana.Signature{}, ErrMissingDecimals
	}

	state, err := t.getConfidentialAccountState(account)
	if err != nil {
		return solana.Signature{}, err
	}
	info := confidential.NewWithdrawAccountInfo(state)

	currentBalance, err := info.CurrentBalance(key)
	if err != nil {
		return solana.Signature{}, errors.Wrap(ErrAccountDecryption, err.Error())
	}

	newBalance, err := info.NewDecryptableAvailableBalance(amount, key)
	if err == confidential.ErrInsufficientBalance {
		return solana.Signature{}, err
	} else if err != nil {
		return solana.Signature{}, errors.Wrap(ErrAccountDecryption, err.Error())
	}

	proof, err := generator.WithdrawProof(info.AvailableBalance(), currentBalance, amount)
	if err != nil {
		return solana.Signature{}, errors.Wrap(ErrProofGeneration, err.Error())
	}

	scratch, scratchKey, err := ed25519.GenerateKey(nil)
	if err != nil {
		return solana.Signature{}, errors.Wrap(err, "failed to generate scratch account")
	}

	authorityPub := authority.Public().(ed25519.PublicKey)
	multisig, signingKeys := resolveAuthority(authority, signers)

	ixs, err := t.buildProofContext(zkproof.CommandVerifyWithdraw, scratch, authorityPub, proof)
	if err != nil {
		return solana.Signature{}, err
	}
	ixs = append(ixs,
		tokenprogram.ConfidentialWithdraw(account, t.mint, scratch, authorityPub, amount, *t.decimals, newBalance, multisig...),
		zkproof.CloseContextState(scratch, t.Payer(), authorityPub),
	)

	return t.ProcessIxs(ixs, append(signingKeys, scratchKey)...)
}

// ConfidentialTransferApplyPendingBalance rolls the pending balance
// into the available balance, pinned to the credit counter observed at
// snapshot time.
func (t *Token) ConfidentialTransferApplyPendingBalance(account ed25519.PublicKey, authority ed25519.PrivateKey, generator confidential.ProofGenerator, key confidential.AeKey, signers ...ed25519.PrivateKey) (solana.Signature, error) {
	state, err := t.getConfidentialAccountState(account)
	if err != nil {
		return solana.Signature{}, err
	}
	info := confidential.NewApplyPendingBalanceAccountInfo(state)

	pending, err := generator.DecryptPendingBalance(info.PendingBalanceLo(), info.PendingBalanceHi())
	if err != nil {
		return solana.Signature{}, errors.Wrap(ErrAccountDecryption, err.Error())
	}

	newBalance, err := info.NewDecryptableAvailableBalance(pending, key)
	if err != nil {
		return solana.Signature{}, errors.Wrap(ErrAccountDecryption, err.Error())
	}

	authorityPub := authority.Public().(ed25519.PublicKey)
	multisig, signingKeys := resolveAuthority(authority, signers)

	ix := tokenprogram.ConfidentialApplyPendingBalance(account, authorityPub, info.ExpectedPendingBalanceCreditCounter(), newBalance, multisig...)
	return t.ProcessIxs([]solana.Instruction{ix}, signingKeys...)
}

// ConfidentialTransferEmptyAccount proves the available balance is zero
// and empties it, a prerequisite to closing the account.
func (t *Token) ConfidentialTransferEmptyAccount(account ed25519.PublicKey, authority ed25519.PrivateKey, generator confidential.ProofGenerator, signers ...ed25519.PrivateKey) (solana.Signature, error) {
	state, err := t.getConfidentialAccountState(account)
	if err != nil {
		return solana.Signature{}, err
	}
	info := confidential.NewEmptyAccountAccountInfo(state)

	proof, err := generator.ZeroBalanceProof(info.AvailableBalance())
	if err != nil {
		return solana.Signature{}, errors.Wrap(ErrProofGeneration, err.Error())
	}

	scratch, scratchKey, err := ed25519.GenerateKey(nil)
	if err != nil {
		return solana.Signature{}, errors.Wrap(err, "failed to generate scratch account")
	}

	authorityPub := authority.Public().(ed25519.PublicKey)
	multisig, signingKeys := resolveAuthority(authority, signers)

	ixs, err := t.buildProofContext(zkproof.CommandVerifyZeroBalance, scratch, authorityPub, proof)
	if err != nil {
		return solana.Signature{}, err
	}
	ixs = append(ixs,
		tokenprogram.ConfidentialEmptyAccount(account, scratch, authorityPub, multisig...),
		zkproof.CloseContextState(scratch, t.Payer(), authorityPub),
	)

	return t.ProcessIxs(ixs, append(signingKeys, scratchKey)...)
}

// EmptyAndCloseAccount empties a confidential account and closes it in
// one transaction, reclaiming rent to dest.
func (t *Token) EmptyAndCloseAccount(account, dest ed25519.PublicKey, authority ed25519.PrivateKey, generator confidential.ProofGenerator, signers ...ed25519.PrivateKey) (solana.Signature, error) {
	state, err := t.getConfidentialAccountState(account)
	if err != nil {
		return solana.Signature{}, err
	}
	info := confidential.NewEmptyAccountAccountInfo(state)

	proof, err := generator.ZeroBalanceProof(info.AvailableBalance())
	if err != nil {
		return solana.Signature{}, errors.Wrap(ErrProofGeneration, err.Error())
	}

	scratch, scratchKey, err := ed25519.GenerateKey(nil)
	if err != nil {
		return solana.Signature{}, errors.Wrap(err, "failed to generate scratch account")
	}

	authorityPub := authority.Public().(ed25519.PublicKey)
	multisig, signingKeys := resolveAuthority(authority, signers)

	ixs, err := t.buildProofContext(zkproof.CommandVerifyZeroBalance, scratch, authorityPub, proof)
	if err != nil {
		return solana.Signature{}, err
	}
	ixs = append(ixs,
		tokenprogram.ConfidentialEmptyAccount(account, scratch, authorityPub, multisig...),
		withMultisig(tokenprogram.CloseAccount(account, dest, authorityPub), authorityPub, multisig),
		zkproof.CloseContextState(scratch, t.Payer(), authorityPub),
	)

	return t.ProcessIxs(ixs, append(signingKeys, scratchKey)...)
}

// EnableConfidentialCredits allows the account to receive confidential
// transfers.
func (t *Token) EnableConfidentialCredits(account ed25519.PublicKey, authority ed25519.PrivateKey, signers ...ed25519.PrivateKey) (solana.Signature, error) {
	return t.confidentialToggle(tokenprogram.ConfidentialEnableConfidentialCredits, account, authority, signers)
}

// DisableConfidentialCredits blocks incoming confidential transfers.
func (t *Token) DisableConfidentialCredits(account ed25519.PublicKey, authority ed25519.PrivateKey, signers ...ed25519.PrivateKey) (solana.Signature, error) {
	return t.confidentialToggle(tokenprogram.ConfidentialDisableConfidentialCredits, account, authority, signers)
}

// EnableNonConfidentialCredits allows the account to receive regular
// transfers.
func (t *Token) EnableNonConfidentialCredits(account ed25519.PublicKey, authority ed25519.PrivateKey, signers ...ed25519.PrivateKey) (solana.Signature, error) {
	return t.confidentialToggle(tokenprogram.ConfidentialEnableNonConfidentialCredits, account, authority, signers)
}

// DisableNonConfidentialCredits blocks incoming regular transfers.
func (t *Token) DisableNonConfidentialCredits(account ed25519.PublicKey, authority ed25519.PrivateKey, signers ...ed25519.PrivateKey) (solana.Signature, error) {
	return t.confidentialToggle(tokenprogram.ConfidentialDisableNonConfidentialCredits, account, authority, signers)
}

func (t *Token) confidentialToggle(builder func(account, authority ed25519.PublicKey, signers ...ed25519.PublicKey) solana.Instruction, account ed25519.PublicKey, authority ed25519.PrivateKey, signers []ed25519.PrivateKey) (solana.Signature, error) {
	authorityPub := authority.Public().(ed25519.PublicKey)
	multisig, signingKeys := resolveAuthority(authority, signers)

	ix := builder(account, authorityPub, multisig...)
	return t.ProcessIxs([]solana.Instruction{ix}, signingKeys...)
}
