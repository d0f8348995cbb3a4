package confidential

import (
	"github.com/code-payments/token-client/pkg/solana/token"
)

// TransferAccountInfo is a point-in-time view of a source account used
// to derive transfer proofs and the re-encrypted balance. Snapshots are
// never persisted; take a fresh one per operation.
type TransferAccountInfo struct {
	state *token.ConfidentialTransferAccount
}

func NewTransferAccountInfo(state *token.ConfidentialTransferAccount) *TransferAccountInfo {
	return &TransferAccountInfo{state: state}
}

func (i *TransferAccountInfo) AvailableBalance() ElGamalCiphertext {
	return ElGamalCiphertext(i.state.AvailableBalance)
}

func (i *TransferAccountInfo) DecryptableAvailableBalance() DecryptableBalance {
	return DecryptableBalance(i.state.DecryptableAvailableBalance)
}

// CurrentBalance decrypts the recorded available balance.
func (i *TransferAccountInfo) CurrentBalance(key AeKey) (uint64, error) {
	return key.Decrypt(i.DecryptableAvailableBalance())
}

// NewDecryptableAvailableBalance derives the source account's balance
// ciphertext after debiting transferAmount. ErrKeyMismatch means the
// key does not match the account's recorded balance.
func (i *TransferAccountInfo) NewDecryptableAvailableBalance(transferAmount uint64, key AeKey) (DecryptableBalance, error) {
	current, err := key.Decrypt(i.DecryptableAvailableBalance())
	if err != nil {
		return nil, err
	}
	if transferAmount > current {
		return nil, ErrInsufficientBalance
	}

	return key.Encrypt(current - transferAmount)
}

// WithdrawAccountInfo is a point-in-time view of an account used to
// derive withdraw proofs and the re-encrypted balance.
type WithdrawAccountInfo struct {
	state *token.ConfidentialTransferAccount
}

func NewWithdrawAccountInfo(state *token.ConfidentialTransferAccount) *WithdrawAccountInfo {
	return &WithdrawAccountInfo{state: state}
}

func (i *WithdrawAccountInfo) AvailableBalance() ElGamalCiphertext {
	return ElGamalCiphertext(i.state.AvailableBalance)
}

func (i *WithdrawAccountInfo) CurrentBalance(key AeKey) (uint64, error) {
	return key.Decrypt(DecryptableBalance(i.state.DecryptableAvailableBalance))
}

func (i *WithdrawAccountInfo) NewDecryptableAvailableBalance(withdrawAmount uint64, key AeKey) (DecryptableBalance, error) {
	current, err := key.Decrypt(DecryptableBalance(i.state.DecryptableAvailableBalance))
	if err != nil {
		return nil, err
	}
	if withdrawAmount > current {
		return nil, ErrInsufficientBalance
	}

	return key.Encrypt(current - withdrawAmount)
}

// EmptyAccountAccountInfo is a point-in-time view of an account being
// emptied ahead of closure.
type EmptyAccountAccountInfo struct {
	state *token.ConfidentialTransferAccount
}

func NewEmptyAccountAccountInfo(state *token.ConfidentialTransferAccount) *EmptyAccountAccountInfo {
	return &EmptyAccountAccountInfo{state: state}
}

func (i *EmptyAccountAccountInfo) AvailableBalance() ElGamalCiphertext {
	return ElGamalCiphertext(i.state.AvailableBalance)
}

// ApplyPendingBalanceAccountInfo is a point-in-time view of an account
// rolling its pending balance into the available balance.
type ApplyPendingBalanceAccountInfo struct {
	state *token.ConfidentialTransferAccount
}

func NewApplyPendingBalanceAccountInfo(state *token.ConfidentialTransferAccount) *ApplyPendingBalanceAccountInfo {
	return &ApplyPendingBalanceAccountInfo{state: state}
}

// ExpectedPendingBalanceCreditCounter pins the instruction to the
// credit counter observed at snapshot time, so a deposit landing
// between snapshot and apply is rejected instead of silently folded in.
func (i *ApplyPendingBalanceAccountInfo) ExpectedPendingBalanceCreditCounter() uint64 {
	return i.state.PendingBalanceCreditCounter
}

func (i *ApplyPendingBalanceAccountInfo) PendingBalanceLo() ElGamalCiphertext {
	return ElGamalCiphertext(i.state.PendingBalanceLo)
}

func (i *ApplyPendingBalanceAccountInfo) PendingBalanceHi() ElGamalCiphertext {
	return ElGamalCiphertext(i.state.PendingBalanceHi)
}

// NewDecryptableAvailableBalance derives the balance ciphertext after
// crediting the decrypted pending amount. Decrypting the pending
// ciphertexts requires the ElGamal secret and is done by the
// ProofGenerator capability.
func (i *ApplyPendingBalanceAccountInfo) NewDecryptableAvailableBalance(pendingAmount uint64, key AeKey) (DecryptableBalance, error) {
	current, err := key.Decrypt(DecryptableBalance(i.state.DecryptableAvailableBalance))
	if err != nil {
		return nil, err
	}

	return key.Encrypt(current + pendingAmount)
}
