package confidential

// TransferProofs are the three independently verifiable artifacts
// backing a confidential transfer.
type TransferProofs struct {
	Equality           []byte
	CiphertextValidity []byte
	Range              []byte
}

// TransferWithFeeProofs adds the two fee artifacts required on mints
// with a confidential fee config.
type TransferWithFeeProofs struct {
	Equality              []byte
	CiphertextValidity    []byte
	FeeSigma              []byte
	FeeCiphertextValidity []byte
	Range                 []byte
}

// ProofGenerator produces the zero-knowledge proof artifacts consumed
// by the proof verification program, and performs the ElGamal
// operations that require the account's secret key. Proof generation is
// pure computation over the snapshot, amount, and public keys; it never
// touches the network.
//
// Implementations typically wrap a native proof library. A generator is
// bound to a single ElGamal keypair.
type ProofGenerator interface {
	// ElGamalPubkey returns the public key of the bound keypair.
	ElGamalPubkey() ElGamalPubkey

	// PubkeyValidityProof proves the bound keypair is well formed.
	PubkeyValidityProof() ([]byte, error)

	// ZeroBalanceProof proves the available balance ciphertext encrypts
	// zero.
	ZeroBalanceProof(availableBalance ElGamalCiphertext) ([]byte, error)

	// WithdrawProof proves the remaining balance after withdrawing
	// amount from currentBalance is non-negative.
	WithdrawProof(availableBalance ElGamalCiphertext, currentBalance, amount uint64) ([]byte, error)

	// TransferProofs generates the three split transfer proofs.
	TransferProofs(availableBalance ElGamalCiphertext, currentBalance, amount uint64, dest, auditor ElGamalPubkey) (*TransferProofs, error)

	// TransferWithFeeProofs generates the five split transfer proofs
	// for a fee-bearing transfer.
	TransferWithFeeProofs(availableBalance ElGamalCiphertext, currentBalance, amount uint64, dest, auditor, withdrawWithheldAuthority ElGamalPubkey, transferFeeBasisPoints uint16, maximumFee uint64) (*TransferWithFeeProofs, error)

	// WithdrawWithheldProof proves the withheld fee ciphertext and its
	// re-encryption under dest's key encrypt the same amount.
	WithdrawWithheldProof(withheldAmount ElGamalCiphertext, dest ElGamalPubkey) ([]byte, error)

	// DecryptPendingBalance decrypts the split pending balance
	// ciphertexts.
	DecryptPendingBalance(lo, hi ElGamalCiphertext) (uint64, error)

	// AggregateWithheldAmounts homomorphically sums withheld fee
	// ciphertexts encrypted under the withdraw withheld authority's
	// key.
	AggregateWithheldAmounts(withheldAmounts []ElGamalCiphertext) (ElGamalCiphertext, error)
}
