// Package confidential provides the client-side balance tracking types
// for confidential token accounts: authenticated encryption of the
// decryptable balance, account snapshots, and the capability interface
// for zero-knowledge proof generation.
package confidential

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// ElGamalPubkeySize is the byte size of a twisted ElGamal public key.
	ElGamalPubkeySize = 32

	// ElGamalCiphertextSize is the byte size of a twisted ElGamal
	// ciphertext.
	ElGamalCiphertextSize = 64

	// AeKeySize is the byte size of an authenticated encryption key.
	AeKeySize = chacha20poly1305.KeySize

	// DecryptableBalanceSize is the byte size of an encrypted balance:
	// a nonce followed by the sealed 64-bit amount.
	DecryptableBalanceSize = chacha20poly1305.NonceSize + 8 + chacha20poly1305.Overhead
)

// ElGamalPubkey is the public half of an ElGamal keypair. The secret
// half never enters this package; it lives behind ProofGenerator.
type ElGamalPubkey []byte

// ElGamalCiphertext is an opaque encrypted balance or amount.
type ElGamalCiphertext []byte

// DecryptableBalance is a balance encrypted under an AeKey. Unlike
// ElGamal ciphertexts, it can be decrypted cheaply by the holder.
type DecryptableBalance []byte

var (
	// ErrKeyMismatch indicates a decryptable balance could not be opened
	// with the provided key.
	ErrKeyMismatch = errors.New("decryptable balance does not match key")

	// ErrInsufficientBalance indicates the decrypted available balance
	// cannot cover the requested amount.
	ErrInsufficientBalance = errors.New("insufficient decrypted balance")
)

// AeKey is a symmetric authenticated encryption key for decryptable
// balances.
type AeKey []byte

// NewAeKey generates a random authenticated encryption key.
func NewAeKey() (AeKey, error) {
	key := make([]byte, AeKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, errors.Wrap(err, "failed to generate key")
	}
	return key, nil
}

// Encrypt seals amount under a fresh random nonce.
func (k AeKey) Encrypt(amount uint64) (DecryptableBalance, error) {
	aead, err := chacha20poly1305.New(k)
	if err != nil {
		return nil, errors.Wrap(err, "invalid key")
	}

	balance := make([]byte, chacha20poly1305.NonceSize, DecryptableBalanceSize)
	if _, err := rand.Read(balance); err != nil {
		return nil, errors.Wrap(err, "failed to generate nonce")
	}

	var plaintext [8]byte
	binary.LittleEndian.PutUint64(plaintext[:], amount)

	return aead.Seal(balance, balance[:chacha20poly1305.NonceSize], plaintext[:], nil), nil
}

// Decrypt opens a decryptable balance. ErrKeyMismatch is returned when
// the balance was sealed under a different key or has been tampered
// with.
func (k AeKey) Decrypt(balance DecryptableBalance) (uint64, error) {
	if len(balance) != DecryptableBalanceSize {
		return 0, errors.Errorf("invalid decryptable balance size: %d", len(balance))
	}

	aead, err := chacha20poly1305.New(k)
	if err != nil {
		return 0, errors.Wrap(err, "invalid key")
	}

	plaintext, err := aead.Open(nil, balance[:chacha20poly1305.NonceSize], balance[chacha20poly1305.NonceSize:], nil)
	if err != nil {
		return 0, ErrKeyMismatch
	}

	return binary.LittleEndian.Uint64(plaintext), nil
}
