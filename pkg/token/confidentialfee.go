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

// ConfidentialWithdrawWithheldTokensFromMint moves fees withheld on the
// mint into dest's pending confidential balance, proving the
// re-encryption under dest's key matches the withheld ciphertext.
func (t *Token) ConfidentialWithdrawWithheldTokensFromMint(dest ed25519.PublicKey, authority ed25519.PrivateKey, generator confidential.ProofGenerator, signers ...ed25519.PrivateKey) (solana.Signature, error) {
	_, mintData, err := t.GetMintInfo(solana.CommitmentConfirmed)
	if err != nil {
		return solana.Signature{}, err
	}

	feeConfig, err := tokenprogram.GetConfidentialTransferFeeConfig(mintData)
	if err != nil {
		return solana.Signature{}, errors.Wrap(err, "failed to get confidential transfer fee config")
	}

	destState, err := t.getConfidentialAccountState(dest)
	if err != nil {
		return solana.Signature{}, err
	}

	proof, err := generator.WithdrawWithheldProof(confidential.ElGamalCiphertext(feeConfig.WithheldAmount), confidential.ElGamalPubkey(destState.ElGamalPubkey))
	if err != nil {
		return solana.Signature{}, errors.Wrap(ErrProofGeneration, err.Error())
	}

	return t.withdrawWithheld(dest, authority, proof, nil, signers)
}

// ConfidentialWithdrawWithheldTokensFromAccounts sweeps withheld fees
// out of the given token accounts into dest's pending balance. Source
// snapshots are fetched concurrently; their ciphertexts are aggregated
// by the proof capability before proving.
func (t *Token) ConfidentialWithdrawWithheldTokensFromAccounts(dest ed25519.PublicKey, authority ed25519.PrivateKey, sources []ed25519.PublicKey, generator confidential.ProofGenerator, signers ...ed25519.PrivateKey) (solana.Signature, error) {
	if len(sources) == 0 {
		return solana.Signature{}, errors.New("no source accounts")
	}

	withheld := make([]confidential.ElGamalCiphertext, len(sources))

	var group errgroup.Group
	for i, source := range sources {
		i, source := i, source
		group.Go(func() error {
			_, data, err := t.GetAccountInfo(source, solana.CommitmentConfirmed)
			if err != nil {
				return err
			}

			amount, err := tokenprogram.GetConfidentialWithheldAmount(data)
			if err != nil {
				return errors.Wrapf(err, "failed to get withheld amount for source %d", i)
			}

			withheld[i] = confidential.ElGamalCiphertext(amount)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return solana.Signature{}, err
	}

	aggregate, err := generator.AggregateWithheldAmounts(withheld)
	if err != nil {
		return solana.Signature{}, errors.Wrap(ErrProofGeneration, err.Error())
	}

	destState, err := t.getConfidentialAccountState(dest)
	if err != nil {
		return solana.Signature{}, err
	}

	proof, err := generator.WithdrawWithheldProof(aggregate, confidential.ElGamalPubkey(destState.ElGamalPubkey))
	if err != nil {
		return solana.Signature{}, errors.Wrap(ErrProofGeneration, err.Error())
	}

	return t.withdrawWithheld(dest, authority, proof, sources, signers)
}

// withdrawWithheld builds the single transaction shared by the from-mint
// and from-accounts paths: verify the equality proof into a scratch
// context, withdraw, reclaim the scratch.
func (t *Token) withdrawWithheld(dest ed25519.PublicKey, authority ed25519.PrivateKey, proof []byte, sources []ed25519.PublicKey, signers []ed25519.PrivateKey) (solana.Signature, error) {
	scratch, scratchKey, err := ed25519.GenerateKey(nil)
	if err != nil {
		return solana.Signature{}, errors.Wrap(err, "failed to generate scratch account")
	}

	authorityPub := authority.Public().(ed25519.PublicKey)
	multisig, signingKeys := resolveAuthority(authority, signers)

	ixs, err := t.buildProofContext(zkproof.CommandVerifyCiphertextCommitmentEquality, scratch, authorityPub, proof)
	if err != nil {
		return solana.Signature{}, err
	}

	if len(sources) == 0 {
		ixs = append(ixs, tokenprogram.ConfidentialWithdrawWithheldTokensFromMint(t.mint, dest, scratch, authorityPub, multisig...))
	} else {
		ixs = append(ixs, tokenprogram.ConfidentialWithdrawWithheldTokensFromAccounts(t.mint, dest, scratch, authorityPub, sources, multisig...))
	}
	ixs = append(ixs, zkproof.CloseContextState(scratch, t.Payer(), authorityPub))

	return t.ProcessIxs(ixs, append(signingKeys, scratchKey)...)
}

// ConfidentialHarvestWithheldTokensToMint sweeps withheld fees from the
// given accounts back onto the mint. Permissionless, so no authority is
// required beyond the fee payer.
func (t *Token) ConfidentialHarvestWithheldTokensToMint(sources ...ed25519.PublicKey) (solana.Signature, error) {
	ix := tokenprogram.ConfidentialHarvestWithheldTokensToMint(t.mint, sources...)
	return t.ProcessIxs([]solana.Instruction{ix})
}

// EnableHarvestToMint allows permissionless harvesting of withheld fees
// to the mint.
func (t *Token) EnableHarvestToMint(authority ed25519.PrivateKey, signers ...ed25519.PrivateKey) (solana.Signature, error) {
	authorityPub := authority.Public().(ed25519.PublicKey)
	multisig, signingKeys := resolveAuthority(authority, signers)

	ix := tokenprogram.EnableHarvestToMint(t.mint, authorityPub, multisig...)
	return t.ProcessIxs([]solana.Instruction{ix}, signingKeys...)
}

// DisableHarvestToMint disables permissionless harvesting.
func (t *Token) DisableHarvestToMint(authority ed25519.PrivateKey, signers ...ed25519.PrivateKey) (solana.Signature, error) {
	authorityPub := authority.Public().(ed25519.PublicKey)
	multisig, signingKeys := resolveAuthority(authority, signers)

	ix := tokenprogram.DisableHarvestToMint(t.mint, authorityPub, multisig...)
	return t.ProcessIxs([]solana.Instruction{ix}, signingKeys...)
}
