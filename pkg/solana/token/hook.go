package token

import (
	"crypto/ed25519"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/code-payments/token-client/pkg/solana"
)

// TransferHook is the mint-level transfer hook extension state.
type TransferHook struct {
	Authority ed25519.PublicKey
	ProgramID ed25519.PublicKey
}

func (h *TransferHook) Unmarshal(b []byte) bool {
	if len(b) != extensionSizes[ExtensionTransferHook] {
		return false
	}

	h.Authority = append([]byte(nil), b[0:32]...)
	h.ProgramID = append([]byte(nil), b[32:64]...)
	return true
}

// GetTransferHook extracts the transfer hook extension from raw mint
// account data. A zero program ID means the hook has been unset.
func GetTransferHook(mintData []byte) (*TransferHook, error) {
	value, ok := GetExtension(mintData, ExtensionTransferHook)
	if !ok {
		return nil, errors.New("mint has no transfer hook extension")
	}

	var state TransferHook
	if !state.Unmarshal(value) {
		return nil, errors.New("invalid transfer hook state")
	}
	return &state, nil
}

// GetExtraAccountMetaAddress returns the address the hook program's
// extra account metas are stored at for a given mint.
func GetExtraAccountMetaAddress(mint, hookProgram ed25519.PublicKey) (ed25519.PublicKey, error) {
	return solana.FindProgramAddress(
		hookProgram,
		[]byte("extra-account-metas"),
		mint,
	)
}

const extraAccountMetaSize = 35

// ExtraAccountMeta is one additional account a transfer hook program
// requires on transfer instructions.
type ExtraAccountMeta struct {
	Discriminator byte
	AddressConfig [32]byte
	IsSigner      bool
	IsWritable    bool
}

// ParseExtraAccountMetaList parses the extra account metas stored in a
// hook program's validation account. The layout is an 8 byte interface
// discriminator, a 4 byte data length, a 4 byte count, then the fixed
// size metas.
func ParseExtraAccountMetaList(data []byte) ([]ExtraAccountMeta, error) {
	if len(data) < 16 {
		return nil, errors.New("extra account meta data too short")
	}

	count := int(binary.LittleEndian.Uint32(data[12:]))
	if len(data) < 16+count*extraAccountMetaSize {
		return nil, errors.Errorf("extra account meta data too short for %d entries", count)
	}

	metas := make([]ExtraAccountMeta, count)
	for i := 0; i < count; i++ {
		b := data[16+i*extraAccountMetaSize:]
		metas[i].Discriminator = b[0]
		copy(metas[i].AddressConfig[:], b[1:33])
		metas[i].IsSigner = b[33] == 1
		metas[i].IsWritable = b[34] == 1
	}
	return metas, nil
}

// ResolveAddress maps an ExtraAccountMeta to a concrete account meta.
// Only literal addresses are supported; seed-derived configurations
// require replicating the hook program's seed rules and are rejected.
func (m ExtraAccountMeta) ResolveAddress() (solana.AccountMeta, error) {
	if m.Discriminator != 0 {
		return solana.AccountMeta{}, errors.Errorf("unsupported extra account meta discriminator: %d", m.Discriminator)
	}

	meta := solana.AccountMeta{
		PublicKey:  append([]byte(nil), m.AddressConfig[:]...),
		IsSigner:   m.IsSigner,
		IsWritable: m.IsWritable,
	}
	return meta, nil
}
