package state

import (
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"paystream/crypto"
)

// storedVault pins the derivation metadata of a custody account. Debits must
// reproduce the vault address from exactly this label and bump before funds
// move; that re-derivation is the custody layer's whole authorization model.
type storedVault struct {
	Label string
	Bump  uint8
}

func vaultKey(addr [20]byte) []byte {
	return ethcrypto.Keccak256(vaultRecordPrefix, addr[:])
}

// VaultCreate registers a custody vault at the derived address. The address
// must not already carry a vault record.
func (m *Manager) VaultCreate(vault [20]byte, label string, bump uint8) error {
	key := vaultKey(vault)
	raw, err := m.trie.Get(key)
	if err != nil {
		return err
	}
	if len(raw) > 0 {
		return ErrVaultExists
	}
	encoded, err := rlp.EncodeToBytes(&storedVault{Label: label, Bump: bump})
	if err != nil {
		return err
	}
	return m.trie.Update(key, encoded)
}

// VaultExists reports whether a vault record is registered at the address.
func (m *Manager) VaultExists(vault [20]byte) bool {
	raw, err := m.trie.Get(vaultKey(vault))
	return err == nil && len(raw) > 0
}

// VaultClose removes the vault record. Balances under the address are left as
// they are; callers drain the vault before closing it.
func (m *Manager) VaultClose(vault [20]byte) error {
	return m.trie.Delete(vaultKey(vault))
}

// CustodyWithdraw debits a custody vault. The caller supplies the label, bump
// and seed components; the withdrawal goes through only if the vault record
// matches and the inputs re-derive the vault address. No key ever signs for a
// vault, so this re-derivation is the only spend authority that exists.
func (m *Manager) CustodyWithdraw(vault [20]byte, label string, bump uint8, components [][]byte, to [20]byte, token string, amount *big.Int) error {
	raw, err := m.trie.Get(vaultKey(vault))
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return ErrVaultNotFound
	}
	var record storedVault
	if err := rlp.DecodeBytes(raw, &record); err != nil {
		return err
	}
	if record.Label != label || record.Bump != bump {
		return ErrAddressMismatch
	}
	if !crypto.VerifyDerived(vault, label, bump, components...) {
		return ErrAddressMismatch
	}
	return m.Transfer(vault, to, token, amount)
}
