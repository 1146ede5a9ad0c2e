package state

import (
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"paystream/native/bounty"
)

type storedBounty struct {
	Authority  [20]byte
	Token      string
	TargetHash [32]byte
	Bump       uint8
	Vault      [20]byte
	VaultBump  uint8
	CreatedAt  uint64
}

func bountyKey(addr [20]byte) []byte {
	return ethcrypto.Keccak256(bountyRecordPrefix, addr[:])
}

// BountyPut writes a pool record at its derived address.
func (m *Manager) BountyPut(pool *bounty.BountyPool) error {
	if pool == nil {
		return fmt.Errorf("state: pool must not be nil")
	}
	record := storedBounty{
		Authority:  pool.Authority,
		Token:      pool.Token,
		TargetHash: pool.TargetHash,
		Bump:       pool.Bump,
		Vault:      pool.Vault,
		VaultBump:  pool.VaultBump,
		CreatedAt:  uint64(pool.CreatedAt),
	}
	encoded, err := rlp.EncodeToBytes(&record)
	if err != nil {
		return err
	}
	return m.trie.Update(bountyKey(pool.Address), encoded)
}

// BountyGet loads the pool stored at the address, if any.
func (m *Manager) BountyGet(addr [20]byte) (*bounty.BountyPool, bool) {
	raw, err := m.trie.Get(bountyKey(addr))
	if err != nil || len(raw) == 0 {
		return nil, false
	}
	var record storedBounty
	if err := rlp.DecodeBytes(raw, &record); err != nil {
		return nil, false
	}
	return &bounty.BountyPool{
		Address:    addr,
		Authority:  record.Authority,
		Token:      record.Token,
		TargetHash: record.TargetHash,
		Bump:       record.Bump,
		Vault:      record.Vault,
		VaultBump:  record.VaultBump,
		CreatedAt:  int64(record.CreatedAt),
	}, true
}

// BountyDelete erases the pool record at the address.
func (m *Manager) BountyDelete(addr [20]byte) error {
	return m.trie.Delete(bountyKey(addr))
}
