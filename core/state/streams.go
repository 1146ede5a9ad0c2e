package state

import (
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"paystream/native/stream"
)

// storedStream is the RLP shape of a stream session record. Timestamps are
// stored unsigned because the codec has no signed integer support.
type storedStream struct {
	Payer             [20]byte
	Host              [20]byte
	Token             string
	Rate              *big.Int
	TotalDeposited    *big.Int
	AccumulatedAmount *big.Int
	Active            bool
	Delegated         bool
	Bump              uint8
	Vault             [20]byte
	VaultBump         uint8
	CreatedAt         uint64
}

func streamKey(addr [20]byte) []byte {
	return ethcrypto.Keccak256(streamRecordPrefix, addr[:])
}

// StreamPut writes a session record at its derived address.
func (m *Manager) StreamPut(session *stream.StreamSession) error {
	if session == nil {
		return fmt.Errorf("state: session must not be nil")
	}
	record := storedStream{
		Payer:             session.Payer,
		Host:              session.Host,
		Token:             session.Token,
		Rate:              session.Rate,
		TotalDeposited:    session.TotalDeposited,
		AccumulatedAmount: session.AccumulatedAmount,
		Active:            session.Active,
		Delegated:         session.Delegated,
		Bump:              session.Bump,
		Vault:             session.Vault,
		VaultBump:         session.VaultBump,
		CreatedAt:         uint64(session.CreatedAt),
	}
	encoded, err := rlp.EncodeToBytes(&record)
	if err != nil {
		return err
	}
	return m.trie.Update(streamKey(session.Address), encoded)
}

// StreamGet loads the session stored at the address, if any.
func (m *Manager) StreamGet(addr [20]byte) (*stream.StreamSession, bool) {
	raw, err := m.trie.Get(streamKey(addr))
	if err != nil || len(raw) == 0 {
		return nil, false
	}
	var record storedStream
	if err := rlp.DecodeBytes(raw, &record); err != nil {
		return nil, false
	}
	return &stream.StreamSession{
		Address:           addr,
		Payer:             record.Payer,
		Host:              record.Host,
		Token:             record.Token,
		Rate:              record.Rate,
		TotalDeposited:    record.TotalDeposited,
		AccumulatedAmount: record.AccumulatedAmount,
		Active:            record.Active,
		Delegated:         record.Delegated,
		Bump:              record.Bump,
		Vault:             record.Vault,
		VaultBump:         record.VaultBump,
		CreatedAt:         int64(record.CreatedAt),
	}, true
}

// StreamDelete erases the session record at the address.
func (m *Manager) StreamDelete(addr [20]byte) error {
	return m.trie.Delete(streamKey(addr))
}
