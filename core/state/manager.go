package state

import (
	"fmt"
	"math/big"
	"sort"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"paystream/storage/trie"
)

// Manager mediates every read and write against the state trie. It owns the
// token registry, account balances, custody vault records and the stream and
// bounty records, and implements the narrow state interfaces the native
// engines consume.
//
// Manager is not safe for concurrent use; the node serializes instruction
// application.
type Manager struct {
	trie *trie.Trie
}

// NewManager creates a state manager bound to the given trie.
func NewManager(tr *trie.Trie) (*Manager, error) {
	if tr == nil {
		return nil, fmt.Errorf("state: trie must not be nil")
	}
	return &Manager{trie: tr}, nil
}

// Trie exposes the underlying trie so the node can commit or roll back state
// around instruction boundaries.
func (m *Manager) Trie() *trie.Trie { return m.trie }

type tokenRecord struct {
	Symbol   string
	Name     string
	Decimals uint8
}

func tokenKey(symbol string) []byte {
	return ethcrypto.Keccak256(tokenPrefix, []byte(symbol))
}

func tokenListKey() []byte {
	return ethcrypto.Keccak256(tokenListPrefix)
}

// RegisterToken adds a token to the registry. Registering an existing symbol
// overwrites its metadata but leaves balances untouched.
func (m *Manager) RegisterToken(symbol, name string, decimals uint8) error {
	if symbol == "" {
		return fmt.Errorf("state: token symbol must not be empty")
	}
	record := tokenRecord{Symbol: symbol, Name: name, Decimals: decimals}
	encoded, err := rlp.EncodeToBytes(&record)
	if err != nil {
		return err
	}
	if err := m.trie.Update(tokenKey(symbol), encoded); err != nil {
		return err
	}
	list, err := m.TokenList()
	if err != nil {
		return err
	}
	for _, existing := range list {
		if existing == symbol {
			return nil
		}
	}
	list = append(list, symbol)
	sort.Strings(list)
	encodedList, err := rlp.EncodeToBytes(list)
	if err != nil {
		return err
	}
	return m.trie.Update(tokenListKey(), encodedList)
}

// Token returns the metadata for a registered token.
func (m *Manager) Token(symbol string) (string, uint8, error) {
	raw, err := m.trie.Get(tokenKey(symbol))
	if err != nil {
		return "", 0, err
	}
	if len(raw) == 0 {
		return "", 0, ErrTokenUnknown
	}
	var record tokenRecord
	if err := rlp.DecodeBytes(raw, &record); err != nil {
		return "", 0, err
	}
	return record.Name, record.Decimals, nil
}

// TokenExists reports whether a token symbol is registered.
func (m *Manager) TokenExists(symbol string) bool {
	raw, err := m.trie.Get(tokenKey(symbol))
	return err == nil && len(raw) > 0
}

// TokenList returns the registered token symbols in sorted order.
func (m *Manager) TokenList() ([]string, error) {
	raw, err := m.trie.Get(tokenListKey())
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var list []string
	if err := rlp.DecodeBytes(raw, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func balanceKey(addr [20]byte, token string) []byte {
	return ethcrypto.Keccak256(balancePrefix, addr[:], []byte(token))
}

// Balance returns the token balance of an address. Unknown accounts hold zero.
func (m *Manager) Balance(addr [20]byte, token string) (*big.Int, error) {
	if !m.TokenExists(token) {
		return nil, ErrTokenUnknown
	}
	raw, err := m.trie.Get(balanceKey(addr, token))
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return big.NewInt(0), nil
	}
	value := new(big.Int)
	if err := rlp.DecodeBytes(raw, value); err != nil {
		return nil, err
	}
	return value, nil
}

// SetBalance writes an address's token balance directly. It is the faucet for
// genesis funding and tests; regular flows go through Transfer.
func (m *Manager) SetBalance(addr [20]byte, token string, value *big.Int) error {
	if !m.TokenExists(token) {
		return ErrTokenUnknown
	}
	if value == nil || value.Sign() < 0 {
		return ErrInvalidAmount
	}
	return m.writeBalance(addr, token, value)
}

func (m *Manager) writeBalance(addr [20]byte, token string, value *big.Int) error {
	if _, overflow := uint256.FromBig(value); overflow {
		return ErrBalanceOverflow
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.trie.Update(balanceKey(addr, token), encoded)
}

// Transfer moves amount of token from one account to another. A zero amount is
// a no-op; a negative amount is rejected.
func (m *Manager) Transfer(from, to [20]byte, token string, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 || from == to {
		return nil
	}
	fromBalance, err := m.Balance(from, token)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	toBalance, err := m.Balance(to, token)
	if err != nil {
		return err
	}
	if err := m.writeBalance(from, token, new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	return m.writeBalance(to, token, new(big.Int).Add(toBalance, amount))
}
