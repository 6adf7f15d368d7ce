package state

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"solstice/core/types"
	"solstice/native/sale"
	"solstice/native/treasury"
	"solstice/storage"
)

const (
	keySale       = "sale/state"
	keySupply     = "sale/supply"
	prefixAccount = "account/"
	prefixPart    = "sale/participant/"
	prefixDist    = "sale/dist/"
	prefixDistSum = "sale/dist-total/"
	keyTreasury   = "treasury/state"
)

// Manager adapts a key-value store to the state interfaces the engines
// consume. Values are JSON encoded; the mutex keeps the host free to serve
// concurrent readers while engine operations stay serialized.
type Manager struct {
	mu sync.RWMutex
	db storage.Database
}

// NewManager wraps the given database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func addrKey(prefix string, addr [20]byte) []byte {
	return []byte(prefix + hex.EncodeToString(addr[:]))
}

func (m *Manager) get(key []byte, out any) (bool, error) {
	raw, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("state: decode %s: %w", string(key), err)
	}
	return true, nil
}

func (m *Manager) put(key []byte, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("state: encode %s: %w", string(key), err)
	}
	return m.db.Put(key, raw)
}

// --- sale engine state ---

func (m *Manager) SaleGet() (*sale.SaleState, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var state sale.SaleState
	ok, err := m.get([]byte(keySale), &state)
	if err != nil || !ok {
		return nil, false, err
	}
	return &state, true, nil
}

func (m *Manager) SalePut(state *sale.SaleState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.put([]byte(keySale), state)
}

func (m *Manager) SupplyMinted() (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.db.Has([]byte(keySupply))
}

func (m *Manager) SetSupplyMinted() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.db.Put([]byte(keySupply), []byte("1"))
}

func (m *Manager) ParticipantGet(owner [20]byte) (*sale.ParticipantAccount, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var account sale.ParticipantAccount
	ok, err := m.get(addrKey(prefixPart, owner), &account)
	if err != nil || !ok {
		return nil, false, err
	}
	return &account, true, nil
}

func (m *Manager) ParticipantPut(account *sale.ParticipantAccount) error {
	if account == nil {
		return errors.New("state: nil participant")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.put(addrKey(prefixPart, account.Owner), account)
}

func (m *Manager) distList(recipient [20]byte) ([]*sale.DistributionEvent, error) {
	var list []*sale.DistributionEvent
	if _, err := m.get(addrKey(prefixDist, recipient), &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (m *Manager) DistributionCount(recipient [20]byte) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list, err := m.distList(recipient)
	if err != nil {
		return 0, err
	}
	return uint64(len(list)), nil
}

// DistributionAppend writes one audit record. Entries are never mutated or
// removed once written.
func (m *Manager) DistributionAppend(evt *sale.DistributionEvent) error {
	if evt == nil {
		return errors.New("state: nil distribution event")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	list, err := m.distList(evt.Recipient)
	if err != nil {
		return err
	}
	list = append(list, evt.Clone())
	if err := m.put(addrKey(prefixDist, evt.Recipient), list); err != nil {
		return err
	}
	total := big.NewInt(0)
	if _, err := m.get(addrKey(prefixDistSum, evt.Recipient), total); err != nil {
		return err
	}
	if evt.Amount != nil {
		total.Add(total, evt.Amount)
	}
	return m.put(addrKey(prefixDistSum, evt.Recipient), total)
}

func (m *Manager) DistributionTotal(recipient [20]byte) (*big.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := big.NewInt(0)
	if _, err := m.get(addrKey(prefixDistSum, recipient), total); err != nil {
		return nil, err
	}
	return total, nil
}

func (m *Manager) DistributionEvents(recipient [20]byte) ([]*sale.DistributionEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list, err := m.distList(recipient)
	if err != nil {
		return nil, err
	}
	out := make([]*sale.DistributionEvent, len(list))
	for i, evt := range list {
		out[i] = evt.Clone()
	}
	return out, nil
}

// --- treasury engine state ---

func (m *Manager) TreasuryGet() (*treasury.State, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var state treasury.State
	ok, err := m.get([]byte(keyTreasury), &state)
	if err != nil || !ok {
		return nil, false, err
	}
	return &state, true, nil
}

func (m *Manager) TreasuryPut(state *treasury.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.put([]byte(keyTreasury), state)
}

// --- token accounts ---

func (m *Manager) AccountGet(addr [20]byte) (*types.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.accountGetLocked(addr)
}

func (m *Manager) accountGetLocked(addr [20]byte) (*types.Account, error) {
	var account types.Account
	ok, err := m.get(addrKey(prefixAccount, addr), &account)
	if err != nil {
		return nil, err
	}
	if !ok {
		return (&types.Account{}).EnsureBalances(), nil
	}
	return account.EnsureBalances(), nil
}

func (m *Manager) AccountPut(addr [20]byte, account *types.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accountPutLocked(addr, account)
}

func (m *Manager) accountPutLocked(addr [20]byte, account *types.Account) error {
	if account == nil {
		return errors.New("state: nil account")
	}
	return m.put(addrKey(prefixAccount, addr), account)
}
