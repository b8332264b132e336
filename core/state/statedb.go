package state

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"dscengine/storage"
)

// StateDB caches reads from the backing database and records every write in a
// journal so that a failed operation can be rolled back to an earlier
// snapshot. Writes only reach the database on Commit.
type StateDB struct {
	mu sync.Mutex

	db      storage.Database
	values  map[string][]byte
	present map[string]bool
	dirty   map[string]struct{}

	journal        []journalEntry
	validRevisions []revision
	nextRevisionID int
}

type journalEntry struct {
	key         string
	prev        []byte
	prevPresent bool
	prevDirty   bool
}

type revision struct {
	id           int
	journalIndex int
}

// New returns a StateDB reading through to db.
func New(db storage.Database) *StateDB {
	if db == nil {
		db = storage.NewMemDB()
	}
	return &StateDB{
		db:      db,
		values:  make(map[string][]byte),
		present: make(map[string]bool),
		dirty:   make(map[string]struct{}),
	}
}

func (s *StateDB) load(key []byte) ([]byte, bool, error) {
	k := string(key)
	if present, ok := s.present[k]; ok {
		return s.values[k], present, nil
	}
	data, err := s.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		s.present[k] = false
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("state: read %x: %w", key, err)
	}
	s.values[k] = data
	s.present[k] = true
	return data, true, nil
}

func (s *StateDB) store(key []byte, value []byte) error {
	k := string(key)
	prev, prevPresent, err := s.load(key)
	if err != nil {
		return err
	}
	_, prevDirty := s.dirty[k]
	s.journal = append(s.journal, journalEntry{
		key:         k,
		prev:        prev,
		prevPresent: prevPresent,
		prevDirty:   prevDirty,
	})
	if value == nil {
		delete(s.values, k)
		s.present[k] = false
	} else {
		s.values[k] = value
		s.present[k] = true
	}
	s.dirty[k] = struct{}{}
	return nil
}

func (s *StateDB) getAmount(key []byte) (*uint256.Int, error) {
	data, ok, err := s.load(key)
	if err != nil {
		return nil, err
	}
	if !ok || len(data) == 0 {
		return new(uint256.Int), nil
	}
	decoded := new(big.Int)
	if err := rlp.DecodeBytes(data, decoded); err != nil {
		return nil, fmt.Errorf("state: decode amount: %w", err)
	}
	value, overflow := uint256.FromBig(decoded)
	if overflow {
		return nil, fmt.Errorf("state: stored amount exceeds 256 bits")
	}
	return value, nil
}

func (s *StateDB) setAmount(key []byte, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return s.store(key, nil)
	}
	encoded, err := rlp.EncodeToBytes(amount.ToBig())
	if err != nil {
		return fmt.Errorf("state: encode amount: %w", err)
	}
	return s.store(key, encoded)
}

// TokenBalance returns the balance of holder for token.
func (s *StateDB) TokenBalance(token, holder common.Address) (*uint256.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getAmount(balanceKey(token, holder))
}

// SetTokenBalance overwrites the balance of holder for token.
func (s *StateDB) SetTokenBalance(token, holder common.Address, amount *uint256.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setAmount(balanceKey(token, holder), amount)
}

// Allowance returns how much spender may move out of owner's token balance.
func (s *StateDB) Allowance(token, owner, spender common.Address) (*uint256.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getAmount(allowanceKey(token, owner, spender))
}

func (s *StateDB) SetAllowance(token, owner, spender common.Address, amount *uint256.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setAmount(allowanceKey(token, owner, spender), amount)
}

// TotalSupply returns the outstanding supply for token.
func (s *StateDB) TotalSupply(token common.Address) (*uint256.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getAmount(supplyKey(token))
}

func (s *StateDB) SetTotalSupply(token common.Address, amount *uint256.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setAmount(supplyKey(token), amount)
}

// Collateral returns the amount of asset the engine holds on behalf of account.
func (s *StateDB) Collateral(account, asset common.Address) (*uint256.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getAmount(collateralKey(account, asset))
}

// SetCollateral overwrites the collateral balance and records account in the
// position index.
func (s *StateDB) SetCollateral(account, asset common.Address, amount *uint256.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.indexAccount(account); err != nil {
		return err
	}
	return s.setAmount(collateralKey(account, asset), amount)
}

// Debt returns the amount of stable token minted by account.
func (s *StateDB) Debt(account common.Address) (*uint256.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getAmount(debtKey(account))
}

func (s *StateDB) SetDebt(account common.Address, amount *uint256.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.indexAccount(account); err != nil {
		return err
	}
	return s.setAmount(debtKey(account), amount)
}

func (s *StateDB) loadAccounts() ([]common.Address, error) {
	data, ok, err := s.load(accountIndexKey)
	if err != nil {
		return nil, err
	}
	if !ok || len(data) == 0 {
		return nil, nil
	}
	var accounts []common.Address
	if err := rlp.DecodeBytes(data, &accounts); err != nil {
		return nil, fmt.Errorf("state: decode account index: %w", err)
	}
	return accounts, nil
}

func (s *StateDB) indexAccount(account common.Address) error {
	accounts, err := s.loadAccounts()
	if err != nil {
		return err
	}
	idx := sort.Search(len(accounts), func(i int) bool {
		return accounts[i].Cmp(account) >= 0
	})
	if idx < len(accounts) && accounts[idx] == account {
		return nil
	}
	accounts = append(accounts, common.Address{})
	copy(accounts[idx+1:], accounts[idx:])
	accounts[idx] = account
	encoded, err := rlp.EncodeToBytes(accounts)
	if err != nil {
		return fmt.Errorf("state: encode account index: %w", err)
	}
	return s.store(accountIndexKey, encoded)
}

// Accounts lists every account that has ever held a position, sorted by
// address.
func (s *StateDB) Accounts() ([]common.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadAccounts()
}

// Snapshot returns an identifier for the current journal position.
func (s *StateDB) Snapshot() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextRevisionID
	s.nextRevisionID++
	s.validRevisions = append(s.validRevisions, revision{id: id, journalIndex: len(s.journal)})
	return id
}

// RevertToSnapshot undoes every write made since the snapshot was taken.
func (s *StateDB) RevertToSnapshot(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := sort.Search(len(s.validRevisions), func(i int) bool {
		return s.validRevisions[i].id >= id
	})
	if idx == len(s.validRevisions) || s.validRevisions[idx].id != id {
		panic(fmt.Errorf("state: revision id %d cannot be reverted", id))
	}
	target := s.validRevisions[idx].journalIndex
	for i := len(s.journal) - 1; i >= target; i-- {
		entry := s.journal[i]
		if entry.prevPresent {
			s.values[entry.key] = entry.prev
		} else {
			delete(s.values, entry.key)
		}
		s.present[entry.key] = entry.prevPresent
		if !entry.prevDirty {
			delete(s.dirty, entry.key)
		}
	}
	s.journal = s.journal[:target]
	s.validRevisions = s.validRevisions[:idx]
}

// Commit flushes dirty entries to the database in a single batch and clears
// the journal. Snapshots taken before Commit become invalid.
func (s *StateDB) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.dirty) == 0 {
		s.resetJournal()
		return nil
	}
	keys := make([]string, 0, len(s.dirty))
	for k := range s.dirty {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	batch := s.db.NewBatch()
	for _, k := range keys {
		if s.present[k] {
			batch.Put([]byte(k), s.values[k])
		} else {
			batch.Delete([]byte(k))
		}
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	s.dirty = make(map[string]struct{})
	s.resetJournal()
	return nil
}

func (s *StateDB) resetJournal() {
	s.journal = nil
	s.validRevisions = nil
}

// Dirty reports whether uncommitted writes exist.
func (s *StateDB) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.dirty) > 0
}
