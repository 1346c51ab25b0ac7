package storage

import (
	"sync"

	cm "github.com/mosaicnetworks/tangle/src/common"
	"github.com/mosaicnetworks/tangle/src/model"
	"github.com/sirupsen/logrus"
)

// Arena names.
const (
	TransactionsArena = "transactions"
	BundlesArena      = "bundles"
	AddressesArena    = "addresses"
	TagsArena         = "tags"
	ApproversArena    = "approvers"
	TipsArena         = "tips"
)

// Store is the trie-indexed transaction store: one trie of transaction leaves,
// four tries of pointer lists (bundles, addresses, tags, approvers) and the
// tip flags. Every method runs in one critical section.
//
// Pointers returned by TransactionPointer are positive for transactions with
// content, negative for transactions only known as a reference, and 0 for
// unknown hashes.
type Store struct {
	mu sync.Mutex

	backend Backend

	transactions *trie
	bundles      *index
	addresses    *index
	tags         *index
	approvers    *index
	tips         *TipSet

	visited *VisitedSet

	cell    []byte
	auxCell []byte

	closed bool

	// OnCorruption is called with every Corrupted error before it is returned.
	// The default logs it at fatal level, which exits the process.
	OnCorruption func(err error)

	logger *logrus.Entry
}

// NewStore opens the arenas of backend. cacheSize is the number of cells kept
// in memory per arena; 0 disables caching. A fresh store receives the genesis
// transaction.
func NewStore(backend Backend, cacheSize int, logger *logrus.Entry) (*Store, error) {
	if logger == nil {
		logger = logrus.New().WithField("prefix", "store")
	}

	arenas := make(map[string]Arena)
	for _, name := range []string{TransactionsArena, BundlesArena, AddressesArena, TagsArena, ApproversArena, TipsArena} {
		arena, err := backend.Arena(name)
		if err != nil {
			return nil, err
		}
		if cacheSize > 0 {
			arena = NewCachedArena(arena, cacheSize)
		}
		arenas[name] = arena
	}

	s := &Store{
		backend:      backend,
		transactions: newTrie(TransactionsArena, arenas[TransactionsArena]),
		bundles:      newIndex(BundlesArena, arenas[BundlesArena]),
		addresses:    newIndex(AddressesArena, arenas[AddressesArena]),
		tags:         newIndex(TagsArena, arenas[TagsArena]),
		approvers:    newIndex(ApproversArena, arenas[ApproversArena]),
		tips:         newTipSet(arenas[TipsArena]),
		visited:      NewVisitedSet(),
		cell:         make([]byte, CellSize),
		auxCell:      make([]byte, CellSize),
		logger:       logger,
	}
	s.OnCorruption = func(err error) {
		s.logger.WithError(err).Fatal("Corrupted storage")
	}

	if s.transactions.size() == CellsOffset {
		if _, err := s.storeTransaction(model.NullHash, genesisTransaction(), true); err != nil {
			return nil, err
		}
		s.logger.Debug("Stored genesis transaction")
	}

	s.logger.WithFields(logrus.Fields{
		"cells": s.NumberOfCells(),
	}).Debug("Store opened")

	return s, nil
}

// NewInmemStore ...
func NewInmemStore(logger *logrus.Entry) (*Store, error) {
	return NewStore(NewInmemBackend(), 0, logger)
}

// NewBadgerStore opens a Store in a Badger database at path.
func NewBadgerStore(path string, cacheSize int, logger *logrus.Entry) (*Store, error) {
	backend, err := NewBadgerBackend(path, logger)
	if err != nil {
		return nil, err
	}
	s, err := NewStore(backend, cacheSize, logger)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return s, nil
}

// NewLevelDBStore opens a Store in a LevelDB database at path.
func NewLevelDBStore(path string, cacheSize int, logger *logrus.Entry) (*Store, error) {
	backend, err := NewLevelDBBackend(path)
	if err != nil {
		return nil, err
	}
	s, err := NewStore(backend, cacheSize, logger)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) check(err error) error {
	if cm.IsStore(err, cm.Corrupted) && s.OnCorruption != nil {
		s.OnCorruption(err)
	}
	return err
}

func (s *Store) open() error {
	if s.closed {
		return cm.NewStoreErr("Store", cm.Closed, "")
	}
	return nil
}

// StoreTransaction stores tx under hash and returns its pointer. A nil tx
// records hash as referenced only. If the transaction content was already
// stored, the result is 0. tip sets the tip flag of a newly created leaf;
// transactions with content always start as tips.
func (s *Store) StoreTransaction(hash model.Hash, tx *model.Transaction, tip bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.open(); err != nil {
		return 0, err
	}
	pointer, err := s.storeTransaction(hash, tx, tip)
	return pointer, s.check(err)
}

func (s *Store) storeTransaction(hash model.Hash, tx *model.Transaction, tip bool) (int64, error) {
	var pending []model.Hash

	pointer, created, err := s.transactions.insert(hash, s.cell, func() ([]byte, error) {
		return s.dump(hash, tx, &pending)
	})
	if err != nil {
		return 0, err
	}

	if created {
		if tx != nil || tip {
			if err := s.tips.Set(pointer); err != nil {
				return 0, err
			}
		}
		if tx != nil {
			if err := s.index(pointer, tx, pending); err != nil {
				return 0, err
			}
		}
		return pointer, nil
	}

	if tx == nil {
		return pointer, nil
	}
	if cellType(s.cell) != model.Prefilled {
		return 0, nil
	}

	leaf, err := s.dump(hash, tx, &pending)
	if err != nil {
		return 0, err
	}
	if err := s.transactions.arena.WriteCell(pointer, leaf); err != nil {
		return 0, err
	}
	if err := s.index(pointer, tx, pending); err != nil {
		return 0, err
	}
	return pointer, nil
}

// dump encodes the leaf of a transaction. Approved transactions that are
// already stored lose their tip flag; unknown ones are collected in pending to
// be stored as references once the leaf is in place.
func (s *Store) dump(hash model.Hash, tx *model.Transaction, pending *[]model.Hash) ([]byte, error) {
	leaf := make([]byte, CellSize)
	encodeTransaction(leaf, hash, tx)
	if tx == nil {
		return leaf, nil
	}

	approved := []model.Hash{tx.Trunk}
	if tx.Branch != tx.Trunk {
		approved = append(approved, tx.Branch)
	}
	for _, h := range approved {
		pointer, err := s.transactionPointer(h, s.auxCell)
		if err != nil {
			return nil, err
		}
		if pointer == 0 {
			*pending = append(*pending, h)
			continue
		}
		if err := s.tips.Clear(abs(pointer)); err != nil {
			return nil, err
		}
	}
	return leaf, nil
}

func (s *Store) index(pointer int64, tx *model.Transaction, pending []model.Hash) error {
	for _, h := range pending {
		if _, err := s.storeTransaction(h, nil, false); err != nil {
			return err
		}
	}
	if err := s.bundles.add(tx.Bundle, pointer); err != nil {
		return err
	}
	if err := s.addresses.add(tx.Address, pointer); err != nil {
		return err
	}
	if err := s.tags.add(tx.Tag.Key(), pointer); err != nil {
		return err
	}
	if err := s.approvers.add(tx.Trunk, pointer); err != nil {
		return err
	}
	if tx.Branch != tx.Trunk {
		if err := s.approvers.add(tx.Branch, pointer); err != nil {
			return err
		}
	}
	return nil
}

// TransactionPointer resolves hash. See Store for the sign convention.
func (s *Store) TransactionPointer(hash model.Hash) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.open(); err != nil {
		return 0, err
	}
	pointer, err := s.transactionPointer(hash, s.auxCell)
	return pointer, s.check(err)
}

func (s *Store) transactionPointer(hash model.Hash, cell []byte) (int64, error) {
	pointer, err := s.transactions.find(hash, cell)
	if err != nil || pointer == 0 {
		return 0, err
	}
	if cellType(cell) == model.Prefilled {
		return -pointer, nil
	}
	return pointer, nil
}

// LoadTransaction reads the leaf at pointer. Its trunk and branch pointers are
// resolved to absolute values.
func (s *Store) LoadTransaction(pointer int64) (*model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.open(); err != nil {
		return nil, err
	}
	tx, err := s.loadTransaction(abs(pointer))
	return tx, s.check(err)
}

func (s *Store) loadTransaction(pointer int64) (*model.Transaction, error) {
	if err := s.transactions.arena.ReadCell(pointer, s.cell); err != nil {
		return nil, err
	}
	if cellType(s.cell) == model.Group {
		return nil, cm.NewStoreErr(TransactionsArena, cm.KeyNotFound, "group cell")
	}
	tx := decodeTransaction(s.cell, pointer)

	trunkPointer, err := s.transactionPointer(tx.Trunk, s.auxCell)
	if err != nil {
		return nil, err
	}
	tx.TrunkPointer = abs(trunkPointer)

	branchPointer, err := s.transactionPointer(tx.Branch, s.auxCell)
	if err != nil {
		return nil, err
	}
	tx.BranchPointer = abs(branchPointer)

	return tx, nil
}

// LoadTransactionByHash loads the transaction stored under hash. It returns
// nil if the hash is unknown or only referenced.
func (s *Store) LoadTransactionByHash(hash model.Hash) (*model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.open(); err != nil {
		return nil, err
	}
	pointer, err := s.transactionPointer(hash, s.auxCell)
	if err != nil || pointer <= 0 {
		return nil, s.check(err)
	}
	tx, err := s.loadTransaction(pointer)
	return tx, s.check(err)
}

// SetValidity records the validation outcome of the transaction at pointer.
// The flag is written once: it reports false, and changes nothing, when the
// transaction already has a known validity.
func (s *Store) SetValidity(pointer int64, validity model.Validity) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.open(); err != nil {
		return false, err
	}
	if err := s.transactions.arena.ReadCell(pointer, s.cell); err != nil {
		return false, s.check(err)
	}
	if cellType(s.cell) != model.Filled {
		return false, nil
	}
	if model.Validity(int8(s.cell[validityOffset])) != model.ValidityUnknown {
		return false, nil
	}
	s.cell[validityOffset] = byte(validity)
	return true, s.transactions.arena.WriteCell(pointer, s.cell)
}

// BundlePointers lists the transactions of bundle.
func (s *Store) BundlePointers(bundle model.Hash) ([]int64, error) {
	return s.pointers(s.bundles, bundle)
}

// AddressPointers lists the transactions sent to address.
func (s *Store) AddressPointers(address model.Hash) ([]int64, error) {
	return s.pointers(s.addresses, address)
}

// TagPointers lists the transactions carrying tag.
func (s *Store) TagPointers(tag model.Tag) ([]int64, error) {
	return s.pointers(s.tags, tag.Key())
}

// ApproverPointers lists the transactions whose trunk or branch is approvee.
func (s *Store) ApproverPointers(approvee model.Hash) ([]int64, error) {
	return s.pointers(s.approvers, approvee)
}

func (s *Store) pointers(x *index, key model.Hash) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.open(); err != nil {
		return nil, err
	}
	res, err := x.pointers(key)
	return res, s.check(err)
}

// IsTip reports the tip flag of the transaction at pointer.
func (s *Store) IsTip(pointer int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.open(); err != nil {
		return false, err
	}
	return s.tips.IsSet(abs(pointer))
}

// Tips lists the hashes of all transactions flagged as tips.
func (s *Store) Tips() ([]model.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.open(); err != nil {
		return nil, err
	}

	var res []model.Hash
	err := s.tips.Each(s.transactions.size(), func(pointer int64) error {
		if err := s.transactions.arena.ReadCell(pointer, s.cell); err != nil {
			return err
		}
		res = append(res, model.HashFromBytes(s.cell[keyOffset:]))
		return nil
	})
	return res, err
}

// Visited returns the visited set shared by all DAG walks. The caller must
// hold the consensus lock.
func (s *Store) Visited() *VisitedSet {
	return s.visited
}

// NumberOfCells is the number of cells appended to the transactions trie,
// groups included.
func (s *Store) NumberOfCells() int64 {
	return (s.transactions.size() - CellsOffset) / CellSize
}

// Flush persists pending writes.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.open(); err != nil {
		return err
	}
	return s.backend.Flush()
}

// Close flushes and releases the backend.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.backend.Flush(); err != nil {
		s.logger.WithError(err).Error("Flushing store")
	}
	return s.backend.Close()
}

func abs(pointer int64) int64 {
	if pointer < 0 {
		return -pointer
	}
	return pointer
}
