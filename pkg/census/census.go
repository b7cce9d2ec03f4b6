// Package census keeps a per-tick history of world statistics in BadgerDB.
package census

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/fortiblox/torland/internal/types"
	"github.com/fortiblox/torland/pkg/bot"
	"github.com/fortiblox/torland/pkg/world"
)

var (
	// ErrSampleNotFound is returned when no sample exists for a tick.
	ErrSampleNotFound = errors.New("sample not found")

	// ErrClosed is returned when operating on a closed store.
	ErrClosed = errors.New("census closed")
)

// Key format: prefixSample + big-endian tick, so iteration is in tick order.
var prefixSample = []byte{0x01}

const sampleKeyLen = 1 + 8

// Sample is one observation of a world.
type Sample struct {
	Tick       uint64     `json:"tick"`
	Time       time.Time  `json:"time"`
	Population int        `json:"population"`
	Colonies   int        `json:"colonies"`
	Genomes    int        `json:"genomes"`
	Info       world.Info `json:"info"`
}

// Observe samples w. Colonies and Genomes count distinct ids among live bots.
func Observe(w *world.World) Sample {
	colonies := make(map[uint64]struct{})
	genomes := make(map[uint64]struct{})
	w.ForEachBot(func(_ types.Pos, b *bot.Bot) {
		colonies[b.Colony()] = struct{}{}
		genomes[b.GenomeID()] = struct{}{}
	})
	return Sample{
		Tick:       w.Tick(),
		Time:       time.Now().UTC(),
		Population: w.Population(),
		Colonies:   len(colonies),
		Genomes:    len(genomes),
		Info:       w.Info(),
	}
}

// Config contains configuration for the census store.
type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps the history in memory only.
	InMemory bool

	// SyncWrites fsyncs every write.
	SyncWrites bool

	// Logger is an optional badger logger; nil disables badger logging.
	Logger badger.Logger
}

// DefaultConfig returns the default configuration for a store at path.
func DefaultConfig(path string) Config {
	return Config{Path: path}
}

// Store is the census history.
type Store struct {
	db *badger.DB

	count  atomic.Uint64
	mu     sync.Mutex // serializes writers
	closed atomic.Bool
}

// Open opens or creates a census store.
func Open(cfg Config) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.
		WithSyncWrites(cfg.SyncWrites).
		WithLogger(cfg.Logger)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	s := &Store{db: db}
	if err := s.loadCount(); err != nil {
		db.Close()
		return nil, fmt.Errorf("load count: %w", err)
	}
	return s, nil
}

func (s *Store) loadCount() error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefixSample
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		var n uint64
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		s.count.Store(n)
		return nil
	})
}

func sampleKey(tick uint64) []byte {
	key := make([]byte, sampleKeyLen)
	key[0] = prefixSample[0]
	binary.BigEndian.PutUint64(key[1:], tick)
	return key
}

func decodeSample(item *badger.Item) (Sample, error) {
	var sample Sample
	err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &sample)
	})
	if err != nil {
		return Sample{}, fmt.Errorf("decode sample: %w", err)
	}
	return sample, nil
}

// Record stores sample, replacing any earlier sample for the same tick.
func (s *Store) Record(sample Sample) error {
	if s.closed.Load() {
		return ErrClosed
	}
	data, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("encode sample: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := sampleKey(sample.Tick)
	var existed bool
	err = s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		switch {
		case err == nil:
			existed = true
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return err
	}
	if !existed {
		s.count.Add(1)
	}
	return nil
}

// Get returns the sample recorded for tick.
func (s *Store) Get(tick uint64) (*Sample, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	var sample Sample
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(sampleKey(tick))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrSampleNotFound
		}
		if err != nil {
			return err
		}
		sample, err = decodeSample(item)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &sample, nil
}

// Latest returns the sample with the highest tick.
func (s *Store) Latest() (*Sample, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	var sample *Sample
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefixSample
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		it.Seek(sampleKey(^uint64(0)))
		if !it.Valid() {
			return ErrSampleNotFound
		}
		got, err := decodeSample(it.Item())
		if err != nil {
			return err
		}
		sample = &got
		return nil
	})
	return sample, err
}

// Range returns the samples with from <= tick <= to in tick order.
func (s *Store) Range(from, to uint64) ([]Sample, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if from > to {
		return nil, nil
	}

	var samples []Sample
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefixSample
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(sampleKey(from)); it.Valid(); it.Next() {
			item := it.Item()
			key := item.Key()
			if len(key) != sampleKeyLen {
				continue
			}
			if binary.BigEndian.Uint64(key[1:]) > to {
				break
			}
			sample, err := decodeSample(item)
			if err != nil {
				return err
			}
			samples = append(samples, sample)
		}
		return nil
	})
	return samples, err
}

// Prune deletes all but the keep most recent samples and returns how many
// were removed.
func (s *Store) Prune(keep uint64) (uint64, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	total := s.count.Load()
	if total <= keep {
		return 0, nil
	}
	excess := total - keep

	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefixSample
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid() && uint64(len(keys)) < excess; it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return 0, fmt.Errorf("delete sample: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("flush prune: %w", err)
	}

	removed := uint64(len(keys))
	s.count.Add(^(removed - 1))
	return removed, nil
}

// Count returns the number of stored samples.
func (s *Store) Count() uint64 {
	return s.count.Load()
}

// Close closes the store.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return ErrClosed
	}
	return s.db.Close()
}
