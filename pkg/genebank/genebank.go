// Package genebank provides a persistent library of named genomes.
//
// Genomes are keyed by their content fingerprint, so the same code saved
// twice occupies one record. Each genome has exactly one name; saving known
// code under a new name renames it, and saving new code under a taken name
// replaces the old genome.
package genebank

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/fortiblox/torland/internal/types"
	"github.com/fortiblox/torland/pkg/genome"
)

var (
	// ErrGenomeNotFound is returned when no genome matches a hash or name.
	ErrGenomeNotFound = errors.New("genome not found")

	// ErrClosed is returned when operating on a closed genebank.
	ErrClosed = errors.New("genebank closed")

	// ErrInvalidGenome is returned when genome text does not decode.
	ErrInvalidGenome = errors.New("invalid genome")

	// ErrInvalidName is returned for empty or oversized names.
	ErrInvalidName = errors.New("invalid genome name")
)

// MaxNameLen bounds genome names in bytes.
const MaxNameLen = 64

// Bucket names for BoltDB.
var (
	// bucketGenomes stores records keyed by fingerprint.
	bucketGenomes = []byte("genomes")

	// bucketNames maps names to fingerprints.
	bucketNames = []byte("names")

	bucketMeta = []byte("meta")
)

var keyCount = []byte("count")

// Config holds genebank configuration options.
type Config struct {
	// Path is the database file.
	Path string

	// NoSync disables fsync after each write.
	NoSync bool

	// ReadOnly opens the database in read-only mode.
	ReadOnly bool
}

// DefaultConfig returns the default configuration for a database at path.
func DefaultConfig(path string) Config {
	return Config{Path: path}
}

// Record is a stored genome.
type Record struct {
	Hash  types.Hash
	Name  string
	Text  string
	Len   int
	Added time.Time
}

// Bank is a genome library backed by BoltDB.
type Bank struct {
	db     *bolt.DB
	config Config

	// writeMu serializes writers so the cached count matches the stored one.
	writeMu sync.Mutex

	mu     sync.RWMutex
	count  uint64
	closed bool
}

// Open creates or opens a genebank.
func Open(config Config) (*Bank, error) {
	if err := os.MkdirAll(filepath.Dir(config.Path), 0755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	opts := &bolt.Options{
		Timeout:  5 * time.Second,
		NoSync:   config.NoSync,
		ReadOnly: config.ReadOnly,
	}
	db, err := bolt.Open(config.Path, 0600, opts)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	b := &Bank{db: db, config: config}
	if !config.ReadOnly {
		if err := b.initBuckets(); err != nil {
			db.Close()
			return nil, fmt.Errorf("init buckets: %w", err)
		}
	}
	if err := b.loadCount(); err != nil {
		db.Close()
		return nil, fmt.Errorf("load count: %w", err)
	}
	return b, nil
}

func (b *Bank) initBuckets() error {
	return b.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketGenomes, bucketNames, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
}

func (b *Bank) loadCount() error {
	return b.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		if meta == nil {
			return nil
		}
		if v := meta.Get(keyCount); len(v) == 8 {
			b.count = binary.BigEndian.Uint64(v)
		}
		return nil
	})
}

func (b *Bank) checkOpen() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	return nil
}

// Put stores text under name and returns its fingerprint.
func (b *Bank) Put(name, text string) (types.Hash, error) {
	if err := b.checkOpen(); err != nil {
		return types.Hash{}, err
	}
	if name == "" || len(name) > MaxNameLen {
		return types.Hash{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	g, err := genome.Decode(0, text)
	if err != nil {
		return types.Hash{}, fmt.Errorf("%w: %v", ErrInvalidGenome, err)
	}

	rec := Record{
		Hash:  g.Fingerprint(),
		Name:  name,
		Text:  genome.Encode(g),
		Len:   g.Len(),
		Added: time.Now().UTC(),
	}
	hashKey := rec.Hash.Bytes()

	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	var delta int64
	err = b.db.Update(func(tx *bolt.Tx) error {
		genomes := tx.Bucket(bucketGenomes)
		names := tx.Bucket(bucketNames)

		// The name may point at other code, which it replaces.
		if old := names.Get([]byte(name)); old != nil && !bytes.Equal(old, hashKey) {
			if err := genomes.Delete(old); err != nil {
				return err
			}
			delta--
		}

		// The code may be known under another name, which it drops.
		if data := genomes.Get(hashKey); data != nil {
			prev, err := decodeRecord(data)
			if err != nil {
				return err
			}
			if prev.Name != name {
				if err := names.Delete([]byte(prev.Name)); err != nil {
					return err
				}
			}
			rec.Added = prev.Added
		} else {
			delta++
		}

		data, err := encodeRecord(&rec)
		if err != nil {
			return err
		}
		if err := genomes.Put(hashKey, data); err != nil {
			return err
		}
		if err := names.Put([]byte(name), hashKey); err != nil {
			return err
		}
		return b.storeCount(tx, delta)
	})
	if err != nil {
		return types.Hash{}, err
	}

	b.addCount(delta)
	return rec.Hash, nil
}

// Get returns the record with the given fingerprint.
func (b *Bank) Get(hash types.Hash) (*Record, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	var rec *Record
	err := b.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketGenomes).Get(hash.Bytes())
		if data == nil {
			return ErrGenomeNotFound
		}
		var err error
		rec, err = decodeRecord(data)
		return err
	})
	return rec, err
}

// GetByName returns the record stored under name.
func (b *Bank) GetByName(name string) (*Record, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	var rec *Record
	err := b.db.View(func(tx *bolt.Tx) error {
		key := tx.Bucket(bucketNames).Get([]byte(name))
		if key == nil {
			return ErrGenomeNotFound
		}
		data := tx.Bucket(bucketGenomes).Get(key)
		if data == nil {
			return fmt.Errorf("%w: dangling name %q", ErrGenomeNotFound, name)
		}
		var err error
		rec, err = decodeRecord(data)
		return err
	})
	return rec, err
}

// List returns every record ordered by name.
func (b *Bank) List() ([]Record, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	var out []Record
	err := b.db.View(func(tx *bolt.Tx) error {
		genomes := tx.Bucket(bucketGenomes)
		return tx.Bucket(bucketNames).ForEach(func(name, key []byte) error {
			data := genomes.Get(key)
			if data == nil {
				return nil
			}
			rec, err := decodeRecord(data)
			if err != nil {
				return fmt.Errorf("decode %q: %w", name, err)
			}
			out = append(out, *rec)
			return nil
		})
	})
	return out, err
}

// Delete removes the genome stored under name.
func (b *Bank) Delete(name string) error {
	if err := b.checkOpen(); err != nil {
		return err
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	err := b.db.Update(func(tx *bolt.Tx) error {
		names := tx.Bucket(bucketNames)
		key := names.Get([]byte(name))
		if key == nil {
			return ErrGenomeNotFound
		}
		if err := tx.Bucket(bucketGenomes).Delete(key); err != nil {
			return err
		}
		if err := names.Delete([]byte(name)); err != nil {
			return err
		}
		return b.storeCount(tx, -1)
	})
	if err != nil {
		return err
	}

	b.addCount(-1)
	return nil
}

// Count returns the number of stored genomes.
func (b *Bank) Count() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// Close closes the database. Further calls return ErrClosed.
func (b *Bank) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	return b.db.Close()
}

// storeCount persists the count adjusted by delta within tx.
func (b *Bank) storeCount(tx *bolt.Tx, delta int64) error {
	b.mu.RLock()
	n := int64(b.count) + delta
	b.mu.RUnlock()

	var v [8]byte
	binary.BigEndian.PutUint64(v[:], uint64(n))
	return tx.Bucket(bucketMeta).Put(keyCount, v[:])
}

func (b *Bank) addCount(delta int64) {
	b.mu.Lock()
	b.count = uint64(int64(b.count) + delta)
	b.mu.Unlock()
}

func encodeRecord(rec *Record) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeRecord(data []byte) (*Record, error) {
	var rec Record
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return &rec, nil
}
