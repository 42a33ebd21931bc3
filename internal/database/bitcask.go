package database

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"git.mills.io/prologic/bitcask"
	log "github.com/sirupsen/logrus"
)

// ErrNotFound is returned when a key is not found in the database.
var ErrNotFound = errors.New("key not found")

// Publish records are keyed by absolute path, well past bitcask's default limit.
const maxKeySize = 4096

var gzipMagic = []byte{0x1f, 0x8b}

// DB is the audit store. Values are JSON documents, gzip compressed on disk.
type DB struct {
	mu sync.RWMutex
	bc *bitcask.Bitcask
}

// Open opens or creates the store at path, creating parent directories.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "/" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}
	bc, err := bitcask.Open(path, bitcask.WithMaxKeySize(maxKeySize))
	if err != nil {
		return nil, fmt.Errorf("failed to open bitcask database at %s: %w", path, err)
	}
	log.Debugf("Database opened at %s", path)
	return &DB{bc: bc}, nil
}

// Close waits for running operations and closes the store.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bc.Close()
}

func (d *DB) Has(key []byte) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.bc.Has(key)
}

// Get returns the decompressed value stored under key.
func (d *DB) Get(key []byte) ([]byte, error) {
	d.mu.RLock()
	raw, err := d.bc.Get(key)
	d.mu.RUnlock()
	if errors.Is(err, bitcask.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error getting key %s: %w", key, err)
	}
	return inflate(raw)
}

// Put stores value under key, compressed.
func (d *DB) Put(key, value []byte) error {
	packed, err := deflate(value)
	if err != nil {
		return fmt.Errorf("error compressing value for key %s: %w", key, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.bc.Put(key, packed); err != nil {
		return fmt.Errorf("error putting key %s: %w", key, err)
	}
	return nil
}

func (d *DB) Delete(key []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.bc.Has(key) {
		return ErrNotFound
	}
	if err := d.bc.Delete(key); err != nil {
		return fmt.Errorf("error deleting key %s: %w", key, err)
	}
	return nil
}

// Scan calls fn with every key starting with prefix and its decompressed value.
// Values that cannot be read are logged and skipped. The store is read locked
// for the whole scan, so fn must not write to it.
func (d *DB) Scan(prefix []byte, fn func(key, value []byte) error) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.bc.Scan(prefix, func(key []byte) error {
		raw, err := d.bc.Get(key)
		if err != nil {
			log.WithError(err).Warnf("Scan: error reading %s", key)
			return nil
		}
		value, err := inflate(raw)
		if err != nil {
			log.WithError(err).Warnf("Scan: error decompressing %s", key)
			return nil
		}
		return fn(key, value)
	})
}

func (d *DB) getJSON(key []byte, out interface{}) error {
	raw, err := d.Get(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("error unmarshalling %s: %w", key, err)
	}
	return nil
}

func (d *DB) putJSON(key []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("error marshalling %s: %w", key, err)
	}
	return d.Put(key, data)
}

func deflate(value []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(value); err != nil {
		zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// inflate decompresses gzip values and passes anything else through, so
// entries written uncompressed stay readable.
func inflate(value []byte) ([]byte, error) {
	if !bytes.HasPrefix(value, gzipMagic) {
		return value, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(value))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
