package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// Record identification. A record with another magic or version is
// treated as absent, like a blank EEPROM.
const (
	Magic   = "TTEX"
	Version = 1
)

// ErrNoCalibration is returned by Load when no valid record is stored.
var ErrNoCalibration = errors.New("storage: no calibration stored")

// Store persists the calibrated full-turn step count.
type Store interface {
	Load() (uint32, error)
	Save(fullTurnSteps uint32) error
	Erase() error
}

// record is the persisted layout. Integer keys keep it compact.
type record struct {
	Magic         string `cbor:"1,keyasint"`
	Version       uint8  `cbor:"2,keyasint"`
	FullTurnSteps uint32 `cbor:"3,keyasint"`
}

func encodeRecord(steps uint32) ([]byte, error) {
	data, err := cbor.Marshal(record{Magic: Magic, Version: Version, FullTurnSteps: steps})
	if err != nil {
		return nil, fmt.Errorf("encode calibration: %w", err)
	}
	return data, nil
}

func decodeRecord(data []byte) (uint32, error) {
	if len(data) == 0 {
		return 0, ErrNoCalibration
	}
	var r record
	if err := cbor.Unmarshal(data, &r); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNoCalibration, err)
	}
	if r.Magic != Magic || r.Version != Version || r.FullTurnSteps == 0 {
		return 0, ErrNoCalibration
	}
	return r.FullTurnSteps, nil
}

// FileStore keeps the record in a single file, written atomically.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by path. The file need not exist.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (f *FileStore) Path() string { return f.path }

func (f *FileStore) Load() (uint32, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, ErrNoCalibration
	}
	if err != nil {
		return 0, fmt.Errorf("read calibration: %w", err)
	}
	return decodeRecord(data)
}

func (f *FileStore) Save(fullTurnSteps uint32) error {
	data, err := encodeRecord(fullTurnSteps)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create storage dir: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write calibration: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("commit calibration: %w", err)
	}
	return nil
}

// Erase removes the record. Erasing an empty store is not an error.
func (f *FileStore) Erase() error {
	err := os.Remove(f.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("erase calibration: %w", err)
	}
	return nil
}

// MemStore keeps the encoded record in memory.
type MemStore struct {
	mu   sync.Mutex
	data []byte
}

func (m *MemStore) Load() (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return decodeRecord(m.data)
}

func (m *MemStore) Save(fullTurnSteps uint32) error {
	data, err := encodeRecord(fullTurnSteps)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data = data
	m.mu.Unlock()
	return nil
}

func (m *MemStore) Erase() error {
	m.mu.Lock()
	m.data = nil
	m.mu.Unlock()
	return nil
}
