package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Area identifies one of the independent persisted records.
type Area string

const (
	// AreaSync holds the configuration record, shared by every instance
	AreaSync Area = "sync"

	// AreaLocal holds the statistics record
	AreaLocal Area = "local"
)

// Record keys within their areas.
const (
	ConfigKey = "config"
	StatsKey  = "stats"
)

const storeVersion = "1.0"

// ChangeEvent describes a modification of a store, made by this or any other instance.
type ChangeEvent struct {
	Area Area
	Keys []string
}

// Has reports whether key is among the changed keys.
func (e ChangeEvent) Has(key string) bool {
	for _, k := range e.Keys {
		if k == key {
			return true
		}
	}
	return false
}

// Listener receives change notifications.
type Listener func(ChangeEvent)

// Store provides persistence for JSON records keyed by a fixed string.
type Store interface {
	// Area returns the storage area this store persists
	Area() Area

	// Get decodes the record stored under key into v and reports whether it exists
	Get(key string, v any) (bool, error)

	// Set replaces the record stored under key and persists it
	Set(key string, v any) error

	// Update reads the latest persisted record into v, calls mutate, then
	// persists v. The read-modify-write is atomic within this instance only.
	Update(key string, v any, mutate func(found bool) error) error

	// Subscribe registers fn for change notifications
	Subscribe(fn Listener) (unsubscribe func())
}

// FileStore implements Store using a JSON file.
type FileStore struct {
	path    string
	area    Area
	version string

	// writeMu serializes read-modify-write cycles and reloads
	writeMu sync.Mutex

	mu      sync.RWMutex
	records map[string]json.RawMessage
	loadErr error

	listenersMu sync.Mutex
	listeners   map[uint64]Listener
	nextID      uint64
}

// NewFileStore creates a file-based store for area. A missing file is an
// empty store, and so is a file that cannot be decoded: the decode error is
// kept in LoadError and the file is left untouched until the next write.
func NewFileStore(path string, area Area) (*FileStore, error) {
	store := &FileStore{
		path:      path,
		area:      area,
		version:   storeVersion,
		records:   make(map[string]json.RawMessage),
		listeners: make(map[uint64]Listener),
	}

	if err := store.Load(); err != nil {
		return nil, fmt.Errorf("failed to load %s store from %s: %w", area, path, err)
	}

	return store, nil
}

// errCorrupt marks store files whose content cannot be decoded.
var errCorrupt = errors.New("corrupt store file")

type envelope struct {
	Version string                     `json:"version"`
	Records map[string]json.RawMessage `json:"records"`
}

// Load loads the records from disk.
func (s *FileStore) Load() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.reloadLocked(true)
	return err
}

// LoadError returns the decode error of the last load when the file was
// unreadable and has not been rewritten since, or nil.
func (s *FileStore) LoadError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadErr
}

// Reload loads the records from disk, notifies listeners of externally
// modified records and returns their keys.
func (s *FileStore) Reload() ([]string, error) {
	s.writeMu.Lock()
	changed, err := s.reloadLocked(false)
	s.writeMu.Unlock()

	if err != nil {
		return nil, err
	}
	s.notify(changed)
	return changed, nil
}

// reloadLocked replaces the in-memory records with the file content and
// returns the keys whose content differs. With lenient set, an undecodable
// file loads as an empty record set. Callers hold writeMu.
func (s *FileStore) reloadLocked(lenient bool) ([]string, error) {
	records, version, err := s.readFile()
	var loadErr error
	if err != nil {
		if !lenient || !errors.Is(err, errCorrupt) {
			return nil, err
		}
		records, version, loadErr = make(map[string]json.RawMessage), "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.loadErr = loadErr

	changed := diffKeys(s.records, records)
	s.records = records
	if version != "" {
		s.version = version
	}
	return changed, nil
}

func (s *FileStore) readFile() (map[string]json.RawMessage, string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return make(map[string]json.RawMessage), "", nil
		}
		return nil, "", fmt.Errorf("failed to open store file: %w", err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return make(map[string]json.RawMessage), "", nil
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, "", fmt.Errorf("failed to decode store file: %w: %w", errCorrupt, err)
	}
	if env.Records == nil {
		env.Records = make(map[string]json.RawMessage)
	}
	return env.Records, env.Version, nil
}

// saveLocked writes the records to disk atomically. Callers hold writeMu and mu.
func (s *FileStore) saveLocked() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	// Create temp file for atomic write
	file, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp store file: %w", err)
	}
	tempPath := file.Name()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(envelope{Version: s.version, Records: s.records}); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode store: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	s.loadErr = nil
	return nil
}

// Area returns the storage area.
func (s *FileStore) Area() Area {
	return s.area
}

// Path returns the file path of the store.
func (s *FileStore) Path() string {
	return s.path
}

// Get decodes the record stored under key into v.
func (s *FileStore) Get(key string, v any) (bool, error) {
	s.mu.RLock()
	raw, ok := s.records[key]
	s.mu.RUnlock()

	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("failed to decode record %q: %w", key, err)
	}
	return true, nil
}

// Set replaces the record stored under key and persists it.
func (s *FileStore) Set(key string, v any) error {
	s.writeMu.Lock()
	changed, err := s.putLocked(key, v)
	s.writeMu.Unlock()

	if err != nil {
		return err
	}
	s.notify(changed)
	return nil
}

// Update performs a read-modify-write of the record under key against the
// latest file content.
func (s *FileStore) Update(key string, v any, mutate func(found bool) error) error {
	s.writeMu.Lock()

	external, err := s.reloadLocked(true)
	if err != nil {
		s.writeMu.Unlock()
		return err
	}

	found, err := s.Get(key, v)
	if err != nil {
		s.writeMu.Unlock()
		s.notify(external)
		return err
	}

	if err := mutate(found); err != nil {
		s.writeMu.Unlock()
		s.notify(external)
		return err
	}

	changed, err := s.putLocked(key, v)
	s.writeMu.Unlock()

	s.notify(mergeKeys(external, changed))
	return err
}

// putLocked stores and persists a record, restoring the previous value when
// the write fails. Callers hold writeMu.
func (s *FileStore) putLocked(key string, v any) ([]string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record %q: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old, existed := s.records[key]
	s.records[key] = raw

	if err := s.saveLocked(); err != nil {
		if existed {
			s.records[key] = old
		} else {
			delete(s.records, key)
		}
		return nil, err
	}

	if existed && jsonEqual(old, raw) {
		return nil, nil
	}
	return []string{key}, nil
}

// Subscribe registers fn for change notifications.
func (s *FileStore) Subscribe(fn Listener) (unsubscribe func()) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()

	s.nextID++
	id := s.nextID
	s.listeners[id] = fn

	return func() {
		s.listenersMu.Lock()
		defer s.listenersMu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *FileStore) notify(keys []string) {
	if len(keys) == 0 {
		return
	}

	s.listenersMu.Lock()
	ids := make([]uint64, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	listeners := make([]Listener, 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, s.listeners[id])
	}
	s.listenersMu.Unlock()

	event := ChangeEvent{Area: s.area, Keys: keys}
	for _, fn := range listeners {
		fn(event)
	}
}

// diffKeys returns the sorted keys whose content differs between two record sets.
func diffKeys(before, after map[string]json.RawMessage) []string {
	var keys []string
	for k, v := range after {
		if old, ok := before[k]; !ok || !jsonEqual(old, v) {
			keys = append(keys, k)
		}
	}
	for k := range before {
		if _, ok := after[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func jsonEqual(a, b json.RawMessage) bool {
	if bytes.Equal(a, b) {
		return true
	}
	var ca, cb bytes.Buffer
	if json.Compact(&ca, a) != nil || json.Compact(&cb, b) != nil {
		return false
	}
	return bytes.Equal(ca.Bytes(), cb.Bytes())
}

func mergeKeys(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, k := range append(append([]string(nil), a...), b...) {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
