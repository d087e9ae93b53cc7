// Package cache provides a disk-backed tile cache with a ZXY directory
// layout. The cache persists across runs; an index file tracks sizes and
// access times for LRU eviction and TTL expiry.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Store is a persistent tile cache keyed by layer, CRS and tile position.
// Layout: baseDir/{layer}/{crs}/{z}/{x}/{y}.{ext}
// Index:  baseDir/cache_index.json
type Store struct {
	baseDir   string
	maxSize   int64
	currSize  int64
	ttl       time.Duration
	mu        sync.RWMutex
	index     map[string]*entryMeta
	evictChan chan struct{}
	done      chan struct{}
}

type entryMeta struct {
	Key        string    `json:"key"`
	Layer      string    `json:"layer"`
	CRS        string    `json:"crs"`
	Z          int       `json:"z"`
	X          int       `json:"x"`
	Y          int       `json:"y"`
	Ext        string    `json:"ext"`
	Size       int64     `json:"size"`
	AccessTime time.Time `json:"accessTime"`
	CreateTime time.Time `json:"createTime"`
}

// NewStore opens or creates a cache rooted at baseDir. A zero ttlDays
// disables expiry.
func NewStore(baseDir string, maxSizeMB, ttlDays int) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	s := &Store{
		baseDir:   baseDir,
		maxSize:   int64(maxSizeMB) * 1024 * 1024,
		ttl:       time.Duration(ttlDays) * 24 * time.Hour,
		index:     make(map[string]*entryMeta),
		evictChan: make(chan struct{}, 1),
		done:      make(chan struct{}),
	}

	if err := s.loadIndex(); err != nil {
		if err := s.rebuildIndex(); err != nil {
			return nil, fmt.Errorf("failed to initialize cache: %w", err)
		}
	}

	go s.maintenanceWorker()

	return s, nil
}

// Key builds the canonical cache key for a tile. Layer and CRS are
// sanitized the same way as directory names so keys survive an index
// rebuild from disk.
func Key(layer, crs string, z, x, y int) string {
	return fmt.Sprintf("%s:%s:%d:%d:%d", sanitize(layer), sanitize(crs), z, x, y)
}

// Get returns the cached tile bytes, if present and not expired.
func (s *Store) Get(layer, crs string, z, x, y int) ([]byte, bool) {
	key := Key(layer, crs, z, x, y)

	s.mu.RLock()
	meta, exists := s.index[key]
	s.mu.RUnlock()

	if !exists {
		return nil, false
	}

	if s.ttl > 0 && time.Since(meta.CreateTime) > s.ttl {
		s.evictEntry(key, meta)
		return nil, false
	}

	data, err := os.ReadFile(s.filePath(meta))
	if err != nil {
		// File gone from under the index.
		s.evictEntry(key, meta)
		return nil, false
	}

	s.mu.Lock()
	meta.AccessTime = time.Now()
	s.mu.Unlock()

	return data, true
}

// Set stores a tile. The ext argument controls the on-disk extension
// ("png", "jpeg", ...) so cached files remain directly viewable.
func (s *Store) Set(layer, crs string, z, x, y int, ext string, data []byte) error {
	key := Key(layer, crs, z, x, y)
	now := time.Now()
	meta := &entryMeta{
		Key:        key,
		Layer:      layer,
		CRS:        crs,
		Z:          z,
		X:          x,
		Y:          y,
		Ext:        ext,
		Size:       int64(len(data)),
		AccessTime: now,
		CreateTime: now,
	}

	path := s.filePath(meta)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	s.mu.Lock()
	if old, exists := s.index[key]; exists {
		atomic.AddInt64(&s.currSize, -old.Size)
		if oldPath := s.filePath(old); oldPath != path {
			os.Remove(oldPath)
		}
	}
	s.index[key] = meta
	s.mu.Unlock()

	atomic.AddInt64(&s.currSize, meta.Size)

	if atomic.LoadInt64(&s.currSize) > s.maxSize {
		select {
		case s.evictChan <- struct{}{}:
		default:
		}
	}

	return s.saveIndex()
}

func (s *Store) filePath(meta *entryMeta) string {
	return filepath.Join(s.baseDir,
		sanitize(meta.Layer), sanitize(meta.CRS),
		strconv.Itoa(meta.Z), strconv.Itoa(meta.X),
		fmt.Sprintf("%d.%s", meta.Y, meta.Ext))
}

func sanitize(s string) string {
	replacer := strings.NewReplacer(":", "", "/", "_", "\\", "_", " ", "")
	return replacer.Replace(s)
}

func (s *Store) evictEntry(key string, meta *entryMeta) {
	s.mu.Lock()
	defer s.mu.Unlock()

	os.Remove(s.filePath(meta))
	delete(s.index, key)
	atomic.AddInt64(&s.currSize, -meta.Size)
}

func (s *Store) maintenanceWorker() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-s.evictChan:
			s.evictLRU()
		case <-ticker.C:
			s.evictExpired()
		}
	}
}

// evictLRU removes least recently used entries until the cache is at 80% of
// its size limit.
func (s *Store) evictLRU() {
	s.mu.Lock()
	defer s.mu.Unlock()

	currSize := atomic.LoadInt64(&s.currSize)
	if currSize <= s.maxSize {
		return
	}
	targetSize := s.maxSize * 8 / 10

	entries := make([]*entryMeta, 0, len(s.index))
	for _, meta := range s.index {
		entries = append(entries, meta)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].AccessTime.Before(entries[j].AccessTime)
	})

	for _, meta := range entries {
		if currSize <= targetSize {
			break
		}
		os.Remove(s.filePath(meta))
		delete(s.index, meta.Key)
		atomic.AddInt64(&s.currSize, -meta.Size)
		currSize -= meta.Size
	}

	s.saveIndexLocked()
}

func (s *Store) evictExpired() {
	if s.ttl <= 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	evicted := 0
	for key, meta := range s.index {
		if now.Sub(meta.CreateTime) > s.ttl {
			os.Remove(s.filePath(meta))
			delete(s.index, key)
			atomic.AddInt64(&s.currSize, -meta.Size)
			evicted++
		}
	}

	if evicted > 0 {
		s.saveIndexLocked()
	}
}

func (s *Store) indexPath() string {
	return filepath.Join(s.baseDir, "cache_index.json")
}

func (s *Store) loadIndex() error {
	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		return fmt.Errorf("failed to read cache index: %w", err)
	}

	var index map[string]*entryMeta
	if err := json.Unmarshal(data, &index); err != nil {
		return fmt.Errorf("failed to parse cache index: %w", err)
	}
	s.index = index

	var total int64
	for _, meta := range index {
		total += meta.Size
	}
	atomic.StoreInt64(&s.currSize, total)

	return nil
}

func (s *Store) saveIndex() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saveIndexLocked()
}

// saveIndexLocked writes the index via a temp file and rename so a crash
// never leaves a truncated index. Caller holds at least a read lock.
func (s *Store) saveIndexLocked() error {
	data, err := json.MarshalIndent(s.index, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache index: %w", err)
	}

	tempPath := s.indexPath() + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache index: %w", err)
	}
	if err := os.Rename(tempPath, s.indexPath()); err != nil {
		return fmt.Errorf("failed to rename cache index: %w", err)
	}
	return nil
}

// rebuildIndex reconstructs the index by scanning the cache directory.
// Used when the index file is missing or corrupt.
func (s *Store) rebuildIndex() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.index = make(map[string]*entryMeta)
	var total int64

	err := filepath.Walk(s.baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}

		relPath, _ := filepath.Rel(s.baseDir, path)
		parts := strings.Split(relPath, string(os.PathSeparator))
		// layer/crs/z/x/y.ext
		if len(parts) != 5 {
			return nil
		}

		z, errZ := strconv.Atoi(parts[2])
		x, errX := strconv.Atoi(parts[3])
		base := parts[4]
		ext := strings.TrimPrefix(filepath.Ext(base), ".")
		y, errY := strconv.Atoi(strings.TrimSuffix(base, filepath.Ext(base)))
		if errZ != nil || errX != nil || errY != nil || ext == "" {
			return nil
		}

		meta := &entryMeta{
			Key:        Key(parts[0], parts[1], z, x, y),
			Layer:      parts[0],
			CRS:        parts[1],
			Z:          z,
			X:          x,
			Y:          y,
			Ext:        ext,
			Size:       info.Size(),
			AccessTime: info.ModTime(),
			CreateTime: info.ModTime(),
		}
		s.index[meta.Key] = meta
		total += info.Size()
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan cache directory: %w", err)
	}

	atomic.StoreInt64(&s.currSize, total)
	return s.saveIndexLocked()
}

// Stats reports entry count and sizes.
func (s *Store) Stats() (entries int, sizeBytes, maxBytes int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.index), atomic.LoadInt64(&s.currSize), s.maxSize
}

// Clear removes all cached tiles and resets the index.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, meta := range s.index {
		os.Remove(s.filePath(meta))
	}
	s.index = make(map[string]*entryMeta)
	atomic.StoreInt64(&s.currSize, 0)

	return s.saveIndexLocked()
}

// Close stops the background maintenance worker.
func (s *Store) Close() {
	close(s.done)
}

// Dir returns the cache base directory.
func (s *Store) Dir() string { return s.baseDir }
