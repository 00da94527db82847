// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
// Package contentstore keeps oversized tool output out of conversation
// context. Content above a size threshold is stored under a generated
// reference id with a TTL deadline; everything below the threshold is the
// caller's problem and never persisted.
package contentstore

import (
	"bytes"
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	// DefaultSizeThresholdBytes is 10KB - content at or below this size is
	// returned inline rather than stored.
	DefaultSizeThresholdBytes = 10 * 1024
	// DefaultMaxMemoryBytes is 256MB
	DefaultMaxMemoryBytes = 256 * 1024 * 1024
	// DefaultCompressionThreshold is 1MB
	DefaultCompressionThreshold = 1 * 1024 * 1024
	// DefaultTTL is 1 hour
	DefaultTTL = time.Hour
)

// Config configures the content store.
type Config struct {
	// SizeThresholdBytes is the cutoff above which content is externalized.
	SizeThresholdBytes int64
	// MaxMemoryBytes bounds total stored bytes; LRU eviction keeps it.
	MaxMemoryBytes int64
	// CompressionThreshold is the payload size above which gzip is attempted.
	CompressionThreshold int64
	// TTL is the fixed lifetime of a stored entry.
	TTL time.Duration
	// CleanupInterval enables the recurring expiry sweep when positive.
	// Zero leaves expired entries to lazy removal on lookup.
	CleanupInterval time.Duration
	// Logger defaults to a nop logger.
	Logger *zap.Logger
}

type storedContent struct {
	ref        *ContentReference
	data       []byte
	compressed bool
	storedSize int64
	checksum   string
	expiresAt  time.Time
	lruElement *list.Element
}

// Store is an in-memory content-addressable store with TTL expiry and
// LRU-bounded memory. All methods are safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	entries     map[string]*storedContent
	lruList     *list.List
	currentSize int64
	disposed    bool

	threshold            int64
	maxSize              int64
	compressionThreshold int64
	ttl                  time.Duration
	logger               *zap.Logger
	cleaner              *cron.Cron

	now func() time.Time

	hits         atomic.Int64
	misses       atomic.Int64
	evictions    atomic.Int64
	compressions atomic.Int64
}

// NewStore creates a content store. When cfg.CleanupInterval is positive a
// recurring background sweep removes expired entries; Dispose cancels it.
func NewStore(cfg *Config) *Store {
	if cfg == nil {
		cfg = &Config{}
	}

	threshold := cfg.SizeThresholdBytes
	if threshold <= 0 {
		threshold = DefaultSizeThresholdBytes
	}
	maxSize := cfg.MaxMemoryBytes
	if maxSize <= 0 {
		maxSize = DefaultMaxMemoryBytes
	}
	compressionThreshold := cfg.CompressionThreshold
	if compressionThreshold <= 0 {
		compressionThreshold = DefaultCompressionThreshold
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Store{
		entries:              make(map[string]*storedContent),
		lruList:              list.New(),
		threshold:            threshold,
		maxSize:              maxSize,
		compressionThreshold: compressionThreshold,
		ttl:                  ttl,
		logger:               logger,
		now:                  time.Now,
	}

	if cfg.CleanupInterval > 0 {
		s.cleaner = cron.New()
		_, err := s.cleaner.AddFunc(fmt.Sprintf("@every %s", cfg.CleanupInterval), func() {
			removed := s.RemoveExpired()
			if removed > 0 {
				s.logger.Debug("Expiry sweep removed entries", zap.Int("removed", removed))
			}
		})
		if err != nil {
			s.logger.Warn("Failed to schedule expiry sweep; relying on lazy expiry", zap.Error(err))
			s.cleaner = nil
		} else {
			s.cleaner.Start()
		}
	}

	return s
}

// SizeThreshold returns the byte cutoff above which content is stored.
func (s *Store) SizeThreshold() int64 {
	return s.threshold
}

// StoreContentIfLarge persists content only when it exceeds the size
// threshold. Returns (nil, nil) for content at or below the threshold; the
// caller keeps it inline. For oversized content it returns a reference whose
// id is unique within this store instance.
func (s *Store) StoreContentIfLarge(ctx context.Context, content []byte, meta ContentMetadata) (*ContentReference, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	originalSize := int64(len(content))
	if originalSize <= s.threshold {
		return nil, nil
	}

	hash := sha256.Sum256(content)
	checksum := hex.EncodeToString(hash[:])

	stored := content
	compressed := false
	if originalSize >= s.compressionThreshold {
		if packed, err := compress(content); err == nil && len(packed) < len(content) {
			stored = packed
			compressed = true
			s.compressions.Add(1)
		}
	}
	storedSize := int64(len(stored))

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return nil, fmt.Errorf("content store is disposed")
	}

	for s.currentSize+storedSize > s.maxSize {
		if !s.evictOldest() {
			return nil, fmt.Errorf("content store full: cannot fit %d bytes", storedSize)
		}
	}

	now := s.now()
	meta.SizeBytes = originalSize
	ref := &ContentReference{
		ReferenceID: GenerateReferenceID(),
		State:       StateActive,
		Preview:     MakePreview(content, DefaultPreviewLength),
		Metadata:    meta,
		CreatedAt:   now,
	}

	entry := &storedContent{
		ref:        ref,
		data:       stored,
		compressed: compressed,
		storedSize: storedSize,
		checksum:   checksum,
		expiresAt:  now.Add(s.ttl),
	}
	entry.lruElement = s.lruList.PushFront(entry)
	s.entries[ref.ReferenceID] = entry
	s.currentSize += storedSize

	s.logger.Debug("Stored oversized content",
		zap.String("reference_id", ref.ReferenceID),
		zap.Int64("size_bytes", originalSize),
		zap.Bool("compressed", compressed),
	)

	refCopy := *ref
	return &refCopy, nil
}

// HasReference reports whether a reference id currently resolves to stored,
// unexpired content. Expired entries are removed as a side effect.
func (s *Store) HasReference(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return false, nil
	}
	if s.now().After(entry.expiresAt) {
		s.removeLocked(entry)
		s.evictions.Add(1)
		return false, nil
	}
	return true, nil
}

// Get redeems a reference, returning the original payload and its reference
// record. Expired or unknown ids are misses.
func (s *Store) Get(ctx context.Context, id string) ([]byte, *ContentReference, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	entry, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		s.misses.Add(1)
		return nil, nil, fmt.Errorf("content not found: %s", id)
	}
	if s.now().After(entry.expiresAt) {
		s.removeLocked(entry)
		s.mu.Unlock()
		s.evictions.Add(1)
		s.misses.Add(1)
		return nil, nil, fmt.Errorf("content expired: %s", id)
	}
	s.lruList.MoveToFront(entry.lruElement)
	data := entry.data
	compressed := entry.compressed
	refCopy := *entry.ref
	s.mu.Unlock()

	s.hits.Add(1)
	if compressed {
		plain, err := decompress(data)
		if err != nil {
			return nil, nil, fmt.Errorf("decompress %s: %w", id, err)
		}
		return plain, &refCopy, nil
	}
	return data, &refCopy, nil
}

// Remove deletes a stored entry by reference id.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return fmt.Errorf("content not found: %s", id)
	}
	s.removeLocked(entry)
	return nil
}

// RemoveExpired sweeps every entry past its TTL deadline and returns the
// number removed. Called by the background cleaner when enabled.
func (s *Store) RemoveExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for _, entry := range s.entries {
		if now.After(entry.expiresAt) {
			s.removeLocked(entry)
			s.evictions.Add(1)
			removed++
		}
	}
	return removed
}

// Dispose releases all stored entries and stops the background cleaner,
// blocking until any in-flight sweep has finished. Safe to call more than
// once; the store rejects new writes afterwards.
func (s *Store) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	cleaner := s.cleaner
	s.cleaner = nil
	s.entries = make(map[string]*storedContent)
	s.lruList.Init()
	s.currentSize = 0
	s.mu.Unlock()

	if cleaner != nil {
		<-cleaner.Stop().Done()
	}
	s.logger.Debug("Content store disposed")
}

// Stats returns a read-only snapshot of store state and counters.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		ActiveReferences: len(s.entries),
		CurrentSizeBytes: s.currentSize,
		MaxSizeBytes:     s.maxSize,
		Hits:             s.hits.Load(),
		Misses:           s.misses.Load(),
		Evictions:        s.evictions.Load(),
		Compressions:     s.compressions.Load(),
	}
}

// Stats holds content store statistics.
type Stats struct {
	ActiveReferences int
	CurrentSizeBytes int64
	MaxSizeBytes     int64
	Hits             int64
	Misses           int64
	Evictions        int64
	Compressions     int64
}

// removeLocked unlinks an entry. Must be called with the write lock held.
func (s *Store) removeLocked(entry *storedContent) {
	entry.ref.State = StateExpired
	s.lruList.Remove(entry.lruElement)
	delete(s.entries, entry.ref.ReferenceID)
	s.currentSize -= entry.storedSize
}

// evictOldest drops the least recently used entry to make room. Must be
// called with the write lock held.
func (s *Store) evictOldest() bool {
	element := s.lruList.Back()
	if element == nil {
		return false
	}
	entry := element.Value.(*storedContent)
	s.removeLocked(entry)
	s.evictions.Add(1)
	s.logger.Debug("Evicted LRU entry", zap.String("reference_id", entry.ref.ReferenceID))
	return true
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer gz.Close()
	return io.ReadAll(gz)
}
