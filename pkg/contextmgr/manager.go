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
// Package contextmgr tracks content references across a conversation
// session. Each accepted reference gets a context entry keyed by a generated
// context id; entries are re-validated against the content store and purged
// when stale or invalid. One manager serves one session; concurrent sessions
// use independent managers.
package contextmgr

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/spool/pkg/contentstore"
)

// Entry associates a tracked reference with its conversation context.
type Entry struct {
	ContextID      string
	Reference      *contentstore.ContentReference
	Turn           int
	AddedAt        time.Time
	LastAccessedAt time.Time
}

// ReferenceChecker is the slice of the content store the manager needs.
type ReferenceChecker interface {
	HasReference(ctx context.Context, id string) (bool, error)
}

// Manager tracks references added during a conversation, ordered by
// insertion. Thread-safe, though a single session drives it sequentially.
type Manager struct {
	mu      sync.RWMutex
	store   ReferenceChecker
	logger  *zap.Logger
	entries map[string]*Entry // contextID -> entry
	byRef   map[string]string // referenceID -> contextID
	order   []*Entry          // insertion order
	turn    int

	now func() time.Time
}

// NewManager creates a reference context manager backed by the given store.
func NewManager(store ReferenceChecker, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:   store,
		logger:  logger,
		entries: make(map[string]*Entry),
		byRef:   make(map[string]string),
		now:     time.Now,
	}
}

const contextIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

func randomSuffix(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = contextIDAlphabet[rand.IntN(len(contextIDAlphabet))]
	}
	return string(b)
}

// AddReference tracks a reference and returns its generated context id of
// the form ctx_<epoch-millis>_<8 alphanumerics>. Each accepted reference
// advances the conversation turn counter.
func (m *Manager) AddReference(ref *contentstore.ContentReference) string {
	if ref == nil {
		return ""
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.turn++
	entry := &Entry{
		ContextID:      fmt.Sprintf("ctx_%d_%s", now.UnixMilli(), randomSuffix(8)),
		Reference:      ref,
		Turn:           m.turn,
		AddedAt:        now,
		LastAccessedAt: now,
	}
	m.entries[entry.ContextID] = entry
	m.byRef[ref.ReferenceID] = entry.ContextID
	m.order = append(m.order, entry)

	m.logger.Debug("Tracking content reference",
		zap.String("context_id", entry.ContextID),
		zap.String("reference_id", ref.ReferenceID),
		zap.Int("turn", entry.Turn),
	)
	return entry.ContextID
}

// GetMostRecentReference returns the last reference added, or nil when none
// are tracked. Ties on wall-clock time are broken by insertion order.
func (m *Manager) GetMostRecentReference() *contentstore.ContentReference {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.order) == 0 {
		return nil
	}
	return m.order[len(m.order)-1].Reference
}

// GetReferenceByContextID looks up a tracked reference and refreshes its
// last-accessed time on a hit. Returns nil for unknown ids.
func (m *Manager) GetReferenceByContextID(contextID string) *contentstore.ContentReference {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[contextID]
	if !ok {
		return nil
	}
	entry.LastAccessedAt = m.now()
	return entry.Reference
}

// ValidationResult reports the outcome of re-validating tracked references.
type ValidationResult struct {
	Valid   int      `json:"valid"`
	Invalid int      `json:"invalid"`
	Removed []string `json:"removed"`
}

// ValidateReferences checks every tracked reference against the content
// store and removes those that are gone. A lookup error counts as invalid.
func (m *Manager) ValidateReferences(ctx context.Context) ValidationResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := ValidationResult{Removed: []string{}}
	kept := m.order[:0]
	for _, entry := range m.order {
		ok, err := m.store.HasReference(ctx, entry.Reference.ReferenceID)
		if err != nil {
			m.logger.Warn("Reference validation lookup failed",
				zap.String("reference_id", entry.Reference.ReferenceID),
				zap.Error(err),
			)
			ok = false
		}
		if ok {
			result.Valid++
			kept = append(kept, entry)
			continue
		}
		result.Invalid++
		result.Removed = append(result.Removed, entry.Reference.ReferenceID)
		delete(m.entries, entry.ContextID)
		delete(m.byRef, entry.Reference.ReferenceID)
	}
	m.order = kept

	if result.Invalid > 0 {
		m.logger.Info("Removed invalid references from context",
			zap.Int("removed", result.Invalid),
			zap.Int("remaining", result.Valid),
		)
	}
	return result
}

// CleanupOldReferences removes entries whose last access is older than
// maxAge and returns the number removed. Entries refreshed by a recent
// lookup survive even when originally added long ago.
func (m *Manager) CleanupOldReferences(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-maxAge)
	removed := 0
	kept := m.order[:0]
	for _, entry := range m.order {
		if entry.LastAccessedAt.Before(cutoff) {
			delete(m.entries, entry.ContextID)
			delete(m.byRef, entry.Reference.ReferenceID)
			removed++
			continue
		}
		kept = append(kept, entry)
	}
	m.order = kept

	if removed > 0 {
		m.logger.Debug("Cleaned up stale references",
			zap.Int("removed", removed),
			zap.Duration("max_age", maxAge),
		)
	}
	return removed
}

// ContextStats is a read-only snapshot of manager state.
type ContextStats struct {
	ActiveReferences    int        `json:"activeReferences"`
	ConversationTurn    int        `json:"conversationTurn"`
	OldestReference     *time.Time `json:"oldestReference"`
	MostRecentReference *time.Time `json:"mostRecentReference"`
}

// GetContextStats returns tracked-reference counts and age bounds. The age
// bounds are nil when nothing is tracked.
func (m *Manager) GetContextStats() ContextStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := ContextStats{
		ActiveReferences: len(m.order),
		ConversationTurn: m.turn,
	}
	if len(m.order) > 0 {
		oldest := m.order[0].AddedAt
		newest := m.order[len(m.order)-1].AddedAt
		stats.OldestReference = &oldest
		stats.MostRecentReference = &newest
	}
	return stats
}

// Clear removes all tracked entries and resets the turn counter.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[string]*Entry)
	m.byRef = make(map[string]string)
	m.order = nil
	m.turn = 0
}

// contextIDFor returns the context id tracking a reference id, if any.
func (m *Manager) contextIDFor(referenceID string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byRef[referenceID]
}
