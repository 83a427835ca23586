package dao

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/loanvault/document-consent-api/internal/models"
)

// MemoryBatchStore is a process-local BatchStore. Records are cloned on the
// way in and out so callers never share state with the store.
type MemoryBatchStore struct {
	mu      sync.RWMutex
	seq     int64
	batches map[string]*memoryBatch
}

type memoryBatch struct {
	seq   int64
	batch *models.ConsentBatch
}

// NewMemoryBatchStore creates an empty MemoryBatchStore
func NewMemoryBatchStore() *MemoryBatchStore {
	return &MemoryBatchStore{batches: make(map[string]*memoryBatch)}
}

// Create inserts a new batch
func (s *MemoryBatchStore) Create(_ context.Context, batch *models.ConsentBatch) error {
	clone, err := batch.Clone()
	if err != nil {
		return fmt.Errorf("failed to create consent batch: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.batches[batch.BatchID]; exists {
		return fmt.Errorf("failed to create consent batch: duplicate id %s", batch.BatchID)
	}
	s.seq++
	s.batches[batch.BatchID] = &memoryBatch{seq: s.seq, batch: clone}
	return nil
}

// GetByID retrieves a batch by ID
func (s *MemoryBatchStore) GetByID(_ context.Context, batchID string) (*models.ConsentBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.batches[batchID]
	if !ok {
		return nil, fmt.Errorf("consent batch %s: %w", batchID, ErrNotFound)
	}
	return entry.batch.Clone()
}

// Update replaces the stored batch
func (s *MemoryBatchStore) Update(_ context.Context, batch *models.ConsentBatch) error {
	clone, err := batch.Clone()
	if err != nil {
		return fmt.Errorf("failed to update consent batch: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.batches[batch.BatchID]
	if !ok {
		return fmt.Errorf("consent batch %s: %w", batch.BatchID, ErrNotFound)
	}
	entry.batch = clone
	return nil
}

// ListByPAN returns the batches of a PAN, newest first
func (s *MemoryBatchStore) ListByPAN(_ context.Context, panNumber string, status models.BatchStatus) ([]*models.ConsentBatch, error) {
	matched, err := s.snapshot(func(b *models.ConsentBatch) bool {
		return b.PANNumber == panNumber && (status == "" || b.Status == status)
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.batch.CreatedAt.Equal(b.batch.CreatedAt) {
			return a.batch.CreatedAt.After(b.batch.CreatedAt)
		}
		return a.seq > b.seq
	})
	return batchesOf(matched), nil
}

// ListByStatus returns every batch in status, oldest first
func (s *MemoryBatchStore) ListByStatus(_ context.Context, status models.BatchStatus) ([]*models.ConsentBatch, error) {
	matched, err := s.snapshot(func(b *models.ConsentBatch) bool { return b.Status == status })
	if err != nil {
		return nil, err
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.batch.CreatedAt.Equal(b.batch.CreatedAt) {
			return a.batch.CreatedAt.Before(b.batch.CreatedAt)
		}
		return a.seq < b.seq
	})
	return batchesOf(matched), nil
}

// snapshot clones the matching batches while the read lock is held
func (s *MemoryBatchStore) snapshot(match func(*models.ConsentBatch) bool) ([]memoryBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []memoryBatch
	for _, entry := range s.batches {
		if !match(entry.batch) {
			continue
		}
		clone, err := entry.batch.Clone()
		if err != nil {
			return nil, fmt.Errorf("failed to list consent batches: %w", err)
		}
		matched = append(matched, memoryBatch{seq: entry.seq, batch: clone})
	}
	return matched, nil
}

func batchesOf(entries []memoryBatch) []*models.ConsentBatch {
	batches := make([]*models.ConsentBatch, 0, len(entries))
	for _, entry := range entries {
		batches = append(batches, entry.batch)
	}
	return batches
}

// DeleteExpired removes batches that can no longer be verified
func (s *MemoryBatchStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, entry := range s.batches {
		if isSweepable(entry.batch, now) {
			delete(s.batches, id)
			deleted++
		}
	}
	return deleted, nil
}

func isSweepable(b *models.ConsentBatch, now time.Time) bool {
	otpLapsed := b.Status == models.BatchOTPSent && b.OTPExpiresAt != nil && b.OTPExpiresAt.Before(now)
	consentLapsed := (b.Status == models.BatchPending || b.Status == models.BatchOTPSent) && b.ConsentExpiresAt.Before(now)
	return otpLapsed || consentLapsed
}

// MemoryDocumentStore is a process-local DocumentStore
type MemoryDocumentStore struct {
	mu   sync.RWMutex
	seq  int64
	docs map[string]*memoryDocument
}

type memoryDocument struct {
	seq int64
	doc *models.Document
}

// NewMemoryDocumentStore creates an empty MemoryDocumentStore
func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{docs: make(map[string]*memoryDocument)}
}

// Create inserts a new document
func (s *MemoryDocumentStore) Create(_ context.Context, doc *models.Document) error {
	clone, err := doc.Clone()
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.docs[doc.DocumentID]; exists {
		return fmt.Errorf("failed to create document: duplicate id %s", doc.DocumentID)
	}
	s.seq++
	s.docs[doc.DocumentID] = &memoryDocument{seq: s.seq, doc: clone}
	return nil
}

// GetByID retrieves a document by ID
func (s *MemoryDocumentStore) GetByID(_ context.Context, documentID string) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.docs[documentID]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", documentID, ErrNotFound)
	}
	return entry.doc.Clone()
}

// Update replaces the stored document
func (s *MemoryDocumentStore) Update(_ context.Context, doc *models.Document) error {
	clone, err := doc.Clone()
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.docs[doc.DocumentID]
	if !ok {
		return fmt.Errorf("document %s: %w", doc.DocumentID, ErrNotFound)
	}
	entry.doc = clone
	return nil
}

// ListByRequestID returns the documents generated for a batch in creation order
func (s *MemoryDocumentStore) ListByRequestID(_ context.Context, requestID string) ([]*models.Document, error) {
	s.mu.RLock()
	var matched []memoryDocument
	for _, entry := range s.docs {
		if entry.doc.RequestID != requestID {
			continue
		}
		clone, err := entry.doc.Clone()
		if err != nil {
			s.mu.RUnlock()
			return nil, fmt.Errorf("failed to list documents: %w", err)
		}
		matched = append(matched, memoryDocument{seq: entry.seq, doc: clone})
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].seq < matched[j].seq })

	docs := make([]*models.Document, 0, len(matched))
	for _, entry := range matched {
		docs = append(docs, entry.doc)
	}
	return docs, nil
}

// GetByShareToken finds the document carrying the given share token
func (s *MemoryDocumentStore) GetByShareToken(_ context.Context, token string) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, entry := range s.docs {
		for _, st := range entry.doc.ShareTokens {
			if st.Token == token {
				return entry.doc.Clone()
			}
		}
	}
	return nil, fmt.Errorf("share token: %w", ErrNotFound)
}

// DeleteExpired removes documents past their expiry
func (s *MemoryDocumentStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, entry := range s.docs {
		if entry.doc.IsExpired(now) {
			delete(s.docs, id)
			deleted++
		}
	}
	return deleted, nil
}
