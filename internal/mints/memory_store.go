package mints

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"sync"
	"time"
)

// MemoryStore keeps records in memory, newest first, optionally mirrored to a
// JSON file.
type MemoryStore struct {
	mu         sync.RWMutex
	records    []Record
	filePath   string
	maxRecords int
}

func NewMemoryStore(filePath string, maxRecords int) *MemoryStore {
	if maxRecords <= 0 {
		maxRecords = 1000
	}
	s := &MemoryStore{
		records:    make([]Record, 0),
		filePath:   filePath,
		maxRecords: maxRecords,
	}
	s.load()
	return s
}

func (s *MemoryStore) Save(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.records {
		if s.records[i].Session == rec.Session {
			if rec.CreatedAt.IsZero() {
				rec.CreatedAt = s.records[i].CreatedAt
			}
			s.records[i] = stamp(rec, time.Now())
			return s.save()
		}
	}

	s.records = append([]Record{stamp(rec, time.Now())}, s.records...)
	if len(s.records) > s.maxRecords {
		s.records = s.records[:s.maxRecords]
	}
	return s.save()
}

func (s *MemoryStore) Get(_ context.Context, session string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.records {
		if rec.Session == session {
			return rec, nil
		}
	}
	return Record{}, ErrNotFound
}

func (s *MemoryStore) ListByState(_ context.Context, state State, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	out := make([]Record, 0)
	for _, rec := range s.records {
		if rec.State != state {
			continue
		}
		out = append(out, rec)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) load() {
	if s.filePath == "" {
		return
	}
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		log.Printf("[mints] ignoring unreadable ledger file %s: %v", s.filePath, err)
		return
	}
	s.records = records
}

func (s *MemoryStore) save() error {
	if s.filePath == "" {
		return nil
	}
	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.filePath, data, 0o644)
}
