package server

import (
	"sync"

	"github.com/google/uuid"

	"github.com/CK6170/Oxyfit-go/pipeline"
)

type runKind string

const (
	kindReduction runKind = "reduction"
	kindFit       runKind = "fit"
)

// RunRecord is one stored reduction or fit. Raw is the encoded report served by
// /api/download.
type RunRecord struct {
	ID      string
	Kind    runKind
	Raw     []byte
	Session *pipeline.Session
	Report  *pipeline.Report
}

type RunStore struct {
	mu sync.RWMutex
	m  map[string]*RunRecord
}

func NewRunStore() *RunStore {
	return &RunStore{m: make(map[string]*RunRecord)}
}

func newID() string { return uuid.NewString() }

// Put stores rec, assigning an ID when it has none.
func (s *RunStore) Put(rec *RunRecord) *RunRecord {
	if rec.ID == "" {
		rec.ID = newID()
	}
	s.mu.Lock()
	s.m[rec.ID] = rec
	s.mu.Unlock()
	return rec
}

func (s *RunStore) Get(id string) (*RunRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.m[id]
	return r, ok
}

func (s *RunStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
