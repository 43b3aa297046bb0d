package engine

import (
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/xkilldash9x/pagepilot/api/schemas"
)

// Session owns the element inventory of one page. Each extraction pass
// replaces the inventory as a whole; readers never see a mix of two passes.
type Session struct {
	id        string
	inventory atomic.Pointer[inventory]
}

type inventory struct {
	url     string
	records map[int]schemas.ElementRecord
}

// NewSession creates a Session with a fresh random id and no inventory.
func NewSession() *Session {
	return &Session{id: uuid.NewString()}
}

// ID identifies the session in extraction results and logs.
func (s *Session) ID() string { return s.id }

// Record returns the record with the given index from the latest pass.
func (s *Session) Record(index int) (schemas.ElementRecord, bool) {
	inv := s.inventory.Load()
	if inv == nil {
		return schemas.ElementRecord{}, false
	}
	r, ok := inv.records[index]
	return r, ok
}

// Len is the number of records in the latest pass.
func (s *Session) Len() int {
	if inv := s.inventory.Load(); inv != nil {
		return len(inv.records)
	}
	return 0
}

// URL is the document URL the latest pass was taken from.
func (s *Session) URL() string {
	if inv := s.inventory.Load(); inv != nil {
		return inv.url
	}
	return ""
}

// Replace installs the records of a new pass.
func (s *Session) Replace(url string, records []schemas.ElementRecord) {
	inv := &inventory{url: url, records: make(map[int]schemas.ElementRecord, len(records))}
	for _, r := range records {
		inv.records[r.Index] = r
	}
	s.inventory.Store(inv)
}

// Invalidate drops the inventory. Index targets fail until the next pass.
func (s *Session) Invalidate() {
	s.inventory.Store(nil)
}
