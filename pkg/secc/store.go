package secc

import (
	"sync"

	"github.com/mash-protocol/mash-go/pkg/catalog/dtype"
)

// SessionRecord is the slice of session state that must survive a
// disconnect-and-reconnect for the "session resume" rule in spec's data
// model lifecycles: a second connection presenting a previously issued
// session id gets OK_OLD_SESSION_JOINED and has its prior auth option
// re-offered exclusively, rather than renegotiating from scratch.
type SessionRecord struct {
	SessionID          string
	SelectedAuthOption *dtype.AuthOption
}

// SessionStore resolves whether an EVCC-presented session id belongs to a
// session this SECC has seen before, and records the auth option once a
// new session selects one. It is the Handler's only persistence seam;
// nothing here survives a process restart unless a caller supplies an
// implementation that does.
type SessionStore interface {
	Load(sessionID string) (SessionRecord, bool)
	Save(rec SessionRecord)
	Delete(sessionID string)
}

// MemorySessionStore is an in-process SessionStore backed by a
// mutex-protected map, the reference implementation the example binaries
// run with. A real deployment that needs resume to survive a restart
// would back this interface with a database instead.
type MemorySessionStore struct {
	mu      sync.Mutex
	records map[string]SessionRecord
}

// NewMemorySessionStore returns an empty MemorySessionStore.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{records: make(map[string]SessionRecord)}
}

func (s *MemorySessionStore) Load(sessionID string) (SessionRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[sessionID]
	return rec, ok
}

func (s *MemorySessionStore) Save(rec SessionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.SessionID] = rec
}

func (s *MemorySessionStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, sessionID)
}
