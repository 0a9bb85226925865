package portal

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/sakif/student-library/internal/model"
)

// Flow names, used for in-flight guards and metrics.
const (
	flowRegister = "register"
	flowLogin    = "login"
	flowProfile  = "profile"
	flowLogout   = "logout"
)

// sessionState is the tab's shared mutable state: the Cached Session, the
// active page and the in-flight flow set. Each accessor is atomic.
type sessionState struct {
	mu       sync.Mutex
	storage  Storage
	logger   *slog.Logger
	active   model.Page
	inflight map[string]bool
	// epoch counts clears of the Cached Session. Flows that resolve a
	// student across provider calls commit only if it is unchanged.
	epoch uint64
}

func newSessionState(storage Storage, logger *slog.Logger) *sessionState {
	return &sessionState{
		storage:  storage,
		logger:   logger,
		inflight: make(map[string]bool),
	}
}

// cached returns the Cached Session. An absent or unparseable slot reads
// as empty.
func (s *sessionState) cached() *model.Student {
	s.mu.Lock()
	raw, ok := s.storage.GetItem(CacheKey)
	s.mu.Unlock()
	if !ok || raw == "" {
		return nil
	}

	var student model.Student
	if err := json.Unmarshal([]byte(raw), &student); err != nil {
		s.logger.Debug("ignoring unparseable cached session", slog.String("error", err.Error()))
		return nil
	}
	if student.ID == "" && student.Email == "" && student.FullName == "" {
		return nil
	}
	return &student
}

func (s *sessionState) store(student *model.Student) {
	s.mu.Lock()
	s.storeLocked(student)
	s.mu.Unlock()
}

func (s *sessionState) storeLocked(student *model.Student) {
	buf, err := json.Marshal(student)
	if err != nil {
		s.logger.Error("failed to encode cached session", slog.String("error", err.Error()))
		return
	}
	s.storage.SetItem(CacheKey, string(buf))
}

// clear empties the Cached Session and starts a new epoch.
func (s *sessionState) clear() {
	s.mu.Lock()
	s.storage.RemoveItem(CacheKey)
	s.epoch++
	s.mu.Unlock()
}

func (s *sessionState) currentEpoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// commit caches student (when non-nil) and runs then, both under the lock,
// provided no clear happened since epoch was read. It reports whether it
// committed. then must not call back into sessionState.
func (s *sessionState) commit(epoch uint64, student *model.Student, then func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return false
	}
	if student != nil {
		s.storeLocked(student)
	}
	if then != nil {
		then()
	}
	return true
}

func (s *sessionState) page() model.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *sessionState) setPage(p model.Page) {
	s.mu.Lock()
	s.active = p
	s.mu.Unlock()
}

// begin marks flow as running. It reports false when it already is.
func (s *sessionState) begin(flow string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight[flow] {
		return false
	}
	s.inflight[flow] = true
	return true
}

func (s *sessionState) end(flow string) {
	s.mu.Lock()
	delete(s.inflight, flow)
	s.mu.Unlock()
}
