package portal

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sakif/student-library/internal/apperror"
	"github.com/sakif/student-library/internal/model"
	"github.com/sakif/student-library/internal/provider"
	"github.com/sakif/student-library/internal/view"
)

// fakeClient is an in-memory provider.Client that counts every call.
type fakeClient struct {
	mu sync.Mutex

	accounts map[string]string // email → password
	ids      map[string]string // email → identity id
	students map[string]*model.Student
	current  *model.Identity

	signUpErr  error
	signInErr  error
	insertErr  error
	fetchErr   error
	currentErr error
	signOutErr error

	// signUpGate, when set, blocks SignUp until closed.
	signUpGate chan struct{}
	signUpSeen chan struct{}
	// fetchGate, when set, blocks FetchStudent until closed.
	fetchGate chan struct{}
	fetchSeen chan struct{}

	calls map[string]int
}

var _ provider.Client = (*fakeClient)(nil)

func newFakeClient() *fakeClient {
	return &fakeClient{
		accounts: map[string]string{},
		ids:      map[string]string{},
		students: map[string]*model.Student{},
		calls:    map[string]int{},
	}
}

func (f *fakeClient) count(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeClient) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeClient) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeClient) SignUp(ctx context.Context, email, password string, metadata map[string]string) (*model.Identity, error) {
	f.count("SignUp")
	if f.signUpSeen != nil {
		f.signUpSeen <- struct{}{}
	}
	if f.signUpGate != nil {
		<-f.signUpGate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signUpErr != nil {
		return nil, f.signUpErr
	}
	if _, ok := f.accounts[email]; ok {
		return nil, apperror.Provider("User already registered", nil)
	}
	id := "u" + string(rune('0'+len(f.accounts)+1))
	f.accounts[email] = password
	f.ids[email] = id
	return &model.Identity{ID: id, Email: email, Metadata: metadata}, nil
}

func (f *fakeClient) SignIn(ctx context.Context, email, password string) (*model.ProviderSession, error) {
	f.count("SignIn")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	if pw, ok := f.accounts[email]; !ok || pw != password {
		return nil, apperror.Provider("Invalid login credentials", nil)
	}
	f.current = &model.Identity{ID: f.ids[email], Email: email}
	return &model.ProviderSession{
		AccessToken: "token",
		ExpiresAt:   time.Now().Add(time.Hour),
		User:        *f.current,
	}, nil
}

func (f *fakeClient) CurrentUser(ctx context.Context) (*model.Identity, error) {
	f.count("CurrentUser")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.currentErr != nil {
		return nil, f.currentErr
	}
	return f.current, nil
}

func (f *fakeClient) Session(ctx context.Context) (*model.ProviderSession, error) {
	f.count("Session")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return nil, nil
	}
	return &model.ProviderSession{AccessToken: "token", User: *f.current}, nil
}

func (f *fakeClient) SignOut(ctx context.Context) error {
	f.count("SignOut")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = nil
	return f.signOutErr
}

func (f *fakeClient) FetchStudent(ctx context.Context, id string) (*model.Student, error) {
	f.count("FetchStudent")
	if f.fetchSeen != nil {
		f.fetchSeen <- struct{}{}
	}
	if f.fetchGate != nil {
		<-f.fetchGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	s, ok := f.students[id]
	if !ok {
		return nil, apperror.NotFound("student", id)
	}
	cp := *s
	return &cp, nil
}

func (f *fakeClient) InsertStudent(ctx context.Context, s *model.Student) error {
	f.count("InsertStudent")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	cp := *s
	now := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	cp.CreatedAt = &now
	f.students[s.ID] = &cp
	return nil
}

// seedUser creates an account with a profile row, as a prior registration
// would have.
func (f *fakeClient) seedUser(id, email, password string, s *model.Student) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[email] = password
	f.ids[email] = id
	if s != nil {
		f.students[id] = s
	}
}

func (f *fakeClient) signInAs(id, email string) {
	f.mu.Lock()
	f.current = &model.Identity{ID: id, Email: email}
	f.mu.Unlock()
}

// slotlessView is a document whose message slots can be made to vanish.
type slotlessView struct {
	*view.Document
	gone atomic.Bool
}

func (v *slotlessView) ShowMessage(slot, text string, kind view.MessageKind) bool {
	if v.gone.Load() {
		return false
	}
	return v.Document.ShowMessage(slot, text, kind)
}

func (v *slotlessView) HideMessage(slot string) bool {
	if v.gone.Load() {
		return false
	}
	return v.Document.HideMessage(slot)
}

// memStorage is a map-backed Storage.
type memStorage struct {
	mu    sync.Mutex
	items map[string]string
}

func newMemStorage() *memStorage {
	return &memStorage{items: map[string]string{}}
}

func (m *memStorage) GetItem(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[key]
	return v, ok
}

func (m *memStorage) SetItem(key, value string) {
	m.mu.Lock()
	m.items[key] = value
	m.mu.Unlock()
}

func (m *memStorage) RemoveItem(key string) {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
}

// manualScheduler holds tasks until the test runs them.
type manualScheduler struct {
	mu      sync.Mutex
	tasks   map[string]manualTask
	stopped bool
}

type manualTask struct {
	delay time.Duration
	run   func()
}

func newManualScheduler() *manualScheduler {
	return &manualScheduler{tasks: map[string]manualTask{}}
}

func (s *manualScheduler) Schedule(key string, delay time.Duration, task func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.tasks[key] = manualTask{delay: delay, run: task}
}

func (s *manualScheduler) Cancel(key string) {
	s.mu.Lock()
	delete(s.tasks, key)
	s.mu.Unlock()
}

func (s *manualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *manualScheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.tasks = map[string]manualTask{}
	s.mu.Unlock()
}

func (s *manualScheduler) delay(key string) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[key]
	return t.delay, ok
}

// run fires one task as if its timer expired.
func (s *manualScheduler) run(key string) bool {
	s.mu.Lock()
	t, ok := s.tasks[key]
	delete(s.tasks, key)
	s.mu.Unlock()
	if ok {
		t.run()
	}
	return ok
}

// runAll fires every pending task, including ones scheduled meanwhile.
func (s *manualScheduler) runAll() {
	for i := 0; i < 100; i++ {
		s.mu.Lock()
		keys := make([]string, 0, len(s.tasks))
		for k := range s.tasks {
			keys = append(keys, k)
		}
		s.mu.Unlock()
		if len(keys) == 0 {
			return
		}
		sort.Strings(keys)
		for _, k := range keys {
			s.run(k)
		}
	}
}

// flowRecorder counts recorder callbacks.
type flowRecorder struct {
	mu       sync.Mutex
	pages    []string
	outcomes map[string][]string
}

func newFlowRecorder() *flowRecorder {
	return &flowRecorder{outcomes: map[string][]string{}}
}

func (r *flowRecorder) PageShown(page string) {
	r.mu.Lock()
	r.pages = append(r.pages, page)
	r.mu.Unlock()
}

func (r *flowRecorder) FlowFinished(flow, outcome string, _ time.Duration) {
	r.mu.Lock()
	r.outcomes[flow] = append(r.outcomes[flow], outcome)
	r.mu.Unlock()
}

func (r *flowRecorder) flow(name string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.outcomes[name]...)
}
