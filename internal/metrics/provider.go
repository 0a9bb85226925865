package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/sakif/student-library/internal/apperror"
	"github.com/sakif/student-library/internal/model"
	"github.com/sakif/student-library/internal/provider"
)

// Provider call results.
const (
	resultOK       = "ok"
	resultNotFound = "not_found"
	resultRejected = "rejected"
	resultError    = "error"
)

func resultOf(err error) string {
	switch {
	case err == nil:
		return resultOK
	case errors.Is(err, apperror.ErrNotFound):
		return resultNotFound
	case errors.Is(err, apperror.ErrProvider):
		return resultRejected
	default:
		return resultError
	}
}

// InstrumentBackend wraps backend so every client it hands out reports its
// calls to c.
func InstrumentBackend(backend provider.Backend, c *Collector) provider.Backend {
	return &instrumentedBackend{Backend: backend, c: c}
}

type instrumentedBackend struct {
	provider.Backend
	c *Collector
}

func (b *instrumentedBackend) NewClient() provider.Client {
	return &instrumentedClient{next: b.Backend.NewClient(), c: b.c}
}

type instrumentedClient struct {
	next provider.Client
	c    *Collector
}

func (i *instrumentedClient) observe(op string, start time.Time, err error) {
	i.c.ProviderCall(op, resultOf(err), time.Since(start))
}

func (i *instrumentedClient) SignUp(ctx context.Context, email, password string, metadata map[string]string) (*model.Identity, error) {
	start := time.Now()
	id, err := i.next.SignUp(ctx, email, password, metadata)
	i.observe("sign_up", start, err)
	return id, err
}

func (i *instrumentedClient) SignIn(ctx context.Context, email, password string) (*model.ProviderSession, error) {
	start := time.Now()
	s, err := i.next.SignIn(ctx, email, password)
	i.observe("sign_in", start, err)
	return s, err
}

func (i *instrumentedClient) CurrentUser(ctx context.Context) (*model.Identity, error) {
	start := time.Now()
	id, err := i.next.CurrentUser(ctx)
	i.observe("current_user", start, err)
	return id, err
}

func (i *instrumentedClient) Session(ctx context.Context) (*model.ProviderSession, error) {
	start := time.Now()
	s, err := i.next.Session(ctx)
	i.observe("session", start, err)
	return s, err
}

func (i *instrumentedClient) SignOut(ctx context.Context) error {
	start := time.Now()
	err := i.next.SignOut(ctx)
	i.observe("sign_out", start, err)
	return err
}

func (i *instrumentedClient) FetchStudent(ctx context.Context, id string) (*model.Student, error) {
	start := time.Now()
	s, err := i.next.FetchStudent(ctx, id)
	i.observe("fetch_student", start, err)
	return s, err
}

func (i *instrumentedClient) InsertStudent(ctx context.Context, student *model.Student) error {
	start := time.Now()
	err := i.next.InsertStudent(ctx, student)
	i.observe("insert_student", start, err)
	return err
}
