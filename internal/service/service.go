// Package service implements the tournament, player and registration
// operations on top of a store.Store.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"tourney-backend/internal/auth"
	"tourney-backend/internal/models"
	"tourney-backend/internal/store"

	"cloud.google.com/go/civil"
)

const DefaultTimeout = 5 * time.Second

type Service struct {
	store   store.Store
	hasher  auth.Hasher
	timeout time.Duration
	now     func() time.Time
}

type Option func(*Service)

// WithClock replaces time.Now, which decides "today" and creation times.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithTimeout bounds every store round trip. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

func New(s store.Store, hasher auth.Hasher, opts ...Option) *Service {
	svc := &Service{
		store:   s,
		hasher:  hasher,
		timeout: DefaultTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.hasher == nil {
		svc.hasher = auth.PlainHasher{}
	}
	return svc
}

func (s *Service) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// timestamp is UTC with microsecond precision, the finest every backend keeps.
func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *Service) today() civil.Date {
	return civil.DateOf(s.now())
}

// storeErr turns an expired deadline into models.ErrTimeout.
func storeErr(err error) error {
	if err == nil || errors.Is(err, models.ErrTimeout) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", models.ErrTimeout, err)
	}
	return err
}

// SchemaVersion reports the migrated schema version, or "" for stores
// without one.
func (s *Service) SchemaVersion(ctx context.Context) (string, error) {
	v, ok := s.store.(store.Versioned)
	if !ok {
		return "", nil
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()
	version, err := v.SchemaVersion(ctx)
	return version, storeErr(err)
}

func requireName(v *models.ValidationError, field, value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		v.Add(field, "is required")
	}
	return value
}
