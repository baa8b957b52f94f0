package service

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/polyinsider/internal/domain"
)

// Status is a point-in-time count of every stored entity.
type Status struct {
	Traders    int64 `json:"traders"`
	Markets    int64 `json:"markets"`
	Positions  int64 `json:"positions"`
	Activities int64 `json:"activities"`
}

// HealthChecker is an optional dependency that can report reachability.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// StatusService reports store health and entity counts.
type StatusService struct {
	store   domain.Store
	archive HealthChecker
}

// NewStatusService creates a StatusService. archive may be nil when no
// snapshot archive is configured.
func NewStatusService(store domain.Store, archive HealthChecker) *StatusService {
	return &StatusService{store: store, archive: archive}
}

// Ping checks the store connection.
func (s *StatusService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// ArchiveHealth checks the snapshot archive bucket. It returns
// ErrArchiveDisabled when no archive is configured.
func (s *StatusService) ArchiveHealth(ctx context.Context) error {
	if s.archive == nil {
		return ErrArchiveDisabled
	}
	return s.archive.Health(ctx)
}

// Status counts every entity table.
func (s *StatusService) Status(ctx context.Context) (Status, error) {
	var st Status
	for _, c := range []struct {
		name  string
		count func(context.Context) (int64, error)
		dst   *int64
	}{
		{"traders", s.store.Traders().Count, &st.Traders},
		{"markets", s.store.Markets().Count, &st.Markets},
		{"positions", s.store.Positions().Count, &st.Positions},
		{"activities", s.store.Activities().Count, &st.Activities},
	} {
		n, err := c.count(ctx)
		if err != nil {
			return Status{}, fmt.Errorf("status_service: count %s: %w", c.name, err)
		}
		*c.dst = n
	}
	return st, nil
}
