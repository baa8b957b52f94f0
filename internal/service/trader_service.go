package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/alanyoungcy/polyinsider/internal/domain"
)

// SnapshotCatalog lists and reads archived trader snapshots.
type SnapshotCatalog interface {
	ListSnapshots(ctx context.Context, address string) ([]domain.BlobInfo, error)
	FindSnapshot(ctx context.Context, address, runID string) (domain.TraderSnapshot, error)
}

// ErrArchiveDisabled is returned when no snapshot archive is configured.
var ErrArchiveDisabled = errors.New("trader_service: snapshot archive not configured")

// TraderService is the read side over collected traders.
type TraderService struct {
	store     domain.Store
	snapshots SnapshotCatalog
}

// NewTraderService creates a TraderService. snapshots may be nil.
func NewTraderService(store domain.Store, snapshots SnapshotCatalog) *TraderService {
	return &TraderService{store: store, snapshots: snapshots}
}

// GetTrader looks a trader up by any casing of its address.
func (s *TraderService) GetTrader(ctx context.Context, address string) (domain.Trader, error) {
	addr, err := domain.NormalizeAddress(address)
	if err != nil {
		return domain.Trader{}, err
	}
	t, err := s.store.Traders().GetByAddress(ctx, addr)
	if err != nil {
		return domain.Trader{}, fmt.Errorf("trader_service: get %s: %w", addr, err)
	}
	return t, nil
}

// ListTraders returns traders by descending volume.
func (s *TraderService) ListTraders(ctx context.Context, opts domain.ListOpts) ([]domain.Trader, error) {
	traders, err := s.store.Traders().List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("trader_service: list: %w", err)
	}
	return traders, nil
}

// Positions returns every stored position of the trader.
func (s *TraderService) Positions(ctx context.Context, address string) ([]domain.Position, error) {
	t, err := s.GetTrader(ctx, address)
	if err != nil {
		return nil, err
	}
	positions, err := s.store.Positions().ListByTrader(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("trader_service: positions %s: %w", t.Address, err)
	}
	return positions, nil
}

// Activities returns the trader's ledger, newest first.
func (s *TraderService) Activities(ctx context.Context, address string, opts domain.ListOpts) ([]domain.Activity, error) {
	t, err := s.GetTrader(ctx, address)
	if err != nil {
		return nil, err
	}
	activities, err := s.store.Activities().ListByTrader(ctx, t.ID, opts)
	if err != nil {
		return nil, fmt.Errorf("trader_service: activities %s: %w", t.Address, err)
	}
	return activities, nil
}

// Snapshots lists the archived raw snapshots of the trader.
func (s *TraderService) Snapshots(ctx context.Context, address string) ([]domain.BlobInfo, error) {
	if s.snapshots == nil {
		return nil, ErrArchiveDisabled
	}
	addr, err := domain.NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	return s.snapshots.ListSnapshots(ctx, addr)
}

// Snapshot loads one archived snapshot of the trader by collection run id.
func (s *TraderService) Snapshot(ctx context.Context, address, runID string) (domain.TraderSnapshot, error) {
	if s.snapshots == nil {
		return domain.TraderSnapshot{}, ErrArchiveDisabled
	}
	addr, err := domain.NormalizeAddress(address)
	if err != nil {
		return domain.TraderSnapshot{}, err
	}
	snap, err := s.snapshots.FindSnapshot(ctx, addr, runID)
	if err != nil {
		return domain.TraderSnapshot{}, fmt.Errorf("trader_service: snapshot %s/%s: %w", addr, runID, err)
	}
	return snap, nil
}
