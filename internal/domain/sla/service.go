package sla

import (
	"context"
	"time"

	"github.com/deskline/queue-api/internal/domain/queue"
	"github.com/deskline/queue-api/internal/domain/tenant"
)

// SnapshotReader reads a point-in-time view of an organization.
type SnapshotReader interface {
	Snapshot(ctx context.Context, orgID string) (*queue.Snapshot, error)
}

// Service computes reports for callers.
type Service struct {
	snapshots SnapshotReader
	monitor   *Monitor
	now       func() time.Time
}

func NewService(snapshots SnapshotReader, monitor *Monitor) *Service {
	return &Service{
		snapshots: snapshots,
		monitor:   monitor,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ReportFor reads a fresh snapshot of the caller's organization.
func (s *Service) ReportFor(ctx context.Context, caller tenant.Caller) (Report, error) {
	if err := caller.Validate(ctx); err != nil {
		return Report{}, err
	}
	snap, err := s.snapshots.Snapshot(ctx, caller.OrganizationID)
	if err != nil {
		return Report{}, err
	}
	return s.monitor.Compute(snap, s.now()), nil
}

// Monitor returns the underlying monitor.
func (s *Service) Monitor() *Monitor {
	return s.monitor
}
