package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/clinicore/internal/inventory"
	"github.com/clinicore/clinicore/internal/shared"
)

type stubLister struct {
	batches []inventory.Batch
	cutoff  time.Time
	err     error
}

func (s *stubLister) ListExpiring(ctx context.Context, before time.Time) ([]inventory.Batch, error) {
	s.cutoff = before
	return s.batches, s.err
}

type stubRecorder struct {
	logs []shared.AuditLog
	err  error
}

func (s *stubRecorder) Record(ctx context.Context, log shared.AuditLog) error {
	s.logs = append(s.logs, log)
	return s.err
}

func TestExpiryScanUsesHorizonCutoff(t *testing.T) {
	now := time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC)
	soon := now.Add(48 * time.Hour)
	lister := &stubLister{batches: []inventory.Batch{
		{ID: 1, MedicineID: 7, Code: "B-001", ExpiryDate: &soon, Remaining: 4},
	}}

	job := NewExpiryScanJob(lister, nil, nil)
	job.clock = func() time.Time { return now }

	task, err := NewExpiryScanTask(240 * time.Hour)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, now.Add(240*time.Hour), lister.cutoff)
}

func TestExpiryScanRecordsAuditSummary(t *testing.T) {
	now := time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC)
	soon := now.Add(48 * time.Hour)
	past := now.Add(-24 * time.Hour)
	lister := &stubLister{batches: []inventory.Batch{
		{ID: 1, MedicineID: 7, Code: "B-001", ExpiryDate: &soon, Remaining: 4},
		{ID: 2, MedicineID: 7, Code: "B-002", ExpiryDate: &past, Remaining: 2},
	}}
	recorder := &stubRecorder{}

	job := NewExpiryScanJob(lister, recorder, nil)
	job.clock = func() time.Time { return now }

	task, err := NewExpiryScanTask(240 * time.Hour)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	require.Len(t, recorder.logs, 1)
	entry := recorder.logs[0]
	require.Equal(t, "inventory.expiry_scan", entry.Action)
	require.Equal(t, "batch", entry.Entity)
	require.Equal(t, "2025-06-01", entry.EntityID)
	require.Equal(t, 2, entry.Meta["flagged"])
	require.Equal(t, 1, entry.Meta["expired"])
}

func TestExpiryScanSkipsAuditWhenNothingFlagged(t *testing.T) {
	recorder := &stubRecorder{}
	job := NewExpiryScanJob(&stubLister{}, recorder, nil)

	task, err := NewExpiryScanTask(240 * time.Hour)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Empty(t, recorder.logs)
}

func TestExpiryScanPropagatesListerError(t *testing.T) {
	now := time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC)
	lister := &stubLister{err: errors.New("boom")}
	job := NewExpiryScanJob(lister, nil, nil)
	job.clock = func() time.Time { return now }

	task, err := NewExpiryScanTask(0)
	require.NoError(t, err)
	// Zero horizon falls back to the default window.
	require.Error(t, job.Handle(context.Background(), task))
	require.Equal(t, now.Add(720*time.Hour), lister.cutoff)
}

func TestExpiryScanRejectsMalformedPayload(t *testing.T) {
	job := NewExpiryScanJob(&stubLister{}, nil, nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskInventoryExpiryScan, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}
