package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/clinicore/clinicore/internal/inventory"
	"github.com/clinicore/clinicore/internal/shared"
)

// TaskInventoryExpiryScan flags batches approaching their expiry date.
const TaskInventoryExpiryScan = "inventory:expiry_scan"

// ExpiryScanPayload carries the lookahead window for the scan.
type ExpiryScanPayload struct {
	HorizonHours int `json:"horizon_hours"`
}

// NewExpiryScanTask constructs an Asynq task for the expiry scan.
func NewExpiryScanTask(horizon time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(ExpiryScanPayload{HorizonHours: int(horizon.Hours())})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInventoryExpiryScan, body, asynq.Queue(QueueDefault)), nil
}

// ExpiringLister resolves batches that still hold stock and expire before a cutoff.
type ExpiringLister interface {
	ListExpiring(ctx context.Context, before time.Time) ([]inventory.Batch, error)
}

// AuditRecorder persists audit entries for the sweep.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ExpiryScanJob walks stocked batches and reports the ones close to expiry.
type ExpiryScanJob struct {
	Batches ExpiringLister
	Audit   AuditRecorder
	Logger  *slog.Logger
	clock   func() time.Time
}

// NewExpiryScanJob initialises the expiry scan handler.
func NewExpiryScanJob(batches ExpiringLister, audit AuditRecorder, logger *slog.Logger) *ExpiryScanJob {
	return &ExpiryScanJob{
		Batches: batches,
		Audit:   audit,
		Logger:  logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the expiry scan.
func (j *ExpiryScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Batches == nil {
		return errors.New("expiry scan: handler not configured")
	}
	var payload ExpiryScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.HorizonHours <= 0 {
		payload.HorizonHours = 720
	}

	now := j.now()
	cutoff := now.Add(time.Duration(payload.HorizonHours) * time.Hour)

	logger := j.logger().With(slog.Int("horizon_hours", payload.HorizonHours))
	logger.Info("starting expiry scan")

	batches, err := j.Batches.ListExpiring(ctx, cutoff)
	if err != nil {
		logger.Error("scan failed", slog.Any("error", err))
		return err
	}

	expired := 0
	for _, b := range batches {
		if b.IsExpired(now) {
			expired++
		}
		logger.Warn("batch nearing expiry",
			slog.Int64("batch_id", b.ID),
			slog.Int64("medicine_id", b.MedicineID),
			slog.String("batch_code", b.Code),
			slog.Time("expiry_date", *b.ExpiryDate),
			slog.Int64("remaining", b.Remaining),
			slog.Bool("expired", b.IsExpired(now)),
		)
	}

	if j.Audit != nil && len(batches) > 0 {
		if err := j.Audit.Record(ctx, shared.AuditLog{
			Action:   "inventory.expiry_scan",
			Entity:   "batch",
			EntityID: now.Format("2006-01-02"),
			Meta: map[string]any{
				"flagged":       len(batches),
				"expired":       expired,
				"horizon_hours": payload.HorizonHours,
			},
			At: now,
		}); err != nil {
			logger.Warn("audit expiry scan", slog.Any("error", err))
		}
	}

	logger.Info("completed expiry scan",
		slog.Int("flagged", len(batches)),
		slog.Int("expired", expired),
		slog.Duration("duration", time.Since(now)),
	)
	return nil
}

func (j *ExpiryScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskInventoryExpiryScan))
	}
	return slog.Default().With(slog.String("job", TaskInventoryExpiryScan))
}

func (j *ExpiryScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
