package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/yellyhaze23/mbb-lab-inventory-sub000/internal/inventory"
)

// LowStockLister reports the items currently below their minimum stock.
type LowStockLister interface {
	LowStockItems(ctx context.Context) ([]inventory.LowStockItem, error)
}

// Mailer hands notification emails to the queue.
type Mailer interface {
	EnqueueSendEmail(ctx context.Context, payload SendEmailPayload) (*asynq.TaskInfo, error)
}

// LowStockScanJob scans active items and emails staff about shortages.
type LowStockScanJob struct {
	Lister LowStockLister
	Mailer Mailer
	Logger *slog.Logger
	clock  func() time.Time
}

// NewLowStockScanJob initialises the low-stock scan handler.
func NewLowStockScanJob(lister LowStockLister, mailer Mailer, logger *slog.Logger) *LowStockScanJob {
	return &LowStockScanJob{
		Lister: lister,
		Mailer: mailer,
		Logger: logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the low-stock scan logic.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Lister == nil {
		return errors.New("low stock scan: handler not configured")
	}
	var payload LowStockScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.NotifyTo == "" {
		return asynq.SkipRetry
	}

	start := j.clock()
	logger := j.logger()
	logger.Info("starting low stock scan")

	items, err := j.Lister.LowStockItems(ctx)
	if err != nil {
		logger.Error("scan failed", slog.Any("error", err))
		return err
	}
	if len(items) == 0 {
		logger.Info("completed low stock scan", slog.Int("shortages", 0), slog.Duration("duration", time.Since(start)))
		return nil
	}

	for _, item := range items {
		logger.Warn("item below minimum stock",
			slog.Int64("item_id", item.ItemID),
			slog.String("name", item.Name),
			slog.Float64("available", item.Available),
			slog.Float64("minimum", item.MinimumStock),
		)
	}

	if j.Mailer != nil {
		if _, err := j.Mailer.EnqueueSendEmail(ctx, SendEmailPayload{
			To:      payload.NotifyTo,
			Subject: "Low stock alert",
			Body:    lowStockBody(items),
		}); err != nil {
			logger.Error("enqueue notification", slog.Any("error", err))
			return err
		}
	}

	logger.Info("completed low stock scan",
		slog.Int("shortages", len(items)),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (j *LowStockScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

// lowStockBody renders the notification text with locale-aware numbers.
func lowStockBody(items []inventory.LowStockItem) string {
	p := message.NewPrinter(language.English)
	var b strings.Builder
	p.Fprintf(&b, "%d item(s) are below their minimum stock:\n\n", len(items))
	for _, item := range items {
		p.Fprintf(&b, "- %s (%s): %.2f %s available, minimum %.2f %s\n",
			item.Name, item.Category, item.Available, item.Unit, item.MinimumStock, item.Unit)
	}
	return b.String()
}
