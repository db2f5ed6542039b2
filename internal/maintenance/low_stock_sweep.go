package maintenance

import (
	"context"
	"fmt"

	"github.com/openaid/aid-inventory/internal/items"
	"github.com/openaid/aid-inventory/pkg/db/models"
	"github.com/openaid/aid-inventory/pkg/logger"
	"github.com/openaid/aid-inventory/pkg/metrics"
)

type lowStockLister interface {
	List(ctx context.Context, filter items.ListFilter) ([]models.Item, error)
}

// LowStockSweepJob refreshes the low stock gauge from the items table so the
// metric stays correct even when no stock event arrives for a while.
type LowStockSweepJob struct {
	logg    *logger.Logger
	items   lowStockLister
	metrics *metrics.StockMetrics
}

func NewLowStockSweepJob(logg *logger.Logger, repo lowStockLister, m *metrics.StockMetrics) (*LowStockSweepJob, error) {
	if logg == nil || repo == nil {
		return nil, fmt.Errorf("logger and item repository are required")
	}
	return &LowStockSweepJob{logg: logg, items: repo, metrics: m}, nil
}

func (j *LowStockSweepJob) Name() string { return "low_stock_sweep" }

func (j *LowStockSweepJob) Run(ctx context.Context) error {
	low, err := j.items.List(ctx, items.ListFilter{LowStockOnly: true})
	if err != nil {
		return fmt.Errorf("list low stock items: %w", err)
	}
	j.metrics.SetLowStockItems(int64(len(low)))
	names := make([]string, 0, len(low))
	for _, item := range low {
		names = append(names, item.Name)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"low_stock_count": len(low),
		"items":           names,
	}), "low stock sweep complete")
	return nil
}
