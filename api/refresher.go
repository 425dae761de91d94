/*
refresher.go - Scheduled low-stock sweep

PURPOSE:
  Periodically recomputes the aggregate view and logs low-stock warnings
  so operators notice depleted ingredients without watching a dashboard.
  The sweep is read-only: the aggregation functions are pure, so running
  them on a timer is always safe.

SEE ALSO:
  - ledger/aggregate.go: The pure recomputation the sweep triggers
  - cmd/server/main.go: Starts and stops the refresher
*/
package api

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/copperpot/inventory-ledger/ledger"
)

// Refresher runs the periodic aggregate sweep.
type Refresher struct {
	cron     *cron.Cron
	queries  *ledger.Queries
	schedule string
	logger   *zap.Logger
}

// NewRefresher creates a refresher with a standard 5-field cron schedule.
func NewRefresher(queries *ledger.Queries, schedule string, logger *zap.Logger) *Refresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{
		cron:     cron.New(),
		queries:  queries,
		schedule: schedule,
		logger:   logger,
	}
}

// Start schedules the sweep.
func (rf *Refresher) Start() error {
	if _, err := rf.cron.AddFunc(rf.schedule, rf.sweep); err != nil {
		return err
	}
	rf.cron.Start()
	rf.logger.Info("aggregate refresher started", zap.String("schedule", rf.schedule))
	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (rf *Refresher) Stop() {
	ctx := rf.cron.Stop()
	<-ctx.Done()
	rf.logger.Info("aggregate refresher stopped")
}

func (rf *Refresher) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	view, err := rf.queries.AggregateView(ctx, ledger.Window{})
	if err != nil {
		rf.logger.Error("aggregate sweep failed", zap.Error(err))
		return
	}

	for _, ing := range view.LowStock {
		rf.logger.Warn("ingredient below reorder threshold",
			zap.String("ingredient_id", string(ing.ID)),
			zap.String("name", ing.Name),
			zap.String("current_stock", ing.CurrentStock.String()),
			zap.String("min_stock_level", ing.MinStockLevel.String()))
	}

	rf.logger.Info("aggregate sweep complete",
		zap.Int("low_stock", len(view.LowStock)),
		zap.String("total_waste_cost", view.TotalWasteCost.String()))
}
