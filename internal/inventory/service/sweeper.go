package service

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"propview/internal/common/logger"
)

// StartSweeper runs SweepExpired on schedule (a cron expression such as
// "@every 30s"). Stop the returned cron to end it.
func StartSweeper(inv *Inventory, schedule string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if e := inv.SweepExpired(context.Background()); e != nil {
			logger.Log.WithError(e).Error("[SWEEP] expired hold sweep failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule sweeper: %w", err)
	}
	c.Start()
	return c, nil
}
