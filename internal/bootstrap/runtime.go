package bootstrap

import (
	"context"
	"log/slog"
	"time"
)

const retentionInterval = 6 * time.Hour

// StartRetention 按 stats.retain_days 周期清理旧活动；安全模式或未配置时不启动
func (c *Core) StartRetention(ctx context.Context) {
	if c == nil || c.Cfg == nil || c.Cfg.Stats.RetainDays <= 0 {
		return
	}
	if c.DB != nil && c.DB.SafeMode {
		slog.Warn("数据库处于安全模式，跳过数据清理任务")
		return
	}

	retainDays := c.Cfg.Stats.RetainDays
	go func() {
		ticker := time.NewTicker(retentionInterval)
		defer ticker.Stop()
		for {
			if _, err := c.Repos.Activity.DeleteOlderThan(ctx, retainDays); err != nil && ctx.Err() == nil {
				slog.Error("清理旧活动失败", "error", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}
