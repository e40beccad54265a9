package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/yuqie6/NunuLog/internal/daterange"
	"github.com/yuqie6/NunuLog/internal/schema"
	"gorm.io/gorm"
)

// ActivityRepository 活动仓储
type ActivityRepository struct {
	db *gorm.DB
}

// NewActivityRepository 创建活动仓储
func NewActivityRepository(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Create 创建单条活动
func (r *ActivityRepository) Create(ctx context.Context, activity *schema.Activity) error {
	if err := r.db.WithContext(ctx).Create(activity).Error; err != nil {
		return fmt.Errorf("创建活动失败: %w", err)
	}
	return nil
}

// BatchInsert 批量插入活动（事务包裹）
func (r *ActivityRepository) BatchInsert(ctx context.Context, activities []schema.Activity) error {
	if len(activities) == 0 {
		return nil
	}

	start := time.Now()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(activities, 100).Error
	})

	if err != nil {
		slog.Error("批量插入活动失败", "count", len(activities), "error", err)
		return fmt.Errorf("批量插入活动失败: %w", err)
	}

	slog.Debug("批量插入活动成功", "count", len(activities), "duration", time.Since(start))
	return nil
}

// GetByID 按 ID 获取；不存在时返回 nil, nil
func (r *ActivityRepository) GetByID(ctx context.Context, id int64) (*schema.Activity, error) {
	var a schema.Activity
	if err := r.db.WithContext(ctx).First(&a, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询活动失败: %w", err)
	}
	return &a, nil
}

// GetByUID 按 UID 获取；不存在时返回 nil, nil
func (r *ActivityRepository) GetByUID(ctx context.Context, uid string) (*schema.Activity, error) {
	var a schema.Activity
	if err := r.db.WithContext(ctx).Where("uid = ?", uid).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询活动失败: %w", err)
	}
	return &a, nil
}

// Delete 删除活动，返回是否确实删除
func (r *ActivityRepository) Delete(ctx context.Context, id int64) (bool, error) {
	result := r.db.WithContext(ctx).Delete(&schema.Activity{}, id)
	if result.Error != nil {
		return false, fmt.Errorf("删除活动失败: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// GetByTimeRange 按开始时间闭区间 [startTime, endTime] 查询
func (r *ActivityRepository) GetByTimeRange(ctx context.Context, babyID int64, startTime, endTime int64) ([]schema.Activity, error) {
	var activities []schema.Activity
	err := r.db.WithContext(ctx).
		Where("baby_id = ? AND started_at >= ? AND started_at <= ?", babyID, startTime, endTime).
		Order("started_at ASC").
		Find(&activities).Error

	if err != nil {
		return nil, fmt.Errorf("查询活动失败: %w", err)
	}

	return activities, nil
}

// GetByDate 按本地日期查询活动，同时返回实际使用的 UTC 区间
func (r *ActivityRepository) GetByDate(ctx context.Context, babyID int64, date string, tzOffsetMinutes int) ([]schema.Activity, daterange.UTCRange, error) {
	rng, err := DayRange(date, tzOffsetMinutes)
	if err != nil {
		return nil, daterange.UTCRange{}, err
	}
	list, err := r.GetByTimeRange(ctx, babyID, rng.StartMs(), rng.EndMs())
	if err != nil {
		return nil, daterange.UTCRange{}, err
	}
	return list, rng, nil
}

// TypeStat 按活动类型聚合的统计
type TypeStat struct {
	Type          string `gorm:"column:type" json:"type"`
	Count         int64  `gorm:"column:count" json:"count"`
	TotalDuration int64  `gorm:"column:total_duration" json:"total_duration"` // 毫秒
	TotalAmountML int64  `gorm:"column:total_amount_ml" json:"total_amount_ml"`
}

// GetTypeStats 获取时间区间内按类型聚合的统计
func (r *ActivityRepository) GetTypeStats(ctx context.Context, babyID int64, startTime, endTime int64) ([]TypeStat, error) {
	var stats []TypeStat
	err := r.db.WithContext(ctx).
		Model(&schema.Activity{}).
		Select(`type,
			COUNT(*) AS count,
			COALESCE(SUM(CASE WHEN ended_at >= started_at THEN ended_at - started_at ELSE 0 END), 0) AS total_duration,
			COALESCE(SUM(amount_ml), 0) AS total_amount_ml`).
		Where("baby_id = ? AND started_at >= ? AND started_at <= ?", babyID, startTime, endTime).
		Group("type").
		Order("type ASC").
		Scan(&stats).Error

	if err != nil {
		return nil, fmt.Errorf("查询活动统计失败: %w", err)
	}

	return stats, nil
}

// GetLastByType 获取某类型最近一次活动；不存在时返回 nil, nil
func (r *ActivityRepository) GetLastByType(ctx context.Context, babyID int64, typ string) (*schema.Activity, error) {
	var a schema.Activity
	err := r.db.WithContext(ctx).
		Where("baby_id = ? AND type = ?", babyID, typ).
		Order("started_at DESC").
		First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询最近活动失败: %w", err)
	}
	return &a, nil
}

// Count 统计活动总数
func (r *ActivityRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&schema.Activity{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("统计活动失败: %w", err)
	}
	return count, nil
}

// DeleteOlderThan 删除旧活动（保留最近 N 天）
func (r *ActivityRepository) DeleteOlderThan(ctx context.Context, retainDays int) (int64, error) {
	if retainDays <= 0 {
		return 0, nil
	}
	cutoffTime := time.Now().AddDate(0, 0, -retainDays).UnixMilli()

	result := r.db.WithContext(ctx).
		Where("started_at < ?", cutoffTime).
		Delete(&schema.Activity{})

	if result.Error != nil {
		return 0, fmt.Errorf("删除旧活动失败: %w", result.Error)
	}

	slog.Info("清理旧活动", "deleted", result.RowsAffected, "retain_days", retainDays)
	return result.RowsAffected, nil
}
