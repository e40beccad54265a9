package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/yuqie6/NunuLog/internal/schema"
	"gorm.io/gorm"
)

// BabyRepository 宝宝档案仓储
type BabyRepository struct {
	db *gorm.DB
}

// NewBabyRepository 创建仓储
func NewBabyRepository(db *gorm.DB) *BabyRepository {
	return &BabyRepository{db: db}
}

// Create 新建档案
func (r *BabyRepository) Create(ctx context.Context, baby *schema.Baby) error {
	if err := r.db.WithContext(ctx).Create(baby).Error; err != nil {
		return fmt.Errorf("创建宝宝档案失败: %w", err)
	}
	return nil
}

// GetByID 按 ID 获取；不存在时返回 nil, nil
func (r *BabyRepository) GetByID(ctx context.Context, id int64) (*schema.Baby, error) {
	var baby schema.Baby
	err := r.db.WithContext(ctx).First(&baby, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询宝宝档案失败: %w", err)
	}
	return &baby, nil
}

// List 按创建顺序列出全部档案
func (r *BabyRepository) List(ctx context.Context) ([]schema.Baby, error) {
	var babies []schema.Baby
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&babies).Error; err != nil {
		return nil, fmt.Errorf("查询宝宝档案失败: %w", err)
	}
	return babies, nil
}
