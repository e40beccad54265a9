package service

import (
	"context"

	"github.com/yuqie6/NunuLog/internal/daterange"
	"github.com/yuqie6/NunuLog/internal/eventbus"
	"github.com/yuqie6/NunuLog/internal/repository"
	"github.com/yuqie6/NunuLog/internal/schema"
)

// 仓储/外部依赖的最小接口集合（ISP）

type ActivityRepository interface {
	Create(ctx context.Context, activity *schema.Activity) error
	BatchInsert(ctx context.Context, activities []schema.Activity) error
	GetByID(ctx context.Context, id int64) (*schema.Activity, error)
	GetByUID(ctx context.Context, uid string) (*schema.Activity, error)
	Delete(ctx context.Context, id int64) (bool, error)
	GetByDate(ctx context.Context, babyID int64, date string, tzOffsetMinutes int) ([]schema.Activity, daterange.UTCRange, error)
	GetLastByType(ctx context.Context, babyID int64, typ string) (*schema.Activity, error)
}

type ActivityStatsRepository interface {
	GetTypeStats(ctx context.Context, babyID int64, startTime, endTime int64) ([]repository.TypeStat, error)
}

type BabyRepository interface {
	Create(ctx context.Context, baby *schema.Baby) error
	GetByID(ctx context.Context, id int64) (*schema.Baby, error)
	List(ctx context.Context) ([]schema.Baby, error)
}

type Publisher interface {
	Publish(evt eventbus.Event)
}
