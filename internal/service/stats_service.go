package service

import (
	"context"
	"fmt"
	"time"

	"github.com/yuqie6/NunuLog/internal/daterange"
	"github.com/yuqie6/NunuLog/internal/repository"
	"golang.org/x/sync/errgroup"
)

// StatsService 按本地日历日统计活动
type StatsService struct {
	repo         ActivityStatsRepository
	maxRangeDays int
	now          func() time.Time
}

// StatsServiceConfig 统计服务配置
type StatsServiceConfig struct {
	MaxRangeDays int // 区间统计最多覆盖的天数（含首尾）
}

const (
	defaultMaxRangeDays = 92
	dayQueryConcurrency = 4
)

// NewStatsService 创建统计服务
func NewStatsService(repo ActivityStatsRepository, cfg *StatsServiceConfig) *StatsService {
	maxDays := defaultMaxRangeDays
	if cfg != nil && cfg.MaxRangeDays > 0 {
		maxDays = cfg.MaxRangeDays
	}
	return &StatsService{repo: repo, maxRangeDays: maxDays, now: time.Now}
}

// DailyStats 单个本地日的统计
type DailyStats struct {
	Date  string
	Range daterange.UTCRange
	Types []repository.TypeStat
	Total int64 // 当天活动总条数
}

// RangeStats 多日区间的统计
type RangeStats struct {
	From     string
	To       string
	Range    daterange.UTCRange
	DayCount int
	Totals   []repository.TypeStat
	Days     []DailyStats
}

// CountOf 返回某类型的条数
func (r *RangeStats) CountOf(typ string) int64 {
	for _, t := range r.Totals {
		if t.Type == typ {
			return t.Count
		}
	}
	return 0
}

// AvgPerDay 某类型的日均条数
func (r *RangeStats) AvgPerDay(typ string) float64 {
	if r.DayCount <= 0 {
		return 0
	}
	return float64(r.CountOf(typ)) / float64(r.DayCount)
}

// GetDailyStats 获取某个本地日的统计
func (s *StatsService) GetDailyStats(ctx context.Context, babyID int64, date string, tzOffsetMinutes int) (*DailyStats, error) {
	d, err := daterange.ParseLocalDate(date)
	if err != nil {
		return nil, err
	}
	st, err := s.dayStats(ctx, babyID, d, tzOffsetMinutes)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// GetRangeStats 获取 [from, to] 本地日区间的合计与逐日明细
func (s *StatsService) GetRangeStats(ctx context.Context, babyID int64, from, to string, tzOffsetMinutes int) (*RangeStats, error) {
	return s.rangeStats(ctx, babyID, from, to, tzOffsetMinutes)
}

// GetRecentStats 获取截至今天（按 tz 计算）最近 days 天的统计，days 仅支持 7 或 30
func (s *StatsService) GetRecentStats(ctx context.Context, babyID int64, days int, tzOffsetMinutes int) (*RangeStats, error) {
	if days != 7 && days != 30 {
		days = 7
	}
	to := daterange.Today(s.now(), tzOffsetMinutes)
	from := to.AddDays(-(days - 1))
	return s.rangeStats(ctx, babyID, from.String(), to.String(), tzOffsetMinutes)
}

func (s *StatsService) rangeStats(ctx context.Context, babyID int64, from, to string, tz int) (*RangeStats, error) {
	// 先解析并校验先后顺序，得到合计查询的边界
	r, err := repository.SpanRange(from, to, tz)
	if err != nil {
		return nil, err
	}
	fd, err := daterange.ParseLocalDate(from)
	if err != nil {
		return nil, err
	}
	td, err := daterange.ParseLocalDate(to)
	if err != nil {
		return nil, err
	}
	// 枚举逐日之前先按天数拒绝超长区间
	n := fd.DaysUntil(td) + 1
	if n > s.maxRangeDays {
		return nil, fmt.Errorf("%w: %d 天，最多 %d 天", ErrRangeTooLong, n, s.maxRangeDays)
	}
	days := daterange.Days(fd, td)

	out := &RangeStats{
		From:     fd.String(),
		To:       td.String(),
		Range:    r,
		DayCount: len(days),
		Days:     make([]DailyStats, len(days)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(dayQueryConcurrency)
	g.Go(func() error {
		totals, err := s.repo.GetTypeStats(gctx, babyID, r.StartMs(), r.EndMs())
		if err != nil {
			return err
		}
		out.Totals = totals
		return nil
	})
	for i, d := range days {
		i, d := i, d
		g.Go(func() error {
			st, err := s.dayStats(gctx, babyID, d, tz)
			if err != nil {
				return err
			}
			out.Days[i] = st
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("统计区间 %s ~ %s 失败: %w", out.From, out.To, err)
	}
	return out, nil
}

func (s *StatsService) dayStats(ctx context.Context, babyID int64, d daterange.LocalDate, tz int) (DailyStats, error) {
	r := daterange.ResolveDay(d, tz)
	types, err := s.repo.GetTypeStats(ctx, babyID, r.StartMs(), r.EndMs())
	if err != nil {
		return DailyStats{}, err
	}
	var total int64
	for _, t := range types {
		total += t.Count
	}
	return DailyStats{Date: d.String(), Range: r, Types: types, Total: total}, nil
}
