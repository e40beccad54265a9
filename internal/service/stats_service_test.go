package service

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/yuqie6/NunuLog/internal/daterange"
	"github.com/yuqie6/NunuLog/internal/repository"
	"github.com/yuqie6/NunuLog/internal/schema"
)

// fakeStatsRepo 在内存中按闭区间聚合活动
type fakeStatsRepo struct {
	mu         sync.Mutex
	activities []schema.Activity
	calls      [][2]int64
	err        error
}

func (f *fakeStatsRepo) GetTypeStats(ctx context.Context, babyID int64, startTime, endTime int64) ([]repository.TypeStat, error) {
	f.mu.Lock()
	f.calls = append(f.calls, [2]int64{startTime, endTime})
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	byType := map[string]*repository.TypeStat{}
	var order []string
	for _, a := range f.activities {
		if a.BabyID != babyID || a.StartedAt < startTime || a.StartedAt > endTime {
			continue
		}
		st, ok := byType[a.Type]
		if !ok {
			st = &repository.TypeStat{Type: a.Type}
			byType[a.Type] = st
			order = append(order, a.Type)
		}
		st.Count++
		st.TotalDuration += a.Duration().Milliseconds()
		st.TotalAmountML += int64(a.AmountML)
	}
	out := make([]repository.TypeStat, 0, len(order))
	for _, typ := range order {
		out = append(out, *byType[typ])
	}
	return out, nil
}

func utcMs(t *testing.T, s string) int64 {
	t.Helper()
	v, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return v.UnixMilli()
}

func TestGetDailyStatsHonoursOffset(t *testing.T) {
	repo := &fakeStatsRepo{activities: []schema.Activity{
		{BabyID: 1, Type: schema.ActivityFeeding, StartedAt: utcMs(t, "2024-01-01T15:30:00Z"), AmountML: 120},
		{BabyID: 1, Type: schema.ActivityFeeding, StartedAt: utcMs(t, "2023-12-31T16:00:00Z"), AmountML: 80},
		{BabyID: 1, Type: schema.ActivityDiaper, StartedAt: utcMs(t, "2024-01-01T16:00:00Z")},
		{BabyID: 2, Type: schema.ActivityDiaper, StartedAt: utcMs(t, "2024-01-01T10:00:00Z")},
	}}
	svc := NewStatsService(repo, nil)

	st, err := svc.GetDailyStats(context.Background(), 1, "2024-01-01", -480)
	if err != nil {
		t.Fatalf("GetDailyStats error: %v", err)
	}
	if st.Total != 2 || len(st.Types) != 1 || st.Types[0].TotalAmountML != 200 {
		t.Fatalf("stats=%+v", st)
	}
	if st.Range.StartMs() != utcMs(t, "2023-12-31T16:00:00Z") {
		t.Fatalf("range start=%v", st.Range.Start)
	}
}

func TestGetDailyStatsInvalidDate(t *testing.T) {
	repo := &fakeStatsRepo{}
	svc := NewStatsService(repo, nil)
	_, err := svc.GetDailyStats(context.Background(), 1, "2024-13-40", 0)
	if !errors.Is(err, daterange.ErrInvalidDate) {
		t.Fatalf("err=%v, want ErrInvalidDate", err)
	}
	if len(repo.calls) != 0 {
		t.Fatalf("repository should not be queried for invalid input")
	}
}

func TestGetRangeStatsPerDayBreakdown(t *testing.T) {
	repo := &fakeStatsRepo{activities: []schema.Activity{
		{BabyID: 1, Type: schema.ActivitySleep, StartedAt: utcMs(t, "2024-02-29T16:30:00Z"), EndedAt: utcMs(t, "2024-02-29T18:30:00Z")},
		{BabyID: 1, Type: schema.ActivityFeeding, StartedAt: utcMs(t, "2024-03-02T01:00:00Z")},
		{BabyID: 1, Type: schema.ActivityFeeding, StartedAt: utcMs(t, "2024-03-03T15:59:59Z")},
		{BabyID: 1, Type: schema.ActivityFeeding, StartedAt: utcMs(t, "2024-03-03T16:00:00Z")},
	}}
	svc := NewStatsService(repo, nil)

	rs, err := svc.GetRangeStats(context.Background(), 1, "2024-03-01", "2024-03-03", -480)
	if err != nil {
		t.Fatalf("GetRangeStats error: %v", err)
	}
	if rs.DayCount != 3 || len(rs.Days) != 3 {
		t.Fatalf("days=%d/%d", rs.DayCount, len(rs.Days))
	}
	if rs.Range.StartMs() != utcMs(t, "2024-02-29T16:00:00Z") {
		t.Fatalf("range start=%v", rs.Range.Start)
	}
	wantTotals := []int64{1, 1, 1}
	for i, d := range rs.Days {
		if d.Total != wantTotals[i] {
			t.Fatalf("day %s total=%d, want %d", d.Date, d.Total, wantTotals[i])
		}
	}
	if rs.Days[0].Date != "2024-03-01" || rs.Days[2].Date != "2024-03-03" {
		t.Fatalf("day order=%s..%s", rs.Days[0].Date, rs.Days[2].Date)
	}
	if rs.CountOf(schema.ActivityFeeding) != 2 || rs.CountOf(schema.ActivitySleep) != 1 {
		t.Fatalf("totals=%+v", rs.Totals)
	}
	if got := rs.AvgPerDay(schema.ActivityFeeding); got < 0.66 || got > 0.67 {
		t.Fatalf("avg=%v", got)
	}
	// 合计 1 次 + 逐日 3 次
	if len(repo.calls) != 4 {
		t.Fatalf("repo calls=%d, want 4", len(repo.calls))
	}
}

func TestGetRangeStatsErrors(t *testing.T) {
	svc := NewStatsService(&fakeStatsRepo{}, &StatsServiceConfig{MaxRangeDays: 31})
	ctx := context.Background()

	if _, err := svc.GetRangeStats(ctx, 1, "2024-03-03", "2024-03-01", 0); !errors.Is(err, daterange.ErrInvalidRange) {
		t.Fatalf("reversed err=%v", err)
	}
	if _, err := svc.GetRangeStats(ctx, 1, "2024-01-01", "2024-02-01", 0); !errors.Is(err, ErrRangeTooLong) {
		t.Fatalf("too long err=%v", err)
	}
	if _, err := svc.GetRangeStats(ctx, 1, "2024-01-01", "2024-01-31", 0); err != nil {
		t.Fatalf("31 days should be allowed: %v", err)
	}

	boom := errors.New("boom")
	failing := NewStatsService(&fakeStatsRepo{err: boom}, nil)
	if _, err := failing.GetRangeStats(ctx, 1, "2024-01-01", "2024-01-02", 0); !errors.Is(err, boom) {
		t.Fatalf("repo err=%v, want boom", err)
	}
}

func TestGetRangeStatsRejectsHugeSpanBeforeEnumerating(t *testing.T) {
	repo := &fakeStatsRepo{}
	svc := NewStatsService(repo, &StatsServiceConfig{MaxRangeDays: 92})
	ctx := context.Background()

	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	_, err := svc.GetRangeStats(ctx, 1, "0001-01-01", "9999-12-31", 0)
	runtime.ReadMemStats(&after)

	if !errors.Is(err, ErrRangeTooLong) {
		t.Fatalf("err=%v, want ErrRangeTooLong", err)
	}
	if delta := after.TotalAlloc - before.TotalAlloc; delta > 1<<20 {
		t.Fatalf("allocated %d bytes before rejecting the span", delta)
	}
	if len(repo.calls) != 0 {
		t.Fatalf("repo queried %d times for a rejected span", len(repo.calls))
	}

	// 恰好 92 天仍然允许
	if _, err := svc.GetRangeStats(ctx, 1, "2024-01-01", "2024-04-01", 0); err != nil {
		t.Fatalf("92 days should be allowed: %v", err)
	}
}

func TestGetRecentStatsEndsToday(t *testing.T) {
	svc := NewStatsService(&fakeStatsRepo{}, nil)
	// UTC 2024-03-04 20:00 在 UTC+8 已是 03-05
	svc.now = func() time.Time { return time.Date(2024, 3, 4, 20, 0, 0, 0, time.UTC) }

	rs, err := svc.GetRecentStats(context.Background(), 1, 7, -480)
	if err != nil {
		t.Fatalf("GetRecentStats error: %v", err)
	}
	if rs.From != "2024-02-28" || rs.To != "2024-03-05" || rs.DayCount != 7 {
		t.Fatalf("from=%s to=%s days=%d", rs.From, rs.To, rs.DayCount)
	}

	rs, err = svc.GetRecentStats(context.Background(), 1, 12, 0)
	if err != nil {
		t.Fatalf("GetRecentStats error: %v", err)
	}
	if rs.DayCount != 7 || rs.To != "2024-03-04" {
		t.Fatalf("unsupported days should fall back to 7: %+v", rs)
	}
}

func TestFormatHelpers(t *testing.T) {
	start := utcMs(t, "2024-03-04T16:00:00Z")
	end := utcMs(t, "2024-03-04T17:30:00Z")
	if got := FormatClockRange(start, end, -480); got != "00:00-01:30" {
		t.Fatalf("FormatClockRange=%q", got)
	}
	if got := FormatClockRange(end, start, 0); got != "" {
		t.Fatalf("reversed FormatClockRange=%q", got)
	}
	cases := map[time.Duration]string{
		0:                            "0m",
		45 * time.Minute:             "45m",
		65 * time.Minute:             "1h05m",
		2*time.Hour + 29*time.Second: "2h00m",
	}
	for d, want := range cases {
		if got := FormatDuration(d); got != want {
			t.Fatalf("FormatDuration(%v)=%q, want %q", d, got, want)
		}
	}
}
