package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yuqie6/NunuLog/internal/daterange"
	"github.com/yuqie6/NunuLog/internal/eventbus"
	"github.com/yuqie6/NunuLog/internal/schema"
)

// ===== Mock Implementations =====

type fakeActivityRepo struct {
	items   []*schema.Activity
	nextID  int64
	batches int
}

func (f *fakeActivityRepo) Create(ctx context.Context, a *schema.Activity) error {
	f.nextID++
	a.ID = f.nextID
	f.items = append(f.items, a)
	return nil
}
func (f *fakeActivityRepo) BatchInsert(ctx context.Context, activities []schema.Activity) error {
	f.batches++
	for i := range activities {
		a := activities[i]
		if err := f.Create(ctx, &a); err != nil {
			return err
		}
	}
	return nil
}
func (f *fakeActivityRepo) GetByUID(ctx context.Context, uid string) (*schema.Activity, error) {
	for _, a := range f.items {
		if a.UID == uid {
			return a, nil
		}
	}
	return nil, nil
}
func (f *fakeActivityRepo) GetByDate(ctx context.Context, babyID int64, date string, tz int) ([]schema.Activity, daterange.UTCRange, error) {
	r, err := daterange.ResolveDayString(date, tz)
	if err != nil {
		return nil, daterange.UTCRange{}, err
	}
	list, _ := f.GetByTimeRange(ctx, babyID, r.StartMs(), r.EndMs())
	return list, r, nil
}
func (f *fakeActivityRepo) GetByID(ctx context.Context, id int64) (*schema.Activity, error) {
	for _, a := range f.items {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, nil
}
func (f *fakeActivityRepo) Delete(ctx context.Context, id int64) (bool, error) {
	for i, a := range f.items {
		if a.ID == id {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}
func (f *fakeActivityRepo) GetByTimeRange(ctx context.Context, babyID int64, startTime, endTime int64) ([]schema.Activity, error) {
	out := make([]schema.Activity, 0)
	for _, a := range f.items {
		if a.BabyID == babyID && a.StartedAt >= startTime && a.StartedAt <= endTime {
			out = append(out, *a)
		}
	}
	return out, nil
}
func (f *fakeActivityRepo) GetLastByType(ctx context.Context, babyID int64, typ string) (*schema.Activity, error) {
	var last *schema.Activity
	for _, a := range f.items {
		if a.BabyID == babyID && a.Type == typ && (last == nil || a.StartedAt > last.StartedAt) {
			last = a
		}
	}
	return last, nil
}

type fakeBabyRepo struct {
	babies []schema.Baby
}

func (f *fakeBabyRepo) Create(ctx context.Context, b *schema.Baby) error {
	b.ID = int64(len(f.babies) + 1)
	f.babies = append(f.babies, *b)
	return nil
}
func (f *fakeBabyRepo) GetByID(ctx context.Context, id int64) (*schema.Baby, error) {
	for i := range f.babies {
		if f.babies[i].ID == id {
			return &f.babies[i], nil
		}
	}
	return nil, nil
}
func (f *fakeBabyRepo) List(ctx context.Context) ([]schema.Baby, error) {
	return f.babies, nil
}

type recordingHub struct {
	events []eventbus.Event
}

func (h *recordingHub) Publish(evt eventbus.Event) {
	h.events = append(h.events, evt)
}

func newTestActivityService(t *testing.T) (*ActivityService, *fakeActivityRepo, *recordingHub) {
	t.Helper()
	repo := &fakeActivityRepo{}
	babies := &fakeBabyRepo{babies: []schema.Baby{{ID: 1, Name: "nunu"}}}
	hub := &recordingHub{}
	svc := NewActivityService(repo, babies, hub)
	svc.now = func() time.Time { return time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC) }
	return svc, repo, hub
}

func TestRecordActivity(t *testing.T) {
	svc, repo, hub := newTestActivityService(t)
	ctx := context.Background()

	a, err := svc.Record(ctx, RecordInput{
		BabyID:   1,
		Type:     " Feeding ",
		Side:     "LEFT",
		AmountML: 90,
		Tags:     []string{"night", "night"},
	})
	if err != nil {
		t.Fatalf("Record error: %v", err)
	}
	if a.ID == 0 || a.UID == "" || a.Type != schema.ActivityFeeding || a.Side != "left" {
		t.Fatalf("activity=%+v", a)
	}
	if a.StartedAt != svc.now().UnixMilli() {
		t.Fatalf("StartedAt=%d, want now", a.StartedAt)
	}
	if tags := schema.GetStringSlice(a.Metadata, "tags"); len(tags) != 1 {
		t.Fatalf("tags=%v", tags)
	}
	if len(repo.items) != 1 {
		t.Fatalf("repo items=%d", len(repo.items))
	}
	if len(hub.events) != 1 || hub.events[0].Type != eventbus.TypeActivityCreated || hub.events[0].BabyID != 1 {
		t.Fatalf("events=%+v", hub.events)
	}
}

func TestRecordActivityValidation(t *testing.T) {
	svc, repo, hub := newTestActivityService(t)
	ctx := context.Background()

	cases := []struct {
		name string
		in   RecordInput
		want error
	}{
		{"unknown type", RecordInput{BabyID: 1, Type: "nap"}, ErrInvalidActivity},
		{"bad side", RecordInput{BabyID: 1, Type: "feeding", Side: "middle"}, ErrInvalidActivity},
		{"negative amount", RecordInput{BabyID: 1, Type: "feeding", AmountML: -1}, ErrInvalidActivity},
		{"ends before start", RecordInput{BabyID: 1, Type: "sleep", StartedAt: 2000, EndedAt: 1000}, ErrInvalidActivity},
		{"missing baby", RecordInput{BabyID: 42, Type: "diaper"}, ErrBabyNotFound},
	}
	for _, c := range cases {
		if _, err := svc.Record(ctx, c.in); !errors.Is(err, c.want) {
			t.Fatalf("%s: err=%v, want %v", c.name, err, c.want)
		}
	}
	if len(repo.items) != 0 || len(hub.events) != 0 {
		t.Fatalf("invalid input must not be persisted or published")
	}
}

func TestDeleteActivity(t *testing.T) {
	svc, _, hub := newTestActivityService(t)
	ctx := context.Background()

	a, err := svc.Record(ctx, RecordInput{BabyID: 1, Type: "diaper"})
	if err != nil {
		t.Fatalf("Record error: %v", err)
	}
	if err := svc.Delete(ctx, a.ID); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if err := svc.Delete(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Delete err=%v, want ErrNotFound", err)
	}
	if last := hub.events[len(hub.events)-1]; last.Type != eventbus.TypeActivityDeleted {
		t.Fatalf("last event=%+v", last)
	}
}

func TestListByDateAndLastByType(t *testing.T) {
	svc, _, _ := newTestActivityService(t)
	ctx := context.Background()

	inputs := []RecordInput{
		{BabyID: 1, Type: "feeding", StartedAt: utcMs(t, "2024-03-04T16:00:00Z")},
		{BabyID: 1, Type: "sleep", StartedAt: utcMs(t, "2024-03-05T01:00:00Z"), EndedAt: utcMs(t, "2024-03-05T03:00:00Z")},
		{BabyID: 1, Type: "feeding", StartedAt: utcMs(t, "2024-03-05T10:00:00Z")},
		{BabyID: 1, Type: "feeding", StartedAt: utcMs(t, "2024-03-03T10:00:00Z")},
	}
	for _, in := range inputs {
		if _, err := svc.Record(ctx, in); err != nil {
			t.Fatalf("Record error: %v", err)
		}
	}

	list, r, err := svc.ListByDate(ctx, 1, "2024-03-05", -480)
	if err != nil {
		t.Fatalf("ListByDate error: %v", err)
	}
	if len(list) != 3 || r.StartMs() != utcMs(t, "2024-03-04T16:00:00Z") {
		t.Fatalf("list=%d range=%v", len(list), r)
	}
	if _, _, err := svc.ListByDate(ctx, 1, "2024-02-30", 0); !errors.Is(err, daterange.ErrInvalidDate) {
		t.Fatalf("err=%v, want ErrInvalidDate", err)
	}

	last, err := svc.LastByType(ctx, 1)
	if err != nil {
		t.Fatalf("LastByType error: %v", err)
	}
	if len(last) != 2 {
		t.Fatalf("last=%+v", last)
	}
	if last[0].Type != schema.ActivityFeeding || last[0].Since != 2*time.Hour {
		t.Fatalf("feeding last=%+v", last[0])
	}
	// 睡眠以结束时间计算距今
	if last[1].Type != schema.ActivitySleep || last[1].Since != 9*time.Hour {
		t.Fatalf("sleep last=%+v", last[1])
	}
}

func TestCreateBaby(t *testing.T) {
	svc, _, hub := newTestActivityService(t)
	ctx := context.Background()

	b, err := svc.CreateBaby(ctx, "  momo ", "2024-1-5")
	if err != nil {
		t.Fatalf("CreateBaby error: %v", err)
	}
	if b.Name != "momo" || b.BirthDate != "2024-01-05" {
		t.Fatalf("baby=%+v", b)
	}
	if _, err := svc.CreateBaby(ctx, "", ""); !errors.Is(err, ErrInvalidBaby) {
		t.Fatalf("empty name err=%v", err)
	}
	if _, err := svc.CreateBaby(ctx, "x", "2024-02-30"); !errors.Is(err, daterange.ErrInvalidDate) {
		t.Fatalf("bad birth date err=%v", err)
	}
	list, _ := svc.ListBabies(ctx)
	if len(list) != 2 || hub.events[len(hub.events)-1].Type != eventbus.TypeBabyCreated {
		t.Fatalf("babies=%+v events=%+v", list, hub.events)
	}
}

func TestImportActivities(t *testing.T) {
	svc, repo, hub := newTestActivityService(t)
	ctx := context.Background()

	existing, err := svc.Record(ctx, RecordInput{BabyID: 1, Type: "diaper", StartedAt: 1000})
	if err != nil {
		t.Fatalf("Record error: %v", err)
	}

	const uid = "3f1c2a4e-5b6d-4e7f-8a9b-0c1d2e3f4a5b"
	inputs := []RecordInput{
		{BabyID: 1, Type: "feeding", UID: uid, StartedAt: 2000, AmountML: 80},
		{BabyID: 1, Type: "feeding", UID: uid, StartedAt: 2000},
		{BabyID: 1, Type: "diaper", UID: existing.UID, StartedAt: 1000},
		{BabyID: 1, Type: "sleep", StartedAt: 3000, EndedAt: 9000},
	}
	res, err := svc.Import(ctx, inputs)
	if err != nil {
		t.Fatalf("Import error: %v", err)
	}
	if res.Imported != 2 || res.Skipped != 2 {
		t.Fatalf("result=%+v, want 2 imported / 2 skipped", res)
	}
	if repo.batches != 1 || len(repo.items) != 3 {
		t.Fatalf("batches=%d items=%d", repo.batches, len(repo.items))
	}
	if got, _ := repo.GetByUID(ctx, uid); got == nil || got.AmountML != 80 {
		t.Fatalf("imported uid not kept: %+v", got)
	}
	if last := hub.events[len(hub.events)-1]; last.Type != eventbus.TypeActivityImported || last.BabyID != 1 {
		t.Fatalf("last event=%+v", last)
	}

	// 再次导入同一批数据不会产生新记录
	again, err := svc.Import(ctx, inputs[:1])
	if err != nil || again.Imported != 0 || again.Skipped != 1 {
		t.Fatalf("re-import=%+v err=%v", again, err)
	}
}

func TestImportRejectsWholeBatchOnInvalidRecord(t *testing.T) {
	svc, repo, _ := newTestActivityService(t)
	ctx := context.Background()

	_, err := svc.Import(ctx, []RecordInput{
		{BabyID: 1, Type: "feeding", StartedAt: 1000},
		{BabyID: 1, Type: "feeding", UID: "not-a-uuid", StartedAt: 2000},
	})
	if !errors.Is(err, ErrInvalidActivity) {
		t.Fatalf("err=%v, want ErrInvalidActivity", err)
	}
	if len(repo.items) != 0 {
		t.Fatalf("items=%d, want none written", len(repo.items))
	}
}
