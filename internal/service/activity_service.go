package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yuqie6/NunuLog/internal/daterange"
	"github.com/yuqie6/NunuLog/internal/eventbus"
	"github.com/yuqie6/NunuLog/internal/schema"
)

// ActivityService 活动记录与宝宝档案
type ActivityService struct {
	activities ActivityRepository
	babies     BabyRepository
	hub        Publisher
	now        func() time.Time
}

// NewActivityService 创建服务；hub 可为 nil
func NewActivityService(activities ActivityRepository, babies BabyRepository, hub Publisher) *ActivityService {
	return &ActivityService{
		activities: activities,
		babies:     babies,
		hub:        hub,
		now:        time.Now,
	}
}

// RecordInput 记录一条活动的参数
type RecordInput struct {
	BabyID    int64
	Type      string
	UID       string // 可选，导入时沿用来源数据的 UUID
	StartedAt int64  // 毫秒；0 表示当前时间
	EndedAt   int64
	AmountML  int
	Side      string
	Note      string
	Tags      []string
}

var validSides = map[string]struct{}{"": {}, "left": {}, "right": {}, "both": {}}

// Record 校验并写入一条活动
func (s *ActivityService) Record(ctx context.Context, in RecordInput) (*schema.Activity, error) {
	a, err := s.build(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := s.activities.Create(ctx, a); err != nil {
		return nil, err
	}

	slog.Debug("记录活动", "baby_id", a.BabyID, "type", a.Type, "uid", a.UID)
	s.publish(eventbus.TypeActivityCreated, a.BabyID, map[string]any{
		"id":         a.ID,
		"uid":        a.UID,
		"baby_id":    a.BabyID,
		"type":       a.Type,
		"started_at": a.StartedAt,
	})
	return a, nil
}

// ImportResult 批量导入结果
type ImportResult struct {
	Imported int
	Skipped  int // UID 已存在或在本批次中重复
}

// Import 批量导入活动（如从其他记录 App 导出的数据）。
// 全部记录先校验，任一条无效则整批拒绝；UID 已存在的记录跳过，可重复导入同一文件。
func (s *ActivityService) Import(ctx context.Context, inputs []RecordInput) (ImportResult, error) {
	var res ImportResult
	if len(inputs) == 0 {
		return res, nil
	}

	batch := make([]schema.Activity, 0, len(inputs))
	seen := make(map[string]struct{}, len(inputs))
	for i, in := range inputs {
		a, err := s.build(ctx, in)
		if err != nil {
			return ImportResult{}, fmt.Errorf("第 %d 条: %w", i+1, err)
		}
		if _, dup := seen[a.UID]; dup {
			res.Skipped++
			continue
		}
		seen[a.UID] = struct{}{}

		existing, err := s.activities.GetByUID(ctx, a.UID)
		if err != nil {
			return ImportResult{}, err
		}
		if existing != nil {
			res.Skipped++
			continue
		}
		batch = append(batch, *a)
	}

	if err := s.activities.BatchInsert(ctx, batch); err != nil {
		return ImportResult{}, err
	}
	res.Imported = len(batch)

	babies := make(map[int64]int)
	for _, a := range batch {
		babies[a.BabyID]++
	}
	for babyID, n := range babies {
		s.publish(eventbus.TypeActivityImported, babyID, map[string]any{"baby_id": babyID, "count": n})
	}
	slog.Info("导入活动", "imported", res.Imported, "skipped", res.Skipped)
	return res, nil
}

// build 规范化并校验输入，构造待写入的活动
func (s *ActivityService) build(ctx context.Context, in RecordInput) (*schema.Activity, error) {
	in.Type = strings.ToLower(strings.TrimSpace(in.Type))
	in.Side = strings.ToLower(strings.TrimSpace(in.Side))
	in.UID = strings.TrimSpace(in.UID)
	if !schema.IsValidActivityType(in.Type) {
		return nil, fmt.Errorf("%w: 未知类型 %q", ErrInvalidActivity, in.Type)
	}
	if _, ok := validSides[in.Side]; !ok {
		return nil, fmt.Errorf("%w: side=%q", ErrInvalidActivity, in.Side)
	}
	if in.StartedAt < 0 || in.EndedAt < 0 || in.AmountML < 0 {
		return nil, fmt.Errorf("%w: 时间与奶量不能为负", ErrInvalidActivity)
	}
	if in.StartedAt == 0 {
		in.StartedAt = s.now().UnixMilli()
	}
	if in.EndedAt != 0 && in.EndedAt < in.StartedAt {
		return nil, fmt.Errorf("%w: 结束时间早于开始时间", ErrInvalidActivity)
	}
	if in.UID != "" {
		if _, err := uuid.Parse(in.UID); err != nil {
			return nil, fmt.Errorf("%w: uid=%q 不是合法 UUID", ErrInvalidActivity, in.UID)
		}
	}

	baby, err := s.babies.GetByID(ctx, in.BabyID)
	if err != nil {
		return nil, err
	}
	if baby == nil {
		return nil, fmt.Errorf("%w: id=%d", ErrBabyNotFound, in.BabyID)
	}

	a := schema.NewActivity(in.BabyID, in.Type, in.StartedAt)
	if in.UID != "" {
		a.UID = in.UID
	}
	a.EndedAt = in.EndedAt
	a.AmountML = in.AmountML
	a.Side = in.Side
	a.Note = strings.TrimSpace(in.Note)
	schema.SetStringSlice(a.Metadata, "tags", in.Tags)
	return a, nil
}

// Delete 删除活动
func (s *ActivityService) Delete(ctx context.Context, id int64) error {
	existing, err := s.activities.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("%w: activity id=%d", ErrNotFound, id)
	}
	deleted, err := s.activities.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("%w: activity id=%d", ErrNotFound, id)
	}
	s.publish(eventbus.TypeActivityDeleted, existing.BabyID, map[string]any{
		"id":      id,
		"baby_id": existing.BabyID,
	})
	return nil
}

// ListByDate 按本地日期列出活动，并返回该日对应的 UTC 区间
func (s *ActivityService) ListByDate(ctx context.Context, babyID int64, date string, tzOffsetMinutes int) ([]schema.Activity, daterange.UTCRange, error) {
	return s.activities.GetByDate(ctx, babyID, date, tzOffsetMinutes)
}

// LastActivity 某类型最近一次活动及距今时长
type LastActivity struct {
	Type     string
	Activity *schema.Activity
	Since    time.Duration
}

// LastByType 各类型最近一次活动（首页“距上次喂奶”之类的提示）
func (s *ActivityService) LastByType(ctx context.Context, babyID int64) ([]LastActivity, error) {
	now := s.now().UnixMilli()
	out := make([]LastActivity, 0, len(schema.ActivityTypes()))
	for _, typ := range schema.ActivityTypes() {
		a, err := s.activities.GetLastByType(ctx, babyID, typ)
		if err != nil {
			return nil, err
		}
		if a == nil {
			continue
		}
		ref := a.StartedAt
		if a.EndedAt > ref {
			ref = a.EndedAt
		}
		since := time.Duration(0)
		if now > ref {
			since = time.Duration(now-ref) * time.Millisecond
		}
		out = append(out, LastActivity{Type: typ, Activity: a, Since: since})
	}
	return out, nil
}

// CreateBaby 新建宝宝档案；birthDate 可为空
func (s *ActivityService) CreateBaby(ctx context.Context, name, birthDate string) (*schema.Baby, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: 名字不能为空", ErrInvalidBaby)
	}
	if len(name) > 100 {
		return nil, fmt.Errorf("%w: 名字过长", ErrInvalidBaby)
	}
	birthDate = strings.TrimSpace(birthDate)
	if birthDate != "" {
		d, err := daterange.ParseLocalDate(birthDate)
		if err != nil {
			return nil, err
		}
		birthDate = d.String()
	}

	baby := &schema.Baby{Name: name, BirthDate: birthDate}
	if err := s.babies.Create(ctx, baby); err != nil {
		return nil, err
	}
	s.publish(eventbus.TypeBabyCreated, 0, map[string]any{"id": baby.ID, "name": baby.Name})
	return baby, nil
}

// ListBabies 列出全部宝宝档案
func (s *ActivityService) ListBabies(ctx context.Context) ([]schema.Baby, error) {
	return s.babies.List(ctx)
}

func (s *ActivityService) publish(typ string, babyID int64, data map[string]any) {
	if s.hub == nil {
		return
	}
	s.hub.Publish(eventbus.Event{Type: typ, BabyID: babyID, Data: data})
}
