package schema

import (
	"time"

	"github.com/google/uuid"
)

// 活动类型
const (
	ActivityFeeding  = "feeding"  // 喂奶 / 辅食
	ActivitySleep    = "sleep"    // 睡眠
	ActivityDiaper   = "diaper"   // 换尿布
	ActivityPump     = "pump"     // 吸奶
	ActivityBath     = "bath"     // 洗澡
	ActivityMedicine = "medicine" // 用药
)

var activityTypes = map[string]struct{}{
	ActivityFeeding:  {},
	ActivitySleep:    {},
	ActivityDiaper:   {},
	ActivityPump:     {},
	ActivityBath:     {},
	ActivityMedicine: {},
}

// IsValidActivityType 判断活动类型是否受支持
func IsValidActivityType(t string) bool {
	_, ok := activityTypes[t]
	return ok
}

// ActivityTypes 返回全部活动类型（固定顺序，便于展示）
func ActivityTypes() []string {
	return []string{ActivityFeeding, ActivitySleep, ActivityDiaper, ActivityPump, ActivityBath, ActivityMedicine}
}

// Activity 宝宝活动记录
// 所有时间均为 UTC 毫秒时间戳，按本地日期查询时由 daterange 换算边界
type Activity struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UID       string    `gorm:"size:36;uniqueIndex" json:"uid"`
	BabyID    int64     `gorm:"index:idx_activity_baby_time,priority:1" json:"baby_id"`
	Type      string    `gorm:"size:20;index" json:"type"`
	StartedAt int64     `gorm:"index:idx_activity_baby_time,priority:2" json:"started_at"` // Unix 时间戳（毫秒）
	EndedAt   int64     `gorm:"default:0" json:"ended_at"`                                 // 0 表示瞬时事件
	AmountML  int       `gorm:"column:amount_ml;default:0" json:"amount_ml"`               // 奶量 / 吸奶量
	Side      string    `gorm:"size:10" json:"side"`                                       // left / right / both
	Note      string    `gorm:"type:text" json:"note"`
	Metadata  JSONMap   `gorm:"type:text" json:"metadata"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定表名
func (Activity) TableName() string {
	return "activities"
}

// NewActivity 创建新活动（UID 自动生成）
func NewActivity(babyID int64, typ string, startedAt int64) *Activity {
	return &Activity{
		UID:       uuid.NewString(),
		BabyID:    babyID,
		Type:      typ,
		StartedAt: startedAt,
		Metadata:  make(JSONMap),
	}
}

// Duration 持续时长；瞬时事件或数据异常时为 0
func (a Activity) Duration() time.Duration {
	if a.EndedAt <= 0 || a.EndedAt < a.StartedAt {
		return 0
	}
	return time.Duration(a.EndedAt-a.StartedAt) * time.Millisecond
}
