package dto

// ========== DTOs（与前端契约保持稳定） ==========

// UTCRangeDTO 本地日期换算后的 UTC 查询边界
type UTCRangeDTO struct {
	Start   string `json:"start"` // RFC3339，毫秒精度
	End     string `json:"end"`
	StartMs int64  `json:"start_ms"`
	EndMs   int64  `json:"end_ms"`
}

type DayRangeDTO struct {
	Date     string      `json:"date"`
	TZOffset int         `json:"tz"`
	Range    UTCRangeDTO `json:"range"`
}

type SpanRangeDTO struct {
	From     string      `json:"from"`
	To       string      `json:"to"`
	TZOffset int         `json:"tz"`
	Range    UTCRangeDTO `json:"range"`
}

type BabyDTO struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	BirthDate string `json:"birth_date"`
}

type CreateBabyRequestDTO struct {
	Name      string `json:"name"`
	BirthDate string `json:"birth_date"`
}

type ActivityDTO struct {
	ID        int64    `json:"id"`
	UID       string   `json:"uid"`
	BabyID    int64    `json:"baby_id"`
	Type      string   `json:"type"`
	StartedAt int64    `json:"started_at"`
	EndedAt   int64    `json:"ended_at"`
	TimeRange string   `json:"time_range"` // 本地 "15:04-15:04"，瞬时事件为空
	Duration  int64    `json:"duration"`   // 毫秒
	AmountML  int      `json:"amount_ml"`
	Side      string   `json:"side"`
	Note      string   `json:"note"`
	Tags      []string `json:"tags"`
}

type CreateActivityRequestDTO struct {
	BabyID    int64    `json:"baby_id"`
	Type      string   `json:"type"`
	StartedAt int64    `json:"started_at"`
	EndedAt   int64    `json:"ended_at"`
	AmountML  int      `json:"amount_ml"`
	Side      string   `json:"side"`
	Note      string   `json:"note"`
	Tags      []string `json:"tags"`
}

type ActivitiesByDateDTO struct {
	Date       string        `json:"date"`
	TZOffset   int           `json:"tz"`
	Range      UTCRangeDTO   `json:"range"`
	Activities []ActivityDTO `json:"activities"`
}

type LastActivityDTO struct {
	Type     string      `json:"type"`
	SinceSec int64       `json:"since_sec"`
	Since    string      `json:"since"`
	Activity ActivityDTO `json:"activity"`
}

type TypeStatDTO struct {
	Type          string `json:"type"`
	Count         int64  `json:"count"`
	TotalDuration int64  `json:"total_duration"` // 毫秒
	TotalAmountML int64  `json:"total_amount_ml"`
}

type DailyStatsDTO struct {
	Date  string        `json:"date"`
	Range UTCRangeDTO   `json:"range"`
	Total int64         `json:"total"`
	Types []TypeStatDTO `json:"types"`
}

type RangeStatsDTO struct {
	From      string             `json:"from"`
	To        string             `json:"to"`
	TZOffset  int                `json:"tz"`
	Range     UTCRangeDTO        `json:"range"`
	DayCount  int                `json:"day_count"`
	Totals    []TypeStatDTO      `json:"totals"`
	AvgPerDay map[string]float64 `json:"avg_per_day"`
	Days      []DailyStatsDTO    `json:"days"`
}
