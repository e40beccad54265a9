package service

import (
	"fmt"
	"time"
)

// FormatClockRange 将 UTC 毫秒区间格式化为本地 "15:04-15:04"，tz 为 getTimezoneOffset 编码
func FormatClockRange(startMs, endMs int64, tzOffsetMinutes int) string {
	if startMs <= 0 || endMs <= 0 || endMs <= startMs {
		return ""
	}
	loc := time.FixedZone("", -tzOffsetMinutes*60)
	start := time.UnixMilli(startMs).In(loc).Format("15:04")
	end := time.UnixMilli(endMs).In(loc).Format("15:04")
	return start + "-" + end
}

// FormatDuration 以 "1h05m" / "45m" 形式展示时长，按分钟四舍五入
func FormatDuration(d time.Duration) string {
	mins := int(d.Round(time.Minute) / time.Minute)
	if mins <= 0 {
		return "0m"
	}
	if mins < 60 {
		return fmt.Sprintf("%dm", mins)
	}
	return fmt.Sprintf("%dh%02dm", mins/60, mins%60)
}
