package repository

import (
	"github.com/yuqie6/NunuLog/internal/daterange"
)

// DayRange 将 YYYY-MM-DD 按 tz 偏移解析为本地日的 UTC 闭区间，查询使用 [StartMs, EndMs]
func DayRange(date string, tzOffsetMinutes int) (daterange.UTCRange, error) {
	return daterange.ResolveDayString(date, tzOffsetMinutes)
}

// SpanRange 从 from 当天零点到 to 当天结束的 UTC 闭区间
func SpanRange(from, to string, tzOffsetMinutes int) (daterange.UTCRange, error) {
	return daterange.ResolveRangeString(from, to, tzOffsetMinutes)
}
