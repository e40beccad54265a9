// Package daterange 把用户本地日历日期换算成 UTC 毫秒区间，用作按天/按时段统计的查询边界。
//
// 时区偏移采用浏览器 Date.getTimezoneOffset() 的编码：
// UTC = 本地挂钟时间按 UTC 解释 + offset 分钟。UTC+8 对应 -480，UTC-5 对应 +300。
package daterange

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidDate 日期字符串无法解析为合法的公历年月日
	ErrInvalidDate = errors.New("日期无效")
	// ErrInvalidRange 起始日期晚于结束日期
	ErrInvalidRange = errors.New("日期区间无效")
)

const (
	dayMs   = int64(24 * time.Hour / time.Millisecond)
	minMs   = int64(time.Minute / time.Millisecond)
	maxYear = 9999

	// Layout YYYY-MM-DD 的 time 格式串，供展示层复用
	Layout = "2006-01-02"
)

// LocalDate 不带时刻与时区的日历日期
type LocalDate struct {
	Year  int
	Month time.Month
	Day   int
}

// NewLocalDate 构造并校验日期（拒绝 2 月 30 日这类不存在的日期）
func NewLocalDate(year int, month time.Month, day int) (LocalDate, error) {
	if year < 1 || year > maxYear {
		return LocalDate{}, fmt.Errorf("%w: 年份 %d 超出范围", ErrInvalidDate, year)
	}
	if month < time.January || month > time.December {
		return LocalDate{}, fmt.Errorf("%w: 月份 %d 超出范围", ErrInvalidDate, month)
	}
	if day < 1 || day > daysIn(year, month) {
		return LocalDate{}, fmt.Errorf("%w: %04d-%02d 没有第 %d 天", ErrInvalidDate, year, month, day)
	}
	return LocalDate{Year: year, Month: month, Day: day}, nil
}

// ParseLocalDate 解析 YYYY-MM-DD
func ParseLocalDate(s string) (LocalDate, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 3 {
		return LocalDate{}, fmt.Errorf("%w: %q 不是 YYYY-MM-DD 格式", ErrInvalidDate, s)
	}
	widths := [3][2]int{{4, 4}, {1, 2}, {1, 2}}
	var fields [3]int
	for i, p := range parts {
		if len(p) < widths[i][0] || len(p) > widths[i][1] || !allDigits(p) {
			return LocalDate{}, fmt.Errorf("%w: %q 不是 YYYY-MM-DD 格式", ErrInvalidDate, s)
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return LocalDate{}, fmt.Errorf("%w: %q: %v", ErrInvalidDate, s, err)
		}
		fields[i] = n
	}
	return NewLocalDate(fields[0], time.Month(fields[1]), fields[2])
}

// DateOf 取 t 在其自身时区下的日历日期
func DateOf(t time.Time) LocalDate {
	y, m, d := t.Date()
	return LocalDate{Year: y, Month: m, Day: d}
}

func (d LocalDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Compare 按日历顺序比较，返回 -1 / 0 / 1
func (d LocalDate) Compare(other LocalDate) int {
	switch {
	case d.Year != other.Year:
		return cmpInt(d.Year, other.Year)
	case d.Month != other.Month:
		return cmpInt(int(d.Month), int(other.Month))
	default:
		return cmpInt(d.Day, other.Day)
	}
}

func (d LocalDate) Before(other LocalDate) bool { return d.Compare(other) < 0 }
func (d LocalDate) After(other LocalDate) bool  { return d.Compare(other) > 0 }

// AddDays 按日历加减天数
func (d LocalDate) AddDays(n int) LocalDate {
	return DateOf(d.midnightUTC().AddDate(0, 0, n))
}

// DaysUntil 返回 d 到 other 相隔的天数（other 在前时为负）
func (d LocalDate) DaysUntil(other LocalDate) int {
	return int((other.midnightUTC().UnixMilli() - d.midnightUTC().UnixMilli()) / dayMs)
}

func (d LocalDate) midnightUTC() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// UTCRange UTC 闭区间 [Start, End]，Start <= End
type UTCRange struct {
	Start time.Time
	End   time.Time
}

func (r UTCRange) StartMs() int64 { return r.Start.UnixMilli() }
func (r UTCRange) EndMs() int64   { return r.End.UnixMilli() }

// Contains 判断毫秒时间戳是否落在闭区间内
func (r UTCRange) Contains(ms int64) bool {
	return ms >= r.StartMs() && ms <= r.EndMs()
}

func (r UTCRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

func (r UTCRange) String() string {
	return r.Start.Format(time.RFC3339Nano) + "/" + r.End.Format(time.RFC3339Nano)
}

// ResolveDay 把本地日期 d 的 00:00:00.000 ~ 23:59:59.999 换算为 UTC。
// 挂钟字段先按 UTC 解释，再加上 tzOffsetMinutes 分钟；不做 DST 处理。
func ResolveDay(d LocalDate, tzOffsetMinutes int) UTCRange {
	shift := int64(tzOffsetMinutes) * minMs
	start := d.midnightUTC().UnixMilli() + shift
	end := start + dayMs - 1
	return UTCRange{
		Start: time.UnixMilli(start).UTC(),
		End:   time.UnixMilli(end).UTC(),
	}
}

// ResolveDayString 解析 YYYY-MM-DD 后调用 ResolveDay
func ResolveDayString(date string, tzOffsetMinutes int) (UTCRange, error) {
	d, err := ParseLocalDate(date)
	if err != nil {
		return UTCRange{}, err
	}
	return ResolveDay(d, tzOffsetMinutes), nil
}

// ResolveRange 从 from 当天零点到 to 当天结束，两端使用同一偏移
func ResolveRange(from, to LocalDate, tzOffsetMinutes int) (UTCRange, error) {
	if from.After(to) {
		return UTCRange{}, fmt.Errorf("%w: %s 晚于 %s", ErrInvalidRange, from, to)
	}
	return UTCRange{
		Start: ResolveDay(from, tzOffsetMinutes).Start,
		End:   ResolveDay(to, tzOffsetMinutes).End,
	}, nil
}

// ResolveRangeString 字符串版本的 ResolveRange
func ResolveRangeString(from, to string, tzOffsetMinutes int) (UTCRange, error) {
	fd, err := ParseLocalDate(from)
	if err != nil {
		return UTCRange{}, err
	}
	td, err := ParseLocalDate(to)
	if err != nil {
		return UTCRange{}, err
	}
	return ResolveRange(fd, td, tzOffsetMinutes)
}

// Days 枚举 [from, to] 内的每一天；from 晚于 to 时返回 nil
func Days(from, to LocalDate) []LocalDate {
	n := from.DaysUntil(to)
	if n < 0 {
		return nil
	}
	out := make([]LocalDate, 0, n+1)
	for i := 0; i <= n; i++ {
		out = append(out, from.AddDays(i))
	}
	return out
}

// OffsetOf 返回 t 所在时区对应的偏移（getTimezoneOffset 编码）
func OffsetOf(t time.Time) int {
	_, sec := t.Zone()
	return -sec / 60
}

// Today 返回按给定偏移看到的“今天”
func Today(now time.Time, tzOffsetMinutes int) LocalDate {
	return DateOf(now.UTC().Add(-time.Duration(tzOffsetMinutes) * time.Minute))
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
