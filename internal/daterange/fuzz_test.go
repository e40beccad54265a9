package daterange

import (
	"errors"
	"testing"
	"time"
)

func FuzzResolveDay(f *testing.F) {
	f.Add(2024, 3, 5, -480)
	f.Add(2024, 2, 29, 0)
	f.Add(1970, 1, 1, 300)
	f.Add(2023, 2, 30, 60)
	f.Add(9999, 12, 31, 1440)

	f.Fuzz(func(t *testing.T, year, month, day, tz int) {
		if tz < -100_000 || tz > 100_000 {
			t.Skip()
		}
		d, err := NewLocalDate(year, time.Month(month), day)
		if err != nil {
			if !errors.Is(err, ErrInvalidDate) {
				t.Fatalf("unexpected error type: %v", err)
			}
			return
		}

		parsed, err := ParseLocalDate(d.String())
		if err != nil || parsed != d {
			t.Fatalf("round trip %s -> %v (%v)", d, parsed, err)
		}

		r := ResolveDay(d, tz)
		if r.EndMs()-r.StartMs() != 86_399_999 {
			t.Fatalf("%s tz=%d span=%d", d, tz, r.EndMs()-r.StartMs())
		}
		wall := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC).UnixMilli()
		if r.StartMs() != wall+int64(tz)*60_000 {
			t.Fatalf("%s tz=%d start=%d, want %d", d, tz, r.StartMs(), wall+int64(tz)*60_000)
		}

		rr, err := ResolveRange(d, d, tz)
		if err != nil || rr != r {
			t.Fatalf("ResolveRange(d, d) = %v, %v; want %v", rr, err, r)
		}
	})
}

func FuzzParseLocalDate(f *testing.F) {
	for _, s := range []string{"2024-03-05", "2024-13-40", "2024-2-30", "x", "2024-01-01T00:00:00Z"} {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, s string) {
		d, err := ParseLocalDate(s)
		if err != nil {
			if !errors.Is(err, ErrInvalidDate) {
				t.Fatalf("ParseLocalDate(%q) unexpected error: %v", s, err)
			}
			return
		}
		if _, err := time.Parse(Layout, d.String()); err != nil {
			t.Fatalf("ParseLocalDate(%q) accepted %s which time.Parse rejects: %v", s, d, err)
		}
	})
}
