// Package timeinterval 把 (开始, 结束, 重复规则) 展开成一组具体的上课时间段。
// 所有日期计算都在调用方传入的时区中进行，星期的编号与 time.Weekday 一致 (0 = 周日)。
package timeinterval

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrEmptyWeeks      = errors.New("timeinterval: weeks must not be empty")
	ErrInvalidWeekday  = errors.New("timeinterval: weekday out of range")
	ErrInvalidRate     = errors.New("timeinterval: rate must be positive")
	ErrEndBeforeBegin  = errors.New("timeinterval: recurrence end is before begin")
	ErrInvalidInterval = errors.New("timeinterval: end is before begin")
)

// Interval 一次课的起止时间
type Interval struct {
	Begin time.Time
	End   time.Time
}

// Duration 时长
func (i Interval) Duration() time.Duration { return i.End.Sub(i.Begin) }

// ByRate 从 begin 所在的日期开始逐日向后扫描，最多扫描 rate*7+6 天，
// 收集星期落在 weeks 中的日期，凑满 rate 个即停止。
func ByRate(begin, end time.Time, weeks []time.Weekday, rate int, loc *time.Location) ([]Interval, error) {
	if rate < 1 {
		return nil, ErrInvalidRate
	}
	set, err := weekdaySet(weeks)
	if err != nil {
		return nil, err
	}
	if end.Before(begin) {
		return nil, ErrInvalidInterval
	}

	begin = begin.In(loc)
	duration := end.Sub(begin)
	maxDays := rate*7 + 6

	result := make([]Interval, 0, rate)
	for day := 0; day <= maxDays && len(result) < rate; day++ {
		b := onDay(begin, day)
		if set[b.Weekday()] {
			result = append(result, Interval{Begin: b, End: b.Add(duration)})
		}
	}
	return result, nil
}

// ByEndTime 枚举 [begin 所在日期, until 所在日期] 内所有星期落在 weeks 中的日期。
// until 与 begin 在同一天时原样返回输入的时间段。
func ByEndTime(begin, end time.Time, weeks []time.Weekday, until time.Time, loc *time.Location) ([]Interval, error) {
	set, err := weekdaySet(weeks)
	if err != nil {
		return nil, err
	}
	if end.Before(begin) {
		return nil, ErrInvalidInterval
	}

	begin = begin.In(loc)
	until = until.In(loc)
	if SameDay(begin, until) {
		return []Interval{{Begin: begin, End: end.In(loc)}}, nil
	}
	if until.Before(begin) {
		return nil, ErrEndBeforeBegin
	}

	duration := end.Sub(begin)
	lastDay := dayStart(until)

	var result []Interval
	for day := 0; ; day++ {
		b := onDay(begin, day)
		if dayStart(b).After(lastDay) {
			break
		}
		if set[b.Weekday()] {
			result = append(result, Interval{Begin: b, End: b.Add(duration)})
		}
	}
	return result, nil
}

// SameDay 两个时间在 a 的时区下是否为同一个日历日
func SameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// onDay 把 t 的时分秒 (含纳秒) 平移到 offset 天之后的日期
func onDay(t time.Time, offset int) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+offset, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func dayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func weekdaySet(weeks []time.Weekday) (map[time.Weekday]bool, error) {
	if len(weeks) == 0 {
		return nil, ErrEmptyWeeks
	}
	set := make(map[time.Weekday]bool, len(weeks))
	for _, w := range weeks {
		if w < time.Sunday || w > time.Saturday {
			return nil, fmt.Errorf("%w: %d", ErrInvalidWeekday, w)
		}
		set[w] = true
	}
	return set, nil
}
