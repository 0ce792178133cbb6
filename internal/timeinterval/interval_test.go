package timeinterval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var shanghai = time.FixedZone("UTC+8", 8*3600)

func TestByRate_CountWeekdayAndTimeOfDay(t *testing.T) {
	// 2024-01-01 是周一
	begin := time.Date(2024, 1, 1, 9, 30, 15, 500, shanghai)
	end := begin.Add(45 * time.Minute)
	weeks := []time.Weekday{time.Monday, time.Wednesday, time.Friday}

	for rate := 1; rate <= 50; rate++ {
		result, err := ByRate(begin, end, weeks, rate, shanghai)
		require.NoError(t, err)
		require.Len(t, result, rate)

		for i, r := range result {
			assert.Contains(t, weeks, r.Begin.Weekday())
			assert.Equal(t, 45*time.Minute, r.Duration())
			assert.Equal(t, 9, r.Begin.Hour())
			assert.Equal(t, 30, r.Begin.Minute())
			assert.Equal(t, 15, r.Begin.Second())
			assert.Equal(t, 500, r.Begin.Nanosecond())
			if i > 0 {
				assert.True(t, r.Begin.After(result[i-1].Begin), "结果必须按时间升序")
			}
		}
	}
}

func TestByRate_SkipsStartDayWhenWeekdayNotSelected(t *testing.T) {
	begin := time.Date(2024, 1, 1, 20, 0, 0, 0, shanghai) // 周一
	end := begin.Add(time.Hour)

	result, err := ByRate(begin, end, []time.Weekday{time.Sunday}, 2, shanghai)
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, time.Date(2024, 1, 7, 20, 0, 0, 0, shanghai), result[0].Begin)
	assert.Equal(t, time.Date(2024, 1, 14, 20, 0, 0, 0, shanghai), result[1].Begin)
}

func TestByRate_UsesLocationForWeekday(t *testing.T) {
	// UTC 周日 20:00 在 UTC+8 已经是周一 04:00
	begin := time.Date(2024, 1, 7, 20, 0, 0, 0, time.UTC)
	end := begin.Add(time.Hour)

	result, err := ByRate(begin, end, []time.Weekday{time.Monday}, 1, shanghai)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.True(t, result[0].Begin.Equal(begin))
}

func TestByRate_InvalidInput(t *testing.T) {
	begin := time.Date(2024, 1, 1, 9, 0, 0, 0, shanghai)
	end := begin.Add(time.Hour)

	_, err := ByRate(begin, end, []time.Weekday{time.Monday}, 0, shanghai)
	assert.ErrorIs(t, err, ErrInvalidRate)

	_, err = ByRate(begin, end, nil, 3, shanghai)
	assert.ErrorIs(t, err, ErrEmptyWeeks)

	_, err = ByRate(begin, end, []time.Weekday{7}, 3, shanghai)
	assert.ErrorIs(t, err, ErrInvalidWeekday)

	_, err = ByRate(end, begin, []time.Weekday{time.Monday}, 3, shanghai)
	assert.ErrorIs(t, err, ErrInvalidInterval)
}

func TestByEndTime_CoversEveryMatchingDay(t *testing.T) {
	begin := time.Date(2024, 1, 1, 8, 0, 0, 0, shanghai) // 周一
	end := begin.Add(90 * time.Minute)
	until := time.Date(2024, 1, 31, 0, 0, 0, 0, shanghai) // 周三

	result, err := ByEndTime(begin, end, []time.Weekday{time.Monday, time.Wednesday}, until, shanghai)
	require.NoError(t, err)

	// 1 月的周一: 1 8 15 22 29, 周三: 3 10 17 24 31
	require.Len(t, result, 10)
	assert.Equal(t, 1, result[0].Begin.Day())
	assert.Equal(t, 31, result[len(result)-1].Begin.Day())
	for _, r := range result {
		assert.Equal(t, 90*time.Minute, r.Duration())
		assert.Equal(t, 8, r.Begin.Hour())
	}
}

func TestByEndTime_SameDayReturnsInput(t *testing.T) {
	begin := time.Date(2024, 1, 2, 8, 0, 0, 0, shanghai) // 周二
	end := begin.Add(time.Hour)
	until := time.Date(2024, 1, 2, 23, 0, 0, 0, shanghai)

	// 即使周二不在 weeks 中也原样返回
	result, err := ByEndTime(begin, end, []time.Weekday{time.Friday}, until, shanghai)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.True(t, result[0].Begin.Equal(begin))
	assert.True(t, result[0].End.Equal(end))
}

func TestByEndTime_EndBeforeBegin(t *testing.T) {
	begin := time.Date(2024, 1, 10, 8, 0, 0, 0, shanghai)
	end := begin.Add(time.Hour)

	_, err := ByEndTime(begin, end, []time.Weekday{time.Monday}, begin.AddDate(0, 0, -3), shanghai)
	assert.ErrorIs(t, err, ErrEndBeforeBegin)
}

func TestByEndTime_NoMatchingWeekday(t *testing.T) {
	begin := time.Date(2024, 1, 1, 8, 0, 0, 0, shanghai) // 周一
	end := begin.Add(time.Hour)

	result, err := ByEndTime(begin, end, []time.Weekday{time.Saturday}, begin.AddDate(0, 0, 2), shanghai)
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestSameDay(t *testing.T) {
	a := time.Date(2024, 1, 1, 23, 59, 0, 0, shanghai)
	assert.True(t, SameDay(a, time.Date(2024, 1, 1, 0, 0, 0, 0, shanghai)))
	assert.False(t, SameDay(a, a.Add(2*time.Minute)))
	// 同一时刻换成 UTC 表示仍是同一天
	assert.True(t, SameDay(a, a.UTC()))
}
