package utils

import "time"

// ParseRangeStart 解析查询区间起点，接受 RFC3339 或 YYYY-MM-DD（当日零点）
func ParseRangeStart(v string, loc *time.Location) (*time.Time, error) {
	t, _, err := parseRangeBound(v, loc)
	return t, err
}

// ParseRangeEnd 解析查询区间终点，区间右开。
// 纯日期表示包含当天，返回次日零点；RFC3339 原样返回。
func ParseRangeEnd(v string, loc *time.Location) (*time.Time, error) {
	t, dateOnly, err := parseRangeBound(v, loc)
	if err != nil || t == nil {
		return t, err
	}
	if dateOnly {
		next := t.AddDate(0, 0, 1)
		return &next, nil
	}
	return t, nil
}

func parseRangeBound(v string, loc *time.Location) (*time.Time, bool, error) {
	if v == "" {
		return nil, false, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, false, nil
	}
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(time.DateOnly, v, loc)
	if err != nil {
		return nil, false, err
	}
	return &t, true, nil
}
