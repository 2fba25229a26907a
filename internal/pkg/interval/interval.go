package interval

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Parse 解析 "30s"、"5m"、"1h"、"1d"、"1w" 形式的周期。
func Parse(v string) (time.Duration, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	if len(v) < 2 {
		return 0, fmt.Errorf("invalid interval %q", v)
	}
	n, err := strconv.Atoi(strings.TrimSpace(v[:len(v)-1]))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid interval %q", v)
	}
	var unit time.Duration
	switch v[len(v)-1] {
	case 's':
		unit = time.Second
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	case 'w':
		unit = 7 * 24 * time.Hour
	default:
		return 0, fmt.Errorf("invalid interval unit in %q", v)
	}
	return time.Duration(n) * unit, nil
}

// Format 输出最大整除单位的写法，例如 300s -> "5m"。
func Format(d time.Duration) string {
	switch {
	case d <= 0:
		return "0s"
	case d%(7*24*time.Hour) == 0:
		return strconv.FormatInt(int64(d/(7*24*time.Hour)), 10) + "w"
	case d%(24*time.Hour) == 0:
		return strconv.FormatInt(int64(d/(24*time.Hour)), 10) + "d"
	case d%time.Hour == 0:
		return strconv.FormatInt(int64(d/time.Hour), 10) + "h"
	case d%time.Minute == 0:
		return strconv.FormatInt(int64(d/time.Minute), 10) + "m"
	default:
		return strconv.FormatInt(int64(d/time.Second), 10) + "s"
	}
}
