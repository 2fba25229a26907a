package strategy

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SessionConfig 描述主交易时段，时间为 HH:MM。
type SessionConfig struct {
	Enabled  bool   `mapstructure:"enabled" json:"enabled"`
	Start    string `mapstructure:"start" json:"start"`
	End      string `mapstructure:"end" json:"end"`
	Timezone string `mapstructure:"timezone" json:"timezone"`
}

// Session 是解析后的时段过滤器，区间为 [start, end)。
type Session struct {
	enabled bool
	start   int
	end     int
	loc     *time.Location
}

const (
	defaultSessionStart = "16:30"
	defaultSessionEnd   = "23:00"
)

func NewSession(cfg SessionConfig) (Session, error) {
	if !cfg.Enabled {
		return Session{}, nil
	}
	if cfg.Start == "" {
		cfg.Start = defaultSessionStart
	}
	if cfg.End == "" {
		cfg.End = defaultSessionEnd
	}
	start, err := parseClock(cfg.Start)
	if err != nil {
		return Session{}, fmt.Errorf("session start: %w", err)
	}
	end, err := parseClock(cfg.End)
	if err != nil {
		return Session{}, fmt.Errorf("session end: %w", err)
	}
	if end <= start {
		return Session{}, fmt.Errorf("session end %s must be after start %s", cfg.End, cfg.Start)
	}
	loc := time.UTC
	if cfg.Timezone != "" {
		loc, err = time.LoadLocation(cfg.Timezone)
		if err != nil {
			return Session{}, fmt.Errorf("session timezone: %w", err)
		}
	}
	return Session{enabled: true, start: start, end: end, loc: loc}, nil
}

func (s Session) Enabled() bool { return s.enabled }

// Contains 未启用时总是返回 true。
func (s Session) Contains(t time.Time) bool {
	if !s.enabled {
		return true
	}
	local := t.In(s.loc)
	minute := local.Hour()*60 + local.Minute()
	return minute >= s.start && minute < s.end
}

func parseClock(v string) (int, error) {
	parts := strings.Split(strings.TrimSpace(v), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock %q", v)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 24 {
		return 0, fmt.Errorf("invalid hour in %q", v)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", v)
	}
	return h*60 + m, nil
}
