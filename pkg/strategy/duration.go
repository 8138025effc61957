package strategy

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseDuration parses the small duration grammar used by pause steps:
// a non-negative integer followed by one of s/m/h. Unlike
// time.ParseDuration it rejects anything else (no "1h30m", no decimals)
// so a typo in a Rollout spec is rejected as an error instead of
// silently parsing part of the string.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}

	unit := s[len(s)-1]
	number := s[:len(s)-1]
	n, err := strconv.ParseUint(number, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}

	switch unit {
	case 's':
		return time.Duration(n) * time.Second, nil
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	default:
		return 0, fmt.Errorf("invalid duration unit in %q: want one of s, m, h", s)
	}
}
