package model

import (
	"fmt"
	"strings"
)

// periodDays maps the look-back periods accepted on the command line to
// calendar days.
var periodDays = map[string]int{
	"1y": 365,
	"2y": 730,
	"3y": 1095,
	"5y": 1825,
}

// ParsePeriod returns the calendar days of a look-back period. "" and "all"
// mean the whole history and return 0.
func ParsePeriod(s string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "all" {
		return 0, nil
	}
	d, ok := periodDays[s]
	if !ok {
		return 0, &InvalidParameterError{Param: "period", Reason: fmt.Sprintf("unknown period %q (want 1y, 2y, 3y, 5y or all)", s)}
	}
	return d, nil
}

// Trailing returns the bars dated within days calendar days of the last bar,
// inclusive. days <= 0 or an empty series returns s unchanged. The result
// shares its backing array with s.
func (s *PriceSeries) Trailing(days int) PriceSeries {
	if days <= 0 || len(s.Bars) == 0 {
		return *s
	}
	cutoff := s.Bars[len(s.Bars)-1].Date.AddDate(0, 0, -days)
	i := 0
	for i < len(s.Bars) && s.Bars[i].Date.Before(cutoff) {
		i++
	}
	return PriceSeries{Symbol: s.Symbol, Bars: s.Bars[i:]}
}
