package server

import (
	"errors"
	"strconv"
	"strings"
	"time"

	budgetdomain "github.com/smallbiznis/podbudget/internal/budget/domain"
)

var errInvalidTime = errors.New("invalid_time")

// optionalParam parses a query value, treating blank as absent.
func optionalParam[T any](value string, parse func(string) (T, error)) (*T, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	parsed, err := parse(value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// periodParams reads the year and optional month of a budget report query.
// Range checks belong to budgetdomain.ValidatePeriod.
func periodParams(year, month string) (int, *int, error) {
	y, err := strconv.Atoi(strings.TrimSpace(year))
	if err != nil {
		return 0, nil, budgetdomain.ErrInvalidYear
	}
	m, err := optionalParam(month, strconv.Atoi)
	if err != nil {
		return 0, nil, budgetdomain.ErrInvalidMonth
	}
	return y, m, nil
}

func activeParam(value string) (*bool, error) {
	return optionalParam(value, strconv.ParseBool)
}

// timeParam accepts RFC 3339 or a bare UTC date. A bare date used as an
// upper bound covers the whole day.
func timeParam(value string, upper bool) (*time.Time, error) {
	return optionalParam(value, func(v string) (time.Time, error) {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t, nil
		}
		day, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return time.Time{}, errInvalidTime
		}
		if upper {
			return day.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
		}
		return day, nil
	})
}
