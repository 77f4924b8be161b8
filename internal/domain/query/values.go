package query

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Int coerces a driver value to an integer count. Anything that does not
// parse counts as zero.
func Int(v any) int64 {
	switch n := v.(type) {
	case nil:
		return 0
	case int:
		return int64(n)
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case uint:
		return int64(n)
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case uint32:
		return int64(n)
	case uint64:
		return int64(n)
	case float32:
		return floatToInt(float64(n))
	case float64:
		return floatToInt(n)
	case bool:
		if n {
			return 1
		}
		return 0
	case []byte:
		return parseInt(string(n))
	case string:
		return parseInt(n)
	default:
		return parseInt(fmt.Sprint(n))
	}
}

func floatToInt(f float64) int64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int64(math.Round(f))
}

func parseInt(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return floatToInt(f)
	}
	return 0
}

// Text renders a driver value for display and search. Dates keep only the
// calendar day when there is no time component.
func Text(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	case time.Time:
		if s.Hour() == 0 && s.Minute() == 0 && s.Second() == 0 {
			return s.Format(DateLayout)
		}
		return s.Format(time.RFC3339)
	default:
		return fmt.Sprint(s)
	}
}

// ParamsFromValues reads a parameter bag from request query values.
// startDate and endDate are required; recognised code names override
// their defaults.
func ParamsFromValues(v url.Values) (Params, error) {
	p := Params{
		StartDate:       strings.TrimSpace(v.Get("startDate")),
		EndDate:         strings.TrimSpace(v.Get("endDate")),
		PreviousEndDate: strings.TrimSpace(v.Get("previousEndDate")),
	}
	for _, name := range CodeNames() {
		if raw := v.Get(name); raw != "" {
			p = p.With(name, ParseCode(name, raw))
		}
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

// UseCache reads the useCache flag; anything but an explicit false keeps
// the cache on.
func UseCache(v url.Values) bool {
	raw := v.Get("useCache")
	if raw == "" {
		raw = v.Get("cache")
	}
	b, err := strconv.ParseBool(raw)
	return err != nil || b
}
