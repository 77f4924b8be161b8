package query

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidParams is returned by Params.Validate.
var ErrInvalidParams = errors.New("invalid report parameters")

// DateLayout is the wire format of every date parameter.
const DateLayout = "2006-01-02"

// Record is one raw result row keyed by column name.
type Record = map[string]any

// Defaults for the business codes and thresholds referenced by templates.
// Numbers are bound/rendered unquoted, strings quoted, string lists as a
// comma separated list of quoted values.
var Defaults = map[string]any{
	"lost_code":                0,
	"dead_code":                1,
	"transfer_out_code":        3,
	"transfer_in_code":         1,
	"mmd_eligible_code":        0,
	"mmd_drug_quantity":        60,
	"vl_suppression_threshold": 1000,
	"tld_regimen_formula":      "3TC + DTG + TDF",
	"tpt_drug_list":            []string{"Isoniazid", "3HP", "6H"},
}

// Params is the parameter bag of one report request.
type Params struct {
	StartDate       string         `json:"startDate"`
	EndDate         string         `json:"endDate"`
	PreviousEndDate string         `json:"previousEndDate,omitempty"`
	Codes           map[string]any `json:"codes,omitempty"`
}

// NewParams returns a bag for the given period.
func NewParams(startDate, endDate string) Params {
	return Params{StartDate: startDate, EndDate: endDate}
}

// With returns a copy of p with one named code set.
func (p Params) With(name string, value any) Params {
	codes := make(map[string]any, len(p.Codes)+1)
	for k, v := range p.Codes {
		codes[k] = v
	}
	codes[name] = value
	p.Codes = codes
	return p
}

// Validate checks the required dates.
func (p Params) Validate() error {
	start, err := time.Parse(DateLayout, p.StartDate)
	if err != nil {
		return fmt.Errorf("%w: startDate %q must be YYYY-MM-DD", ErrInvalidParams, p.StartDate)
	}
	end, err := time.Parse(DateLayout, p.EndDate)
	if err != nil {
		return fmt.Errorf("%w: endDate %q must be YYYY-MM-DD", ErrInvalidParams, p.EndDate)
	}
	if end.Before(start) {
		return fmt.Errorf("%w: endDate is before startDate", ErrInvalidParams)
	}
	if p.PreviousEndDate != "" {
		if _, err := time.Parse(DateLayout, p.PreviousEndDate); err != nil {
			return fmt.Errorf("%w: previousEndDate %q must be YYYY-MM-DD", ErrInvalidParams, p.PreviousEndDate)
		}
	}
	return nil
}

// Value resolves a named token: the three dates, then Codes, then Defaults.
func (p Params) Value(name string) (any, bool) {
	switch strings.ToLower(name) {
	case "startdate":
		return p.StartDate, true
	case "enddate":
		return p.EndDate, true
	case "previousenddate":
		if p.PreviousEndDate == "" {
			return nil, true
		}
		return p.PreviousEndDate, true
	}
	if v, ok := p.Codes[name]; ok {
		return v, true
	}
	if v, ok := Defaults[name]; ok {
		return v, true
	}
	return nil, false
}

// resolved returns every code with defaults applied.
func (p Params) resolved() map[string]any {
	out := make(map[string]any, len(Defaults)+len(p.Codes))
	for k, v := range Defaults {
		out[k] = v
	}
	for k, v := range p.Codes {
		out[k] = v
	}
	return out
}

// Hash is a deterministic encoding of the bag with defaults applied, used
// as the parameter component of cache keys. encoding/json sorts map keys.
func (p Params) Hash() string {
	b, _ := json.Marshal(struct {
		StartDate       string         `json:"startDate"`
		EndDate         string         `json:"endDate"`
		PreviousEndDate string         `json:"previousEndDate"`
		Codes           map[string]any `json:"codes"`
	}{p.StartDate, p.EndDate, p.PreviousEndDate, p.resolved()})
	return base64.StdEncoding.EncodeToString(b)
}

// PreviousQuarterEnd returns the day before startDate, the conventional
// previous period end for the quarterly cascade.
func PreviousQuarterEnd(startDate string) (string, error) {
	t, err := time.Parse(DateLayout, startDate)
	if err != nil {
		return "", fmt.Errorf("%w: startDate %q", ErrInvalidParams, startDate)
	}
	return t.AddDate(0, 0, -1).Format(DateLayout), nil
}

// ParseCode converts a request string into the most specific value type so
// numeric codes bind as numbers.
func ParseCode(name, raw string) any {
	if _, ok := Defaults[name].([]string); ok {
		var list []string
		for _, part := range strings.Split(raw, ",") {
			part = strings.Trim(strings.TrimSpace(part), "'")
			if part != "" {
				list = append(list, part)
			}
		}
		return list
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	return raw
}

// CodeNames lists the recognised business code names in a stable order.
func CodeNames() []string {
	names := make([]string, 0, len(Defaults))
	for k := range Defaults {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
