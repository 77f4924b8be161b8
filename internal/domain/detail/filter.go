package detail

import (
	"net/url"
	"strings"

	"github.com/dara-tech/preartweb/internal/domain/query"
)

// Age groups accepted by Filter.AgeGroup.
const (
	AgeChild = "child"
	AgeAdult = "adult"
)

// adultAge is the first age counted as adult.
const adultAge = 15

// Filter narrows detail rows in memory. Empty fields match everything.
type Filter struct {
	Search   string
	Gender   string
	AgeGroup string
}

func FilterFromValues(v url.Values) Filter {
	return Filter{
		Search:   strings.TrimSpace(v.Get("search")),
		Gender:   strings.TrimSpace(v.Get("gender")),
		AgeGroup: strings.ToLower(strings.TrimSpace(v.Get("ageGroup"))),
	}
}

// searchFields are the columns free-text search looks at.
var searchFields = []string{
	"clinicid", "ClinicID", "clinic_id",
	"artnumber", "ARTnum", "art_number",
	"patient_name", "PatientName",
	"Sex", "sex", "typepatients",
}

var genderFields = []string{"Sex", "sex", "gender", "Gender"}

var ageFields = []string{"age", "Age"}

// Apply filters records by search, then gender, then age group.
func Apply(records []query.Record, f Filter) []query.Record {
	out := make([]query.Record, 0, len(records))
	search := strings.ToLower(f.Search)
	gender := query.ParseSex(f.Gender)
	for _, rec := range records {
		if search != "" && !matchesSearch(rec, search) {
			continue
		}
		if gender != query.SexUnknown && recordGender(rec) != gender {
			continue
		}
		if f.AgeGroup != "" && recordAgeGroup(rec) != f.AgeGroup {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func matchesSearch(rec query.Record, term string) bool {
	for _, name := range searchFields {
		v, ok := rec[name]
		if !ok || v == nil {
			continue
		}
		if strings.Contains(strings.ToLower(query.Text(v)), term) {
			return true
		}
	}
	return false
}

func recordGender(rec query.Record) query.Sex {
	for _, name := range genderFields {
		if v, ok := rec[name]; ok && v != nil {
			return query.ParseSex(v)
		}
	}
	return query.SexUnknown
}

// recordAgeGroup prefers the typepatients column and falls back to the
// age in years.
func recordAgeGroup(rec query.Record) string {
	if v, ok := rec["typepatients"]; ok && v != nil {
		t := strings.ToLower(query.Text(v))
		switch {
		case strings.Contains(t, AgeChild):
			return AgeChild
		case strings.Contains(t, AgeAdult):
			return AgeAdult
		}
	}
	for _, name := range ageFields {
		v, ok := rec[name]
		if !ok || v == nil || query.Text(v) == "" {
			continue
		}
		if query.Int(v) < adultAge {
			return AgeChild
		}
		return AgeAdult
	}
	return ""
}
