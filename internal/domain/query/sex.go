package query

import (
	"strconv"
	"strings"
)

// Sex is a patient's recorded sex after normalisation.
type Sex string

const (
	SexUnknown Sex = ""
	SexMale    Sex = "male"
	SexFemale  Sex = "female"
)

// ParseSex maps the spellings clinic databases use onto a Sex. Numeric
// codes follow the registers: 1 is male and 0 is female. Anything else is
// SexUnknown.
func ParseSex(v any) Sex {
	s := strings.ToLower(strings.TrimSpace(Text(v)))
	switch s {
	case "male", "m", "1":
		return SexMale
	case "female", "f", "0":
		return SexFemale
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		switch n {
		case 1:
			return SexMale
		case 0:
			return SexFemale
		}
	}
	return SexUnknown
}
