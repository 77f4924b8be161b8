package detail

import (
	"strings"

	"github.com/dara-tech/preartweb/internal/domain/query"
)

// Alias copies From into To when To is missing or blank.
type Alias struct {
	To   string
	From string
}

var vlAliases = []Alias{
	{To: "LastVLDate", From: "DateResult"},
	{To: "LastVLResult", From: "Result"},
	{To: "LastVLDate", From: "DateCollect"},
}

var commonAliases = []Alias{
	{To: "ClinicID", From: "clinicid"},
	{To: "ARTnum", From: "art_number"},
	{To: "ARTnum", From: "artnumber"},
}

// aliasesFor returns the aliases applied to a detail template's rows.
func aliasesFor(id string) []Alias {
	if strings.Contains(strings.ToLower(id), "vl") {
		return append(append([]Alias{}, commonAliases...), vlAliases...)
	}
	return commonAliases
}

// ApplyAliases fills each alias target from its source in place. A target
// that already holds a value is never overwritten.
func ApplyAliases(records []query.Record, aliases []Alias) {
	for _, rec := range records {
		for _, a := range aliases {
			src, ok := rec[a.From]
			if !ok || blank(src) {
				continue
			}
			if cur, ok := rec[a.To]; ok && !blank(cur) {
				continue
			}
			rec[a.To] = src
		}
	}
}

func blank(v any) bool {
	return v == nil || strings.TrimSpace(query.Text(v)) == ""
}
