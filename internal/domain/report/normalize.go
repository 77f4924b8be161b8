package report

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dara-tech/preartweb/internal/domain/query"
)

// Normalizer turns the result sets of a definition's scripts, in script
// order, into display rows. Normalizers are pure and never fail: missing
// sets, rows or columns read as zero.
type Normalizer func(sets [][]query.Record) []Row

// TotalLabel labels subtotal rows.
var TotalLabel = Label{En: "Total", Kh: "សរុប"}

func firstRecord(sets [][]query.Record, i int) query.Record {
	if i < len(sets) && len(sets[i]) > 0 {
		return sets[i][0]
	}
	return nil
}

// field reads the first present column of names from rec.
func field(rec query.Record, names ...string) (int64, bool) {
	for _, n := range names {
		if v, ok := rec[n]; ok {
			return query.Int(v), true
		}
	}
	return 0, false
}

func count(rec query.Record, names ...string) int64 {
	n, _ := field(rec, names...)
	return n
}

var (
	maleTotal   = []string{"M_total", "m_total", "Male", "male"}
	femaleTotal = []string{"F_total", "f_total", "Female", "female"}
)

// SingleTotal reads one row of male and female totals.
func SingleTotal(l Label) Normalizer {
	return func(sets [][]query.Record) []Row {
		rec := firstRecord(sets, 0)
		return []Row{CountsRow(l, count(rec, maleTotal...), count(rec, femaleTotal...))}
	}
}

// TwoBucketByAge reads one total row from each of two scripts, one per
// age bucket, and appends their subtotal.
func TwoBucketByAge(first, second Label) Normalizer {
	return func(sets [][]query.Record) []Row {
		a, b := firstRecord(sets, 0), firstRecord(sets, 1)
		rows := []Row{
			CountsRow(first, count(a, maleTotal...), count(a, femaleTotal...)),
			CountsRow(second, count(b, maleTotal...), count(b, femaleTotal...)),
		}
		return append(rows, SubtotalRow(TotalLabel, rows))
	}
}

var triStates = []struct {
	key   string
	label Label
}{
	{"po", Label{En: "Positive", Kh: "វិជ្ជមាន"}},
	{"ne", Label{En: "Negative", Kh: "អវិជ្ជមាន"}},
	{"w", Label{En: "Waiting for result", Kh: "រង់ចាំលទ្ធផល"}},
}

// TriState reads the columns {m,f}_{po,ne,w}_<suffix> of one row into
// positive, negative and waiting rows plus their subtotal.
func TriState(suffix string) Normalizer {
	return func(sets [][]query.Record) []Row {
		rec := firstRecord(sets, 0)
		rows := make([]Row, 0, len(triStates)+1)
		for _, st := range triStates {
			male := count(rec, fmt.Sprintf("m_%s_%s", st.key, suffix))
			female := count(rec, fmt.Sprintf("f_%s_%s", st.key, suffix))
			rows = append(rows, CountsRow(st.label, male, female))
		}
		return append(rows, SubtotalRow(TotalLabel, rows))
	}
}

// StatusLabels are the infant outcome codes in display order.
var StatusLabels = []struct {
	Code  string
	Label Label
}{
	{"1", Label{En: "Died", Kh: "ស្លាប់"}},
	{"0", Label{En: "Lost", Kh: "បាត់បង់ការតាមដាន"}},
	{"3", Label{En: "Transferred Out", Kh: "បញ្ជូនចេញ"}},
	{"2", Label{En: "HIV(-) Discharged", Kh: "អវិជ្ជមាន ចេញពីកម្មវិធី"}},
	{"4", Label{En: "HIV(+) receiving ART", Kh: "វិជ្ជមាន កំពុងព្យាបាល ART"}},
}

// statusCode canonicalizes a status value so 1, "1" and 1.0 agree.
func statusCode(v any) string {
	s := strings.TrimSpace(query.Text(v))
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return strconv.FormatInt(int64(n), 10)
	}
	return s
}

func sexValue(rec query.Record) any {
	if v, ok := rec["Sex"]; ok {
		return v
	}
	return rec["sex"]
}

// StatusBreakdown reads rows of (Status, Sex, count). Sex is read with
// query.ParseSex; rows whose sex is not recognised are left out of the
// counts since Total must equal male plus female. Known statuses always appear in fixed order, unknown codes
// follow in code order, and a total closes the section.
func StatusBreakdown() Normalizer {
	return func(sets [][]query.Record) []Row {
		type mf struct{ male, female int64 }
		tally := make(map[string]*mf)
		var unknown []string
		known := make(map[string]bool, len(StatusLabels))
		for _, s := range StatusLabels {
			known[s.Code] = true
		}

		var records []query.Record
		if len(sets) > 0 {
			records = sets[0]
		}
		for _, rec := range records {
			code := statusCode(rec["Status"])
			if code == "" {
				code = statusCode(rec["status"])
			}
			t, ok := tally[code]
			if !ok {
				t = &mf{}
				tally[code] = t
				if !known[code] {
					unknown = append(unknown, code)
				}
			}
			n := count(rec, "count", "Count", "COUNT", "total", "TOTAL")
			switch query.ParseSex(sexValue(rec)) {
			case query.SexMale:
				t.male += n
			case query.SexFemale:
				t.female += n
			}
		}

		rows := make([]Row, 0, len(StatusLabels)+len(unknown)+1)
		for _, s := range StatusLabels {
			var male, female int64
			if t, ok := tally[s.Code]; ok {
				male, female = t.male, t.female
			}
			rows = append(rows, CountsRow(s.Label, male, female))
		}
		sort.Slice(unknown, func(i, j int) bool {
			a, errA := strconv.Atoi(unknown[i])
			b, errB := strconv.Atoi(unknown[j])
			if errA == nil && errB == nil {
				return a < b
			}
			return unknown[i] < unknown[j]
		})
		for _, code := range unknown {
			t := tally[code]
			l := Label{En: "Status " + code, Kh: "ស្ថានភាព " + code}
			rows = append(rows, CountsRow(l, t.male, t.female))
		}
		return append(rows, SubtotalRow(TotalLabel, rows))
	}
}

// RiskFactorLabels are the PNTT risk questions in column order.
var RiskFactorLabels = []Label{
	{En: "Multiple sexual partners", Kh: "មានដៃគូរួមភេទច្រើន"},
	{En: "Partner living with HIV", Kh: "ដៃគូផ្ទុកមេរោគអេដស៍"},
	{En: "Injecting drug use", Kh: "ចាក់គ្រឿងញៀន"},
	{En: "Sex work", Kh: "ធ្វើការផ្លូវភេទ"},
	{En: "Partner buys sex", Kh: "ដៃគូទិញសេវាផ្លូវភេទ"},
	{En: "Partner has sex with men", Kh: "ដៃគូរួមភេទជាមួយបុរស"},
	{En: "History of STI", Kh: "ធ្លាប់មានជំងឺកាមរោគ"},
	{En: "Blood transfusion", Kh: "ធ្លាប់ទទួលការបញ្ចូលឈាម"},
	{En: "Tattoo or shared needles", Kh: "សាក់ ឬប្រើម្ជុលរួមគ្នា"},
	{En: "Partner is a migrant worker", Kh: "ដៃគូជាពលករចំណាកស្រុក"},
}

// riskColumns names the ever, six-month and never columns of factor i:
// R, R1, R2 for the first and iR, iR1, iR2 after it.
func riskColumns(i int) (ever, six, never string) {
	prefix := ""
	if i > 0 {
		prefix = strconv.Itoa(i)
	}
	return prefix + "R", prefix + "R1", prefix + "R2"
}

// RiskFactorMatrix spreads one wide row of thirty columns into a row per
// risk factor.
func RiskFactorMatrix() Normalizer {
	return func(sets [][]query.Record) []Row {
		rec := firstRecord(sets, 0)
		rows := make([]Row, len(RiskFactorLabels))
		for i, l := range RiskFactorLabels {
			ever, six, never := riskColumns(i)
			rows[i] = RiskRow(l, count(rec, ever), count(rec, six), count(rec, never))
		}
		return rows
	}
}

// DefaultPNTT reads one row of Male and Female counts. A script that only
// reports Tsex counts women, so Tsex is taken as the female count when
// neither sex column is present.
func DefaultPNTT(l Label) Normalizer {
	return func(sets [][]query.Record) []Row {
		rec := firstRecord(sets, 0)
		male, hasMale := field(rec, "Male", "male")
		female, hasFemale := field(rec, "Female", "female")
		if !hasMale && !hasFemale {
			female = count(rec, "Tsex", "tsex")
		}
		return []Row{CountsRow(l, male, female)}
	}
}
