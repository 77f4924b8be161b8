package report

import "encoding/json"

// RowKind tags which payload a Row carries.
type RowKind string

const (
	KindCounts     RowKind = "counts"
	KindRiskFactor RowKind = "risk_factor"
)

// Label is a bilingual display string.
type Label struct {
	En string
	Kh string
}

// Counts is a sex-disaggregated count. Total is always Male + Female.
type Counts struct {
	Male   int64
	Female int64
	Total  int64
}

// RiskFactor counts answers to one risk question.
type RiskFactor struct {
	Ever      int64
	SixMonths int64
	Never     int64
}

// Row is one line of a report section. Exactly one of Counts or Risk is
// set, matching Kind; use the constructors.
type Row struct {
	LabelEn    string
	LabelKh    string
	Kind       RowKind
	Counts     *Counts
	Risk       *RiskFactor
	IsSubtotal bool
	Error      string
}

// CountsRow builds a counts row; the total is derived.
func CountsRow(l Label, male, female int64) Row {
	return Row{
		LabelEn: l.En,
		LabelKh: l.Kh,
		Kind:    KindCounts,
		Counts:  &Counts{Male: male, Female: female, Total: male + female},
	}
}

// RiskRow builds a risk factor row.
func RiskRow(l Label, ever, sixMonths, never int64) Row {
	return Row{
		LabelEn: l.En,
		LabelKh: l.Kh,
		Kind:    KindRiskFactor,
		Risk:    &RiskFactor{Ever: ever, SixMonths: sixMonths, Never: never},
	}
}

// ErrorRow is the zero-count placeholder of a section whose query failed.
func ErrorRow(msg string) Row {
	r := CountsRow(Label{En: "Error", Kh: "កំហុស"}, 0, 0)
	r.Error = msg
	return r
}

// SubtotalRow sums the counts rows above it. Error rows and other
// subtotals are not counted.
func SubtotalRow(l Label, rows []Row) Row {
	var male, female int64
	for _, r := range rows {
		if r.Kind != KindCounts || r.Counts == nil || r.Error != "" || r.IsSubtotal {
			continue
		}
		male += r.Counts.Male
		female += r.Counts.Female
	}
	sub := CountsRow(l, male, female)
	sub.IsSubtotal = true
	return sub
}

// add sums o's payload into r. Rows of different kinds are left alone.
func (r *Row) add(o Row) {
	switch {
	case r.Kind == KindCounts && o.Kind == KindCounts && r.Counts != nil && o.Counts != nil:
		r.Counts.Male += o.Counts.Male
		r.Counts.Female += o.Counts.Female
		r.Counts.Total = r.Counts.Male + r.Counts.Female
	case r.Kind == KindRiskFactor && o.Kind == KindRiskFactor && r.Risk != nil && o.Risk != nil:
		r.Risk.Ever += o.Risk.Ever
		r.Risk.SixMonths += o.Risk.SixMonths
		r.Risk.Never += o.Risk.Never
	}
}

// clone copies r including its payload.
func (r Row) clone() Row {
	if r.Counts != nil {
		c := *r.Counts
		r.Counts = &c
	}
	if r.Risk != nil {
		k := *r.Risk
		r.Risk = &k
	}
	return r
}

type rowJSON struct {
	LabelEn    string  `json:"labelEn"`
	LabelKh    string  `json:"labelKh"`
	Kind       RowKind `json:"kind"`
	Male       *int64  `json:"male,omitempty"`
	Female     *int64  `json:"female,omitempty"`
	Total      *int64  `json:"total,omitempty"`
	Ever       *int64  `json:"ever,omitempty"`
	SixMonths  *int64  `json:"sixMonths,omitempty"`
	Never      *int64  `json:"never,omitempty"`
	IsSubtotal bool    `json:"isSubtotal,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// MarshalJSON flattens the payload so counts rows read as
// {labelEn, male, female, total} and risk rows as {labelEn, ever, sixMonths, never}.
func (r Row) MarshalJSON() ([]byte, error) {
	out := rowJSON{
		LabelEn:    r.LabelEn,
		LabelKh:    r.LabelKh,
		Kind:       r.Kind,
		IsSubtotal: r.IsSubtotal,
		Error:      r.Error,
	}
	if c := r.Counts; c != nil {
		out.Male, out.Female, out.Total = &c.Male, &c.Female, &c.Total
	}
	if k := r.Risk; k != nil {
		out.Ever, out.SixMonths, out.Never = &k.Ever, &k.SixMonths, &k.Never
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the flattened form back.
func (r *Row) UnmarshalJSON(b []byte) error {
	var in rowJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*r = Row{
		LabelEn:    in.LabelEn,
		LabelKh:    in.LabelKh,
		Kind:       in.Kind,
		IsSubtotal: in.IsSubtotal,
		Error:      in.Error,
	}
	deref := func(p *int64) int64 {
		if p == nil {
			return 0
		}
		return *p
	}
	switch in.Kind {
	case KindRiskFactor:
		r.Risk = &RiskFactor{Ever: deref(in.Ever), SixMonths: deref(in.SixMonths), Never: deref(in.Never)}
	default:
		r.Kind = KindCounts
		male, female := deref(in.Male), deref(in.Female)
		r.Counts = &Counts{Male: male, Female: female, Total: male + female}
	}
	return nil
}
