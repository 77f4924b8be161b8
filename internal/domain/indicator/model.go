package indicator

import (
	"github.com/dara-tech/preartweb/internal/domain/query"
)

// Column names of an aggregate indicator row.
const (
	FieldIndicator    = "Indicator"
	FieldTotal        = "TOTAL"
	FieldMale0To14    = "Male_0_14"
	FieldFemale0To14  = "Female_0_14"
	FieldMaleOver14   = "Male_over_14"
	FieldFemaleOver14 = "Female_over_14"
)

// Data is the disaggregated count of one indicator.
type Data struct {
	Indicator    string `json:"Indicator"`
	Total        int64  `json:"TOTAL"`
	Male0To14    int64  `json:"Male_0_14"`
	Female0To14  int64  `json:"Female_0_14"`
	MaleOver14   int64  `json:"Male_over_14"`
	FemaleOver14 int64  `json:"Female_over_14"`
	Error        string `json:"error,omitempty"`
}

// dataFromRecords reads the first row of an aggregate result. An empty
// result is a valid zero count.
func dataFromRecords(records []query.Record, label string) Data {
	d := Data{Indicator: label}
	if len(records) == 0 {
		return d
	}
	r := records[0]
	if name := query.Text(r[FieldIndicator]); name != "" {
		d.Indicator = name
	}
	d.Total = query.Int(r[FieldTotal])
	d.Male0To14 = query.Int(r[FieldMale0To14])
	d.Female0To14 = query.Int(r[FieldFemale0To14])
	d.MaleOver14 = query.Int(r[FieldMaleOver14])
	d.FemaleOver14 = query.Int(r[FieldFemaleOver14])
	return d
}

// Add sums the counts of o into d.
func (d *Data) Add(o Data) {
	d.Total += o.Total
	d.Male0To14 += o.Male0To14
	d.Female0To14 += o.Female0To14
	d.MaleOver14 += o.MaleOver14
	d.FemaleOver14 += o.FemaleOver14
}

// Result is the outcome of one (site, indicator) execution.
type Result struct {
	IndicatorID     string `json:"indicatorId"`
	Success         bool   `json:"success"`
	Data            Data   `json:"data"`
	ExecutionTimeMs int64  `json:"executionTimeMs"`
	Cached          bool   `json:"cached"`
	Error           string `json:"error,omitempty"`
}

// failed is the placeholder kept in a batch for an indicator that errored.
func failed(id, label string, err error) Result {
	return Result{
		IndicatorID: id,
		Success:     false,
		Data:        Data{Indicator: label, Error: err.Error()},
		Error:       err.Error(),
	}
}

// SiteReport is every requested indicator for one site.
type SiteReport struct {
	SiteCode               string   `json:"siteCode"`
	SiteName               string   `json:"siteName"`
	Results                []Result `json:"results"`
	SuccessCount           int      `json:"successCount"`
	ErrorCount             int      `json:"errorCount"`
	TotalExecutionTimeMs   int64    `json:"totalExecutionTimeMs"`
	AverageExecutionTimeMs float64  `json:"averageExecutionTimeMs"`
	Error                  string   `json:"error,omitempty"`
}

func (r *SiteReport) tally() {
	r.SuccessCount, r.ErrorCount, r.TotalExecutionTimeMs = 0, 0, 0
	for _, res := range r.Results {
		if res.Success {
			r.SuccessCount++
		} else {
			r.ErrorCount++
		}
		r.TotalExecutionTimeMs += res.ExecutionTimeMs
	}
	r.AverageExecutionTimeMs = 0
	if len(r.Results) > 0 {
		r.AverageExecutionTimeMs = float64(r.TotalExecutionTimeMs) / float64(len(r.Results))
	}
}

// Merged is one indicator summed across sites.
type Merged struct {
	IndicatorID string `json:"indicatorId"`
	Data        Data   `json:"data"`
	SiteCount   int    `json:"siteCount"`
	ErrorCount  int    `json:"errorCount"`
}

// MultiSiteReport is the per-site breakdown plus the merged totals. Sites
// keep the order of the requested site list.
type MultiSiteReport struct {
	Sites        []SiteReport `json:"sites"`
	Merged       []Merged     `json:"merged"`
	SiteCount    int          `json:"siteCount"`
	SuccessCount int          `json:"successCount"`
	ErrorCount   int          `json:"errorCount"`
	Period       query.Params `json:"period"`
}
