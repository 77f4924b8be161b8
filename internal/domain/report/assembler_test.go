package report

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/dara-tech/preartweb/internal/domain/query"
	"github.com/dara-tech/preartweb/internal/domain/site"
	"github.com/dara-tech/preartweb/internal/domain/site/sitetest"
	"github.com/dara-tech/preartweb/internal/platform/events"
	"github.com/dara-tech/preartweb/internal/platform/workers"
)

var testPeriod = query.NewParams("2025-01-01", "2025-03-31")

var testDefs = []Definition{
	{
		ID: "registered", Number: 1, LabelEn: "Registered",
		Scripts:   []string{"reg_le2m", "reg_gt2m"},
		Normalize: TwoBucketByAge(Label{En: "≤ 2m"}, Label{En: "> 2m"}),
	},
	{
		ID: "outcomes", Number: 2, LabelEn: "Outcomes",
		Scripts:   []string{"outcomes"},
		Normalize: StatusBreakdown(),
	},
	{
		ID: "missing", Number: 3, LabelEn: "Missing",
		Scripts:   []string{"not_in_catalog"},
		Normalize: SingleTotal(Label{En: "x"}),
	},
}

var testTemplates = []query.Template{
	{ID: "reg_le2m", SQL: "SELECT * FROM hei_le2m WHERE d >= @StartDate"},
	{ID: "reg_gt2m", SQL: "SELECT * FROM hei_gt2m"},
	{ID: "outcomes", SQL: "SELECT * FROM hei_outcomes"},
}

func newTestAssembler(res *sitetest.Resolver) *Assembler {
	return NewAssembler(query.NewCatalog(testTemplates...), res, workers.DefaultLimits(), events.NopPublisher{}, zerolog.Nop())
}

func TestBuild_SectionsInOrderWithErrorRow(t *testing.T) {
	res := sitetest.NewResolver(site.Site{Code: "0201", Name: "Maung Russey"}).
		Respond("hei_le2m", query.Record{"M_total": 1, "F_total": 2}).
		Respond("hei_gt2m", query.Record{"M_total": 3, "F_total": 4}).
		Respond("hei_outcomes", query.Record{"Status": 1, "Sex": 1, "count": 2})
	asm := newTestAssembler(res)

	sections, err := asm.Build(context.Background(), "infant", "0201", testDefs, testPeriod)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if len(sections) != 3 {
		t.Fatalf("expected 3 sections, got %d", len(sections))
	}
	for i, s := range sections {
		if s.Number != i+1 {
			t.Errorf("section %d has number %d", i, s.Number)
		}
	}
	if got := sections[0].Rows[2].Counts.Total; got != 10 {
		t.Errorf("expected registered subtotal 10, got %d", got)
	}
	if len(sections[1].Rows) != 6 || sections[1].Rows[0].Counts.Male != 2 {
		t.Errorf("unexpected outcomes %+v", sections[1].Rows)
	}

	missing := sections[2]
	if missing.Error == "" || len(missing.Rows) != 1 || missing.Rows[0].LabelEn != "Error" {
		t.Errorf("expected single error row, got %+v", missing)
	}
	if res.Calls() != 3 {
		t.Errorf("expected 3 queries, got %d", res.Calls())
	}
}

func TestBuild_QueryErrorBecomesErrorRow(t *testing.T) {
	res := sitetest.NewResolver(site.Site{Code: "0201"}).
		Fail("", "hei_gt2m", errors.New("table missing"))
	asm := newTestAssembler(res)

	sections, err := asm.Build(context.Background(), "infant", "0201", testDefs[:1], testPeriod)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if sections[0].Rows[0].Error == "" || sections[0].Rows[0].Counts.Total != 0 {
		t.Errorf("expected zeroed error row, got %+v", sections[0].Rows)
	}
}

func TestBuild_UnknownSite(t *testing.T) {
	asm := newTestAssembler(sitetest.NewResolver())
	_, err := asm.Build(context.Background(), "infant", "9999", testDefs, testPeriod)
	if !IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestBuildAllSites_MergesAndContainsFailures(t *testing.T) {
	res := sitetest.NewResolver(
		site.Site{Code: "0201", Name: "Maung Russey"},
		site.Site{Code: "0301", Name: "Kampong Cham"},
		site.Site{Code: "0401", Name: "Offline"},
	).
		RespondFor("0201", "hei_le2m", query.Record{"M_total": 1, "F_total": 2}).
		RespondFor("0301", "hei_le2m", query.Record{"M_total": 10, "F_total": 20}).
		Respond("hei_gt2m", query.Record{"M_total": 1, "F_total": 1}).
		Fail("0301", "hei_outcomes", errors.New("timeout")).
		RespondFor("0201", "hei_outcomes",
			query.Record{"Status": 4, "Sex": 0, "count": 5},
			query.Record{"Status": 8, "Sex": 1, "count": 1},
		).
		Unreachable("0401", errors.New("connection refused"))
	asm := newTestAssembler(res)

	out, err := asm.BuildAllSites(context.Background(), "infant", site.AllSites, testDefs[:2], testPeriod)
	if err != nil {
		t.Fatalf("BuildAllSites() error: %v", err)
	}
	if out.SiteCount != 3 || len(out.Sites) != 3 {
		t.Fatalf("expected 3 sites, got %+v", out.Sites)
	}

	reg := out.Sections[0].Rows
	if len(reg) != 3 {
		t.Fatalf("expected 3 registered rows, got %d", len(reg))
	}
	if reg[0].Counts.Total != 33 || reg[1].Counts.Total != 4 || reg[2].Counts.Total != 37 {
		t.Errorf("unexpected merged counts %+v %+v %+v", reg[0].Counts, reg[1].Counts, reg[2].Counts)
	}
	checkTotals(t, reg)

	outcomes := out.Sections[1].Rows
	if len(outcomes) != 7 {
		t.Fatalf("expected 5 statuses + unknown + total, got %d", len(outcomes))
	}
	if outcomes[5].LabelEn != "Status 8" || !outcomes[6].IsSubtotal {
		t.Errorf("expected unknown status before total, got %q then %q", outcomes[5].LabelEn, outcomes[6].LabelEn)
	}
	if outcomes[6].Counts.Total != 6 {
		t.Errorf("expected merged total 6, got %d", outcomes[6].Counts.Total)
	}

	byCode := map[string]SiteSummary{}
	for _, s := range out.Sites {
		byCode[s.SiteCode] = s
	}
	if byCode["0201"].ErrorCount != 0 || byCode["0301"].ErrorCount != 1 {
		t.Errorf("unexpected site errors %+v", out.Sites)
	}
	if off := byCode["0401"]; off.ErrorCount != 1 || off.Error == "" {
		t.Errorf("expected unreachable site counted once, got %+v", off)
	}
	if out.ErrorCount != 2 {
		t.Errorf("expected 2 errors overall, got %d", out.ErrorCount)
	}
}

func TestBuildAllSites_SectionFailingEverywhereKeepsError(t *testing.T) {
	res := sitetest.NewResolver(
		site.Site{Code: "0201", Name: "Maung Russey"},
		site.Site{Code: "0301", Name: "Kampong Cham"},
	).
		Respond("hei_le2m", query.Record{"M_total": 1, "F_total": 1}).
		Fail("", "hei_outcomes", errors.New("table tblaimain missing"))
	asm := newTestAssembler(res)

	out, err := asm.BuildAllSites(context.Background(), "infant", site.AllSites, testDefs[:2], testPeriod)
	if err != nil {
		t.Fatalf("BuildAllSites() error: %v", err)
	}

	outcomes := out.Sections[1]
	if outcomes.Error == "" {
		t.Fatal("expected merged section to carry the failure")
	}
	if len(outcomes.Rows) != 1 || outcomes.Rows[0].Error == "" {
		t.Fatalf("expected a single error row, got %+v", outcomes.Rows)
	}
	for _, code := range []string{"0201", "0301"} {
		if !strings.Contains(outcomes.Error, code) {
			t.Errorf("expected error to name site %s, got %q", code, outcomes.Error)
		}
	}
	if out.Sections[0].Error != "" || len(out.Sections[0].Rows) != 3 {
		t.Errorf("healthy section affected: %+v", out.Sections[0])
	}
	if out.ErrorCount != 2 {
		t.Errorf("expected 2 errors overall, got %d", out.ErrorCount)
	}
}

func TestZeroSections_KeepShape(t *testing.T) {
	sections := zeroSections(Infant)
	if len(sections) != len(Infant) {
		t.Fatalf("expected %d sections, got %d", len(Infant), len(sections))
	}
	if n := len(sections[5].Rows); n != 6 {
		t.Errorf("expected outcome section with 6 zero rows, got %d", n)
	}
	for _, s := range sections {
		for _, r := range s.Rows {
			if r.Counts != nil && r.Counts.Total != 0 {
				t.Errorf("section %s: expected zero counts", s.ID)
			}
		}
	}
}

func TestDefinitions_Ordered(t *testing.T) {
	for name, defs := range Reports {
		seen := map[string]bool{}
		for i, d := range defs {
			if d.Number != i+1 {
				t.Errorf("%s: definition %s has number %d at position %d", name, d.ID, d.Number, i)
			}
			if d.Normalize == nil || len(d.Scripts) == 0 {
				t.Errorf("%s: definition %s incomplete", name, d.ID)
			}
			for _, s := range d.Scripts {
				if seen[s] {
					t.Errorf("%s: script %s used twice", name, s)
				}
				seen[s] = true
			}
		}
	}
}

func workersForTest() workers.Limits { return workers.DefaultLimits() }

func nopLogger() zerolog.Logger { return zerolog.Nop() }
