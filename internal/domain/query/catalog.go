package query

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ErrTemplateNotFound is returned when an id has no entry in the catalog.
var ErrTemplateNotFound = errors.New("indicator not found")

// Kind distinguishes aggregate count queries from patient-level detail
// queries and from the scripts behind fixed report sections.
type Kind string

const (
	KindAggregate Kind = "aggregate"
	KindDetail    Kind = "detail"
	KindSection   Kind = "section"
)

// sectionDirs hold scripts that only report definitions reference.
var sectionDirs = map[string]bool{"infant": true, "pntt": true}

// Cost is the declared expense of running a template. Slow templates are
// scheduled after fast ones and run under a tighter concurrency limit.
type Cost string

const (
	CostFast Cost = "fast"
	CostSlow Cost = "slow"
)

// Template is one parameterized SQL file from the catalog.
type Template struct {
	ID      string `json:"id"`
	Path    string `json:"path"`
	Kind    Kind   `json:"kind"`
	Cost    Cost   `json:"cost"`
	LabelEn string `json:"labelEn,omitempty"`
	LabelKh string `json:"labelKh,omitempty"`
	SQL     string `json:"-"`
}

// Catalog maps template ids to their SQL. It is immutable after LoadCatalog
// returns and may be shared between goroutines.
type Catalog struct {
	templates map[string]Template
	dir       string
}

// NewCatalog builds a catalog from in-memory templates. Templates without a
// Kind or Cost get the same defaults LoadCatalog applies.
func NewCatalog(templates ...Template) *Catalog {
	c := &Catalog{templates: make(map[string]Template, len(templates))}
	for _, t := range templates {
		if t.Kind == "" {
			t.Kind = KindAggregate
		}
		if t.Cost == "" {
			t.Cost = legacyCost(t.ID)
		}
		c.templates[t.ID] = t
	}
	return c
}

// LoadCatalog reads every .sql file below dir. The file name without its
// extension becomes the template id. A missing directory yields an empty
// catalog rather than an error.
func LoadCatalog(dir string) (*Catalog, error) {
	c := &Catalog{templates: make(map[string]Template), dir: dir}

	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return c, nil
	}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".sql") {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read template %s: %w", path, err)
		}

		id := strings.TrimSuffix(d.Name(), ".sql")
		if prev, ok := c.templates[id]; ok {
			return fmt.Errorf("duplicate template id %q in %s and %s", id, prev.Path, path)
		}

		t := Template{ID: id, Path: path, SQL: string(content), Kind: KindAggregate}
		parent := filepath.Base(filepath.Dir(path))
		switch {
		case parent == "details" || strings.HasSuffix(id, "_details"):
			t.Kind = KindDetail
		case sectionDirs[parent]:
			t.Kind = KindSection
		}
		applyHeader(&t)
		c.templates[id] = t
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", dir, err)
	}

	return c, nil
}

// applyHeader reads leading "-- key: value" comment lines.
func applyHeader(t *Template) {
	scanner := bufio.NewScanner(strings.NewReader(t.SQL))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "--") {
			break
		}
		key, value, ok := strings.Cut(strings.TrimSpace(strings.TrimPrefix(line, "--")), ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "label_en":
			t.LabelEn = value
		case "label_kh":
			t.LabelKh = value
		case "cost":
			if Cost(value) == CostSlow {
				t.Cost = CostSlow
			} else {
				t.Cost = CostFast
			}
		case "kind":
			switch Kind(value) {
			case KindDetail, KindSection:
				t.Kind = Kind(value)
			default:
				t.Kind = KindAggregate
			}
		}
	}
	if t.Cost == "" {
		t.Cost = legacyCost(t.ID)
	}
}

// legacyCost classifies templates that do not declare a cost. Viral load
// queries scan the lab result tables and are the expensive ones.
func legacyCost(id string) Cost {
	lower := strings.ToLower(id)
	if strings.Contains(lower, "vl") {
		return CostSlow
	}
	for _, prefix := range []string{"10.6", "10.7", "10.8"} {
		if strings.HasPrefix(lower, prefix) {
			return CostSlow
		}
	}
	return CostFast
}

// Dir returns the directory the catalog was loaded from.
func (c *Catalog) Dir() string {
	return c.dir
}

// Len returns the number of templates.
func (c *Catalog) Len() int {
	return len(c.templates)
}

// Get looks up a template by id.
func (c *Catalog) Get(id string) (Template, error) {
	t, ok := c.templates[id]
	if !ok {
		return Template{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	return t, nil
}

// Has reports whether id is present.
func (c *Catalog) Has(id string) bool {
	_, ok := c.templates[id]
	return ok
}

// IDs returns the ids of the given kind in report order. An empty kind
// returns every id.
func (c *Catalog) IDs(kind Kind) []string {
	ids := make([]string, 0, len(c.templates))
	for id, t := range c.templates {
		if kind == "" || t.Kind == kind {
			ids = append(ids, id)
		}
	}
	SortIDs(ids)
	return ids
}

// Templates returns the templates of the given kind in report order.
func (c *Catalog) Templates(kind Kind) []Template {
	ids := c.IDs(kind)
	out := make([]Template, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.templates[id])
	}
	return out
}

var (
	numericPrefix = regexp.MustCompile(`^\d+(\.\d+)?`)
	sectionPrefix = regexp.MustCompile(`^[\d.]+`)
)

// SortIDs orders ids by their numeric filename prefix ("10.2" as 10.2),
// placing ids without a prefix last and breaking ties by string comparison.
func SortIDs(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool {
		a, aok := prefixValue(ids[i])
		b, bok := prefixValue(ids[j])
		switch {
		case aok && bok && a != b:
			return a < b
		case aok != bok:
			return aok
		}
		return ids[i] < ids[j]
	})
}

func prefixValue(id string) (float64, bool) {
	m := numericPrefix.FindString(id)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Humanize turns "10.2_mmd_active" into "Mmd Active".
func Humanize(id string) string {
	rest := strings.TrimLeft(sectionPrefix.ReplaceAllString(id, ""), "._")
	if rest == "" {
		return id
	}
	words := strings.FieldsFunc(rest, func(r rune) bool { return r == '_' || r == '-' || r == '.' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
