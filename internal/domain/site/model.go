package site

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/dara-tech/preartweb/internal/domain/query"
	"github.com/dara-tech/preartweb/internal/platform/db"
)

var (
	ErrSiteNotFound    = errors.New("site not found")
	ErrInvalidSiteCode = errors.New("invalid site code")
)

// AllSites selects every registered site in report requests.
const AllSites = "all"

// Codes are alphanumeric only: "_" separates the parts of a cache key.
var codePattern = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

// Site is one clinic and the database holding its patient records.
type Site struct {
	Code     string `json:"code" yaml:"code"`
	Name     string `json:"name" yaml:"name"`
	Province string `json:"province,omitempty" yaml:"province"`
	Type     string `json:"type,omitempty" yaml:"type"`
	Driver   string `json:"-" yaml:"driver"`
	Database string `json:"-" yaml:"database"`
	DSN      string `json:"-" yaml:"dsn"`
}

// ValidateCode rejects codes that cannot be used as a cache key component
// or database name suffix.
func ValidateCode(code string) error {
	if !codePattern.MatchString(code) {
		return fmt.Errorf("%w: %q", ErrInvalidSiteCode, code)
	}
	return nil
}

// DatabaseName is the configured database or the conventional preart_<code>.
func (s Site) DatabaseName() string {
	if s.Database != "" {
		return s.Database
	}
	return "preart_" + s.Code
}

// Placeholder is the bind syntax of the site's driver.
func (s Site) Placeholder() query.Placeholder {
	name, err := db.DriverName(s.Driver)
	if err != nil {
		return query.Question
	}
	return query.PlaceholderFor(name)
}
