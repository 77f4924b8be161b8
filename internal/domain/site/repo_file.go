package site

import (
	"context"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

type sitesFile struct {
	Sites []Site `yaml:"sites"`
}

// FileRegistry serves a fixed site list loaded from YAML.
type FileRegistry struct {
	sites map[string]Site
	order []string
}

// LoadFileRegistry parses a sites.yaml file.
func LoadFileRegistry(path string) (*FileRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sites file: %w", err)
	}
	var f sitesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse sites file %s: %w", path, err)
	}
	return NewFileRegistry(f.Sites...)
}

// NewFileRegistry builds a registry from sites already in memory.
func NewFileRegistry(sites ...Site) (*FileRegistry, error) {
	r := &FileRegistry{sites: make(map[string]Site, len(sites))}
	for _, s := range sites {
		if err := ValidateCode(s.Code); err != nil {
			return nil, err
		}
		if _, dup := r.sites[s.Code]; dup {
			return nil, fmt.Errorf("duplicate site code %q", s.Code)
		}
		r.sites[s.Code] = s
		r.order = append(r.order, s.Code)
	}
	sort.Strings(r.order)
	return r, nil
}

func (r *FileRegistry) GetSite(_ context.Context, code string) (*Site, error) {
	s, ok := r.sites[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSiteNotFound, code)
	}
	return &s, nil
}

func (r *FileRegistry) ListSites(_ context.Context) ([]Site, error) {
	out := make([]Site, 0, len(r.order))
	for _, code := range r.order {
		out = append(out, r.sites[code])
	}
	return out, nil
}
