package scraper

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// SiteConfig declares an extra site adapter in YAML:
//
//	sites:
//	  - name: acv
//	    host: acvauctions.com
//	    fields:
//	      vin: [".vehicle-vin", "[data-test=vin]"]
//	      title: ["h1.listing-title"]
type SiteConfig struct {
	Name   string              `yaml:"name"`
	Host   string              `yaml:"host"`
	Fields map[string][]string `yaml:"fields"`
}

// AdaptersFile is the top-level YAML document
type AdaptersFile struct {
	Sites []SiteConfig `yaml:"sites"`
}

// fieldOrder keeps rule order stable regardless of map iteration
var fieldOrder = []string{FieldVIN, FieldTitle, FieldCurrentBid, FieldLotNumber}

// ParseAdapters decodes a YAML adapters document
func ParseAdapters(data []byte) ([]SiteConfig, error) {
	var file AdaptersFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse adapters: %w", err)
	}
	for i := range file.Sites {
		file.Sites[i].Host = strings.ToLower(strings.TrimSpace(file.Sites[i].Host))
		site := file.Sites[i]
		if site.Host == "" {
			return nil, fmt.Errorf("site %d (%q): host is required", i, site.Name)
		}
		for field := range site.Fields {
			if !knownField(field) {
				return nil, fmt.Errorf("site %q: unknown field %q", site.Name, field)
			}
		}
	}
	return file.Sites, nil
}

// LoadAdapters reads a YAML adapters file and appends its sites to the registry
// after whatever is already registered.
func LoadAdapters(path string, registry *Registry) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read adapters file: %w", err)
	}
	sites, err := ParseAdapters(data)
	if err != nil {
		return 0, err
	}
	for _, site := range sites {
		name := site.Name
		if name == "" {
			name = site.Host
		}
		registry.Register(name, HostContains(site.Host), site.Adapter())
	}
	return len(sites), nil
}

// Adapter converts the declaration into a SelectorAdapter
func (s SiteConfig) Adapter() SelectorAdapter {
	var adapter SelectorAdapter
	for _, field := range fieldOrder {
		selectors, ok := s.Fields[field]
		if !ok || len(selectors) == 0 {
			continue
		}
		adapter.Rules = append(adapter.Rules, FieldRule{Field: field, Selectors: selectors})
	}
	return adapter
}

func knownField(field string) bool {
	for _, f := range fieldOrder {
		if f == field {
			return true
		}
	}
	return false
}
