package main

import (
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/regionscan/internal/model"
)

// regionsFile is the YAML layout of a region definition file:
//
//	document_type: rent_roll
//	regions:
//	  - name: base_rent
//	    page: 0
//	    x: 120
//	    y: 640
//	    width: 300
//	    height: 40
//	    field_type: currency
type regionsFile struct {
	DocumentType model.DocumentType `yaml:"document_type,omitempty"`
	Regions      []regionEntry      `yaml:"regions"`
}

type regionEntry struct {
	ID        string `yaml:"id,omitempty"`
	Name      string `yaml:"name"`
	Page      int    `yaml:"page"`
	X         int    `yaml:"x"`
	Y         int    `yaml:"y"`
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
	FieldType string `yaml:"field_type,omitempty"`
}

// loadRegions reads a region definition file. Geometry is checked later by
// the pipeline so one bad region does not reject the whole file.
func loadRegions(path string) ([]model.Region, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read regions file: %w", err)
	}
	return parseRegions(data)
}

func parseRegions(data []byte) ([]model.Region, error) {
	var f regionsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: failed to parse regions file: %v", model.ErrConfig, err)
	}
	if len(f.Regions) == 0 {
		return nil, fmt.Errorf("%w: regions file defines no regions", model.ErrConfig)
	}

	regions := make([]model.Region, 0, len(f.Regions))
	for i, e := range f.Regions {
		if e.Name == "" {
			return nil, fmt.Errorf("%w: region %d has no name", model.ErrConfig, i)
		}
		ft, err := model.ParseFieldType(e.FieldType)
		if err != nil {
			return nil, fmt.Errorf("region %q: %w", e.Name, err)
		}
		r := model.NewRegion(e.Name, e.Page, e.X, e.Y, e.Width, e.Height, ft)
		if e.ID != "" {
			if _, err := uuid.Parse(e.ID); err != nil {
				return nil, fmt.Errorf("%w: region %q has invalid id %q", model.ErrConfig, e.Name, e.ID)
			}
			r.ID = e.ID
		}
		regions = append(regions, r)
	}
	return regions, nil
}

// writeRegions emits regions in the region definition format so suggestions
// can be edited and fed back to extract
func writeRegions(w io.Writer, docType model.DocumentType, regions []model.Region) error {
	f := regionsFile{DocumentType: docType, Regions: make([]regionEntry, len(regions))}
	for i, r := range regions {
		f.Regions[i] = regionEntry{
			Name:      r.Name,
			Page:      r.Page,
			X:         r.X,
			Y:         r.Y,
			Width:     r.Width,
			Height:    r.Height,
			FieldType: string(r.FieldType),
		}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("failed to write regions: %w", err)
	}
	return enc.Close()
}
