// Package model defines the region, result and document types shared by every
// stage of the extraction pipeline.
package model

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// FieldType is an optional semantic hint describing what a region contains
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldCurrency FieldType = "currency"
	FieldDate     FieldType = "date"
	FieldAddress  FieldType = "address"
	FieldSqft     FieldType = "sqft"
	FieldPhone    FieldType = "phone"
	FieldEmail    FieldType = "email"
)

// FieldTypes lists every recognized field type
var FieldTypes = []FieldType{FieldText, FieldCurrency, FieldDate, FieldAddress, FieldSqft, FieldPhone, FieldEmail}

// ParseFieldType converts user input into a FieldType. Empty input yields FieldText.
func ParseFieldType(s string) (FieldType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return FieldText, nil
	}
	for _, ft := range FieldTypes {
		if string(ft) == s {
			return ft, nil
		}
	}
	return "", fmt.Errorf("%w: unknown field type %q", ErrConfig, s)
}

// Region is a named rectangle on one page, in the page's native raster space
type Region struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Page      int       `json:"page" yaml:"page"`
	X         int       `json:"x" yaml:"x"`
	Y         int       `json:"y" yaml:"y"`
	Width     int       `json:"width" yaml:"width"`
	Height    int       `json:"height" yaml:"height"`
	FieldType FieldType `json:"field_type,omitempty" yaml:"field_type,omitempty"`
}

// NewRegion creates a region with a generated ID
func NewRegion(name string, page, x, y, width, height int, fieldType FieldType) Region {
	return Region{
		ID:        uuid.NewString(),
		Name:      name,
		Page:      page,
		X:         x,
		Y:         y,
		Width:     width,
		Height:    height,
		FieldType: fieldType,
	}
}

// Validate checks the geometric invariants of the region
func (r Region) Validate() error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("%w: region %q has non-positive size %dx%d", ErrConfig, r.Name, r.Width, r.Height)
	}
	if r.X < 0 || r.Y < 0 {
		return fmt.Errorf("%w: region %q has negative origin (%d, %d)", ErrConfig, r.Name, r.X, r.Y)
	}
	if r.Page < 0 {
		return fmt.Errorf("%w: region %q has negative page %d", ErrConfig, r.Name, r.Page)
	}
	return nil
}

// Key returns the name the region is recorded under in its PageRecord.
// Unnamed regions fall back to their ID.
func (r Region) Key() string {
	if r.Name != "" {
		return r.Name
	}
	return r.ID
}

// Right returns the right edge coordinate
func (r Region) Right() int {
	return r.X + r.Width
}

// Bottom returns the bottom edge coordinate
func (r Region) Bottom() int {
	return r.Y + r.Height
}
