// Package classify infers the type of a commercial real-estate document from a
// sample of its text and suggests regions for that type. Classification only
// drives suggestions; extraction never depends on it.
package classify

import (
	_ "embed"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/regionscan/internal/model"
)

// DefaultThreshold is the minimum confidence for a non-unknown verdict
const DefaultThreshold = 0.5

// structureWeight scales the layout contribution relative to vocabulary
const structureWeight = 0.15

// shortDocumentPenalty applies when a document has fewer pages than its type usually does
const shortDocumentPenalty = 0.75

//go:embed profiles.yaml
var embeddedProfiles []byte

// LayoutHints carry structural signals gathered alongside the sample text
type LayoutHints struct {
	// PageCount is the number of pages in the document, 0 if unknown
	PageCount int

	// NumericDensity is the share of tokens containing a digit, in [0,1]
	NumericDensity float64
}

// HintsFromText derives layout hints from sample text
func HintsFromText(text string, pageCount int) LayoutHints {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return LayoutHints{PageCount: pageCount}
	}
	numeric := 0
	for _, tok := range tokens {
		if strings.IndexFunc(tok, unicode.IsDigit) >= 0 {
			numeric++
		}
	}
	return LayoutHints{PageCount: pageCount, NumericDensity: float64(numeric) / float64(len(tokens))}
}

type regionTemplate struct {
	Name      string          `yaml:"name"`
	Page      int             `yaml:"page"`
	X         float64         `yaml:"x"`
	Y         float64         `yaml:"y"`
	Width     float64         `yaml:"width"`
	Height    float64         `yaml:"height"`
	FieldType model.FieldType `yaml:"field_type"`
}

type profile struct {
	Saturation  float64            `yaml:"saturation"`
	Keywords    map[string]float64 `yaml:"keywords"`
	NumericBias float64            `yaml:"numeric_bias"`
	ProseBias   float64            `yaml:"prose_bias"`
	MinPages    int                `yaml:"min_pages"`
	Regions     []regionTemplate   `yaml:"regions"`
}

// Classifier scores text against per-type vocabularies
type Classifier struct {
	profiles  map[model.DocumentType]profile
	types     []model.DocumentType
	threshold float64
}

// New creates a classifier from the built-in profiles. A zero threshold
// selects DefaultThreshold.
func New(threshold float64) (*Classifier, error) {
	return NewFromYAML(embeddedProfiles, threshold)
}

// NewFromYAML creates a classifier from a profiles document
func NewFromYAML(data []byte, threshold float64) (*Classifier, error) {
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: classifier threshold must be in (0,1], got %v", model.ErrConfig, threshold)
	}

	var raw map[model.DocumentType]profile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: parsing classifier profiles: %v", model.ErrConfig, err)
	}

	c := &Classifier{profiles: make(map[model.DocumentType]profile, len(raw)), threshold: threshold}
	for dt, p := range raw {
		if dt == model.DocUnknown {
			return nil, fmt.Errorf("%w: profile for %q is not allowed", model.ErrConfig, dt)
		}
		if p.Saturation <= 0 {
			return nil, fmt.Errorf("%w: profile %q needs a positive saturation", model.ErrConfig, dt)
		}
		normalized := make(map[string]float64, len(p.Keywords))
		for phrase, w := range p.Keywords {
			normalized[normalize(phrase)] = w
		}
		p.Keywords = normalized
		c.profiles[dt] = p
		c.types = append(c.types, dt)
	}
	sort.Slice(c.types, func(i, j int) bool { return c.types[i] < c.types[j] })

	return c, nil
}

// Threshold returns the confidence below which documents are unknown
func (c *Classifier) Threshold() float64 {
	return c.threshold
}

// Classify returns the best-scoring type and its normalized score, or
// unknown when the best score is below the threshold
func (c *Classifier) Classify(sampleText string, hints LayoutHints) model.DocumentClassification {
	text := " " + normalize(sampleText) + " "
	scores := make(map[model.DocumentType]float64, len(c.types))

	best := model.DocUnknown
	bestScore := 0.0
	for _, dt := range c.types {
		s := c.profiles[dt].score(text, hints)
		scores[dt] = s
		if s > bestScore {
			best, bestScore = dt, s
		}
	}

	if bestScore < c.threshold {
		return model.DocumentClassification{DocumentType: model.DocUnknown, Confidence: bestScore, Scores: scores}
	}
	return model.DocumentClassification{DocumentType: best, Confidence: bestScore, Scores: scores}
}

func (p profile) score(text string, hints LayoutHints) float64 {
	raw := 0.0
	for phrase, w := range p.Keywords {
		if strings.Contains(text, " "+phrase+" ") {
			raw += w
		}
	}
	if raw == 0 {
		return 0
	}

	s := clamp(raw / p.Saturation)

	d := clamp(hints.NumericDensity)
	s += structureWeight * (p.NumericBias*d + p.ProseBias*(1-d))

	if p.MinPages > 0 && hints.PageCount > 0 && hints.PageCount < p.MinPages {
		s *= shortDocumentPenalty
	}

	return clamp(s)
}

// Suggest returns the template regions for a classification scaled to the
// page size. Each call returns regions with fresh IDs. Unknown documents get
// no suggestions.
func (c *Classifier) Suggest(classification model.DocumentClassification, pageWidth, pageHeight int) []model.Region {
	p, ok := c.profiles[classification.DocumentType]
	if !ok || pageWidth <= 0 || pageHeight <= 0 {
		return nil
	}

	regions := make([]model.Region, 0, len(p.Regions))
	for _, t := range p.Regions {
		x := scale(t.X, pageWidth)
		y := scale(t.Y, pageHeight)
		w := max(1, min(scale(t.Width, pageWidth), pageWidth-x))
		h := max(1, min(scale(t.Height, pageHeight), pageHeight-y))
		fieldType := t.FieldType
		if fieldType == "" {
			fieldType = model.FieldText
		}
		regions = append(regions, model.NewRegion(t.Name, t.Page, x, y, w, h, fieldType))
	}
	return regions
}

func scale(frac float64, size int) int {
	v := int(math.Round(clamp(frac) * float64(size)))
	if v >= size {
		v = size - 1
	}
	return v
}

// normalize lowercases text and reduces every run of non-alphanumerics to one space
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
