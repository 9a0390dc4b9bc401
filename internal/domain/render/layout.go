package render

import (
	"github.com/printpass/backend/internal/domain/shared"
)

// Default page dimensions in millimeters (A4 portrait)
const (
	DefaultPageWidthMM  = 210.0
	DefaultPageHeightMM = 297.0
)

// ElementKind identifies the type of a layout element
type ElementKind string

const (
	ElementText  ElementKind = "TEXT"
	ElementImage ElementKind = "IMAGE"
	ElementRect  ElementKind = "RECT"
	ElementLine  ElementKind = "LINE"
)

// IsValid checks if the ElementKind is a valid value
func (k ElementKind) IsValid() bool {
	switch k {
	case ElementText, ElementImage, ElementRect, ElementLine:
		return true
	}
	return false
}

// String returns the string representation of ElementKind
func (k ElementKind) String() string {
	return string(k)
}

// Element is one positioned item on a page. Coordinates and sizes are in
// millimeters from the page's top-left corner.
type Element struct {
	Kind      ElementKind `json:"kind"`
	X         float64     `json:"x"`
	Y         float64     `json:"y"`
	Width     float64     `json:"width"`
	Height    float64     `json:"height"`
	Text      string      `json:"text,omitempty"`
	FontSize  float64     `json:"font_size,omitempty"` // in points
	FontBold  bool        `json:"font_bold,omitempty"`
	Align     string      `json:"align,omitempty"` // left, center, right
	ImageURL  string      `json:"image_url,omitempty"`
	Color     string      `json:"color,omitempty"` // CSS color
	Thickness float64     `json:"thickness,omitempty"`
}

// Validate checks element consistency
func (e *Element) Validate() error {
	if !e.Kind.IsValid() {
		return shared.NewDomainError("INVALID_ELEMENT", "Invalid element kind: "+string(e.Kind))
	}
	if e.Width < 0 || e.Height < 0 {
		return shared.NewDomainError("INVALID_ELEMENT", "Element dimensions cannot be negative")
	}
	if e.Kind == ElementText && e.Text == "" {
		return shared.NewDomainError("INVALID_ELEMENT", "Text element requires text content")
	}
	if e.Kind == ElementImage && e.ImageURL == "" {
		return shared.NewDomainError("INVALID_ELEMENT", "Image element requires an image URL")
	}
	return nil
}

// PageLayout is the declarative description of one output page. It is the
// input to the page rasterizer and is serialized verbatim into the job record
// so lost page tasks can be re-enqueued from stored state.
type PageLayout struct {
	WidthMM    float64   `json:"width_mm"`
	HeightMM   float64   `json:"height_mm"`
	Background string    `json:"background,omitempty"` // CSS color
	Elements   []Element `json:"elements"`
}

// Normalize fills in default page dimensions
func (p *PageLayout) Normalize() {
	if p.WidthMM <= 0 {
		p.WidthMM = DefaultPageWidthMM
	}
	if p.HeightMM <= 0 {
		p.HeightMM = DefaultPageHeightMM
	}
}

// Validate checks the layout and all of its elements
func (p *PageLayout) Validate() error {
	if p.WidthMM < 0 || p.HeightMM < 0 {
		return shared.NewDomainError("INVALID_LAYOUT", "Page dimensions cannot be negative")
	}
	for i := range p.Elements {
		if err := p.Elements[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}
