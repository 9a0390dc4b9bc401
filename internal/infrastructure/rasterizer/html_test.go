package rasterizer

import (
	"strings"
	"testing"

	"github.com/printpass/backend/internal/domain/render"
	"github.com/stretchr/testify/assert"
)

func TestBuildPageHTML_TextElement(t *testing.T) {
	layout := &render.PageLayout{
		WidthMM:  210,
		HeightMM: 297,
		Elements: []render.Element{
			{Kind: render.ElementText, X: 10, Y: 20, Width: 100, Height: 8, Text: "Invoice #42", FontSize: 12, FontBold: true, Align: "center"},
		},
	}

	html := BuildPageHTML(layout)

	assert.Contains(t, html, "width:210.00mm;height:297.00mm")
	assert.Contains(t, html, "left:10.00mm;top:20.00mm")
	assert.Contains(t, html, "font-size:12.00pt")
	assert.Contains(t, html, "font-weight:bold")
	assert.Contains(t, html, "text-align:center")
	assert.Contains(t, html, "Invoice #42")
}

func TestBuildPageHTML_EscapesText(t *testing.T) {
	layout := &render.PageLayout{
		WidthMM:  210,
		HeightMM: 297,
		Elements: []render.Element{
			{Kind: render.ElementText, X: 0, Y: 0, Width: 50, Height: 10, Text: `<script>alert("x")</script>`},
		},
	}

	html := BuildPageHTML(layout)

	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "&lt;script&gt;")
}

func TestBuildPageHTML_SanitizesCSSValues(t *testing.T) {
	layout := &render.PageLayout{
		WidthMM:    210,
		HeightMM:   297,
		Background: `red;}</style><script>`,
		Elements:   []render.Element{},
	}

	html := BuildPageHTML(layout)

	assert.NotContains(t, html, "</style><script>")
	assert.Contains(t, html, "background:red")
}

func TestBuildPageHTML_LineAndRect(t *testing.T) {
	layout := &render.PageLayout{
		WidthMM:  210,
		HeightMM: 297,
		Elements: []render.Element{
			{Kind: render.ElementLine, X: 10, Y: 50, Width: 190, Thickness: 0.5, Color: "#333"},
			{Kind: render.ElementRect, X: 10, Y: 60, Width: 80, Height: 40},
		},
	}

	html := BuildPageHTML(layout)

	assert.Contains(t, html, "border-top:0.50mm solid #333")
	assert.Contains(t, html, "border:0.30mm solid #000")
	assert.Equal(t, 2, strings.Count(html, "class=\"el\""))
}
