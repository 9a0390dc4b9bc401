package rasterizer

import (
	"fmt"
	"html"
	"strings"

	"github.com/printpass/backend/internal/domain/render"
)

// BuildPageHTML converts a page layout into a self-contained HTML document
// with absolutely positioned elements. All coordinates are emitted in
// millimeters, which Chrome maps exactly onto the physical page when the
// paper size matches the layout dimensions.
func BuildPageHTML(layout *render.PageLayout) string {
	var buf strings.Builder

	buf.WriteString("<!DOCTYPE html><html><head><meta charset=\"UTF-8\"><style>")
	buf.WriteString("html,body{margin:0;padding:0;}")
	fmt.Fprintf(&buf, ".page{position:relative;width:%.2fmm;height:%.2fmm;overflow:hidden;", layout.WidthMM, layout.HeightMM)
	if layout.Background != "" {
		fmt.Fprintf(&buf, "background:%s;", sanitizeCSSValue(layout.Background))
	}
	buf.WriteString("}")
	buf.WriteString(".el{position:absolute;box-sizing:border-box;}")
	buf.WriteString("</style></head><body><div class=\"page\">")

	for _, el := range layout.Elements {
		writeElement(&buf, &el)
	}

	buf.WriteString("</div></body></html>")
	return buf.String()
}

func writeElement(buf *strings.Builder, el *render.Element) {
	style := fmt.Sprintf("left:%.2fmm;top:%.2fmm;width:%.2fmm;height:%.2fmm;", el.X, el.Y, el.Width, el.Height)

	switch el.Kind {
	case render.ElementText:
		fontSize := el.FontSize
		if fontSize <= 0 {
			fontSize = 10
		}
		style += fmt.Sprintf("font-size:%.2fpt;font-family:sans-serif;", fontSize)
		if el.FontBold {
			style += "font-weight:bold;"
		}
		switch el.Align {
		case "center", "right":
			style += "text-align:" + el.Align + ";"
		}
		if el.Color != "" {
			style += "color:" + sanitizeCSSValue(el.Color) + ";"
		}
		fmt.Fprintf(buf, "<div class=\"el\" style=\"%s\">%s</div>", style, html.EscapeString(el.Text))

	case render.ElementImage:
		fmt.Fprintf(buf, "<img class=\"el\" style=\"%s\" src=\"%s\"/>", style, html.EscapeString(el.ImageURL))

	case render.ElementRect:
		color := el.Color
		if color == "" {
			color = "#000"
		}
		thickness := el.Thickness
		if thickness <= 0 {
			thickness = 0.3
		}
		style += fmt.Sprintf("border:%.2fmm solid %s;", thickness, sanitizeCSSValue(color))
		fmt.Fprintf(buf, "<div class=\"el\" style=\"%s\"></div>", style)

	case render.ElementLine:
		color := el.Color
		if color == "" {
			color = "#000"
		}
		thickness := el.Thickness
		if thickness <= 0 {
			thickness = 0.3
		}
		// A line is a zero-height box with a top border.
		style = fmt.Sprintf("left:%.2fmm;top:%.2fmm;width:%.2fmm;height:0;", el.X, el.Y, el.Width)
		style += fmt.Sprintf("border-top:%.2fmm solid %s;", thickness, sanitizeCSSValue(color))
		fmt.Fprintf(buf, "<div class=\"el\" style=\"%s\"></div>", style)
	}
}

// sanitizeCSSValue strips characters that could break out of a CSS
// declaration. Layout colors are caller input and end up inside a style
// attribute.
func sanitizeCSSValue(v string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ';', '{', '}', '<', '>', '"', '\'':
			return -1
		}
		return r
	}, v)
}
