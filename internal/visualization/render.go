package visualization

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"
)

// Format specifies the output format for scene rendering.
type Format string

const (
	FormatSVG  Format = "svg"
	FormatJSON Format = "json"
	FormatHTML Format = "html"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatSVG, FormatJSON, FormatHTML:
		return f, nil
	}
	return "", fmt.Errorf("unknown format %q (want svg, json or html)", s)
}

// speciesColors maps species to fill colors.
var speciesColors = map[int]string{
	1: "steelblue",
	2: "tomato",
}

// Options controls what RenderSVG draws.
type Options struct {
	// Regions draws the partition with per-cell member counts.
	Regions bool
}

// RenderSVG draws the scene with y pointing up. One user unit is one pm.
func RenderSVG(s Scene, opts Options) string {
	w := s.WallThickness
	b := s.Bounds
	flip := func(y float64) float64 { return b.Max.Y + b.Min.Y - y }

	var sb strings.Builder
	fmt.Fprintf(&sb, "<svg xmlns=\"http://www.w3.org/2000/svg\" viewBox=\"%g %g %g %g\">\n",
		b.Min.X-w, b.Min.Y-w, b.Width()+2*w, b.Height()+2*w)
	fmt.Fprintf(&sb, "  <rect x=\"%g\" y=\"%g\" width=\"%g\" height=\"%g\" fill=\"dimgray\"/>\n",
		b.Min.X-w, b.Min.Y-w, b.Width()+2*w, b.Height()+2*w)
	fmt.Fprintf(&sb, "  <rect x=\"%g\" y=\"%g\" width=\"%g\" height=\"%g\" fill=\"white\"/>\n",
		b.Min.X, b.Min.Y, b.Width(), b.Height())

	// Openings are gaps in the top wall band.
	for _, gap := range topGaps(s) {
		fmt.Fprintf(&sb, "  <rect x=\"%g\" y=\"%g\" width=\"%g\" height=\"%g\" fill=\"white\"/>\n",
			gap.Min.X, b.Min.Y-w, gap.Width(), w)
	}

	if d := s.Divider; d != nil {
		fmt.Fprintf(&sb, "  <rect class=\"divider\" x=\"%g\" y=\"%g\" width=\"%g\" height=\"%g\" fill=\"dimgray\"/>\n",
			d.Min.X, flip(d.Max.Y), d.Width(), d.Height())
	}

	if opts.Regions {
		for _, c := range s.Regions {
			fmt.Fprintf(&sb, "  <rect class=\"region\" x=\"%g\" y=\"%g\" width=\"%g\" height=\"%g\" fill=\"none\" stroke=\"gray\" stroke-dasharray=\"40 40\" stroke-width=\"10\"/>\n",
				c.Bounds.Min.X, flip(c.Bounds.Max.Y), c.Bounds.Width(), c.Bounds.Height())
			fmt.Fprintf(&sb, "  <text x=\"%g\" y=\"%g\" font-size=\"%g\" fill=\"gray\">%d</text>\n",
				c.Bounds.Min.X+40, flip(c.Bounds.Max.Y)+200, 200.0, c.Count)
		}
	}

	for _, p := range s.Particles {
		color := speciesColors[p.Species]
		if color == "" {
			color = "lightgray"
		}
		fmt.Fprintf(&sb, "  <circle cx=\"%g\" cy=\"%g\" r=\"%g\" fill=\"%s\"/>\n",
			p.X, flip(p.Y), p.Radius, color)
	}
	sb.WriteString("</svg>\n")
	return sb.String()
}

// topGaps returns the spans of the top edge not covered by a top wall
// segment. Side and bottom walls are vertical or lie on Min.Y, so only
// horizontal segments at Max.Y count.
func topGaps(s Scene) []Rect {
	b := s.Bounds
	var covered []Line
	for _, l := range s.Walls {
		if l.From.Y == b.Max.Y && l.To.Y == b.Max.Y && !l.Divider {
			covered = append(covered, l)
		}
	}
	x := b.Min.X
	var gaps []Rect
	for _, l := range covered {
		if l.From.X > x {
			gaps = append(gaps, rect(x, b.Max.Y, l.From.X, b.Max.Y))
		}
		x = max(x, l.To.X)
	}
	if x < b.Max.X {
		gaps = append(gaps, rect(x, b.Max.Y, b.Max.X, b.Max.Y))
	}
	return gaps
}

// RenderJSON encodes the scene.
func RenderJSON(s Scene) ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal scene: %w", err)
	}
	return data, nil
}

// htmlTemplateData holds data passed to the HTML template.
// SceneJSON is pre-sanitized JSON (via json.HTMLEscape) safe for inline <script>.
type htmlTemplateData struct {
	Time      float64
	Steps     int
	SVG       template.HTML
	SceneJSON template.JS
	Live      bool
}

// RenderHTML produces a self-contained page showing the scene. When live is
// true the page polls /api/step on the server that served it.
func RenderHTML(s Scene, opts Options, live bool) ([]byte, error) {
	sceneJSON, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal scene: %w", err)
	}

	tmplBytes, err := templates.ReadFile("templates/scene.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("read HTML template: %w", err)
	}
	tmpl, err := template.New("scene").Parse(string(tmplBytes))
	if err != nil {
		return nil, fmt.Errorf("parse HTML template: %w", err)
	}

	var escaped bytes.Buffer
	json.HTMLEscape(&escaped, sceneJSON)

	var buf bytes.Buffer
	data := htmlTemplateData{
		Time:  s.Time,
		Steps: s.Steps,
		// SVG: generated from numbers and fixed color names only.
		SVG: template.HTML(RenderSVG(s, opts)), // #nosec G203
		// SceneJSON: pre-sanitized via json.HTMLEscape.
		SceneJSON: template.JS(escaped.String()), // #nosec G203
		Live:      live,
	}
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("execute HTML template: %w", err)
	}
	return buf.Bytes(), nil
}
