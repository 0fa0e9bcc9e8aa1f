package pipeline

import (
	"fmt"
	"html/template"
	"math"
	"strconv"
	"strings"
)

// Default node box on the canvas.
const (
	NodeWidth  = 160
	NodeHeight = 64
)

// Box is a node's rectangle on the canvas.
type Box struct {
	X, Y, W, H float64
}

// Center is the box midpoint.
func (b Box) Center() (float64, float64) {
	return b.X + b.W/2, b.Y + b.H/2
}

// Layout returns a node's box, false when it is not placed.
type Layout func(id string) (Box, bool)

// DefaultLayout places every node at its stored position with the default
// box size.
func (g *Graph) DefaultLayout() Layout {
	boxes := make(map[string]Box)
	for _, n := range g.Nodes() {
		boxes[n.ID] = Box{X: n.X, Y: n.Y, W: NodeWidth, H: NodeHeight}
	}
	return func(id string) (Box, bool) {
		b, ok := boxes[id]
		return b, ok
	}
}

// Wire is the rendered curve for one edge.
type Wire struct {
	From, To string
	Path     string
}

// DrawWires returns one cubic Bezier per edge, from the centre of the source
// box to the centre of the target box. Edges with an unplaced endpoint are
// skipped. A nil layout means DefaultLayout.
func (g *Graph) DrawWires(layout Layout) []Wire {
	if layout == nil {
		layout = g.DefaultLayout()
	}
	var wires []Wire
	for _, e := range g.Edges() {
		a, okA := layout(e.From)
		b, okB := layout(e.To)
		if !okA || !okB {
			continue
		}
		ax, ay := a.Center()
		bx, by := b.Center()
		wires = append(wires, Wire{From: e.From, To: e.To, Path: WirePath(ax, ay, bx, by)})
	}
	return wires
}

// WirePath is the SVG path between two points with horizontal tangents.
func WirePath(ax, ay, bx, by float64) string {
	dx := math.Abs(bx-ax) * 0.4
	return fmt.Sprintf("M %s %s C %s %s, %s %s, %s %s",
		f(ax), f(ay), f(ax+dx), f(ay), f(bx-dx), f(by), f(bx), f(by))
}

func f(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// RenderSVG wraps wires in an <svg> element.
func RenderSVG(wires []Wire) template.HTML {
	var sb strings.Builder
	sb.WriteString(`<svg id="wires" xmlns="http://www.w3.org/2000/svg">`)
	for _, w := range wires {
		fmt.Fprintf(&sb, `<path data-from="%s" data-to="%s" d="%s" stroke="#64748b" stroke-width="2" fill="none"/>`,
			template.HTMLEscapeString(w.From), template.HTMLEscapeString(w.To), w.Path)
	}
	sb.WriteString(`</svg>`)
	return template.HTML(sb.String())
}
