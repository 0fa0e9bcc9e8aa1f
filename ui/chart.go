package ui

import (
	"fmt"
	"html/template"
	"math"
	"strings"
)

// ChartOptions sizes and colours a mini chart.
type ChartOptions struct {
	Width, Height int
	Background    string
	Border        string
	Color         string
	UpColor       string
	DownColor     string
}

func (o *ChartOptions) applyDefaults() {
	if o.Width <= 0 {
		o.Width = 320
	}
	if o.Height <= 0 {
		o.Height = 160
	}
	if o.Background == "" {
		o.Background = "#0d1328"
	}
	if o.Border == "" {
		o.Border = "rgba(29,240,255,0.25)"
	}
	if o.Color == "" {
		o.Color = "#42e695"
	}
	if o.UpColor == "" {
		o.UpColor = "#42e695"
	}
	if o.DownColor == "" {
		o.DownColor = "#ef4444"
	}
}

// chart margins: left, right, top, bottom
const (
	marginL = 24
	marginR = 10
	marginT = 10
	marginB = 18
)

// Candle is one OHLC sample.
type Candle struct {
	T string  `json:"t"`
	O float64 `json:"o"`
	H float64 `json:"h"`
	L float64 `json:"l"`
	C float64 `json:"c"`
}

func chartFrame(o ChartOptions, body string) template.HTML {
	return template.HTML(fmt.Sprintf(
		`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`+
			`<rect x="0" y="0" width="%d" height="%d" fill="%s"/>`+
			`<rect x="0.5" y="0.5" width="%d" height="%d" fill="none" stroke="%s"/>%s</svg>`,
		o.Width, o.Height, o.Width, o.Height,
		o.Width, o.Height, template.HTMLEscapeString(o.Background),
		o.Width-1, o.Height-1, template.HTMLEscapeString(o.Border), body))
}

// LineChart renders series as an SVG polyline scaled to its min and max.
// Fewer than two points render only the frame.
func LineChart(series []float64, opts ChartOptions) template.HTML {
	opts.applyDefaults()
	if len(series) < 2 {
		return chartFrame(opts, "")
	}
	lo, hi := minMax(series)
	yr := nonZero(hi - lo)
	xr := float64(len(series) - 1)
	xw := float64(opts.Width - marginL - marginR)
	yh := float64(opts.Height - marginT - marginB)

	points := make([]string, len(series))
	for i, v := range series {
		px := marginL + float64(i)/xr*xw
		py := marginT + yh - (v-lo)/yr*yh
		points[i] = fmt.Sprintf("%s,%s", num(px), num(py))
	}
	return chartFrame(opts, fmt.Sprintf(`<polyline points="%s" fill="none" stroke="%s" stroke-width="2"/>`,
		strings.Join(points, " "), template.HTMLEscapeString(opts.Color)))
}

// CandleChart renders OHLC candles: a high-low wick and an open-close body,
// coloured up when close >= open.
func CandleChart(candles []Candle, opts ChartOptions) template.HTML {
	opts.applyDefaults()
	if len(candles) == 0 {
		return chartFrame(opts, "")
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, c := range candles {
		lo = math.Min(lo, c.L)
		hi = math.Max(hi, c.H)
	}
	yr := nonZero(hi - lo)
	xw := float64(opts.Width - marginL - marginR)
	yh := float64(opts.Height - marginT - marginB)
	bw := math.Max(3, math.Floor(xw/float64(len(candles))*0.6))
	span := nonZero(float64(len(candles) - 1))
	y := func(v float64) float64 { return marginT + yh - (v-lo)/yr*yh }

	var sb strings.Builder
	for i, c := range candles {
		x := marginL + float64(i)/span*xw
		color := opts.UpColor
		if c.C < c.O {
			color = opts.DownColor
		}
		color = template.HTMLEscapeString(color)
		top := math.Min(y(c.O), y(c.C))
		height := math.Max(1, math.Abs(y(c.C)-y(c.O)))
		fmt.Fprintf(&sb, `<line x1="%s" y1="%s" x2="%s" y2="%s" stroke="%s"/>`,
			num(x), num(y(c.H)), num(x), num(y(c.L)), color)
		fmt.Fprintf(&sb, `<rect x="%s" y="%s" width="%s" height="%s" fill="%s"/>`,
			num(x-bw/2), num(top), num(bw), num(height), color)
	}
	return chartFrame(opts, sb.String())
}

func minMax(vs []float64) (float64, float64) {
	lo, hi := vs[0], vs[0]
	for _, v := range vs[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

func nonZero(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}

// num prints at most two decimals without trailing zeros.
func num(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
