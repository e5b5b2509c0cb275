package haruspex

import (
	"fmt"
	"image/color"
	"os"
	"sync"
	"time"

	"golang.org/x/image/font/opentype"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/font"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

type MonthlyTicks struct{}

type chartSeries struct {
	label string
	dates []time.Time
	values []float64
}

var fontMutex sync.Mutex

// loadFont replaces the default plot font with a TTF file. Without a path the
// fonts bundled with gonum/plot are used.
func loadFont(fontPath, fontName string) error {
	if fontPath == "" {
		return nil
	}
	fontMutex.Lock()
	defer fontMutex.Unlock()
	ttfData, err := os.ReadFile(fontPath)
	if err != nil {
		return fmt.Errorf("failed to read font (%s): %w", fontPath, err)
	}
	openTypeFont, err := opentype.Parse(ttfData)
	if err != nil {
		return fmt.Errorf("OpenType failed to parse TTF file (%s): %w", fontPath, err)
	}
	if fontName == "" {
		fontName = "Custom"
	}
	defaultFont := font.Font{
		Typeface: font.Typeface(fontName),
	}
	fontFace := []font.Face{
		{
			Font: defaultFont,
			Face: openTypeFont,
		},
	}
	font.DefaultCache.Add(fontFace)
	plot.DefaultFont = defaultFont
	return nil
}

func plotSeries(title, yLabel string, series []chartSeries, path string) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Date"
	p.Y.Label.Text = yLabel
	p.X.Padding = -1
	p.Y.Padding = -1
	p.Add(newDashedGrid())
	p.X.Tick.Marker = MonthlyTicks{}
	p.Legend.Top = true
	p.Legend.Left = true
	for i, s := range series {
		plotterData := make(plotter.XYs, len(s.values))
		for j, value := range s.values {
			plotterData[j].X = timeToFloat(s.dates[j])
			plotterData[j].Y = value
		}
		line, err := plotter.NewLine(plotterData)
		if err != nil {
			return fmt.Errorf("failed to create line plot for %s: %w", s.label, err)
		}
		line.LineStyle.Color = plotutil.Color(i)
		line.LineStyle.Width = vg.Points(1.25)
		p.Add(line)
		p.Legend.Add(s.label, line)
	}
	err := p.Save(12 * vg.Inch, 6 * vg.Inch, path)
	if err != nil {
		return fmt.Errorf("failed to save plot (%s): %w", path, err)
	}
	return nil
}

// plotDrawdownBars draws the max drawdown of both allocation policies for
// every top-N value side by side.
func plotDrawdownBars(topNs []int, equal, proportional []float64, path string) error {
	labels := make([]string, len(topNs))
	for i, topN := range topNs {
		labels[i] = fmt.Sprintf("Top %d", topN)
	}
	p := plot.New()
	p.Title.Text = "Max Drawdown by Portfolio Type and Top N"
	p.Y.Label.Text = "Max Drawdown (fraction)"
	p.NominalX(labels...)
	width := vg.Points(20)
	p.Add(newDashedGrid())
	groups := []struct{
		label string
		values []float64
		offset vg.Length
		color color.Color
	}{
		{"Equal", equal, -width / 2, color.RGBA{R: 255, A: 255}},
		{"Proportional", proportional, width / 2, color.RGBA{B: 255, A: 255}},
	}
	for _, group := range groups {
		bars, err := plotter.NewBarChart(plotter.Values(group.values), width)
		if err != nil {
			return fmt.Errorf("failed to create bar chart: %w", err)
		}
		bars.LineStyle.Width = 0
		bars.Color = group.color
		bars.Offset = group.offset
		p.Add(bars)
		p.Legend.Add(group.label, bars)
	}
	p.Legend.Top = true
	err := p.Save(10 * vg.Inch, 6 * vg.Inch, path)
	if err != nil {
		return fmt.Errorf("failed to save plot (%s): %w", path, err)
	}
	return nil
}

func newDashedGrid() *plotter.Grid {
	grid := plotter.NewGrid()
	dashes := []vg.Length{vg.Points(2), vg.Points(2)}
	grid.Horizontal.Dashes = dashes
	grid.Vertical.Dashes = dashes
	return grid
}

func (MonthlyTicks) Ticks(min, max float64) []plot.Tick {
	timeMin := time.Unix(int64(min), 0).UTC()
	timeMax := time.Unix(int64(max), 0).UTC()
	ticks := []plot.Tick{}
	step := 1
	months := (timeMax.Year() - timeMin.Year()) * 12 + int(timeMax.Month() - timeMin.Month())
	if months > 24 {
		step = 6
	} else if months > 12 {
		step = 3
	}
	tickTime := time.Date(timeMin.Year(), timeMin.Month(), 1, 0, 0, 0, 0, time.UTC)
	if tickTime.Before(timeMin) {
		tickTime = tickTime.AddDate(0, 1, 0)
	}
	for ; !tickTime.After(timeMax); tickTime = tickTime.AddDate(0, step, 0) {
		x := timeToFloat(tickTime)
		label := tickTime.Format("2006-01")
		ticks = append(ticks, plot.Tick{Value: x, Label: label})
	}
	return ticks
}

func timeToFloat(t time.Time) float64 {
	return float64(t.Unix())
}
