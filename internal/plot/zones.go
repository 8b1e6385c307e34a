package plot

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/bugtracker/internal/precip"
)

// RenderZones writes an HTML heat map of the fitted slope of every zone.
// Skipped zones are left out; flagged zones are listed in the subtitle count.
func RenderZones(w io.Writer, title string, res *precip.Result) error {
	azims := make([]string, res.AzimZones)
	for i := range azims {
		azims[i] = strconv.Itoa(i)
	}
	gates := make([]string, res.GateZones)
	for i := range gates {
		gates[i] = strconv.Itoa(i)
	}

	data := make([]opts.HeatMapData, 0, len(res.Zones))
	lo, hi := 0.0, 0.0
	for _, z := range res.Zones {
		if math.IsNaN(z.Slope) {
			continue
		}
		lo, hi = math.Min(lo, z.Slope), math.Max(hi, z.Slope)
		data = append(data, opts.HeatMapData{Value: [3]interface{}{z.Gate, z.Azim, z.Slope}})
	}
	if hi == lo {
		hi = lo + 1
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "1000px", Height: "800px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("zones=%d flagged=%d", len(res.Zones), res.Flagged())}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Data: gates, Name: "gate zone"}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: azims, Name: "azimuth zone"}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(lo),
			Max:        float32(hi),
			InRange:    &opts.VisualMapInRange{Color: []string{"#313695", "#74add1", "#ffffbf", "#f46d43", "#a50026"}},
		}),
	)
	hm.AddSeries("slope", data)
	return hm.Render(w)
}

// PlotZones writes the zone slope page for one family as HTML next to the
// PPI images and returns its path.
func (p *RadialPlotter) PlotZones(family, radarID string, scanTime time.Time, res *precip.Result) (string, error) {
	var buf bytes.Buffer
	title := fmt.Sprintf("%s %s zone slopes %s", radarID, family, scanTime.UTC().Format("2006-01-02 15:04 UTC"))
	if err := RenderZones(&buf, title, res); err != nil {
		return "", fmt.Errorf("render zone slopes: %w", err)
	}
	path := p.path(radarID, "zones_"+family, scanTime, "html")
	if err := writeFile(p.fs, path, buf.Bytes()); err != nil {
		return "", err
	}
	return path, nil
}
