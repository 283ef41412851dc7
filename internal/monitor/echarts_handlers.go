package monitor

import (
	"bytes"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/touchtrack/internal/httputil"
)

const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// handleTouchesChart renders the live touches as a scatter plot in screen
// coordinates, symbol size following blob area.
func (ws *WebServer) handleTouchesChart(w http.ResponseWriter, r *http.Request) {
	records := ws.output.Records()

	data := make([]opts.ScatterData, 0, len(records))
	maxArea := 1.0
	for _, rec := range records {
		maxArea = math.Max(maxArea, rec.Area)
	}
	for _, rec := range records {
		size := 6 + 24*math.Sqrt(rec.Area/maxArea)
		data = append(data, opts.ScatterData{
			Name:       fmt.Sprintf("#%d", rec.ID),
			Value:      []interface{}{rec.Centroid.X, rec.Centroid.Y, rec.Area, int64(rec.ID)},
			SymbolSize: int(size),
		})
	}

	xMax, yMax := ws.width, ws.height
	if xMax <= 0 {
		xMax = 320
	}
	if yMax <= 0 {
		yMax = 240
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Touches", Theme: "dark", Width: "960px", Height: "720px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Live touches", Subtitle: fmt.Sprintf("count=%d at %s", len(records), time.Now().Format(time.RFC3339))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: 0, Max: xMax, Name: "X (px)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: yMax, Name: "Y (px)", NameLocation: "middle", NameGap: 30, Inverse: opts.Bool(true)}),
	)
	scatter.AddSeries("touches", data)

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleActivityChart renders the recent activity window: live touch count
// as a line with births and deaths as bars.
// Query params:
//   - max_points (optional; default 600) to reduce payload size
func (ws *WebServer) handleActivityChart(w http.ResponseWriter, r *http.Request) {
	if ws.activity == nil {
		httputil.NotImplemented(w, "activity tracking")
		return
	}
	maxPoints := 600
	if mp := r.URL.Query().Get("max_points"); mp != "" {
		if v, err := strconv.Atoi(mp); err == nil && v >= 10 && v <= 10000 {
			maxPoints = v
		}
	}

	samples := ws.activity.Samples()
	if len(samples) > maxPoints {
		samples = samples[len(samples)-maxPoints:]
	}

	x := make([]string, len(samples))
	live := make([]opts.LineData, len(samples))
	born := make([]opts.BarData, len(samples))
	died := make([]opts.BarData, len(samples))
	for i, s := range samples {
		x[i] = s.Timestamp.Format("15:04:05.000")
		live[i] = opts.LineData{Value: s.Live}
		born[i] = opts.BarData{Value: s.Born}
		died[i] = opts.BarData{Value: s.Died}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Touch activity", Subtitle: fmt.Sprintf("frames=%d", len(samples))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	line.SetXAxis(x).AddSeries("live", live)

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "320px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Births and deaths"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
	)
	bar.SetXAxis(x).
		AddSeries("born", born).
		AddSeries("died", died)

	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsPrefix)
	page.AddCharts(line, bar)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
