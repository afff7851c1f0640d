package util

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/mj-112358/winkfinal/models/insights"
)

// RenderWeeklyInsightsChart writes an HTML page with weekly visits per zone
// as bars and average dwell per zone as lines. Weeks carrying calendar
// annotations get the labels appended to the axis category.
func RenderWeeklyInsightsChart(w io.Writer, title string, rows []insights.ZoneWeekInsight) error {
	weeks, labels := chartWeeks(rows)
	zones := chartZones(rows)

	byCell := make(map[string]insights.ZoneWeekInsight, len(rows))
	for _, r := range rows {
		byCell[r.ZoneID+"|"+r.WeekKey] = r
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: title,
			Width:     "1000px",
			Height:    "600px",
		}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "visits"}),
	)
	bar.ExtendYAxis(opts.YAxis{Name: "avg dwell (s)"})
	bar.SetXAxis(labels)

	line := charts.NewLine()
	line.SetXAxis(labels)

	for _, z := range zones {
		visits := make([]opts.BarData, 0, len(weeks))
		dwell := make([]opts.LineData, 0, len(weeks))
		for _, week := range weeks {
			r := byCell[z.id+"|"+week]
			visits = append(visits, opts.BarData{Value: r.VisitCount})
			dwell = append(dwell, opts.LineData{Value: r.AvgDwellSeconds})
		}
		bar.AddSeries(z.name+" visits", visits)
		line.AddSeries(z.name+" avg dwell", dwell, charts.WithLineChartOpts(opts.LineChart{YAxisIndex: 1}))
	}
	bar.Overlap(line)

	if err := bar.Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}

type chartZone struct {
	id   string
	name string
}

func chartZones(rows []insights.ZoneWeekInsight) []chartZone {
	seen := make(map[string]struct{})
	var zones []chartZone
	for _, r := range rows {
		if _, ok := seen[r.ZoneID]; ok {
			continue
		}
		seen[r.ZoneID] = struct{}{}
		name := r.ZoneName
		if name == "" {
			name = r.ZoneID
		}
		zones = append(zones, chartZone{id: r.ZoneID, name: name})
	}
	sort.Slice(zones, func(i, j int) bool { return zones[i].id < zones[j].id })
	return zones
}

func chartWeeks(rows []insights.ZoneWeekInsight) ([]string, []string) {
	annotations := make(map[string][]string)
	for _, r := range rows {
		if _, ok := annotations[r.WeekKey]; ok {
			continue
		}
		var names []string
		for _, a := range r.Annotations {
			names = append(names, a.Label)
		}
		annotations[r.WeekKey] = names
	}
	weeks := make([]string, 0, len(annotations))
	for week := range annotations {
		weeks = append(weeks, week)
	}
	sort.Strings(weeks)

	labels := make([]string, len(weeks))
	for i, week := range weeks {
		labels[i] = week
		if names := annotations[week]; len(names) > 0 {
			labels[i] = fmt.Sprintf("%s (%s)", week, strings.Join(names, ", "))
		}
	}
	return weeks, labels
}
