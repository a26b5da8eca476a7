package viz

// ChartConfig is the renderable chart description sent to clients.
// The server only describes the chart; drawing happens client-side.
type ChartConfig struct {
	Type   Kind        `json:"type"`
	Title  string      `json:"title"`
	XField string      `json:"x_field,omitempty"`
	YField string      `json:"y_field,omitempty"`
	Labels []string    `json:"labels,omitempty"`
	Series []float64   `json:"series,omitempty"`
	Points [][]float64 `json:"points,omitempty"` // scatter only
}

// BuildChartConfig materializes the recommendation into chart data using
// the profiled rows. Returns nil when there is nothing to plot.
func BuildChartConfig(rec *Recommendation, title string) *ChartConfig {
	if rec == nil || rec.Profile == nil || rec.Profile.RowCount == 0 {
		return nil
	}

	cfg := &ChartConfig{
		Type:   rec.Primary,
		Title:  title,
		XField: rec.Axes.X,
		YField: rec.Axes.Y,
	}

	rows := rec.Profile.Rows()
	if rec.Primary == KindScatter {
		for _, row := range rows {
			x, xOk := numericValue(row[rec.Axes.X])
			y, yOk := numericValue(row[rec.Axes.Y])
			if xOk && yOk {
				cfg.Points = append(cfg.Points, []float64{x, y})
			}
		}
		if len(cfg.Points) == 0 {
			return nil
		}
		return cfg
	}

	for _, row := range rows {
		label, labelOk := labelValue(row[rec.Axes.X])
		value, valueOk := numericValue(row[rec.Axes.Y])
		if labelOk && valueOk {
			cfg.Labels = append(cfg.Labels, label)
			cfg.Series = append(cfg.Series, value)
		}
	}
	if len(cfg.Series) == 0 {
		return nil
	}
	return cfg
}

func numericValue(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func labelValue(v interface{}) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case float64:
		return formatKey(s), true
	case bool:
		return formatKey(s), true
	}
	return "", false
}
