// Package report produces the once-daily sleep environment report: per-metric
// aggregates over the trailing 24 hours plus a composite quality index.
package report

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mtskcm/iot-service-notifier/internal/logger"
	"github.com/mtskcm/iot-service-notifier/internal/metrics"
	"github.com/mtskcm/iot-service-notifier/internal/models"
	"github.com/mtskcm/iot-service-notifier/internal/storage"
	"github.com/mtskcm/iot-service-notifier/internal/thresholds"
)

// Window is the aggregation span for one report.
const Window = 24 * time.Hour

// ReportTitle is the notification title for the daily report.
const ReportTitle = "Sleep Environment Report"

// qualityWeights selects the metrics contributing to the quality index.
// Weights sum to 1.0; metrics absent from the day's data contribute zero.
var qualityWeights = map[string]float64{
	"temperature": 0.3,
	"humidity":    0.3,
	"light":       0.2,
	"sound":       0.2,
}

// Sender delivers the rendered report.
type Sender interface {
	Send(title, body string) bool
}

// Generator queries the store and renders the daily report.
type Generator struct {
	store  storage.Store
	table  thresholds.Table
	sender Sender
	now    func() time.Time
}

// NewGenerator creates a report Generator.
func NewGenerator(store storage.Store, table thresholds.Table, sender Sender) *Generator {
	return &Generator{store: store, table: table, sender: sender, now: time.Now}
}

// Run generates and dispatches one report. An empty 24 hour window is a
// defined no-report state, not an error: nothing is sent.
func (g *Generator) Run(ctx context.Context) error {
	log := logger.WithComponent("report")

	insights, err := g.Insights(ctx)
	if err != nil {
		log.Error().Err(err).Msg("report query failed")
		metrics.ReportsGenerated.WithLabelValues("failed").Inc()
		return err
	}

	if len(insights) == 0 {
		log.Info().Msg("no readings in report window, skipping report")
		metrics.ReportsGenerated.WithLabelValues("empty").Inc()
		return nil
	}

	quality := g.QualityIndex(insights)
	body := Render(insights, quality)

	log.Info().
		Int("metrics", len(insights)).
		Float64("quality_index", quality).
		Msg("daily report generated")

	g.sender.Send(ReportTitle, body)
	metrics.ReportsGenerated.WithLabelValues("sent").Inc()
	return nil
}

// Insights aggregates the trailing 24 hours of stored readings, one insight
// per metric observed in the window, sorted by metric name.
func (g *Generator) Insights(ctx context.Context) ([]models.EnvironmentInsight, error) {
	now := g.now()
	start := time.Now()
	samples, err := g.store.Query(ctx, "", now.Add(-Window), now)
	metrics.StorageQueryDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	byMetric := make(map[string][]float64)
	for _, s := range samples {
		byMetric[s.Metric] = append(byMetric[s.Metric], s.Value)
	}

	insights := make([]models.EnvironmentInsight, 0, len(byMetric))
	for metric, values := range byMetric {
		sum := 0.0
		for _, v := range values {
			sum += v
		}

		insight := models.EnvironmentInsight{
			Metric:  metric,
			Average: sum / float64(len(values)),
		}

		// An unbounded side never counts.
		if spec, ok := g.table.Lookup(metric); ok {
			for _, v := range values {
				if spec.High != nil && v > *spec.High {
					insight.AboveCount++
				}
				if spec.Low != nil && v < *spec.Low {
					insight.BelowCount++
				}
			}
		}

		insights = append(insights, insight)
	}

	sort.Slice(insights, func(i, j int) bool { return insights[i].Metric < insights[j].Metric })
	return insights, nil
}

// QualityIndex computes the weighted deviation of selected metrics' averages
// from their thresholds. Lower is better; zero means every weighted average
// sat inside its bounds.
func (g *Generator) QualityIndex(insights []models.EnvironmentInsight) float64 {
	index := 0.0
	for _, insight := range insights {
		weight, ok := qualityWeights[insight.Metric]
		if !ok {
			continue
		}
		spec, ok := g.table.Lookup(insight.Metric)
		if !ok {
			continue
		}

		deviation := 0.0
		if spec.High != nil && insight.Average > *spec.High {
			deviation += insight.Average - *spec.High
		}
		if spec.Low != nil && insight.Average < *spec.Low {
			deviation += *spec.Low - insight.Average
		}
		index += deviation * weight
	}
	return index
}

// Render formats the report body: one subsection per metric and a trailing
// overall quality index.
func Render(insights []models.EnvironmentInsight, quality float64) string {
	var b strings.Builder
	b.WriteString("Sleep Environment Report:\n")
	for _, insight := range insights {
		fmt.Fprintf(&b, "- %s:\n", thresholds.Capitalize(insight.Metric))
		fmt.Fprintf(&b, "  - Average: %.2f\n", insight.Average)
		fmt.Fprintf(&b, "  - Above Threshold: %d times\n", insight.AboveCount)
		fmt.Fprintf(&b, "  - Below Threshold: %d times\n", insight.BelowCount)
	}
	fmt.Fprintf(&b, "\nOverall Quality Index: %.2f (Lower is better)\n", quality)
	return b.String()
}
