// Package thresholds holds the static per-metric alerting bounds and the
// canned alert message templates. Both tables are immutable after process
// start, so concurrent reads need no locking.
package thresholds

import (
	"fmt"
	"strings"

	"github.com/mtskcm/iot-service-notifier/internal/models"
)

// DefaultTrendBound is the absolute trend delta that triggers a trend alert
// when a metric's spec defines no explicit bound.
const DefaultTrendBound = 5.0

// Level selects the high or low side of a threshold.
type Level string

const (
	LevelHigh Level = "high"
	LevelLow  Level = "low"
)

// Table maps metric names to their threshold specs.
type Table map[string]models.ThresholdSpec

// Default returns the built-in threshold table.
func Default() Table {
	return Table{
		"temperature": {Metric: "temperature", High: f(30.0), Low: f(15.0)},
		"humidity":    {Metric: "humidity", High: f(60.0), Low: f(20.0)},
		"pressure":    {Metric: "pressure", High: f(101325.0), Low: f(98000.0)},
		"sound":       {Metric: "sound", High: f(70.0)},
		"light":       {Metric: "light", High: f(90.0)},
		"rssi":        {Metric: "rssi", Low: f(-70.0)},
	}
}

// Lookup returns the spec for a metric. Absence means the metric is
// unmonitored, never an error.
func (t Table) Lookup(metric string) (models.ThresholdSpec, bool) {
	spec, ok := t[metric]
	return spec, ok
}

// TrendBound returns the trend bound for a metric's spec, falling back to
// DefaultTrendBound when the spec defines none.
func TrendBound(spec models.ThresholdSpec) float64 {
	if spec.TrendBound != nil {
		return *spec.TrendBound
	}
	return DefaultTrendBound
}

// Message returns the canned alert body for a (metric, level) pair. Unknown
// pairs fall back to a generic message so alert wording stays deterministic.
func Message(metric string, level Level, value float64, units string) string {
	if byLevel, ok := messages[metric]; ok {
		if tmpl, ok := byLevel[level]; ok {
			return fmt.Sprintf(tmpl, value, units)
		}
	}
	return fmt.Sprintf("%s is at %v %s.", Capitalize(metric), value, units)
}

// Capitalize upper-cases the first rune of a metric name for alert titles.
func Capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// messages holds the per-metric explanatory templates, keyed by metric then
// level. Each template takes (value, units).
var messages = map[string]map[Level]string{
	"temperature": {
		LevelHigh: "The temperature is %v %s, exceeding the threshold. Ensure proper ventilation or cooling to maintain comfort and avoid overheating.",
		LevelLow:  "The temperature is %v %s, below the threshold. Consider using a heater or wearing warm clothing.",
	},
	"humidity": {
		LevelHigh: "Humidity has risen to %v %s. High humidity may cause discomfort. Consider using a dehumidifier.",
		LevelLow:  "Humidity has dropped to %v %s. Dry air may cause skin or respiratory discomfort. Use a humidifier or increase ventilation.",
	},
	"pressure": {
		LevelHigh: "Atmospheric pressure is %v %s, exceeding the normal range. Ensure ventilation in enclosed spaces.",
		LevelLow:  "Atmospheric pressure is %v %s. This may indicate stormy weather. Stay updated on weather forecasts.",
	},
	"sound": {
		LevelHigh: "High sound levels detected: %v %s. Prolonged exposure may cause discomfort. Consider reducing noise for a calmer environment.",
	},
	"light": {
		LevelHigh: "Intense light levels detected: %v %s. Consider reducing light exposure, especially during nighttime, for better sleep quality.",
	},
	"rssi": {
		LevelLow: "Signal strength is weak: %v %s. Consider checking your network connection or moving closer to the Wi-Fi router.",
	},
}

func f(v float64) *float64 { return &v }
