package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds runtime configuration for the notifier service. All values are
// sourced from the environment once at startup; there is no dynamic reload.
type Config struct {
	// MQTT broker
	Broker      string
	Port        int
	Username    string
	Password    string
	ClientID    string
	BaseTopic   string
	StatusTopic string
	// Command topic accepting control messages such as {"cmd":"shutdown"}
	CommandTopic string

	// Notification relay service URL (shoutrrr format, e.g. pushsafer://...)
	NotifyURL string

	// Storage backend: influx or sqlite
	StorageBackend string
	InfluxURL      string
	InfluxToken    string
	InfluxOrg      string
	InfluxBucket   string
	SQLitePath     string

	// Optional Kafka archive of accepted readings; empty brokers disables it
	KafkaBrokers []string
	KafkaTopic   string

	// Daily report trigger, matched against a reading's UTC hour and minute
	ReportHour   int
	ReportMinute int

	// Trend evaluation
	TrendLookback time.Duration

	// Ops HTTP server (health, stats, prometheus metrics)
	HTTPAddr string

	LogLevel string
	Workers  int
}

// Load reads configuration from the environment.
func Load() *Config {
	cfg := &Config{
		Broker:         os.Getenv("MQTT_BROKER"),
		Port:           getenvInt("MQTT_PORT", 1883),
		Username:       os.Getenv("MQTT_USERNAME"),
		Password:       os.Getenv("MQTT_PASSWORD"),
		ClientID:       getenv("MQTT_CLIENT_ID", "iot-service-notifier"),
		BaseTopic:      os.Getenv("MQTT_BASE_TOPIC"),
		StatusTopic:    os.Getenv("MQTT_STATUS_TOPIC"),
		CommandTopic:   getenv("MQTT_COMMAND_TOPIC", ""),
		NotifyURL:      os.Getenv("NOTIFY_URL"),
		StorageBackend: getenv("STORAGE_BACKEND", "influx"),
		InfluxURL:      os.Getenv("INFLUXDB_URL"),
		InfluxToken:    os.Getenv("INFLUXDB_TOKEN"),
		InfluxOrg:      os.Getenv("INFLUXDB_ORG"),
		InfluxBucket:   os.Getenv("INFLUXDB_BUCKET"),
		SQLitePath:     getenv("SQLITE_PATH", "./notifier.db"),
		KafkaTopic:     getenv("KAFKA_TOPIC", "sensor-readings"),
		ReportHour:     getenvInt("REPORT_HOUR", 0),
		ReportMinute:   getenvInt("REPORT_MINUTE", 0),
		TrendLookback:  getenvDuration("TREND_LOOKBACK", 6*time.Hour),
		HTTPAddr:       getenv("HTTP_ADDR", ":8080"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		Workers:        getenvInt("WORKERS", 4),
	}

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	if cfg.CommandTopic == "" && cfg.BaseTopic != "" {
		cfg.CommandTopic = strings.TrimSuffix(cfg.BaseTopic, "/") + "/cmd"
	}

	return cfg
}

// Validate checks that all required fields are present. A missing required
// field is an unrecoverable startup error.
func (c *Config) Validate() error {
	var missing []string

	if c.Broker == "" {
		missing = append(missing, "MQTT_BROKER")
	}
	if c.BaseTopic == "" {
		missing = append(missing, "MQTT_BASE_TOPIC")
	}
	if c.StatusTopic == "" {
		missing = append(missing, "MQTT_STATUS_TOPIC")
	}
	if c.NotifyURL == "" {
		missing = append(missing, "NOTIFY_URL")
	}

	switch c.StorageBackend {
	case "influx":
		if c.InfluxURL == "" {
			missing = append(missing, "INFLUXDB_URL")
		}
		if c.InfluxToken == "" {
			missing = append(missing, "INFLUXDB_TOKEN")
		}
		if c.InfluxOrg == "" {
			missing = append(missing, "INFLUXDB_ORG")
		}
		if c.InfluxBucket == "" {
			missing = append(missing, "INFLUXDB_BUCKET")
		}
	case "sqlite":
		// SQLitePath has a default, nothing required
	default:
		return fmt.Errorf("unknown storage backend %q (want influx or sqlite)", c.StorageBackend)
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if c.ReportHour < 0 || c.ReportHour > 23 {
		return errors.New("REPORT_HOUR must be in [0,23]")
	}
	if c.ReportMinute < 0 || c.ReportMinute > 59 {
		return errors.New("REPORT_MINUTE must be in [0,59]")
	}

	return nil
}

// BrokerAddr returns the tcp:// address of the MQTT broker.
func (c *Config) BrokerAddr() string {
	return fmt.Sprintf("tcp://%s:%d", c.Broker, c.Port)
}

// SensorTopic returns the wildcard subscription pattern for sensor channels.
func (c *Config) SensorTopic() string {
	return strings.TrimSuffix(c.BaseTopic, "/") + "/+/#"
}

// ArchiveEnabled reports whether the Kafka reading archive is configured.
func (c *Config) ArchiveEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getenvInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return d
	}
	return n
}

func getenvDuration(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	dur, err := time.ParseDuration(v)
	if err != nil {
		return d
	}
	return dur
}
