package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the AML detection engine.
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Elasticsearch ElasticsearchConfig
	Kafka         KafkaConfig
	S3            S3Config
	Auth          AuthConfig
	Logging       LoggingConfig
	Signing       SigningConfig
	Detection     DetectionConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// DSN returns the database connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// ElasticsearchConfig holds Elasticsearch configuration for alert search.
type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Index     string   `mapstructure:"index"`
}

// KafkaConfig holds Kafka configuration for transaction ingest.
type KafkaConfig struct {
	Brokers          []string `mapstructure:"brokers"`
	ConsumerGroup    string   `mapstructure:"consumer_group"`
	TransactionTopic string   `mapstructure:"transaction_topic"`
}

// S3Config holds AWS S3 configuration for the regulator-facing alert archive.
type S3Config struct {
	Region        string `mapstructure:"region"`
	ArchiveBucket string `mapstructure:"archive_bucket"`
	Endpoint      string `mapstructure:"endpoint"` // For local testing with MinIO
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	UseSSL        bool   `mapstructure:"use_ssl"`
}

// AuthConfig holds authentication settings for the analyst API.
type AuthConfig struct {
	JWTPublicKeyPath string `mapstructure:"jwt_public_key_path"`
	JWTIssuer        string `mapstructure:"jwt_issuer"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// SigningConfig holds the HMAC secret used to sign persisted alerts.
type SigningConfig struct {
	AlertHMACSecret string `mapstructure:"alert_hmac_secret"`
}

// DetectionConfig holds every tunable of the detection engine. The defaults
// below are the documented operating point; changing them changes which
// behavior is flagged, not how it is explained.
type DetectionConfig struct {
	// Structuring: dynamic threshold max(1.1*p90, StructuringThreshold),
	// outflows in [0.85T, 0.99T], at least MinOutflows across MinDays dates.
	StructuringThreshold  float64 `mapstructure:"structuring_threshold"`
	StructuringMinCount   int     `mapstructure:"structuring_min_count"`
	StructuringMinDays    int     `mapstructure:"structuring_min_days"`

	// Smurfing: unique inflow senders within the window.
	SmurfingMinSenders int           `mapstructure:"smurfing_min_senders"`
	SmurfingWindow     time.Duration `mapstructure:"smurfing_window"`

	// Layering: inflow matched by a later outflow of near-equal amount.
	LayeringWindow          time.Duration `mapstructure:"layering_window"`
	LayeringAmountTolerance float64       `mapstructure:"layering_amount_tolerance"`
	LayeringMinCycles       int           `mapstructure:"layering_min_cycles"`

	// Network analysis.
	MaxPathDepth              int           `mapstructure:"max_path_depth"`
	HubMinCounterparties      int           `mapstructure:"hub_min_counterparties"`
	HubMinRedistributions     int           `mapstructure:"hub_min_redistributions"`
	RapidRedistributionWindow time.Duration `mapstructure:"rapid_redistribution_window"`

	// Evidence weights and score bands.
	SuspiciousTxWeight  int `mapstructure:"suspicious_tx_weight"`
	PatternWeight       int `mapstructure:"pattern_weight"`
	NetworkSignalWeight int `mapstructure:"network_signal_weight"`
	ProbableMLBonus     int `mapstructure:"probable_ml_bonus"`
	SuspiciousScore     int `mapstructure:"suspicious_score"`
	HighRiskScore       int `mapstructure:"high_risk_score"`
	ProbableMLScore     int `mapstructure:"probable_ml_score"`

	// Unusual-timing hours, half-open [Start, End).
	UnusualHourStart int `mapstructure:"unusual_hour_start"`
	UnusualHourEnd   int `mapstructure:"unusual_hour_end"`

	// Alert dedup window: at most one alert per account within it.
	DedupWindow time.Duration `mapstructure:"dedup_window"`

	// IANA zone for civil-date boundaries (structuring days, spike days).
	TimeZone string `mapstructure:"time_zone"`
}

// DefaultDetection returns the documented default detection tunables.
// Tests and embedded callers start from these.
func DefaultDetection() DetectionConfig {
	return DetectionConfig{
		StructuringThreshold:      10000,
		StructuringMinCount:       3,
		StructuringMinDays:        2,
		SmurfingMinSenders:        6,
		SmurfingWindow:            48 * time.Hour,
		LayeringWindow:            2 * time.Hour,
		LayeringAmountTolerance:   0.10,
		LayeringMinCycles:         3,
		MaxPathDepth:              5,
		HubMinCounterparties:      5,
		HubMinRedistributions:     3,
		RapidRedistributionWindow: 24 * time.Hour,
		SuspiciousTxWeight:        10,
		PatternWeight:             20,
		NetworkSignalWeight:       30,
		ProbableMLBonus:           20,
		SuspiciousScore:           30,
		HighRiskScore:             60,
		ProbableMLScore:           80,
		UnusualHourStart:          0,
		UnusualHourEnd:            5,
		DedupWindow:               time.Hour,
		TimeZone:                  "UTC",
	}
}

// Location resolves the configured time zone, falling back to UTC when the
// zone is unknown or empty.
func (c DetectionConfig) Location() *time.Location {
	if c.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load loads configuration from environment and config files.
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("AML")
	v.AutomaticEnv()

	// Read config file if exists
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8086)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Database
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "aml_db")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("database.conn_max_idle_time", "5m")

	// Elasticsearch
	v.SetDefault("elasticsearch.addresses", []string{"http://localhost:9200"})
	v.SetDefault("elasticsearch.username", "elastic")
	v.SetDefault("elasticsearch.password", "changeme")
	v.SetDefault("elasticsearch.index", "aml-alerts")

	// Kafka
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.consumer_group", "aml-detection-engine")
	v.SetDefault("kafka.transaction_topic", "banking.transactions")

	// S3
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.archive_bucket", "banking-aml-alert-archive")
	v.SetDefault("s3.use_ssl", true)

	// Auth
	v.SetDefault("auth.jwt_public_key_path", "./keys/jwt_public.pem")
	v.SetDefault("auth.jwt_issuer", "banking-auth-service")

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output_path", "stdout")

	// Detection
	v.SetDefault("detection.structuring_threshold", 10000)
	v.SetDefault("detection.structuring_min_count", 3)
	v.SetDefault("detection.structuring_min_days", 2)
	v.SetDefault("detection.smurfing_min_senders", 6)
	v.SetDefault("detection.smurfing_window", "48h")
	v.SetDefault("detection.layering_window", "2h")
	v.SetDefault("detection.layering_amount_tolerance", 0.10)
	v.SetDefault("detection.layering_min_cycles", 3)
	v.SetDefault("detection.max_path_depth", 5)
	v.SetDefault("detection.hub_min_counterparties", 5)
	v.SetDefault("detection.hub_min_redistributions", 3)
	v.SetDefault("detection.rapid_redistribution_window", "24h")
	v.SetDefault("detection.suspicious_tx_weight", 10)
	v.SetDefault("detection.pattern_weight", 20)
	v.SetDefault("detection.network_signal_weight", 30)
	v.SetDefault("detection.probable_ml_bonus", 20)
	v.SetDefault("detection.suspicious_score", 30)
	v.SetDefault("detection.high_risk_score", 60)
	v.SetDefault("detection.probable_ml_score", 80)
	v.SetDefault("detection.unusual_hour_start", 0)
	v.SetDefault("detection.unusual_hour_end", 5)
	v.SetDefault("detection.dedup_window", "1h")
	v.SetDefault("detection.time_zone", "UTC")
}
