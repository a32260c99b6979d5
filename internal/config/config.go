package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the gateway
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Composer ComposerConfig `mapstructure:"composer"`
	Trigger  TriggerConfig  `mapstructure:"trigger"`
	Stats    StatsConfig    `mapstructure:"stats"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds connection settings for the Postgres dedup ledger.
// When InstanceConnectionName is set the connection goes through the Cloud
// SQL proxy unix socket instead of Host/Port.
type DatabaseConfig struct {
	Host                   string `mapstructure:"host"`
	Port                   int    `mapstructure:"port"`
	User                   string `mapstructure:"user"`
	Password               string `mapstructure:"password"`
	DBName                 string `mapstructure:"dbname"`
	SSLMode                string `mapstructure:"sslmode"`
	InstanceConnectionName string `mapstructure:"instance_connection_name"`
}

// ComposerConfig identifies the Cloud Composer environment whose Airflow
// webserver receives the DAG run requests.
type ComposerConfig struct {
	Project     string `mapstructure:"project"`
	Location    string `mapstructure:"location"`
	Environment string `mapstructure:"environment"`
	DagName     string `mapstructure:"dag_name"`
	APIVersion  string `mapstructure:"api_version"`
}

// TriggerConfig holds the admission switches and the attribute filter.
// Match lists attribute key/value pairs that must all be present on a
// notification before a DAG run is requested.
type TriggerConfig struct {
	Enabled    bool              `mapstructure:"enabled"`
	IAPTimeout time.Duration     `mapstructure:"iap_timeout"`
	Match      map[string]string `mapstructure:"match"`
}

// StatsConfig holds the ledger stats refresher configuration
type StatsConfig struct {
	IntervalMinutes int `mapstructure:"interval_minutes"`
}

// LoadConfig loads configuration from environment variables and config file
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Set defaults
	setDefaults()

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Environment variables override config file
	viper.AutomaticEnv()

	// Bind environment variables
	bindEnvVars()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "120s")

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.sslmode", "disable")

	viper.SetDefault("composer.location", "us-central1")
	viper.SetDefault("composer.api_version", "experimental")

	viper.SetDefault("trigger.enabled", true)
	viper.SetDefault("trigger.iap_timeout", "90s")
	viper.SetDefault("trigger.match", map[string]string{
		"data_type": "sales_data",
		"process":   "cleaning",
		"status":    "completed",
	})

	viper.SetDefault("stats.interval_minutes", 5)
}

// bindEnvVars binds environment variables to configuration keys
func bindEnvVars() {
	// Server
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.read_timeout", "SERVER_READ_TIMEOUT")
	viper.BindEnv("server.write_timeout", "SERVER_WRITE_TIMEOUT")

	// Database
	viper.BindEnv("database.host", "DB_HOST")
	viper.BindEnv("database.port", "DB_PORT")
	viper.BindEnv("database.user", "DB_USERNAME")
	viper.BindEnv("database.password", "DB_PASSWORD")
	viper.BindEnv("database.dbname", "DB_NAME")
	viper.BindEnv("database.sslmode", "DB_SSLMODE")
	viper.BindEnv("database.instance_connection_name", "CLOUD_SQL_PROXY_INSTANCE_CONNECTION_NAME")

	// Composer
	viper.BindEnv("composer.project", "GOOGLE_PROJECT_NAME")
	viper.BindEnv("composer.location", "GOOGLE_LOCATION")
	viper.BindEnv("composer.environment", "COMPOSER_ENVIRONMENT_NAME")
	viper.BindEnv("composer.dag_name", "DAG_NAME")
	viper.BindEnv("composer.api_version", "COMPOSER_API_VERSION")

	// Trigger
	viper.BindEnv("trigger.enabled", "ENABLED")
	viper.BindEnv("trigger.iap_timeout", "IAP_TIMEOUT")

	// Stats
	viper.BindEnv("stats.interval_minutes", "STATS_INTERVAL_MINUTES")
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	if c.InstanceConnectionName != "" {
		// Cloud SQL proxy exposes a unix socket under /cloudsql
		return fmt.Sprintf("host=/cloudsql/%s user=%s password=%s dbname=%s",
			c.InstanceConnectionName, c.User, c.Password, c.DBName)
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if c.Database.InstanceConnectionName == "" {
		if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
			return fmt.Errorf("database host, user, and dbname are required")
		}
	}

	if c.Composer.Project == "" || c.Composer.Environment == "" {
		return fmt.Errorf("composer project and environment are required")
	}

	if c.Composer.DagName == "" {
		return fmt.Errorf("dag name is required")
	}

	if c.Trigger.IAPTimeout <= 0 {
		return fmt.Errorf("IAP timeout must be greater than 0")
	}

	if c.Stats.IntervalMinutes <= 0 {
		return fmt.Errorf("stats interval must be greater than 0")
	}

	return nil
}
