package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds the connection settings for the remote simulation
// server and the pipeline tuning knobs.
type ServerConfig struct {
	Host              string        `json:"host" mapstructure:"host"`
	Port              int           `json:"port" mapstructure:"port"`
	ClientID          string        `json:"clientId" mapstructure:"clientId"`
	ReconnectInterval time.Duration `json:"reconnectInterval" mapstructure:"reconnectInterval"`
	JoinTimeout       time.Duration `json:"joinTimeout" mapstructure:"joinTimeout"`
	UnitPollRate      uint32        `json:"unitPollRate" mapstructure:"unitPollRate"`
	MaxBackoff        uint32        `json:"maxBackoff" mapstructure:"maxBackoff"`
	UnitQueueSize     int           `json:"unitQueueSize" mapstructure:"unitQueueSize"`
	EventQueueSize    int           `json:"eventQueueSize" mapstructure:"eventQueueSize"`
}

// Addr returns the host:port dial target.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GraylogConfig holds GELF log shipping settings.
type GraylogConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address"`
}

// InfluxConfig holds the metrics sink settings.
type InfluxConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
}

// DBConfig holds the recorder's postgres settings. When postgres is not
// reachable the recorder falls back to a local sqlite file.
type DBConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// RecorderConfig holds session recording settings.
type RecorderConfig struct {
	Enabled       bool          `json:"enabled" mapstructure:"enabled"`
	FlushInterval time.Duration `json:"flushInterval" mapstructure:"flushInterval"`
	LocalDir      string        `json:"localDir" mapstructure:"localDir"`
}

// OTelConfig holds OpenTelemetry log export settings.
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// NATSConfig holds the notification publisher settings.
type NATSConfig struct {
	Enabled       bool   `json:"enabled" mapstructure:"enabled"`
	URL           string `json:"url" mapstructure:"url"`
	SubjectPrefix string `json:"subjectPrefix" mapstructure:"subjectPrefix"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	// Set default values
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", 10051)
	viper.SetDefault("server.clientId", "dcs-console")
	viper.SetDefault("server.reconnectInterval", "1s")
	viper.SetDefault("server.joinTimeout", "100ms")
	viper.SetDefault("server.unitPollRate", 5)
	viper.SetDefault("server.maxBackoff", 30)
	viper.SetDefault("server.unitQueueSize", 8192)
	viper.SetDefault("server.eventQueueSize", 1024)

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "dcsconnect")

	viper.SetDefault("recorder.enabled", false)
	viper.SetDefault("recorder.flushInterval", "10s")
	viper.SetDefault("recorder.localDir", "./recordings")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "dcs-metrics")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "dcs-connect")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("nats.enabled", false)
	viper.SetDefault("nats.url", "nats://localhost:4222")
	viper.SetDefault("nats.subjectPrefix", "dcs")

	viper.SetConfigName("dcs_connect.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetServerConfig returns the typed server section.
func GetServerConfig() ServerConfig {
	return ServerConfig{
		Host:              viper.GetString("server.host"),
		Port:              viper.GetInt("server.port"),
		ClientID:          viper.GetString("server.clientId"),
		ReconnectInterval: viper.GetDuration("server.reconnectInterval"),
		JoinTimeout:       viper.GetDuration("server.joinTimeout"),
		UnitPollRate:      viper.GetUint32("server.unitPollRate"),
		MaxBackoff:        viper.GetUint32("server.maxBackoff"),
		UnitQueueSize:     viper.GetInt("server.unitQueueSize"),
		EventQueueSize:    viper.GetInt("server.eventQueueSize"),
	}
}

// GetGraylogConfig returns the typed graylog section.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}

// GetInfluxConfig returns the typed influx section.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
	}
}

// GetDBConfig returns the typed db section.
func GetDBConfig() DBConfig {
	return DBConfig{
		Host:     viper.GetString("db.host"),
		Port:     viper.GetString("db.port"),
		Username: viper.GetString("db.username"),
		Password: viper.GetString("db.password"),
		Database: viper.GetString("db.database"),
	}
}

// GetRecorderConfig returns the typed recorder section.
func GetRecorderConfig() RecorderConfig {
	return RecorderConfig{
		Enabled:       viper.GetBool("recorder.enabled"),
		FlushInterval: viper.GetDuration("recorder.flushInterval"),
		LocalDir:      viper.GetString("recorder.localDir"),
	}
}

// GetOTelConfig returns the typed otel section.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetNATSConfig returns the typed nats section.
func GetNATSConfig() NATSConfig {
	return NATSConfig{
		Enabled:       viper.GetBool("nats.enabled"),
		URL:           viper.GetString("nats.url"),
		SubjectPrefix: viper.GetString("nats.subjectPrefix"),
	}
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}
