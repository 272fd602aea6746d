package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/BurntSushi/toml"
)

//Config holds everything the energy dashboard service can be configured with
type Config struct {
	Service   Service   `toml:"service"`
	Database  Database  `toml:"database"`
	Redis     Redis     `toml:"redis"`
	MQTT      MQTT      `toml:"mqtt"`
	Messaging Messaging `toml:"messaging"`
	Export    Export    `toml:"export"`
}

//Service contains the settings of the HTTP API
type Service struct {
	Port        string `toml:"port"`
	APIPrefix   string `toml:"api_prefix"`
	FrontendURL string `toml:"frontend_url"`
	Timezone    string `toml:"timezone"`
}

//Database selects and addresses the relational database
type Database struct {
	Driver     string `toml:"driver"`
	Host       string `toml:"host"`
	Port       string `toml:"port"`
	User       string `toml:"user"`
	Password   string `toml:"password"`
	Name       string `toml:"name"`
	SSLMode    string `toml:"sslmode"`
	SQLitePath string `toml:"sqlite_path"`
}

//Redis enables response caching when Addr is set
type Redis struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	TTLSeconds int    `toml:"ttl_seconds"`
}

//MQTT enables ingestion from a broker when Broker is set
type MQTT struct {
	Broker   string `toml:"broker"`
	ClientID string `toml:"client_id"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	Topic    string `toml:"topic"`
}

//Messaging enables telemetry over RabbitMQ when Host is set
type Messaging struct {
	Host string `toml:"host"`
}

//Export enables archiving of spreadsheet reports to S3 when Bucket is set
type Export struct {
	Bucket   string `toml:"bucket"`
	Prefix   string `toml:"prefix"`
	Endpoint string `toml:"endpoint"`
}

//Default returns the configuration used when nothing else is specified
func Default() Config {
	return Config{
		Service: Service{
			Port:        "5002",
			APIPrefix:   "/api/v1",
			FrontendURL: "*",
			Timezone:    "UTC",
		},
		Database: Database{
			Driver:     "postgres",
			Port:       "5432",
			SSLMode:    "disable",
			SQLitePath: "energy.db",
		},
		Redis: Redis{
			TTLSeconds: 5,
		},
		MQTT: MQTT{
			ClientID: "energy-dashboard",
			Topic:    "energy/devices/+/readings",
		},
		Export: Export{
			Prefix: "reports/",
		},
	}
}

//Load reads the optional TOML file pointed out by ENERGY_CONFIG_FILE and then
//lets environment variables override whatever it contained
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("ENERGY_CONFIG_FILE"); path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to decode config file %s: %w", path, err)
		}
	}

	overrideString(&cfg.Service.Port, "SERVICE_PORT")
	overrideString(&cfg.Service.APIPrefix, "API_PREFIX")
	overrideString(&cfg.Service.FrontendURL, "FRONTEND_URL")
	overrideString(&cfg.Service.Timezone, "ENERGY_TIMEZONE")

	overrideString(&cfg.Database.Driver, "DB_DRIVER")
	overrideString(&cfg.Database.Host, "DB_HOST")
	overrideString(&cfg.Database.Port, "DB_PORT")
	overrideString(&cfg.Database.User, "DB_USER")
	overrideString(&cfg.Database.Password, "DB_PASSWORD")
	overrideString(&cfg.Database.Name, "DB_NAME")
	overrideString(&cfg.Database.SSLMode, "DB_SSLMODE")
	overrideString(&cfg.Database.SQLitePath, "DB_SQLITE_PATH")

	overrideString(&cfg.Redis.Addr, "REDIS_ADDR")
	overrideString(&cfg.Redis.Password, "REDIS_PASSWORD")

	overrideString(&cfg.MQTT.Broker, "MQTT_BROKER")
	overrideString(&cfg.MQTT.ClientID, "MQTT_CLIENT_ID")
	overrideString(&cfg.MQTT.Username, "MQTT_USERNAME")
	overrideString(&cfg.MQTT.Password, "MQTT_PASSWORD")
	overrideString(&cfg.MQTT.Topic, "MQTT_TOPIC")

	overrideString(&cfg.Messaging.Host, "RABBITMQ_HOST")

	overrideString(&cfg.Export.Bucket, "EXPORT_S3_BUCKET")
	overrideString(&cfg.Export.Prefix, "EXPORT_S3_PREFIX")
	overrideString(&cfg.Export.Endpoint, "EXPORT_S3_ENDPOINT")

	if err := overrideInt(&cfg.Redis.DB, "REDIS_DB"); err != nil {
		return cfg, err
	}
	if err := overrideInt(&cfg.Redis.TTLSeconds, "CACHE_TTL_SECONDS"); err != nil {
		return cfg, err
	}

	if _, err := cfg.Location(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

//Location resolves the timezone that readings are bucketed into hours in
func (cfg Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(cfg.Service.Timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", cfg.Service.Timezone, err)
	}
	return loc, nil
}

//CacheTTL returns how long cached responses are kept
func (cfg Config) CacheTTL() time.Duration {
	return time.Duration(cfg.Redis.TTLSeconds) * time.Second
}

func overrideString(dst *string, key string) {
	if value, ok := os.LookupEnv(key); ok {
		*dst = value
	}
}

func overrideInt(dst *int, key string) error {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return nil
	}

	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("environment variable %s must be an integer: %w", key, err)
	}

	*dst = i
	return nil
}
