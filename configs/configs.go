package configs

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"

	RoutingOSRM   = "osrm"
	RoutingGoogle = "google"

	OverflowDropOldest = "drop_oldest"
	OverflowDisconnect = "disconnect"
)

type Conf struct {
	ServiceName string `mapstructure:"SERVICE_NAME"`
	Production  bool   `mapstructure:"PRODUCTION"`

	StorageMode string `mapstructure:"STORAGE_MODE"`
	DBDriver    string `mapstructure:"DB_DRIVER"`
	DBHost      string `mapstructure:"DB_HOST"`
	DBPort      string `mapstructure:"DB_PORT"`
	DBUser      string `mapstructure:"DB_USER"`
	DBPassword  string `mapstructure:"DB_PASSWORD"`
	DBName      string `mapstructure:"DB_NAME"`
	DBSSLMode   string `mapstructure:"DB_SSLMODE"`

	RedisHost     string `mapstructure:"REDIS_HOST"`
	RedisPort     string `mapstructure:"REDIS_PORT"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	WebServerPort  string        `mapstructure:"WEB_SERVER_PORT"`
	ShutdownGrace  time.Duration `mapstructure:"SHUTDOWN_GRACE"`
	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`

	RoutingProvider       string        `mapstructure:"ROUTING_PROVIDER"`
	RoutingURL            string        `mapstructure:"ROUTING_URL"`
	GoogleMapsAPIKey      string        `mapstructure:"GOOGLE_MAPS_API_KEY"`
	RoutingRequestTimeout time.Duration `mapstructure:"ROUTING_REQUEST_TIMEOUT"`
	RoutingBudget         time.Duration `mapstructure:"ROUTING_BUDGET"`
	RoutingMaxRetries     int           `mapstructure:"ROUTING_MAX_RETRIES"`
	RoutingBackoff        time.Duration `mapstructure:"ROUTING_BACKOFF"`
	BreakerFailures       uint32        `mapstructure:"ROUTING_BREAKER_FAILURES"`
	BreakerOpenFor        time.Duration `mapstructure:"ROUTING_BREAKER_OPEN_FOR"`

	TariffPerKm     float64 `mapstructure:"TARIFF_PER_KM"`
	TariffPerMinute float64 `mapstructure:"TARIFF_PER_MINUTE"`
	TariffMinimum   float64 `mapstructure:"TARIFF_MINIMUM_FARE"`

	RegionMinLat float64 `mapstructure:"REGION_MIN_LAT"`
	RegionMinLon float64 `mapstructure:"REGION_MIN_LON"`
	RegionMaxLat float64 `mapstructure:"REGION_MAX_LAT"`
	RegionMaxLon float64 `mapstructure:"REGION_MAX_LON"`

	StalenessThreshold time.Duration `mapstructure:"LOCATION_STALENESS_THRESHOLD"`
	LocationTTL        time.Duration `mapstructure:"LOCATION_TTL"`
	FlushSchedule      string        `mapstructure:"LOCATION_FLUSH_SCHEDULE"`
	RerouteSchedule    string        `mapstructure:"REROUTE_SCHEDULE"`
	RerouteBatch       int           `mapstructure:"REROUTE_BATCH"`
	RerouteClaimTTL    time.Duration `mapstructure:"REROUTE_CLAIM_TTL"`
	JobsInProcess      bool          `mapstructure:"JOBS_IN_PROCESS"`

	HubAllowedOrigins string        `mapstructure:"HUB_ALLOWED_ORIGINS"`
	HubQueueSize      int           `mapstructure:"HUB_QUEUE_SIZE"`
	HubOverflowPolicy string        `mapstructure:"HUB_OVERFLOW_POLICY"`
	HubPingPeriod     time.Duration `mapstructure:"HUB_PING_PERIOD"`
	HubWriteWait      time.Duration `mapstructure:"HUB_WRITE_WAIT"`

	AMQPURL      string `mapstructure:"AMQP_URL"`
	AMQPExchange string `mapstructure:"AMQP_EXCHANGE"`

	MQTTBroker   string `mapstructure:"MQTT_BROKER"`
	MQTTClientID string `mapstructure:"MQTT_CLIENT_ID"`
	MQTTTopic    string `mapstructure:"MQTT_TOPIC"`

	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVICE_NAME", "fleet-dispatch")
	v.SetDefault("PRODUCTION", false)

	v.SetDefault("STORAGE_MODE", StorageMemory)
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_NAME", "fleet")
	v.SetDefault("DB_SSLMODE", "disable")

	v.SetDefault("REDIS_HOST", "")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")

	v.SetDefault("WEB_SERVER_PORT", "8080")
	v.SetDefault("SHUTDOWN_GRACE", 10*time.Second)
	v.SetDefault("RATE_LIMIT_RPS", 20.0)
	v.SetDefault("RATE_LIMIT_BURST", 40)

	v.SetDefault("ROUTING_PROVIDER", RoutingOSRM)
	v.SetDefault("ROUTING_URL", "http://localhost:5000")
	v.SetDefault("GOOGLE_MAPS_API_KEY", "")
	v.SetDefault("ROUTING_REQUEST_TIMEOUT", 2*time.Second)
	v.SetDefault("ROUTING_BUDGET", 5*time.Second)
	v.SetDefault("ROUTING_MAX_RETRIES", 1)
	v.SetDefault("ROUTING_BACKOFF", 200*time.Millisecond)
	v.SetDefault("ROUTING_BREAKER_FAILURES", 5)
	v.SetDefault("ROUTING_BREAKER_OPEN_FOR", 30*time.Second)

	v.SetDefault("TARIFF_PER_KM", 1.5)
	v.SetDefault("TARIFF_PER_MINUTE", 0.3)
	v.SetDefault("TARIFF_MINIMUM_FARE", 5.0)

	v.SetDefault("REGION_MIN_LAT", -90.0)
	v.SetDefault("REGION_MIN_LON", -180.0)
	v.SetDefault("REGION_MAX_LAT", 90.0)
	v.SetDefault("REGION_MAX_LON", 180.0)

	v.SetDefault("LOCATION_STALENESS_THRESHOLD", 2*time.Minute)
	v.SetDefault("LOCATION_TTL", 10*time.Minute)
	v.SetDefault("LOCATION_FLUSH_SCHEDULE", "@every 30s")
	v.SetDefault("REROUTE_SCHEDULE", "@every 15s")
	v.SetDefault("REROUTE_BATCH", 50)
	v.SetDefault("REROUTE_CLAIM_TTL", time.Minute)
	v.SetDefault("JOBS_IN_PROCESS", true)

	v.SetDefault("HUB_ALLOWED_ORIGINS", "")
	v.SetDefault("HUB_QUEUE_SIZE", 64)
	v.SetDefault("HUB_OVERFLOW_POLICY", OverflowDropOldest)
	v.SetDefault("HUB_PING_PERIOD", 30*time.Second)
	v.SetDefault("HUB_WRITE_WAIT", 10*time.Second)

	v.SetDefault("AMQP_URL", "")
	v.SetDefault("AMQP_EXCHANGE", "fleet.events")

	v.SetDefault("MQTT_BROKER", "")
	v.SetDefault("MQTT_CLIENT_ID", "fleet-dispatch")
	v.SetDefault("MQTT_TOPIC", "fleet/drivers/+/location")

	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
}

// LoadConfig reads path/.env when present; the environment overrides it.
func LoadConfig(path string) (*Conf, error) {
	v := viper.New()
	setDefaults(v)

	v.AddConfigPath(path)
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Conf
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Conf) Validate() error {
	var errs []error
	switch c.StorageMode {
	case StorageMemory, StoragePostgres:
	default:
		errs = append(errs, fmt.Errorf("STORAGE_MODE %q: want %s or %s", c.StorageMode, StorageMemory, StoragePostgres))
	}
	switch c.RoutingProvider {
	case RoutingOSRM:
		if c.RoutingURL == "" {
			errs = append(errs, errors.New("ROUTING_URL is required for the osrm provider"))
		}
	case RoutingGoogle:
		if c.GoogleMapsAPIKey == "" {
			errs = append(errs, errors.New("GOOGLE_MAPS_API_KEY is required for the google provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("ROUTING_PROVIDER %q: want %s or %s", c.RoutingProvider, RoutingOSRM, RoutingGoogle))
	}
	if c.RoutingRequestTimeout <= 0 || c.RoutingRequestTimeout >= c.RoutingBudget {
		errs = append(errs, errors.New("ROUTING_REQUEST_TIMEOUT must be positive and shorter than ROUTING_BUDGET"))
	}
	if c.RoutingMaxRetries < 0 {
		errs = append(errs, errors.New("ROUTING_MAX_RETRIES must not be negative"))
	}
	if c.TariffMinimum < 0 || c.TariffPerKm < 0 || c.TariffPerMinute < 0 {
		errs = append(errs, errors.New("tariff values must not be negative"))
	}
	if c.RegionMinLat >= c.RegionMaxLat || c.RegionMinLon >= c.RegionMaxLon {
		errs = append(errs, errors.New("REGION bounds are inverted"))
	}
	if c.StalenessThreshold <= 0 {
		errs = append(errs, errors.New("LOCATION_STALENESS_THRESHOLD must be positive"))
	}
	if c.LocationTTL < c.StalenessThreshold {
		errs = append(errs, errors.New("LOCATION_TTL must be at least LOCATION_STALENESS_THRESHOLD"))
	}
	switch c.HubOverflowPolicy {
	case OverflowDropOldest, OverflowDisconnect:
	default:
		errs = append(errs, fmt.Errorf("HUB_OVERFLOW_POLICY %q: want %s or %s", c.HubOverflowPolicy, OverflowDropOldest, OverflowDisconnect))
	}
	if c.HubQueueSize <= 0 {
		errs = append(errs, errors.New("HUB_QUEUE_SIZE must be positive"))
	}
	if !c.JobsInProcess && (c.StorageMode != StoragePostgres || c.RedisAddr() == "") {
		errs = append(errs, errors.New("JOBS_IN_PROCESS=false needs postgres storage and redis so a separate worker sees the same state"))
	}
	return errors.Join(errs...)
}

func (c *Conf) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

func (c *Conf) RedisAddr() string {
	if c.RedisHost == "" {
		return ""
	}
	return c.RedisHost + ":" + c.RedisPort
}

// AllowedOrigins splits the comma separated allow-list. Empty means same-host only.
func (c *Conf) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.HubAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
