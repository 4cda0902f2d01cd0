package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Fetcher     FetcherConfig     `yaml:"fetcher" mapstructure:"fetcher"`
	Communities CommunitiesConfig `yaml:"communities" mapstructure:"communities"`
	Listings    ListingsConfig    `yaml:"listings" mapstructure:"listings"`
	Livability  LivabilityConfig  `yaml:"livability" mapstructure:"livability"`
	Dataset     DatasetConfig     `yaml:"dataset" mapstructure:"dataset"`
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// FetcherConfig configures the shared HTTP client.
type FetcherConfig struct {
	UserAgent         string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries        int     `yaml:"max_retries" mapstructure:"max_retries"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
}

// CommunitiesConfig configures the community snapshot and zip boundary
// sources.
type CommunitiesConfig struct {
	SnapshotURL    string `yaml:"snapshot_url" mapstructure:"snapshot_url"`
	ZipBoundaryURL string `yaml:"zip_boundary_url" mapstructure:"zip_boundary_url"`
}

// ListingsConfig configures the rental listing scrape.
type ListingsConfig struct {
	BaseURL                  string `yaml:"base_url" mapstructure:"base_url"`
	StripSegment             string `yaml:"strip_segment" mapstructure:"strip_segment"`
	MaxPages                 int    `yaml:"max_pages" mapstructure:"max_pages"`
	SystemicFailureThreshold int    `yaml:"systemic_failure_threshold" mapstructure:"systemic_failure_threshold"`
	AreaDelayMillis          int    `yaml:"area_delay_millis" mapstructure:"area_delay_millis"`
}

// AreaDelay returns the configured pause between areas.
func (c ListingsConfig) AreaDelay() time.Duration {
	return time.Duration(c.AreaDelayMillis) * time.Millisecond
}

// LivabilityConfig configures livability score collection.
type LivabilityConfig struct {
	BaseURL        string   `yaml:"base_url" mapstructure:"base_url"`
	SupplementFile string   `yaml:"supplement_file" mapstructure:"supplement_file"`
	Zips           []string `yaml:"zips" mapstructure:"zips"`
	Concurrency    int      `yaml:"concurrency" mapstructure:"concurrency"`
}

// DatasetConfig configures the output dataset directory.
type DatasetConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// StoreConfig configures the run audit database.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// chicagoZips is the default livability collection set: every
// residential zip code inside the city limits.
var chicagoZips = []string{
	"60601", "60602", "60603", "60604", "60605", "60606", "60607",
	"60608", "60609", "60610", "60611", "60612", "60613", "60614",
	"60615", "60616", "60617", "60618", "60619", "60620", "60621",
	"60622", "60623", "60624", "60625", "60626", "60628", "60629",
	"60630", "60631", "60632", "60633", "60634", "60636", "60637",
	"60638", "60639", "60640", "60641", "60642", "60643", "60644",
	"60645", "60646", "60647", "60649", "60651", "60652", "60653",
	"60654", "60655", "60656", "60657", "60659", "60660", "60661",
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CHIFFORDABLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("fetcher.user_agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")
	v.SetDefault("fetcher.timeout_secs", 30)
	v.SetDefault("fetcher.max_retries", 3)
	v.SetDefault("fetcher.requests_per_second", 1.0)
	v.SetDefault("fetcher.burst", 1)
	v.SetDefault("communities.snapshot_url", "https://services5.arcgis.com/LcMXE3TFhi1BSaCY/arcgis/rest/services/Community_Data_Snapshots/FeatureServer/0/query?where=1%3D1&outFields=*&f=geojson")
	v.SetDefault("communities.zip_boundary_url", "https://data.cityofchicago.org/api/views/unjd-c2ca/rows.csv?accessType=DOWNLOAD")
	v.SetDefault("listings.base_url", "https://www.zillow.com")
	v.SetDefault("listings.strip_segment", "chicago-il-")
	v.SetDefault("listings.max_pages", 20)
	v.SetDefault("listings.systemic_failure_threshold", 3)
	v.SetDefault("listings.area_delay_millis", 2000)
	v.SetDefault("livability.base_url", "https://livabilityindex.aarp.org")
	v.SetDefault("livability.supplement_file", "")
	v.SetDefault("livability.zips", chicagoZips)
	v.SetDefault("livability.concurrency", 4)
	v.SetDefault("dataset.dir", "data")
	v.SetDefault("store.path", "chiffordable.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks configuration invariants before a run starts. Failing
// fast here beats discovering a bad value three areas into a scrape.
func (c *Config) Validate() error {
	var problems []string

	if c.Communities.SnapshotURL == "" {
		problems = append(problems, "communities.snapshot_url is required")
	}
	if c.Listings.BaseURL == "" {
		problems = append(problems, "listings.base_url is required")
	}
	if c.Livability.BaseURL == "" {
		problems = append(problems, "livability.base_url is required")
	}
	if c.Dataset.Dir == "" {
		problems = append(problems, "dataset.dir is required")
	}
	if c.Listings.MaxPages < 1 || c.Listings.MaxPages > 100 {
		problems = append(problems, "listings.max_pages must be between 1 and 100")
	}
	if c.Listings.SystemicFailureThreshold < 1 {
		problems = append(problems, "listings.systemic_failure_threshold must be >= 1")
	}
	if c.Livability.Concurrency < 1 || c.Livability.Concurrency > 16 {
		problems = append(problems, "livability.concurrency must be between 1 and 16")
	}
	if c.Fetcher.MaxRetries < 0 {
		problems = append(problems, "fetcher.max_retries must be >= 0")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
