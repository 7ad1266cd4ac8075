package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Census  CensusConfig  `yaml:"census" mapstructure:"census"`
	Points  PointsConfig  `yaml:"points" mapstructure:"points"`
	Prune   PruneConfig   `yaml:"prune" mapstructure:"prune"`
	Routing RoutingConfig `yaml:"routing" mapstructure:"routing"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Region  RegionConfig  `yaml:"region" mapstructure:"region"`
	Render  RenderConfig  `yaml:"render" mapstructure:"render"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// CensusConfig configures the ACS demographic fetch.
type CensusConfig struct {
	APIKey      string   `yaml:"api_key" mapstructure:"api_key"`
	Year        int      `yaml:"year" mapstructure:"year"`
	State       string   `yaml:"state" mapstructure:"state"`
	Counties    []string `yaml:"counties" mapstructure:"counties"`
	TotalVar    string   `yaml:"total_var" mapstructure:"total_var"`
	SubgroupVar string   `yaml:"subgroup_var" mapstructure:"subgroup_var"`
	RateLimit   float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// PointsConfig configures the centroid and clinic point sources.
type PointsConfig struct {
	CentroidPath string `yaml:"centroid_path" mapstructure:"centroid_path"`
	ClinicPath   string `yaml:"clinic_path" mapstructure:"clinic_path"`
	ClinicSheet  string `yaml:"clinic_sheet" mapstructure:"clinic_sheet"`
	ClinicColumn string `yaml:"clinic_column" mapstructure:"clinic_column"`
}

// PruneConfig configures candidate pruning.
type PruneConfig struct {
	K int `yaml:"k" mapstructure:"k"`
}

// RoutingConfig configures the transit routing service.
type RoutingConfig struct {
	APIKey        string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL       string  `yaml:"base_url" mapstructure:"base_url"`
	DepartureDate string  `yaml:"departure_date" mapstructure:"departure_date"`
	DepartureTime string  `yaml:"departure_time" mapstructure:"departure_time"`
	RateLimit     float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	MaxRetries    int     `yaml:"max_retries" mapstructure:"max_retries"`
}

// StoreConfig configures the checkpoint database and intermediate CSV.
type StoreConfig struct {
	Path    string `yaml:"path" mapstructure:"path"`
	CSVPath string `yaml:"csv_path" mapstructure:"csv_path"`
}

// RegionConfig configures polygon input and shapefile output.
type RegionConfig struct {
	ShapefilePath string `yaml:"shapefile_path" mapstructure:"shapefile_path"`
	OutputPath    string `yaml:"output_path" mapstructure:"output_path"`
}

// RenderConfig configures the choropleth output.
type RenderConfig struct {
	OutputPath   string `yaml:"output_path" mapstructure:"output_path"`
	Width        int    `yaml:"width" mapstructure:"width"`
	Height       int    `yaml:"height" mapstructure:"height"`
	HighwayPath  string `yaml:"highway_path" mapstructure:"highway_path"`
	DrawClinics  bool   `yaml:"draw_clinics" mapstructure:"draw_clinics"`
	DrawHighways bool   `yaml:"draw_highways" mapstructure:"draw_highways"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("TRANSIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("census.year", 2019)
	v.SetDefault("census.state", "13") // Georgia
	v.SetDefault("census.counties", []string{"089", "121"})
	v.SetDefault("census.total_var", "B01003_001E")
	v.SetDefault("census.subgroup_var", "B03003_003E")
	v.SetDefault("census.rate_limit", 2)
	v.SetDefault("points.clinic_sheet", "")
	v.SetDefault("points.clinic_column", "Coordinates")
	v.SetDefault("prune.k", 10)
	v.SetDefault("routing.base_url", "https://maps.googleapis.com/maps/api/distancematrix/json")
	v.SetDefault("routing.departure_date", "2020-02-04")
	v.SetDefault("routing.departure_time", "09:00:00")
	v.SetDefault("routing.rate_limit", 5)
	v.SetDefault("routing.max_retries", 3)
	v.SetDefault("store.path", "transit_access.db")
	v.SetDefault("store.csv_path", "travel_times.csv")
	v.SetDefault("region.output_path", "transit_access.shp")
	v.SetDefault("render.output_path", "transit_access.png")
	v.SetDefault("render.width", 2400)
	v.SetDefault("render.height", 1800)
	v.SetDefault("render.draw_clinics", true)
	v.SetDefault("render.draw_highways", false)

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
