package config

import (
	"fmt"
	"time"

	"github.com/jonesrussell/north-cloud/milkmob/internal/domain"
)

// Default configuration values.
const (
	defaultServiceName       = "milkmob"
	defaultServiceVersion    = "1.0.0"
	defaultServicePort       = 8090
	defaultConcurrency       = 4
	defaultShutdownTimeout   = 30 * time.Second
	defaultDBDriver          = DriverPostgres
	defaultDBHost            = "localhost"
	defaultDBPort            = 5432
	defaultDBUser            = "postgres"
	defaultDBName            = "milkmob"
	defaultDBSSLMode         = "disable"
	defaultDBPath            = "milkmob.db"
	defaultDBMaxConns        = 25
	defaultDBMaxIdleConns    = 5
	defaultRedisAddress      = "localhost:6379"
	defaultPopularTagsKey    = "milkmob:popular_tags"
	defaultLogLevel          = "info"
	defaultLogFormat         = "json"
	defaultAnalysisBaseURL   = "https://api.twelvelabs.io/v1.2"
	defaultIndexID           = "milk_campaign_index"
	defaultAnalysisTimeout   = 60 * time.Second
	defaultPollInterval      = 10 * time.Second
	defaultIndexTimeout      = 15 * time.Minute
	defaultRequestsPerSecond = 2.0
	defaultRequestBurst      = 4
	defaultMaxRetries        = 3
	defaultBreakerFailures   = 5
	defaultBreakerTimeout    = 30 * time.Second
	defaultPopularTagLimit   = 10
	defaultSimilarLimit      = 5
	defaultMilkThreshold     = 0.6
	defaultDrinkingThreshold = 0.6
	defaultCreativeThreshold = 0.5
	defaultAudioThreshold    = 0.6
	defaultTagBoostCap       = 0.2
	defaultFallbackCategory  = "active_milk_mob"
	defaultFallbackScore     = 0.5
	defaultNearbyLimit       = 3
	defaultTopFeatures       = 10
	defaultSampleKeywords    = 5
	defaultStatsTopVideos    = 10
	defaultReweightSchedule  = "@every 10m"
	defaultUploadDir         = "uploads"
	defaultUploadMaxBytes    = 200 << 20
)

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// DefaultCampaignTags are the hashtags that mark a campaign submission.
var DefaultCampaignTags = []string{
	"#gotmilk", "#milkmob", "#gotmilk2025", "#milkchallenge",
	"#milkitup", "#drinkmoremilk", "#milkmovement",
}

// DefaultAnalysisModels are the engines requested when the index is created.
var DefaultAnalysisModels = []string{"marengo2.5", "pegasus1.2"}

// Config holds all configuration for the milkmob service.
type Config struct {
	Service        ServiceConfig        `yaml:"service"`
	Database       DatabaseConfig       `yaml:"database"`
	Redis          RedisConfig          `yaml:"redis"`
	Logging        LoggingConfig        `yaml:"logging"`
	Analysis       AnalysisConfig       `yaml:"analysis"`
	Campaign       CampaignConfig       `yaml:"campaign"`
	Validation     ValidationConfig     `yaml:"validation"`
	Classification ClassificationConfig `yaml:"classification"`
	Scheduler      SchedulerConfig      `yaml:"scheduler"`
	Auth           AuthConfig           `yaml:"auth"`
	Uploads        UploadConfig         `yaml:"uploads"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	Name            string        `yaml:"name"`
	Version         string        `yaml:"version"`
	Port            int           `env:"MILKMOB_PORT"        yaml:"port"`
	Debug           bool          `env:"APP_DEBUG"           yaml:"debug"`
	Concurrency     int           `env:"MILKMOB_CONCURRENCY" yaml:"concurrency"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `env:"CORS_ORIGINS"        yaml:"cors_origins"`
}

// DatabaseConfig selects and configures the cohort store backend.
type DatabaseConfig struct {
	Driver          string        `env:"DB_DRIVER"         yaml:"driver"`
	Host            string        `env:"POSTGRES_HOST"     yaml:"host"`
	Port            int           `env:"POSTGRES_PORT"     yaml:"port"`
	User            string        `env:"POSTGRES_USER"     yaml:"user"`
	Password        string        `env:"POSTGRES_PASSWORD" yaml:"password"`
	Database        string        `env:"POSTGRES_DB"       yaml:"database"`
	SSLMode         string        `env:"POSTGRES_SSLMODE"  yaml:"sslmode"`
	Path            string        `env:"SQLITE_PATH"       yaml:"path"`
	MaxConnections  int           `yaml:"max_connections"`
	MaxIdleConns    int           `yaml:"max_idle_connections"`
	ConnMaxLifetime time.Duration `yaml:"connection_max_lifetime"`
}

// DSN returns the connection string for the configured driver.
func (d *DatabaseConfig) DSN() string {
	if d.Driver == DriverSQLite {
		return "file:" + d.Path + "?_foreign_keys=on&_busy_timeout=5000"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode)
}

// RedisConfig configures the optional persistent tag counter.
type RedisConfig struct {
	Enabled        bool   `env:"REDIS_ENABLED"  yaml:"enabled"`
	Address        string `env:"REDIS_ADDRESS"  yaml:"address"`
	Password       string `env:"REDIS_PASSWORD" yaml:"password"`
	DB             int    `yaml:"db"`
	PopularTagsKey string `yaml:"popular_tags_key"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level       string `env:"LOG_LEVEL"  yaml:"level"`
	Format      string `env:"LOG_FORMAT" yaml:"format"`
	Development bool   `yaml:"development"`
}

// AnalysisConfig configures the video-understanding service client.
type AnalysisConfig struct {
	BaseURL           string        `env:"VIDEO_API_URL"         yaml:"base_url"`
	APIKey            string        `env:"TWELVE_LABS_API_KEY"   yaml:"api_key"`
	IndexID           string        `env:"TWELVE_LABS_INDEX_ID"  yaml:"index_id"`
	Models            []string      `yaml:"models"`
	Timeout           time.Duration `yaml:"timeout"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	IndexTimeout      time.Duration `yaml:"index_timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	MaxRetries        int           `yaml:"max_retries"`
	BreakerFailures   int           `yaml:"breaker_failures"`
	BreakerTimeout    time.Duration `yaml:"breaker_timeout"`
}

// CampaignConfig holds hashtag campaign settings.
type CampaignConfig struct {
	Tags            []string `env:"CAMPAIGN_TAGS" yaml:"tags"`
	PopularTagLimit int      `yaml:"popular_tag_limit"`
	SimilarLimit    int      `yaml:"similar_limit"`
}

// ValidationConfig holds admission thresholds.
type ValidationConfig struct {
	MilkThreshold       float64 `yaml:"milk_threshold"`
	DrinkingThreshold   float64 `yaml:"drinking_threshold"`
	CreativityThreshold float64 `yaml:"creativity_threshold"`
	AudioThreshold      float64 `yaml:"audio_threshold"`
	TagBoostCap         float64 `yaml:"tag_boost_cap"`
}

// ClassificationConfig holds Milk Mob assignment settings. Categories, when
// set, replace the built-in table.
type ClassificationConfig struct {
	FallbackCategoryID string            `yaml:"fallback_category_id"`
	FallbackScore      float64           `yaml:"fallback_score"`
	NearbyLimit        int               `yaml:"nearby_limit"`
	TopFeatures        int               `yaml:"top_features"`
	SampleKeywords     int               `yaml:"sample_keywords"`
	StatsTopVideos     int               `yaml:"stats_top_videos"`
	Categories         []domain.Category `yaml:"categories"`
}

// SchedulerConfig controls the periodic keyword reweighting job.
type SchedulerConfig struct {
	Enabled          bool   `env:"SCHEDULER_ENABLED" yaml:"enabled"`
	ReweightSchedule string `yaml:"reweight_schedule"`
}

// AuthConfig holds admin authentication configuration.
type AuthConfig struct {
	JWTSecret string `env:"AUTH_JWT_SECRET" yaml:"jwt_secret"`
}

// UploadConfig controls where submitted videos are written.
type UploadConfig struct {
	Dir      string `env:"UPLOAD_DIR" yaml:"dir"`
	MaxBytes int64  `yaml:"max_bytes"`
}

// Load loads configuration from path. A missing file falls back to defaults.
// Thresholds and the fallback score are preset so an explicit 0 in the file
// is kept.
func Load(path string) (*Config, error) {
	return LoadOnto(path, true, presets(), setDefaults)
}

func presets() *Config {
	return &Config{
		Validation: ValidationConfig{
			MilkThreshold:       defaultMilkThreshold,
			DrinkingThreshold:   defaultDrinkingThreshold,
			CreativityThreshold: defaultCreativeThreshold,
			AudioThreshold:      defaultAudioThreshold,
			TagBoostCap:         defaultTagBoostCap,
		},
		Classification: ClassificationConfig{
			FallbackScore: defaultFallbackScore,
		},
	}
}

func setDefaults(cfg *Config) {
	setServiceDefaults(&cfg.Service)
	setDatabaseDefaults(&cfg.Database)
	setRedisDefaults(&cfg.Redis)
	setLoggingDefaults(&cfg.Logging)
	setAnalysisDefaults(&cfg.Analysis)
	setCampaignDefaults(&cfg.Campaign)
	setClassificationDefaults(&cfg.Classification)
	if cfg.Scheduler.ReweightSchedule == "" {
		cfg.Scheduler.ReweightSchedule = defaultReweightSchedule
	}
	if cfg.Uploads.Dir == "" {
		cfg.Uploads.Dir = defaultUploadDir
	}
	if cfg.Uploads.MaxBytes == 0 {
		cfg.Uploads.MaxBytes = defaultUploadMaxBytes
	}
}

func setServiceDefaults(s *ServiceConfig) {
	if s.Name == "" {
		s.Name = defaultServiceName
	}
	if s.Version == "" {
		s.Version = defaultServiceVersion
	}
	if s.Port == 0 {
		s.Port = defaultServicePort
	}
	if s.Concurrency == 0 {
		s.Concurrency = defaultConcurrency
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = defaultShutdownTimeout
	}
}

func setDatabaseDefaults(d *DatabaseConfig) {
	if d.Driver == "" {
		d.Driver = defaultDBDriver
	}
	if d.Host == "" {
		d.Host = defaultDBHost
	}
	if d.Port == 0 {
		d.Port = defaultDBPort
	}
	if d.User == "" {
		d.User = defaultDBUser
	}
	if d.Database == "" {
		d.Database = defaultDBName
	}
	if d.SSLMode == "" {
		d.SSLMode = defaultDBSSLMode
	}
	if d.Path == "" {
		d.Path = defaultDBPath
	}
	if d.MaxConnections == 0 {
		d.MaxConnections = defaultDBMaxConns
	}
	if d.MaxIdleConns == 0 {
		d.MaxIdleConns = defaultDBMaxIdleConns
	}
	if d.ConnMaxLifetime == 0 {
		d.ConnMaxLifetime = time.Hour
	}
}

func setRedisDefaults(r *RedisConfig) {
	if r.Address == "" {
		r.Address = defaultRedisAddress
	}
	if r.PopularTagsKey == "" {
		r.PopularTagsKey = defaultPopularTagsKey
	}
}

func setLoggingDefaults(l *LoggingConfig) {
	if l.Level == "" {
		l.Level = defaultLogLevel
	}
	if l.Format == "" {
		l.Format = defaultLogFormat
	}
}

func setAnalysisDefaults(a *AnalysisConfig) {
	if a.BaseURL == "" {
		a.BaseURL = defaultAnalysisBaseURL
	}
	if a.IndexID == "" {
		a.IndexID = defaultIndexID
	}
	if len(a.Models) == 0 {
		a.Models = append([]string(nil), DefaultAnalysisModels...)
	}
	if a.Timeout == 0 {
		a.Timeout = defaultAnalysisTimeout
	}
	if a.PollInterval == 0 {
		a.PollInterval = defaultPollInterval
	}
	if a.IndexTimeout == 0 {
		a.IndexTimeout = defaultIndexTimeout
	}
	if a.RequestsPerSecond == 0 {
		a.RequestsPerSecond = defaultRequestsPerSecond
	}
	if a.Burst == 0 {
		a.Burst = defaultRequestBurst
	}
	if a.MaxRetries == 0 {
		a.MaxRetries = defaultMaxRetries
	}
	if a.BreakerFailures == 0 {
		a.BreakerFailures = defaultBreakerFailures
	}
	if a.BreakerTimeout == 0 {
		a.BreakerTimeout = defaultBreakerTimeout
	}
}

func setCampaignDefaults(c *CampaignConfig) {
	if len(c.Tags) == 0 {
		c.Tags = append([]string(nil), DefaultCampaignTags...)
	}
	if c.PopularTagLimit == 0 {
		c.PopularTagLimit = defaultPopularTagLimit
	}
	if c.SimilarLimit == 0 {
		c.SimilarLimit = defaultSimilarLimit
	}
}

func setClassificationDefaults(c *ClassificationConfig) {
	if c.FallbackCategoryID == "" {
		c.FallbackCategoryID = defaultFallbackCategory
	}
	if c.NearbyLimit == 0 {
		c.NearbyLimit = defaultNearbyLimit
	}
	if c.TopFeatures == 0 {
		c.TopFeatures = defaultTopFeatures
	}
	if c.SampleKeywords == 0 {
		c.SampleKeywords = defaultSampleKeywords
	}
	if c.StatsTopVideos == 0 {
		c.StatsTopVideos = defaultStatsTopVideos
	}
}
