package infra

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/samber/lo"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv           string
	Port             string
	DatabaseURL      string
	JWTSecret        string
	StoragePath      string
	StorageBaseURL   string
	GeoIPDBPath      string
	CORSOrigins      []string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int

	Fitting    FittingConfig
	ImageProxy ImageProxyConfig
	Worker     WorkerConfig
}

// FittingConfig configures the virtual fitting workflow.
type FittingConfig struct {
	WorkflowURL       string
	VideoURL          string
	ClientID          string
	MaxUploadBytes    int64
	AllowedMIME       []string
	CDNURLPattern     string
	Timeout           time.Duration
	BackgroundTimeout time.Duration
	VideoTimeout      time.Duration
	ImageRamp         time.Duration
	VideoRamp         time.Duration
	RunTTL            time.Duration
}

// ImageProxyConfig configures the same-origin image proxy.
type ImageProxyConfig struct {
	HostAllowlist []string
	MaxBytes      int64
	RPS           float64
	Burst         int
}

// WorkerConfig configures the stale-run sweeper.
type WorkerConfig struct {
	PollInterval   time.Duration
	StaleThreshold time.Duration
}

// LoadConfig loads configuration from environment variables and applies
// defaults where needed. Every invalid or missing key is reported at once.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             port,
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		StoragePath:      getEnv("STORAGE_PATH", "./data/storage"),
		StorageBaseURL:   getEnv("STORAGE_BASE_URL", "http://localhost:"+port+"/static"),
		GeoIPDBPath:      os.Getenv("GEOIP_DB_PATH"),
		CORSOrigins:      splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 150)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		Fitting: FittingConfig{
			WorkflowURL:       os.Getenv("FITTING_WORKFLOW_URL"),
			VideoURL:          os.Getenv("FITTING_VIDEO_URL"),
			ClientID:          getEnv("FITTING_CLIENT_ID", "bogofit"),
			MaxUploadBytes:    getEnvInt64("FITTING_MAX_UPLOAD_BYTES", 10<<20),
			AllowedMIME:       splitList(getEnv("FITTING_ALLOWED_MIME", "image/jpeg,image/jpg,image/png,image/webp")),
			CDNURLPattern:     os.Getenv("FITTING_CDN_URL_PATTERN"),
			Timeout:           time.Second * time.Duration(getEnvInt("FITTING_TIMEOUT_SECONDS", 60)),
			BackgroundTimeout: time.Second * time.Duration(getEnvInt("FITTING_BACKGROUND_TIMEOUT_SECONDS", 120)),
			VideoTimeout:      time.Second * time.Duration(getEnvInt("FITTING_VIDEO_TIMEOUT_SECONDS", 120)),
			ImageRamp:         time.Millisecond * time.Duration(getEnvInt("FITTING_IMAGE_RAMP_MS", 19000)),
			VideoRamp:         time.Millisecond * time.Duration(getEnvInt("FITTING_VIDEO_RAMP_MS", 10000)),
			RunTTL:            time.Minute * time.Duration(getEnvInt("FITTING_RUN_TTL_MINUTES", 30)),
		},
		ImageProxy: ImageProxyConfig{
			MaxBytes: getEnvInt64("IMAGE_PROXY_MAX_BYTES", 15<<20),
			RPS:      getEnvFloat("IMAGE_PROXY_RPS", 5),
			Burst:    getEnvInt("IMAGE_PROXY_BURST", 10),
		},
		Worker: WorkerConfig{
			PollInterval:   time.Second * time.Duration(getEnvInt("WORKER_POLL_SECONDS", 30)),
			StaleThreshold: time.Minute * time.Duration(getEnvInt("WORKER_STALE_MINUTES", 15)),
		},
	}

	var result *multierror.Error
	if cfg.DatabaseURL == "" {
		result = multierror.Append(result, errors.New("DATABASE_URL is required"))
	}
	if cfg.JWTSecret == "" {
		result = multierror.Append(result, errors.New("JWT_SECRET is required"))
	}
	if cfg.Fitting.MaxUploadBytes < 0 {
		result = multierror.Append(result, errors.New("FITTING_MAX_UPLOAD_BYTES must not be negative"))
	}
	if cfg.Fitting.CDNURLPattern != "" {
		if _, err := regexp.Compile(cfg.Fitting.CDNURLPattern); err != nil {
			result = multierror.Append(result, fmt.Errorf("FITTING_CDN_URL_PATTERN: %w", err))
		}
	}
	if cfg.ImageProxy.RPS <= 0 {
		result = multierror.Append(result, errors.New("IMAGE_PROXY_RPS must be positive"))
	}

	allowlist, err := buildHostAllowlist(cfg.StorageBaseURL, os.Getenv("IMAGE_PROXY_HOST_ALLOWLIST"))
	if err != nil {
		result = multierror.Append(result, err)
	}
	cfg.ImageProxy.HostAllowlist = allowlist

	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FittingEnabled reports whether a workflow endpoint is configured.
func (c *Config) FittingEnabled() bool {
	return strings.TrimSpace(c.Fitting.WorkflowURL) != ""
}

func buildHostAllowlist(storageBaseURL, extra string) ([]string, error) {
	hosts := splitList(extra)
	if storageBaseURL != "" {
		u, err := url.Parse(storageBaseURL)
		if err != nil || u.Hostname() == "" {
			return nil, fmt.Errorf("STORAGE_BASE_URL %q is not an absolute url", storageBaseURL)
		}
		hosts = append(hosts, u.Hostname())
	}
	hosts = lo.Uniq(lo.Map(hosts, func(h string, _ int) string { return strings.ToLower(h) }))
	sort.Strings(hosts)
	return hosts, nil
}

func splitList(v string) []string {
	return lo.FilterMap(strings.Split(v, ","), func(item string, _ int) (string, bool) {
		item = strings.TrimSpace(item)
		return item, item != ""
	})
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
