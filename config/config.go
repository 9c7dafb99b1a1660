package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server settings
	ServerPort   string        `json:"server_port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
	Debug        bool          `json:"debug"`

	// Application paths
	LogDir  string `json:"log_dir"`
	TempDir string `json:"temp_dir"`

	Database DatabaseConfig `json:"database"`
	Queue    QueueConfig    `json:"queue"`
	Credits  CreditsConfig  `json:"credits"`
	Media    MediaConfig    `json:"media"`
	Remote   RemoteConfig   `json:"remote"`
	Storage  StorageConfig  `json:"storage"`
	Summary  SummaryConfig  `json:"summary"`

	Version         string        `json:"version"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Path               string        `json:"path"`
	MaxConnections     int           `json:"max_connections"`
	MaxIdleConnections int           `json:"max_idle_connections"`
	ConnMaxLifetime    time.Duration `json:"conn_max_lifetime"`
}

type QueueConfig struct {
	// RedisAddr empty selects the in-process queue.
	RedisAddr     string        `json:"redis_addr"`
	RedisPassword string        `json:"-"`
	StreamName    string        `json:"stream_name"`
	Group         string        `json:"group"`
	WorkerCount   int           `json:"worker_count"`
	MaxQueueSize  int           `json:"max_queue_size"`
	ClaimIdleTime time.Duration `json:"claim_idle_time"`
}

// CreditsConfig holds every rate the cost calculator uses. All values
// are required and must be positive; startup fails otherwise.
type CreditsConfig struct {
	CaptionFirstCost  int `json:"caption_first_cost"`
	StandardBlockRate int `json:"standard_block_rate"`
	PremiumBlockRate  int `json:"premium_block_rate"`
	SummaryCost       int `json:"summary_cost"`
	ContentIdeasCost  int `json:"content_ideas_cost"`
	BlockMinutes      int `json:"block_minutes"`

	FreeTierAllowance int `json:"free_tier_allowance"`
	FreeTierCap       int `json:"free_tier_cap"`
}

type MediaConfig struct {
	YtdlpPath       string        `json:"ytdlp_path"`
	FFmpegPath      string        `json:"ffmpeg_path"`
	WhisperPath     string        `json:"whisper_path"`
	WhisperModel    string        `json:"whisper_model"`
	ProbeTimeout    time.Duration `json:"probe_timeout"`
	DownloadTimeout time.Duration `json:"download_timeout"`
	ProcessTimeout  time.Duration `json:"process_timeout"`
	MaxChunkSeconds int           `json:"max_chunk_seconds"`
}

type RemoteConfig struct {
	APIKey         string        `json:"-"`
	BaseURL        string        `json:"base_url"`
	Model          string        `json:"model"`
	RequestTimeout time.Duration `json:"request_timeout"`
	MaxRetries     int           `json:"max_retries"`
	MaxFileBytes   int64         `json:"max_file_bytes"`

	HourlySecondsLimit int `json:"hourly_seconds_limit"`
	DailySecondsLimit  int `json:"daily_seconds_limit"`
}

type StorageConfig struct {
	// Mode is "local" or "s3", selected once at startup.
	Mode      string `json:"mode"`
	LocalDir  string `json:"local_dir"`
	PublicURL string `json:"public_url"`

	AccessKey string `json:"-"`
	SecretKey string `json:"-"`
	Region    string `json:"region"`
	Endpoint  string `json:"endpoint"`
	Bucket    string `json:"bucket"`
}

type SummaryConfig struct {
	APIKey         string        `json:"-"`
	BaseURL        string        `json:"base_url"`
	Model          string        `json:"model"`
	RequestTimeout time.Duration `json:"request_timeout"`
}

// Load reads configuration from environment variables. A value that is
// present but unparseable is a startup error, never a silent fallback
// to the default.
func Load() (*Config, error) {
	var parseErrs []string

	cfg := &Config{
		ServerPort:   getEnv("SERVER_PORT", "8080"),
		ReadTimeout:  getEnvAsDuration("READ_TIMEOUT", 15*time.Second, &parseErrs),
		WriteTimeout: getEnvAsDuration("WRITE_TIMEOUT", 15*time.Second, &parseErrs),
		IdleTimeout:  getEnvAsDuration("IDLE_TIMEOUT", 60*time.Second, &parseErrs),
		Debug:        getEnvAsBool("DEBUG", false, &parseErrs),

		LogDir:  getEnv("LOG_DIR", "/var/log/vidscribe"),
		TempDir: getEnv("TEMP_DIR", "/tmp/vidscribe"),

		Version:         getEnv("VERSION", "1.0.0"),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second, &parseErrs),

		Database: DatabaseConfig{
			Path:               getEnv("DB_PATH", "/var/lib/vidscribe/data.db"),
			MaxConnections:     getEnvAsInt("DB_MAX_CONNECTIONS", 10, &parseErrs),
			MaxIdleConnections: getEnvAsInt("DB_MAX_IDLE_CONNECTIONS", 5, &parseErrs),
			ConnMaxLifetime:    getEnvAsDuration("DB_CONN_MAX_LIFETIME", time.Hour, &parseErrs),
		},

		Queue: QueueConfig{
			RedisAddr:     getEnv("REDIS_ADDR", ""),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			StreamName:    getEnv("QUEUE_STREAM", "vidscribe:jobs"),
			Group:         getEnv("QUEUE_GROUP", "workers"),
			WorkerCount:   getEnvAsInt("QUEUE_WORKERS", 4, &parseErrs),
			MaxQueueSize:  getEnvAsInt("QUEUE_MAX_SIZE", 1000, &parseErrs),
			ClaimIdleTime: getEnvAsDuration("QUEUE_CLAIM_IDLE", 10*time.Minute, &parseErrs),
		},

		// Credit rates and rate-limit windows default to zero so that
		// absence fails validation rather than pricing jobs off a
		// built-in number.
		Credits: CreditsConfig{
			CaptionFirstCost:  getEnvAsInt("CREDITS_CAPTION_FIRST", 0, &parseErrs),
			StandardBlockRate: getEnvAsInt("CREDITS_STANDARD_BLOCK", 0, &parseErrs),
			PremiumBlockRate:  getEnvAsInt("CREDITS_PREMIUM_BLOCK", 0, &parseErrs),
			SummaryCost:       getEnvAsInt("CREDITS_SUMMARY", 0, &parseErrs),
			ContentIdeasCost:  getEnvAsInt("CREDITS_CONTENT_IDEAS", 0, &parseErrs),
			BlockMinutes:      getEnvAsInt("CREDITS_BLOCK_MINUTES", 10, &parseErrs),
			FreeTierAllowance: getEnvAsInt("CREDITS_FREE_ALLOWANCE", 0, &parseErrs),
			FreeTierCap:       getEnvAsInt("CREDITS_FREE_CAP", 0, &parseErrs),
		},

		Media: MediaConfig{
			YtdlpPath:       getEnv("YTDLP_PATH", "yt-dlp"),
			FFmpegPath:      getEnv("FFMPEG_PATH", "ffmpeg"),
			WhisperPath:     getEnv("WHISPER_PATH", "whisper"),
			WhisperModel:    getEnv("WHISPER_MODEL", "base.en"),
			ProbeTimeout:    getEnvAsDuration("MEDIA_PROBE_TIMEOUT", 60*time.Second, &parseErrs),
			DownloadTimeout: getEnvAsDuration("MEDIA_DOWNLOAD_TIMEOUT", 15*time.Minute, &parseErrs),
			ProcessTimeout:  getEnvAsDuration("MEDIA_PROCESS_TIMEOUT", 30*time.Minute, &parseErrs),
			MaxChunkSeconds: getEnvAsInt("MEDIA_MAX_CHUNK_SECONDS", 600, &parseErrs),
		},

		Remote: RemoteConfig{
			APIKey:             getEnv("REMOTE_API_KEY", ""),
			BaseURL:            getEnv("REMOTE_BASE_URL", "https://api.groq.com/openai/v1"),
			Model:              getEnv("REMOTE_MODEL", "whisper-large-v3"),
			RequestTimeout:     getEnvAsDuration("REMOTE_REQUEST_TIMEOUT", 60*time.Second, &parseErrs),
			MaxRetries:         getEnvAsInt("REMOTE_MAX_RETRIES", 3, &parseErrs),
			MaxFileBytes:       getEnvAsInt64("REMOTE_MAX_FILE_BYTES", 25*1024*1024, &parseErrs),
			HourlySecondsLimit: getEnvAsInt("REMOTE_HOURLY_SECONDS", 0, &parseErrs),
			DailySecondsLimit:  getEnvAsInt("REMOTE_DAILY_SECONDS", 0, &parseErrs),
		},

		Storage: StorageConfig{
			Mode:      getEnv("STORAGE_MODE", "local"),
			LocalDir:  getEnv("STORAGE_LOCAL_DIR", "/var/lib/vidscribe/artifacts"),
			PublicURL: getEnv("STORAGE_PUBLIC_URL", ""),
			AccessKey: getEnv("STORAGE_ACCESS_KEY", ""),
			SecretKey: getEnv("STORAGE_SECRET_KEY", ""),
			Region:    getEnv("STORAGE_REGION", "us-east-1"),
			Endpoint:  getEnv("STORAGE_ENDPOINT", ""),
			Bucket:    getEnv("STORAGE_BUCKET", ""),
		},

		Summary: SummaryConfig{
			APIKey:         getEnv("SUMMARY_API_KEY", ""),
			BaseURL:        getEnv("SUMMARY_BASE_URL", "https://api.openai.com/v1"),
			Model:          getEnv("SUMMARY_MODEL", "gpt-4o-mini"),
			RequestTimeout: getEnvAsDuration("SUMMARY_REQUEST_TIMEOUT", 2*time.Minute, &parseErrs),
		},
	}

	if len(parseErrs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(parseErrs, "; "))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validatePaths(c); err != nil {
		return err
	}
	if err := validateTimeouts(c); err != nil {
		return err
	}
	if err := c.Credits.Validate(); err != nil {
		return err
	}
	if err := validateLimits(c); err != nil {
		return err
	}
	if err := validateStorage(&c.Storage); err != nil {
		return err
	}
	return nil
}

// Validate rejects absent or non-positive rate constants. Pricing
// misconfiguration is a startup failure, never a per-job failure.
func (c *CreditsConfig) Validate() error {
	rates := []struct {
		value int
		name  string
	}{
		{c.CaptionFirstCost, "CREDITS_CAPTION_FIRST"},
		{c.StandardBlockRate, "CREDITS_STANDARD_BLOCK"},
		{c.PremiumBlockRate, "CREDITS_PREMIUM_BLOCK"},
		{c.SummaryCost, "CREDITS_SUMMARY"},
		{c.ContentIdeasCost, "CREDITS_CONTENT_IDEAS"},
		{c.BlockMinutes, "CREDITS_BLOCK_MINUTES"},
		{c.FreeTierAllowance, "CREDITS_FREE_ALLOWANCE"},
		{c.FreeTierCap, "CREDITS_FREE_CAP"},
	}

	for _, r := range rates {
		if r.value <= 0 {
			return fmt.Errorf("credit rate %s must be a positive integer, got %d", r.name, r.value)
		}
	}
	return nil
}

func validatePaths(c *Config) error {
	paths := []struct {
		path string
		name string
	}{
		{c.LogDir, "log directory"},
		{c.TempDir, "temp directory"},
		{filepath.Dir(c.Database.Path), "database directory"},
	}

	for _, p := range paths {
		if err := os.MkdirAll(p.path, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", p.name, err)
		}
	}

	return nil
}

func validateTimeouts(c *Config) error {
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}
	if c.Media.ProcessTimeout <= 0 {
		return fmt.Errorf("media process timeout must be positive")
	}
	return nil
}

func validateLimits(c *Config) error {
	if c.Remote.HourlySecondsLimit <= 0 {
		return fmt.Errorf("REMOTE_HOURLY_SECONDS must be positive, got %d", c.Remote.HourlySecondsLimit)
	}
	if c.Remote.DailySecondsLimit <= 0 {
		return fmt.Errorf("REMOTE_DAILY_SECONDS must be positive, got %d", c.Remote.DailySecondsLimit)
	}
	if c.Queue.WorkerCount <= 0 {
		return fmt.Errorf("QUEUE_WORKERS must be positive, got %d", c.Queue.WorkerCount)
	}
	if c.Media.MaxChunkSeconds <= 0 {
		return fmt.Errorf("MEDIA_MAX_CHUNK_SECONDS must be positive, got %d", c.Media.MaxChunkSeconds)
	}
	return nil
}

func validateStorage(s *StorageConfig) error {
	switch s.Mode {
	case "local":
		if s.LocalDir == "" {
			return fmt.Errorf("STORAGE_LOCAL_DIR is required for local storage")
		}
	case "s3":
		for _, req := range []struct{ val, name string }{
			{s.AccessKey, "STORAGE_ACCESS_KEY"},
			{s.SecretKey, "STORAGE_SECRET_KEY"},
			{s.Bucket, "STORAGE_BUCKET"},
		} {
			if req.val == "" {
				return fmt.Errorf("%s is required for s3 storage", req.name)
			}
		}
	default:
		return fmt.Errorf("unknown storage mode: %s", s.Mode)
	}
	return nil
}

// Helper functions for reading environment variables
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int, errs *[]string) int {
	if value, exists := os.LookupEnv(key); exists {
		intVal, err := strconv.Atoi(value)
		if err != nil {
			*errs = append(*errs, fmt.Sprintf("%s must be an integer, got %q", key, value))
			return defaultValue
		}
		return intVal
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64, errs *[]string) int64 {
	if value, exists := os.LookupEnv(key); exists {
		intVal, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			*errs = append(*errs, fmt.Sprintf("%s must be an integer, got %q", key, value))
			return defaultValue
		}
		return intVal
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool, errs *[]string) bool {
	if value, exists := os.LookupEnv(key); exists {
		boolVal, err := strconv.ParseBool(value)
		if err != nil {
			*errs = append(*errs, fmt.Sprintf("%s must be a boolean, got %q", key, value))
			return defaultValue
		}
		return boolVal
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration, errs *[]string) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		duration, err := time.ParseDuration(value)
		if err != nil {
			*errs = append(*errs, fmt.Sprintf("%s must be a duration, got %q", key, value))
			return defaultValue
		}
		return duration
	}
	return defaultValue
}
