// loads up the .env files and environment variables to be used internally by Dropzone.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageDisk  = "disk"
	StorageMinio = "minio"
)

// Config holds every runtime setting of Dropzone.
type Config struct {
	Env     string
	Version string

	SrvAddr    string
	SrvPort    string
	CORSOrigin string
	StaticDir  string

	RedisAddr     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	StorageBackend string
	UploadPath     string
	MaxUploadSize  int64

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string

	FileTTL         time.Duration
	SweepInterval   time.Duration
	SweepOnStart    bool
	ShutdownTimeout time.Duration
}

// Address returns the host:port the http server listens on.
func (c Config) Address() string {
	return c.SrvAddr + ":" + c.SrvPort
}

// RedisAddress returns the host:port of the redis-server.
func (c Config) RedisAddress() string {
	return c.RedisAddr + ":" + c.RedisPort
}

// uses go package: godotenv to load up enviroment variables from path.
// A missing file is not an error, variables may come from the real environment.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Load parses the environment into Config, falling back to defaults for unset variables.
func Load() (Config, error) {
	cfg := Config{
		Env:            getEnv("ENV", "DEV"),
		Version:        getEnv("VERSION", "1.0.0"),
		SrvAddr:        getEnv("SRV_ADDR", "0.0.0.0"),
		SrvPort:        getEnv("SRV_PORT", "8000"),
		CORSOrigin:     getEnv("CORS_ORIGIN", "*"),
		StaticDir:      getEnv("STATIC_DIR", "static"),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost"),
		RedisPort:      getEnv("REDIS_PORT", "6379"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", StorageDisk)),
		UploadPath:     getEnv("UPLOAD_PATH", "uploads"),
		MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    os.Getenv("MINIO_BUCKET"),
	}

	var err error
	if cfg.RedisDB, err = getInt("REDIS_DB_NUMBER", 0); err != nil {
		return cfg, err
	}
	// Default to 524MBs
	if cfg.MaxUploadSize, err = getInt64("MAX_UPLOAD_SIZE", 524288000); err != nil {
		return cfg, err
	}
	if cfg.FileTTL, err = getDuration("FILE_TTL", time.Hour); err != nil {
		return cfg, err
	}
	if cfg.SweepInterval, err = getDuration("SWEEP_INTERVAL", 100*time.Second); err != nil {
		return cfg, err
	}
	if cfg.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", 5*time.Second); err != nil {
		return cfg, err
	}
	if cfg.SweepOnStart, err = getBool("SWEEP_ON_START", false); err != nil {
		return cfg, err
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch c.StorageBackend {
	case StorageDisk:
		if c.UploadPath == "" {
			return errors.New("UPLOAD_PATH cannot be empty for disk storage")
		}
	case StorageMinio:
		if c.MinioEndpoint == "" || c.MinioAccessKey == "" || c.MinioSecretKey == "" || c.MinioBucket == "" {
			return errors.New("minio configuration incomplete")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}
	if c.SweepInterval <= 0 {
		return errors.New("SWEEP_INTERVAL must be positive")
	}
	if c.FileTTL <= 0 {
		return errors.New("FILE_TTL must be positive")
	}
	if c.MaxUploadSize <= 0 {
		return errors.New("MAX_UPLOAD_SIZE must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback, fmt.Errorf("couldn't parse ENV: %s: %w", key, err)
	}
	return n, nil
}

func getInt64(key string, fallback int64) (int64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback, fmt.Errorf("couldn't parse ENV: %s: %w", key, err)
	}
	return n, nil
}

// Durations accept time.ParseDuration syntax or a plain number of seconds.
func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback, fmt.Errorf("couldn't parse ENV: %s: %w", key, err)
	}
	return d, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback, fmt.Errorf("couldn't parse ENV: %s: %w", key, err)
	}
	return b, nil
}
