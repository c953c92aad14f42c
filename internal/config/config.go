package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort        = 8080
	defaultTempDir     = "storage/tmp"
	defaultUploadDir   = "storage/uploads"
	defaultMongoDB     = "taskdesk"
	defaultJWTSecret   = "supersecretkey"
	defaultJWTTTLHours = 24
)

// Config describes runtime configuration for the service. An empty MongoURI
// selects the in-memory store, which is only suitable for local runs.
type Config struct {
	Port        int    `yaml:"port"`
	TempDir     string `yaml:"temp_dir"`
	UploadDir   string `yaml:"upload_dir"`
	MongoURI    string `yaml:"mongo_uri"`
	MongoDB     string `yaml:"mongo_db"`
	JWTSecret   string `yaml:"jwt_secret"`
	JWTTTLHours int    `yaml:"jwt_ttl_hours"`
}

func Default() Config {
	return Config{
		Port:        defaultPort,
		TempDir:     defaultTempDir,
		UploadDir:   defaultUploadDir,
		MongoDB:     defaultMongoDB,
		JWTSecret:   defaultJWTSecret,
		JWTTTLHours: defaultJWTTTLHours,
	}
}

// Load reads YAML config from the provided path. If the file does not exist
// or is empty, defaults are returned with no error. The JWT_SECRET env var
// overrides the file value either way.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, errors.New("empty config path")
	}
	fileData, err := os.ReadFile(path) //nolint:gosec // config path is controlled by deployment
	if err != nil {
		if os.IsNotExist(err) {
			return applyEnv(cfg), nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if len(fileData) > 0 {
		if err := yaml.Unmarshal(fileData, &cfg); err != nil {
			return cfg, fmt.Errorf("parse yaml: %w", err)
		}
	}

	// basic normalization
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.TempDir == "" {
		cfg.TempDir = defaultTempDir
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = defaultUploadDir
	}
	if cfg.MongoDB == "" {
		cfg.MongoDB = defaultMongoDB
	}
	if cfg.JWTTTLHours < 1 {
		return cfg, fmt.Errorf("invalid jwt_ttl_hours: %d (must be >= 1)", cfg.JWTTTLHours)
	}
	if cfg.TempDir == cfg.UploadDir {
		return cfg, errors.New("temp_dir and upload_dir must differ")
	}
	return applyEnv(cfg), nil
}

func applyEnv(cfg Config) Config {
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.JWTSecret = secret
	}
	return cfg
}
