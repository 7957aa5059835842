package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Transfer TransferConfig `yaml:"transfer"`
	Cleanup  CleanupConfig  `yaml:"cleanup"`
	API      APIConfig      `yaml:"api"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `yaml:"host" env:"SERVER_HOST"`
	Port string `yaml:"port" env:"PORT"`
}

// StorageConfig holds the durable storage locations
type StorageConfig struct {
	UploadDir string `yaml:"upload_dir" env:"STORAGE_UPLOAD_DIR"`
	Database  string `yaml:"database" env:"STORAGE_DATABASE"`
}

// TransferConfig bounds what a single transfer may contain and how
// long it stays downloadable
type TransferConfig struct {
	MaxFileSize  int64         `yaml:"max_file_size" env:"TRANSFER_MAX_FILE_SIZE"`
	MaxFiles     int           `yaml:"max_files" env:"TRANSFER_MAX_FILES"`
	AllowedTypes []string      `yaml:"allowed_types" env:"TRANSFER_ALLOWED_TYPES"`
	Retention    time.Duration `yaml:"retention" env:"TRANSFER_RETENTION"`
}

// CleanupConfig drives the expiry sweeper. GraceWindow is the extra
// buffer past expiry before a transfer becomes a deletion candidate;
// the periodic sweeper and the standalone cleanup command share it.
type CleanupConfig struct {
	Enabled     bool          `yaml:"enabled" env:"CLEANUP_ENABLED"`
	Interval    time.Duration `yaml:"interval" env:"CLEANUP_INTERVAL"`
	GraceWindow time.Duration `yaml:"grace_window" env:"CLEANUP_GRACE_WINDOW"`
}

// APIConfig holds the maintenance API configuration
type APIConfig struct {
	Key string `yaml:"key" env:"RELAY_API_KEY"`
}

// Manager loads configuration and notifies watchers on reload
type Manager struct {
	config     *Config
	configPath string
	watchers   []func(*Config)
}

// NewManager creates a new configuration manager
func NewManager() *Manager {
	return &Manager{
		watchers: make([]func(*Config), 0),
	}
}

// Load loads configuration from file and environment variables
func (m *Manager) Load(configPath string) (*Config, error) {
	m.configPath = configPath

	config := Default()

	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := loadFromEnv(reflect.ValueOf(config).Elem()); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := Validate(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	m.config = config
	return config, nil
}

// Reload re-reads the configuration and notifies watchers
func (m *Manager) Reload() error {
	if m.configPath == "" {
		return fmt.Errorf("no config path set")
	}

	config, err := m.Load(m.configPath)
	if err != nil {
		return err
	}

	for _, watcher := range m.watchers {
		watcher(config)
	}
	return nil
}

// Watch registers a callback invoked after each successful reload
func (m *Manager) Watch(watcher func(*Config)) {
	m.watchers = append(m.watchers, watcher)
}

// Get returns the current configuration
func (m *Manager) Get() *Config {
	return m.config
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: "3000",
		},
		Storage: StorageConfig{
			UploadDir: "./uploads",
			Database:  "fasttransfer.db",
		},
		Transfer: TransferConfig{
			MaxFileSize: 2 << 30, // 2 GiB
			MaxFiles:    10,
			AllowedTypes: []string{
				"image/jpeg",
				"image/jpg",
				"image/png",
				"image/gif",
				"image/webp",
				"application/pdf",
				"application/msword",
				"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
				"text/plain",
				"application/zip",
				"application/x-rar-compressed",
				"video/mp4",
				"video/mpeg",
				"audio/mpeg",
				"audio/wav",
				"application/x-7z-compressed",
			},
			Retention: 7 * 24 * time.Hour,
		},
		Cleanup: CleanupConfig{
			Enabled:     true,
			Interval:    24 * time.Hour,
			GraceWindow: 0,
		},
		API: APIConfig{},
	}
}

// Validate checks a configuration for usable values
func Validate(c *Config) error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port must not be empty")
	}
	if c.Storage.UploadDir == "" {
		return fmt.Errorf("storage upload_dir must not be empty")
	}
	if c.Storage.Database == "" {
		return fmt.Errorf("storage database must not be empty")
	}
	if c.Transfer.MaxFileSize <= 0 {
		return fmt.Errorf("transfer max_file_size must be positive")
	}
	if c.Transfer.MaxFiles <= 0 {
		return fmt.Errorf("transfer max_files must be positive")
	}
	if c.Transfer.Retention <= 0 {
		return fmt.Errorf("transfer retention must be positive")
	}
	if c.Cleanup.Interval <= 0 {
		return fmt.Errorf("cleanup interval must be positive")
	}
	if c.Cleanup.GraceWindow < 0 {
		return fmt.Errorf("cleanup grace_window must not be negative")
	}
	return nil
}

// loadFromEnv recursively applies env-tagged overrides to config fields
func loadFromEnv(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.CanSet() {
			continue
		}

		if field.Kind() == reflect.Struct {
			if err := loadFromEnv(field); err != nil {
				return err
			}
			continue
		}

		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			continue
		}
		envValue := os.Getenv(envTag)
		if envValue == "" {
			continue
		}
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set field %s: %w", fieldType.Name, err)
		}
	}
	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			duration, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(duration))
			return nil
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", field.Type())
		}
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		field.Set(reflect.ValueOf(out))
	default:
		return fmt.Errorf("unsupported field kind %s", field.Kind())
	}
	return nil
}
