package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pebblevault/pebblevault/internal/vault"
)

// Config корневая структура конфигурации для cmd-бинарников: демона и
// нагрузочного теста. vault.Config остаётся источником истины для самого
// движка — этот тип лишь описывает, как его собрать из YAML/ENV.
type Config struct {
	Store   StoreConfig   `yaml:"store"`
	Blob    BlobConfig    `yaml:"blob"`
	Vault   VaultConfig   `yaml:"vault"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
}

type StoreConfig struct {
	Kind string `yaml:"kind"` // "mysql" | "mongo"
	DSN  string `yaml:"dsn"`
}

type BlobConfig struct {
	Kind string `yaml:"kind"` // "filesystem" | "badger"
	Path string `yaml:"path"`
}

type VaultConfig struct {
	OversizedPayloadThresholdBytes int64         `yaml:"oversized_payload_threshold_bytes"`
	CheckpointOnDrop               bool          `yaml:"checkpoint_on_drop"`
	LazyLoadRegions                bool          `yaml:"lazy_load_regions"`
	LockTimeout                    time.Duration `yaml:"lock_timeout"`
	CheckpointInterval             time.Duration `yaml:"checkpoint_interval"`
}

type ServerConfig struct {
	RESTPort    int `yaml:"rest_port"`
	MetricsPort int `yaml:"metrics_port"`
}

type LoggingConfig struct {
	Component string `yaml:"component"`
}

// GetRESTPort возвращает REST порт с поддержкой fallback значений.
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "PEBBLEVAULT_REST_PORT", 8088)
}

// GetMetricsPort возвращает Prometheus порт с поддержкой fallback значений.
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "PEBBLEVAULT_METRICS_PORT", 2112)
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default.
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}
	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}
	return defaultPort
}

// Load читает YAML файл конфигурации.
// Если path == "", пытается прочитать из ENV PEBBLEVAULT_CONFIG или
// возвращает дефолтную конфигурацию.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("PEBBLEVAULT_CONFIG")
		if path == "" {
			return Default(), nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение конфигурации %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("разбор конфигурации %s: %w", path, err)
	}

	return cfg, nil
}

// Default возвращает конфигурацию с разумными значениями по умолчанию,
// пригодную для локального запуска без YAML-файла.
func Default() *Config {
	return &Config{
		Store: StoreConfig{Kind: "mysql", DSN: "pebblevault.db"},
		Blob:  BlobConfig{Kind: "filesystem", Path: "pebblevault-blobs"},
		Vault: VaultConfig{
			OversizedPayloadThresholdBytes: 1 << 20,
			CheckpointOnDrop:               true,
			LazyLoadRegions:                true,
			CheckpointInterval:             30 * time.Second,
		},
		Server:  ServerConfig{RESTPort: 8088, MetricsPort: 2112},
		Logging: LoggingConfig{Component: "pebblevault"},
	}
}

// ToVaultConfig переводит конфигурацию процесса в vault.Config, который
// принимает vault.New.
func (c *Config) ToVaultConfig() vault.Config {
	cfg := vault.Config{
		StorePath:                      c.Store.DSN,
		OversizedPayloadThresholdBytes: c.Vault.OversizedPayloadThresholdBytes,
		CheckpointOnDrop:               c.Vault.CheckpointOnDrop,
		LazyLoadRegions:                c.Vault.LazyLoadRegions,
		BlobStorePath:                  c.Blob.Path,
		LockTimeout:                    c.Vault.LockTimeout,
	}

	switch c.Store.Kind {
	case "mongo":
		cfg.BackingStore = vault.BackingStoreMongo
	default:
		cfg.BackingStore = vault.BackingStoreMySQL
	}

	switch c.Blob.Kind {
	case "badger":
		cfg.BlobStore = vault.BlobStoreBadger
	default:
		cfg.BlobStore = vault.BlobStoreFilesystem
	}

	return cfg
}
