package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Metadata  MetadataConfig  `mapstructure:"metadata"`
	Qdrant    QdrantConfig    `mapstructure:"qdrant"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Sources   SourcesConfig   `mapstructure:"sources"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

// MetadataConfig configures the local metadata store holding sync state,
// shard mappings, and connection records.
type MetadataConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres
	Path            string        `mapstructure:"path"`   // sqlite file path
	PostgresDSN     string        `mapstructure:"postgres_dsn"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the driver-specific connection string.
func (c *MetadataConfig) DSN() string {
	if c.Driver == "postgres" {
		return c.PostgresDSN
	}
	return c.Path
}

type QdrantConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	APIKey      string `mapstructure:"api_key"`
	UseTLS      bool   `mapstructure:"use_tls"`
	ShardPrefix string `mapstructure:"shard_prefix"`
}

type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider"`
	Model      string `mapstructure:"model"`
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Dimensions int    `mapstructure:"dimensions"`
}

type CacheConfig struct {
	MaxSize int `mapstructure:"max_size"`
}

type SyncConfig struct {
	ChunkSize  int `mapstructure:"chunk_size"`
	Overlap    int `mapstructure:"overlap"`
	BatchSize  int `mapstructure:"batch_size"`
	Workers    int `mapstructure:"workers"`
	RetryCount int `mapstructure:"retry_count"`
}

// SourcesConfig seeds the connection registry when the metadata store is empty.
type SourcesConfig struct {
	PrimaryKey  string `mapstructure:"primary_key"`
	PrimaryURI  string `mapstructure:"primary_uri"`
	PrimaryName string `mapstructure:"primary_name"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("metadata.driver", "sqlite")
	v.SetDefault("metadata.path", "./data/synapse.db")
	v.SetDefault("metadata.max_idle_conns", 2)
	v.SetDefault("metadata.max_open_conns", 10)
	v.SetDefault("metadata.conn_max_lifetime", time.Hour)
	v.SetDefault("metadata.auto_migrate", true)
	v.SetDefault("qdrant.host", "localhost")
	v.SetDefault("qdrant.port", 6334)
	v.SetDefault("qdrant.shard_prefix", "synapse_")
	v.SetDefault("embedding.provider", "jina")
	v.SetDefault("embedding.model", "jina-embeddings-v3")
	v.SetDefault("embedding.base_url", "https://api.jina.ai/v1/embeddings")
	v.SetDefault("embedding.dimensions", 384)
	v.SetDefault("cache.max_size", 10000)
	v.SetDefault("sync.chunk_size", 500)
	v.SetDefault("sync.overlap", 50)
	v.SetDefault("sync.batch_size", 100)
	v.SetDefault("sync.workers", 4)
	v.SetDefault("sync.retry_count", 3)
	v.SetDefault("sources.primary_key", "primary")
	v.SetDefault("sources.primary_name", "")
	v.SetDefault("sources.primary_uri", "")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("qdrant.host", "QDRANT_HOST")
	v.BindEnv("qdrant.port", "QDRANT_PORT")
	v.BindEnv("qdrant.api_key", "QDRANT_API_KEY")
	v.BindEnv("qdrant.use_tls", "QDRANT_USE_TLS")
	v.BindEnv("embedding.api_key", "JINA_API_KEY")
	v.BindEnv("embedding.base_url", "EMBEDDING_BASE_URL")
	v.BindEnv("metadata.postgres_dsn", "METADATA_POSTGRES_DSN")
	v.BindEnv("sources.primary_uri", "MONGO_URI")
	v.BindEnv("sources.primary_name", "MONGO_DATABASE")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations that would degrade silently at runtime.
func (c *Config) Validate() error {
	if err := ValidateChunking(c.Sync.ChunkSize, c.Sync.Overlap); err != nil {
		return err
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	if c.Sync.BatchSize <= 0 {
		return fmt.Errorf("sync.batch_size must be positive, got %d", c.Sync.BatchSize)
	}
	if c.Sync.Workers <= 0 {
		return fmt.Errorf("sync.workers must be positive, got %d", c.Sync.Workers)
	}
	return nil
}

// ValidateChunking rejects chunking parameters that cannot make progress.
// An overlap at or above the chunk size would slide the window by zero or a
// negative step.
func ValidateChunking(chunkSize, overlap int) error {
	if chunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", chunkSize)
	}
	if overlap < 0 {
		return fmt.Errorf("overlap must not be negative, got %d", overlap)
	}
	if overlap >= chunkSize {
		return fmt.Errorf("overlap (%d) must be smaller than chunk_size (%d)", overlap, chunkSize)
	}
	return nil
}
