// Package config supplies all tunables for the resource-management
// core from one YAML file, with defaults matching the components'
// standalone defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/inkwell-ai/inkwell/internal/aicache"
	"github.com/inkwell-ai/inkwell/internal/lazydoc"
	"github.com/inkwell-ai/inkwell/internal/streammgr"
)

// ErrValidation tags malformed-configuration errors.
var ErrValidation = errors.New("invalid configuration")

// Config is the assembled runtime configuration.
type Config struct {
	// Cache configures the AI response cache.
	Cache aicache.Config

	// Streaming configures the stream session manager.
	Streaming streammgr.Config

	// LazyLoading configures the lazy document loader.
	LazyLoading lazydoc.Config

	// ListenAddr is the operator HTTP API listen address.
	ListenAddr string

	// DBPath is the SQLite document store path.
	DBPath string
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Cache:       aicache.DefaultConfig(),
		Streaming:   streammgr.DefaultConfig(),
		LazyLoading: lazydoc.DefaultConfig(),
		ListenAddr:  ":7748",
		DBPath:      "",
	}
}

// fileSchema is the on-disk YAML layout. Durations are whole seconds,
// sizes are bytes. Zero or absent fields keep their defaults.
type fileSchema struct {
	Cache struct {
		MaxSize           int `yaml:"max_size"`
		DefaultTTLSeconds int `yaml:"default_ttl_seconds"`
	} `yaml:"cache"`

	Streaming struct {
		MaxConcurrentStreams    int     `yaml:"max_concurrent_streams"`
		BufferSize              int     `yaml:"buffer_size"`
		MemoryLimitBytes        int64   `yaml:"memory_limit_bytes"`
		BackpressureThreshold   float64 `yaml:"backpressure_threshold"`
		CleanupIntervalSeconds  int     `yaml:"cleanup_interval_seconds"`
		MaxStreamDurationSecond int     `yaml:"max_stream_duration_seconds"`
	} `yaml:"streaming"`

	LazyLoading struct {
		ChunkSize         int `yaml:"chunk_size"`
		MaxChunksInMemory int `yaml:"max_chunks_in_memory"`
		PreloadChunks     int `yaml:"preload_chunks"`
		CacheTTLSeconds   int `yaml:"cache_ttl_seconds"`
		MinDocumentSize   int `yaml:"min_document_size"`
	} `yaml:"lazy_loading"`

	ListenAddr string `yaml:"listen_addr"`
	DBPath     string `yaml:"db_path"`
}

// Load reads a YAML configuration file and overlays it on the
// defaults. An empty path returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %q: %w", path, err)
	}

	var file fileSchema
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return Config{}, fmt.Errorf(
			"parse config %q: %w: %v", path, ErrValidation, err,
		)
	}

	applyFile(&cfg, file)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// applyFile overlays non-zero file values onto cfg.
func applyFile(cfg *Config, file fileSchema) {
	if v := file.Cache.MaxSize; v != 0 {
		cfg.Cache.MaxSize = v
	}
	if v := file.Cache.DefaultTTLSeconds; v != 0 {
		cfg.Cache.DefaultTTL = time.Duration(v) * time.Second
	}

	if v := file.Streaming.MaxConcurrentStreams; v != 0 {
		cfg.Streaming.MaxConcurrentStreams = v
	}
	if v := file.Streaming.BufferSize; v != 0 {
		cfg.Streaming.BufferSize = v
	}
	if v := file.Streaming.MemoryLimitBytes; v != 0 {
		cfg.Streaming.MemoryLimit = v
	}
	if v := file.Streaming.BackpressureThreshold; v != 0 {
		cfg.Streaming.BackpressureThreshold = v
	}
	if v := file.Streaming.CleanupIntervalSeconds; v != 0 {
		cfg.Streaming.CleanupInterval = time.Duration(v) * time.Second
	}
	if v := file.Streaming.MaxStreamDurationSecond; v != 0 {
		cfg.Streaming.MaxStreamDuration = time.Duration(v) * time.Second
	}

	if v := file.LazyLoading.ChunkSize; v != 0 {
		cfg.LazyLoading.ChunkSize = v
	}
	if v := file.LazyLoading.MaxChunksInMemory; v != 0 {
		cfg.LazyLoading.MaxChunksInMemory = v
	}
	if v := file.LazyLoading.PreloadChunks; v != 0 {
		cfg.LazyLoading.PreloadChunks = v
	}
	if v := file.LazyLoading.CacheTTLSeconds; v != 0 {
		cfg.LazyLoading.CacheTTL = time.Duration(v) * time.Second
	}
	if v := file.LazyLoading.MinDocumentSize; v != 0 {
		cfg.LazyLoading.MinDocumentSize = v
	}

	if file.ListenAddr != "" {
		cfg.ListenAddr = file.ListenAddr
	}
	if file.DBPath != "" {
		cfg.DBPath = file.DBPath
	}
}

// Validate rejects tunables that would misconfigure the core.
func (c Config) Validate() error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf(
			"%w: %s", ErrValidation, fmt.Sprintf(format, args...),
		)
	}

	if c.Cache.MaxSize <= 0 {
		return fail("cache max_size must be positive")
	}
	if c.Cache.DefaultTTL <= 0 {
		return fail("cache default_ttl must be positive")
	}

	if c.Streaming.MaxConcurrentStreams <= 0 {
		return fail("streaming max_concurrent_streams must be positive")
	}
	if c.Streaming.BufferSize <= 0 {
		return fail("streaming buffer_size must be positive")
	}
	if c.Streaming.MemoryLimit <= 0 {
		return fail("streaming memory_limit must be positive")
	}
	if c.Streaming.BackpressureThreshold <= 0 ||
		c.Streaming.BackpressureThreshold > 1 {

		return fail("streaming backpressure_threshold must be in (0, 1]")
	}
	if c.Streaming.CleanupInterval <= 0 {
		return fail("streaming cleanup_interval must be positive")
	}
	if c.Streaming.MaxStreamDuration <= 0 {
		return fail("streaming max_stream_duration must be positive")
	}

	if c.LazyLoading.ChunkSize <= 0 {
		return fail("lazy_loading chunk_size must be positive")
	}
	if c.LazyLoading.MaxChunksInMemory <= 0 {
		return fail("lazy_loading max_chunks_in_memory must be positive")
	}
	if c.LazyLoading.PreloadChunks < 0 {
		return fail("lazy_loading preload_chunks must not be negative")
	}
	if c.LazyLoading.CacheTTL <= 0 {
		return fail("lazy_loading cache_ttl must be positive")
	}
	if c.LazyLoading.MinDocumentSize <= 0 {
		return fail("lazy_loading min_document_size must be positive")
	}

	return nil
}
