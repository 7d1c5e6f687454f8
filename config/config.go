// Package config loads the runtime's construction-time configuration once,
// the way src/go.go parses flag.* into a small struct before handing it to
// server.StartStandalone/StartMultiNode. Here flag.* feeds config.Config,
// which the cmd/modrun entry point hands to every other package at
// construction.
package config

import (
	"flag"
	"fmt"
	"regexp"

	"github.com/fatih/structs"
	homedir "github.com/mitchellh/go-homedir"
)

// CacheBackend selects which cachestore.Store implementation backs the
// module-source cache (the runtime's cache_fs second tier).
type CacheBackend string

const (
	CacheBackendMemory CacheBackend = "memory"
	CacheBackendRedis  CacheBackend = "redis"
	CacheBackendMongo  CacheBackend = "mongo"
)

// Config is read once at construction and never mutated afterward; the
// reflective control object mutates policy.Engine and registry.Registries
// state instead, never this struct.
type Config struct {
	Automock             bool              `structs:"automock"`
	UnmockPatternsRaw    []string          `structs:"unmockPatterns"`
	ModuleFileExtensions []string          `structs:"moduleFileExtensions"`
	ExtraGlobals         []string          `structs:"extraGlobals"`
	SetupFiles           []string          `structs:"setupFiles"`
	CacheDir             string            `structs:"cacheDir"`
	RootDir              string            `structs:"rootDir"`
	PathIgnorePatterns   []string          `structs:"pathIgnorePatterns"`
	HasteOptions         map[string]string `structs:"hasteOptions"`

	CacheBackend CacheBackend `structs:"cacheBackend"`
	RedisAddr    string       `structs:"redisAddr,omitempty"`
	MongoURI     string       `structs:"mongoUri,omitempty"`
	ShardAddrs   []string     `structs:"shardAddrs,omitempty"`

	// CacheGCCron, when non-empty, schedules cachegc.Scheduler's sweep
	// (github.com/gorhill/cronexpr syntax).
	CacheGCCron string `structs:"cacheGcCron,omitempty"`

	// DebugServerAddr, when non-empty, is where cmd/modrun-debugserver binds.
	DebugServerAddr string `structs:"debugServerAddr,omitempty"`

	// LogLevel is the minimum severity (debug/info/warn/error/fatal,
	// case-insensitive) internal/logger writes to either sink.
	LogLevel string `structs:"logLevel"`
}

// UnmockPatterns compiles UnmockPatternsRaw into the single regex
// policy.Engine consults, unioning every configured pattern.
func (c Config) UnmockPatterns() (*regexp.Regexp, error) {
	if len(c.UnmockPatternsRaw) == 0 {
		return nil, nil
	}
	union := ""
	for i, p := range c.UnmockPatternsRaw {
		if i > 0 {
			union += "|"
		}
		union += "(?:" + p + ")"
	}
	re, err := regexp.Compile(union)
	if err != nil {
		return nil, fmt.Errorf("config: compiling unmockPatterns: %w", err)
	}
	return re, nil
}

// Default returns a Config with sensible defaults for this domain:
// standalone mode equivalent (in-memory cache, automock off).
func Default() Config {
	return Config{
		ModuleFileExtensions: []string{".js", ".json"},
		CacheBackend:         CacheBackendMemory,
		LogLevel:             "debug",
	}
}

// ParseFlags parses os.Args-style flags into a Config, mirroring src/go.go's
// flat flag.StringVar/IntVar block. CacheDir falls back to the user's home
// directory, resolved with go-homedir, exactly as the logger and plugin
// loader do for their own on-disk state.
func ParseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Default()

	var automock bool
	var cacheDir string
	var rootDir string
	var cacheBackend string
	var redisAddr string
	var mongoURI string
	var cacheGCCron string
	var debugAddr string
	var logLevel string

	fs.BoolVar(&automock, "automock", false, "enable automocking by default")
	fs.StringVar(&cacheDir, "cache-dir", "", "cache directory; defaults to ~/.modrun/cache")
	fs.StringVar(&rootDir, "root", ".", "module resolution root directory")
	fs.StringVar(&cacheBackend, "cache-backend", string(CacheBackendMemory), "[memory], [redis] or [mongo]")
	fs.StringVar(&redisAddr, "redis-addr", "", "redis connection string, required for [redis] cache backend")
	fs.StringVar(&mongoURI, "mongo-uri", "", "mongodb uri, required for [mongo] cache backend")
	fs.StringVar(&cacheGCCron, "cache-gc-cron", "", "cron expression for periodic cache sweeps; disabled when empty")
	fs.StringVar(&debugAddr, "debug-addr", "", "bind address for the optional debug server; disabled when empty")
	fs.StringVar(&logLevel, "log-level", cfg.LogLevel, "minimum log severity: debug, info, warn, error, or fatal")

	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("config: parsing flags: %w", err)
	}

	if cacheDir == "" {
		home, err := homedir.Dir()
		if err != nil {
			return Config{}, fmt.Errorf("config: resolving home directory: %w", err)
		}
		cacheDir = home + "/.modrun/cache"
	}

	cfg.Automock = automock
	cfg.CacheDir = cacheDir
	cfg.RootDir = rootDir
	cfg.CacheBackend = CacheBackend(cacheBackend)
	cfg.RedisAddr = redisAddr
	cfg.MongoURI = mongoURI
	cfg.CacheGCCron = cacheGCCron
	cfg.DebugServerAddr = debugAddr
	cfg.LogLevel = logLevel

	if cfg.CacheBackend == CacheBackendRedis && cfg.RedisAddr == "" {
		return Config{}, fmt.Errorf("config: redis address is required for the redis cache backend")
	}
	if cfg.CacheBackend == CacheBackendMongo && cfg.MongoURI == "" {
		return Config{}, fmt.Errorf("config: mongo uri is required for the mongo cache backend")
	}

	return cfg, nil
}

// Dump renders cfg as a map via github.com/fatih/structs, the same library
// dao/model.JobEntity is tagged for, for diagnostic logging/debugserver
// introspection.
func Dump(cfg Config) map[string]any {
	return structs.Map(&cfg)
}
