// Command modrun is the standalone entry point: parse flags into a
// config.Config, wire the resolver/transformer/sandbox/cache collaborators,
// build one runtime.Runtime, and require the file named on the command
// line as a root module — the same shape as src/go.go's flag-parse-then-
// server.StartStandalone sequence, minus the HTTP server (cmd/modrun-
// debugserver owns that).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/traitorjs/modrun/cachegc"
	"github.com/traitorjs/modrun/cachestore"
	"github.com/traitorjs/modrun/config"
	"github.com/traitorjs/modrun/hostfs"
	"github.com/traitorjs/modrun/internal/logger"
	"github.com/traitorjs/modrun/resolver"
	"github.com/traitorjs/modrun/runtime"
	"github.com/traitorjs/modrun/sandbox"
	"github.com/traitorjs/modrun/transform"
)

func main() {
	fs := flag.NewFlagSet("modrun", flag.ExitOnError)
	cfg, err := config.ParseFlags(fs, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.CacheDir, cfg.LogLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	entry := fs.Arg(0)
	if entry == "" {
		fmt.Fprintln(os.Stderr, "modrun: usage: modrun [flags] <entry-file>")
		os.Exit(1)
	}
	absEntry, err := filepath.Abs(entry)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	store, err := buildStore(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if cfg.CacheGCCron != "" {
		gc, err := cachegc.New(store, cfg.CacheGCCron, func(string) bool { return false })
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		gc.Start(ctx)
		defer gc.Stop()
	}

	res := resolver.New(resolver.Config{
		RootDir:    cfg.RootDir,
		Extensions: cfg.ModuleFileExtensions,
	})
	unmock, err := cfg.UnmockPatterns()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	env := sandbox.NewEnv()
	rt := runtime.New(res, transform.NewPassthrough(cfg.ExtraGlobals), env, hostfs.New(), runtime.Options{
		Automock:             cfg.Automock,
		UnmockPatterns:       unmock,
		ModuleFileExtensions: cfg.ModuleFileExtensions,
		ExtraGlobals:         cfg.ExtraGlobals,
		RootDir:              cfg.RootDir,
	})
	rt.SetCacheStore(store)

	for _, setupFile := range cfg.SetupFiles {
		if _, err := rt.RequireSetupFile(setupFile); err != nil {
			fmt.Fprintln(os.Stderr, "modrun: running setup file:", err)
			os.Exit(1)
		}
	}

	if _, err := rt.RequireRoot(absEntry); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(rt.ExitCode() | 1)
	}
	os.Exit(rt.ExitCode())
}

func buildStore(cfg config.Config) (cachestore.Store, error) {
	if len(cfg.ShardAddrs) > 0 && cfg.CacheBackend == config.CacheBackendRedis {
		shards := make(map[string]cachestore.Store, len(cfg.ShardAddrs))
		for _, addr := range cfg.ShardAddrs {
			shards[addr] = cachestore.NewRedisStore(addr)
		}
		return cachestore.NewShardedStore(shards, 16), nil
	}
	switch cfg.CacheBackend {
	case config.CacheBackendRedis:
		return cachestore.NewRedisStore(cfg.RedisAddr), nil
	case config.CacheBackendMongo:
		return cachestore.NewMongoStore(cfg.MongoURI), nil
	default:
		return cachestore.NewMemoryStore(), nil
	}
}
