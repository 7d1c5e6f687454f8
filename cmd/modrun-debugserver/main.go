// Command modrun-debugserver runs a standalone Runtime behind the
// introspection HTTP+WS server, the counterpart to src/go.go's "m=std"
// branch wiring server.StartStandalone directly onto gin.Default().
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/traitorjs/modrun/config"
	"github.com/traitorjs/modrun/debugserver"
	"github.com/traitorjs/modrun/hostfs"
	"github.com/traitorjs/modrun/internal/logger"
	"github.com/traitorjs/modrun/resolver"
	"github.com/traitorjs/modrun/runtime"
	"github.com/traitorjs/modrun/sandbox"
	"github.com/traitorjs/modrun/transform"
)

func main() {
	fs := flag.NewFlagSet("modrun-debugserver", flag.ExitOnError)
	cfg, err := config.ParseFlags(fs, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.CacheDir, cfg.LogLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if cfg.DebugServerAddr == "" {
		cfg.DebugServerAddr = ":8080"
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

	if entry := fs.Arg(0); entry != "" {
		if _, err := rt.RequireRoot(entry); err != nil {
			logger.Error("modrun-debugserver: loading entry module:", err)
		}
	}

	r := gin.Default()
	debugserver.StartStandalone(r, rt)
	r.NoRoute(func(ctx *gin.Context) { ctx.JSON(http.StatusNotFound, gin.H{}) })

	if err := r.Run(cfg.DebugServerAddr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
