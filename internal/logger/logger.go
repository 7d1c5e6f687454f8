// Package logger is a dual-sink logger: every line goes to a rotating-by-
// append debug file under the runtime's cache directory and to stdout, each
// prefixed with the level and the caller's file:line. Call Init once, early,
// with the resolved cache directory and log level (config.Config.CacheDir,
// config.Config.LogLevel); if nothing calls Init, the first log call lazily
// falls back to the user's home directory and the debug level, the way the
// standalone CLI always has.
package logger

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	homedir "github.com/mitchellh/go-homedir"
)

const (
	DEBUG = "DEBUG"
	INFO  = "INFO"
	WARN  = "WARN"
	ERROR = "ERROR"
	FATAL = "FATAL"
)

// Level orders the five severities so a configured minimum can silence
// anything below it.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelRank = map[string]Level{
	DEBUG: LevelDebug,
	INFO:  LevelInfo,
	WARN:  LevelWarn,
	ERROR: LevelError,
	FATAL: LevelFatal,
}

// ModuleKey mirrors registry.ModuleKey without importing the registry
// package, so a caller can tag a line with the module path it concerns
// without pulling logger into that package's import graph.
type ModuleKey = string

var (
	mu       sync.Mutex
	once     sync.Once
	fileSink *log.Logger
	outSink  *log.Logger
	minLevel = LevelDebug
)

// SetLevel configures the minimum severity written to either sink, from a
// name matching one of the DEBUG/INFO/WARN/ERROR/FATAL constants
// case-insensitively. An unrecognized name leaves the current level
// untouched, so a typo'd config.Config.LogLevel degrades to "log
// everything" rather than silently dropping every line.
func SetLevel(name string) {
	if l, ok := levelRank[strings.ToUpper(name)]; ok {
		minLevel = l
	}
}

// Init opens the debug log at dir/.modrun/debug/modrun.log, wires both sinks, and sets
// the minimum level. It is safe to call at most once; later calls are
// no-ops. If dir is empty, the user's home directory is used, matching the
// fallback every entry point gets automatically via ensureInit.
func Init(dir, level string) error {
	var initErr error
	once.Do(func() {
		SetLevel(level)
		initErr = open(dir)
	})
	return initErr
}

func ensureInit() {
	once.Do(func() {
		dir, err := homedir.Dir()
		if err != nil {
			dir = "."
		}
		_ = open(dir)
	})
}

func open(dir string) error {
	if dir == "" {
		home, err := homedir.Dir()
		if err != nil {
			return fmt.Errorf("logger: resolving home directory: %w", err)
		}
		dir = home
	}
	path := filepath.Join(dir, ".modrun", "debug")
	if err := os.MkdirAll(path, os.ModePerm); err != nil {
		return fmt.Errorf("logger: creating log directory %s: %w", path, err)
	}
	file := filepath.Join(path, "modrun.log")
	logFile, err := os.OpenFile(file, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
	if err != nil {
		return fmt.Errorf("logger: opening %s: %w", file, err)
	}
	fileSink = log.New(logFile, "", log.LstdFlags|log.Lshortfile|log.LUTC)
	outSink = log.New(os.Stdout, "", log.LstdFlags|log.Lshortfile|log.LUTC)
	return nil
}

func Debug(v ...any) { write(DEBUG, v) }
func Info(v ...any)  { write(INFO, v) }
func Warn(v ...any)  { write(WARN, v) }
func Error(v ...any) { write(ERROR, v) }
func Fatal(v ...any) { write(FATAL, v) }

// write is reached directly by the top-level Debug/Info/Warn/Error/Fatal
// functions, and ModuleLogger.write below by the ModuleLogger methods, so
// both sit the same number of frames below the caller and pass the same
// skip depth to setPrefix.
func write(level string, v []any) {
	writeAt(4, level, v)
}

func writeAt(skip int, level string, v []any) {
	if levelRank[level] < minLevel {
		return
	}
	ensureInit()
	mu.Lock()
	defer mu.Unlock()
	setPrefix(skip, level)
	fileSink.Println(v...)
	outSink.Println(v...)
}

func setPrefix(skip int, level string) {
	_, file, line, ok := runtime.Caller(skip)
	var prefix string
	if ok {
		prefix = fmt.Sprintf("[%s][%s:%d]", level, filepath.Base(file), line)
	} else {
		prefix = fmt.Sprintf("[%s]", level)
	}
	fileSink.SetPrefix(prefix)
	outSink.SetPrefix(prefix)
}

// ForModule returns a logger scoped to module: every line it writes is
// tagged with the module path, so a require-cycle diagnostic, a
// torn-down-environment warning, or an automock generation failure can be
// traced back to the file it concerns without threading the path through
// every fmt.Sprintf call site by hand.
func ForModule(module ModuleKey) ModuleLogger {
	return ModuleLogger{module: module}
}

// ModuleLogger is the module-scoped logger ForModule returns.
type ModuleLogger struct {
	module ModuleKey
}

func (m ModuleLogger) Debug(v ...any) { m.write(DEBUG, v) }
func (m ModuleLogger) Info(v ...any)  { m.write(INFO, v) }
func (m ModuleLogger) Warn(v ...any)  { m.write(WARN, v) }
func (m ModuleLogger) Error(v ...any) { m.write(ERROR, v) }
func (m ModuleLogger) Fatal(v ...any) { m.write(FATAL, v) }

func (m ModuleLogger) write(level string, v []any) {
	tagged := make([]any, 0, len(v)+1)
	tagged = append(tagged, "["+m.module+"]")
	tagged = append(tagged, v...)
	writeAt(4, level, tagged)
}
