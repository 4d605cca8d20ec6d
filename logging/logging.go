// Package logging defines the Logger interface used throughout benor.
// It also includes functions for setting the global log level and a per-package log level.
package logging

import (
	"io"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mut           sync.RWMutex
	logLevel      = zapcore.InfoLevel
	packageLevels = make(map[string]zapcore.Level)
)

// ParseLevel returns the zap level with the given name.
func ParseLevel(level string) (zapcore.Level, bool) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return l, false
	}
	return l, true
}

func mustParseLevel(level string) zapcore.Level {
	l, ok := ParseLevel(level)
	if !ok {
		panic("invalid log level '" + level + "'")
	}
	return l
}

// SetLogLevel sets the global log level.
func SetLogLevel(levelStr string) {
	level := mustParseLevel(levelStr)
	mut.Lock()
	logLevel = level
	mut.Unlock()
}

// SetPackageLogLevel sets a log level for a package, overriding the global level.
// The package name is matched against the path of the calling source file.
func SetPackageLogLevel(packageName, levelStr string) {
	level := mustParseLevel(levelStr)
	mut.Lock()
	packageLevels[packageName] = level
	mut.Unlock()
}

// Logger is the logging interface used by benor. It is based on zap.SugaredLogger.
type Logger interface {
	Debug(args ...any)
	Debugf(template string, args ...any)
	Info(args ...any)
	Infof(template string, args ...any)
	Warn(args ...any)
	Warnf(template string, args ...any)
	Error(args ...any)
	Errorf(template string, args ...any)
	Panic(args ...any)
	Panicf(template string, args ...any)
	Fatal(args ...any)
	Fatalf(template string, args ...any)
}

type wrapper struct {
	inner *zap.SugaredLogger
	level zap.AtomicLevel
	mut   sync.Mutex
}

// enter locks the wrapper and adjusts the level for the package of the caller.
// It must be called directly from a Logger method.
func (wr *wrapper) enter() {
	wr.mut.Lock()

	mut.RLock()
	defer mut.RUnlock()

	if len(packageLevels) == 0 {
		wr.level.SetLevel(logLevel)
		return
	}
	if _, file, _, ok := runtime.Caller(2); ok {
		for pkg, level := range packageLevels {
			if strings.Contains(file, "/"+pkg+"/") {
				wr.level.SetLevel(level)
				return
			}
		}
	}
	wr.level.SetLevel(logLevel)
}

func (wr *wrapper) Debug(args ...any) {
	wr.enter()
	defer wr.mut.Unlock()
	wr.inner.Debug(args...)
}

func (wr *wrapper) Debugf(template string, args ...any) {
	wr.enter()
	defer wr.mut.Unlock()
	wr.inner.Debugf(template, args...)
}

func (wr *wrapper) Info(args ...any) {
	wr.enter()
	defer wr.mut.Unlock()
	wr.inner.Info(args...)
}

func (wr *wrapper) Infof(template string, args ...any) {
	wr.enter()
	defer wr.mut.Unlock()
	wr.inner.Infof(template, args...)
}

func (wr *wrapper) Warn(args ...any) {
	wr.enter()
	defer wr.mut.Unlock()
	wr.inner.Warn(args...)
}

func (wr *wrapper) Warnf(template string, args ...any) {
	wr.enter()
	defer wr.mut.Unlock()
	wr.inner.Warnf(template, args...)
}

func (wr *wrapper) Error(args ...any) {
	wr.enter()
	defer wr.mut.Unlock()
	wr.inner.Error(args...)
}

func (wr *wrapper) Errorf(template string, args ...any) {
	wr.enter()
	defer wr.mut.Unlock()
	wr.inner.Errorf(template, args...)
}

func (wr *wrapper) Panic(args ...any) {
	wr.enter()
	defer wr.mut.Unlock()
	wr.inner.Panic(args...)
}

func (wr *wrapper) Panicf(template string, args ...any) {
	wr.enter()
	defer wr.mut.Unlock()
	wr.inner.Panicf(template, args...)
}

func (wr *wrapper) Fatal(args ...any) {
	wr.enter()
	defer wr.mut.Unlock()
	wr.inner.Fatal(args...)
}

func (wr *wrapper) Fatalf(template string, args ...any) {
	wr.enter()
	defer wr.mut.Unlock()
	wr.inner.Fatalf(template, args...)
}

// New returns a new logger for stderr with the given name.
// Setting BENOR_LOG_TYPE=json selects zap's production (JSON) encoding.
func New(name string) Logger {
	var config zap.Config
	if strings.EqualFold(os.Getenv("BENOR_LOG_TYPE"), "json") {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
			config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
	}
	mut.RLock()
	config.Level.SetLevel(logLevel)
	mut.RUnlock()
	l, err := config.Build(zap.AddCallerSkip(1))
	if err != nil {
		panic(err)
	}
	return &wrapper{inner: l.Sugar().Named(name), level: config.Level}
}

// NewWithDest returns a new logger for the given destination with the given name.
func NewWithDest(dest io.Writer, name string) Logger {
	mut.RLock()
	atom := zap.NewAtomicLevelAt(logLevel)
	mut.RUnlock()
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()), zapcore.AddSync(dest), atom)
	l := zap.New(core, zap.AddCallerSkip(1))
	return &wrapper{inner: l.Sugar().Named(name), level: atom}
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return &wrapper{inner: zap.NewNop().Sugar(), level: zap.NewAtomicLevel()}
}
