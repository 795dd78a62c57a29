package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tendant/events-compiler/internal/compiler"
	"github.com/tendant/events-compiler/internal/toolchain"
)

type config struct {
	NATSURL        string
	RequestSubject string
	EventSubject   string
	ProjectFile    string
	WorkDir        string
	CXX            string
	HeaderDirs     []string
	MetricsAddr    string
	WatchProject   bool
	WatchDebounce  time.Duration
	LogLevel       slog.Level
}

func LoadConfig() (config, error) {
	cfg := config{
		NATSURL:        getenv("NATS_URL", "nats://127.0.0.1:4222"),
		RequestSubject: getenv("COMPILE_REQUEST_SUBJECT", "events.compile.requests"),
		EventSubject:   getenv("COMPILE_EVENT_SUBJECT", "events.compile.done"),
		ProjectFile:    getenv("PROJECT_FILE", "./project.yaml"),
		WorkDir:        getenv("WORK_DIR", compiler.DefaultWorkDir()),
		CXX:            getenv("CXX", "clang++"),
		MetricsAddr:    ":9090",
	}
	if addr, ok := os.LookupEnv("METRICS_ADDR"); ok {
		cfg.MetricsAddr = addr
	}

	if _, err := toolchain.GetInvoker(cfg.CXX, nil); err != nil {
		return config{}, fmt.Errorf("invalid CXX: %w", err)
	}

	for _, dir := range filepath.SplitList(getenv("HEADER_DIRS", "")) {
		if dir = strings.TrimSpace(dir); dir != "" {
			cfg.HeaderDirs = append(cfg.HeaderDirs, dir)
		}
	}

	watch, err := strconv.ParseBool(getenv("WATCH_PROJECT", "true"))
	if err != nil {
		return config{}, fmt.Errorf("invalid WATCH_PROJECT: %w", err)
	}
	cfg.WatchProject = watch

	debounceMs, err := parsePositiveInt(getenv("WATCH_DEBOUNCE_MS", "250"), "WATCH_DEBOUNCE_MS")
	if err != nil {
		return config{}, err
	}
	cfg.WatchDebounce = time.Duration(debounceMs) * time.Millisecond

	if err := cfg.LogLevel.UnmarshalText([]byte(getenv("LOG_LEVEL", "info"))); err != nil {
		return config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	return cfg, nil
}

func parsePositiveInt(value string, name string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be greater than zero (got %d)", name, v)
	}
	return v, nil
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
