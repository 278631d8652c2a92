package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
)

// version is injected at build time with -ldflags "-X main.version=...". Defaults to dev.
var version = "dev"

// cliConfig holds user-supplied flag values prior to translation into a
// frame-graph, so main.go can validate and wire nodes from it.
type cliConfig struct {
	width       int
	height      int
	frames      int
	expr        string
	workers     int
	logLevel    string
	showVersion bool
}

func parseFlags(args []string) (*cliConfig, error) {
	fs := flag.NewFlagSet("framegraph-demo", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	cfg := &cliConfig{}
	fs.IntVar(&cfg.width, "width", 64, "frame width in pixels")
	fs.IntVar(&cfg.height, "height", 64, "frame height in pixels")
	fs.IntVar(&cfg.frames, "frames", 8, "number of frames to request")
	fs.StringVar(&cfg.expr, "expr", "x 2 *", "per-plane Expr program applied to the source clip")
	fs.IntVar(&cfg.workers, "workers", 4, "scheduler worker count")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "log level: debug|info|warn|error")
	fs.BoolVar(&cfg.showVersion, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.width <= 0 || cfg.height <= 0 {
		return nil, errors.New("width and height must be positive")
	}
	if cfg.frames <= 0 {
		return nil, errors.New("frames must be positive")
	}
	if cfg.workers <= 0 {
		return nil, errors.New("workers must be positive")
	}
	switch cfg.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid log-level %q", cfg.logLevel)
	}

	return cfg, nil
}
