package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// version is injected at build time with -ldflags "-X main.version=...".
// Defaults to dev.
var version = "dev"

// cliConfig holds user-supplied flag values prior to translation into
// config.Options, so main.go can validate and map them in one place.
type cliConfig struct {
	inputPath      string
	outputDir      string
	outputBaseName string
	threads        uint
	chunkMB        int
	logLevel       string
	logFormat      string
	showVersion    bool
	enableEntries  []string // TYPE=true|false pairs
}

// enabledTypeMap splits cfg.enableEntries into the raw {NAME: boolString}
// map config.ConvertCh10PacketTypeMap expects.
func (cfg *cliConfig) enabledTypeMap() (map[string]string, error) {
	out := make(map[string]string, len(cfg.enableEntries))
	for _, entry := range cfg.enableEntries {
		name, value, ok := strings.Cut(entry, "=")
		if !ok || name == "" || value == "" {
			return nil, fmt.Errorf("invalid -enable %q, expected TYPE=true|false", entry)
		}
		out[name] = value
	}
	return out, nil
}

func parseFlags(args []string) (*cliConfig, error) {
	fs := flag.NewFlagSet("ch10parse", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	cfg := &cliConfig{}
	var enable stringSliceFlag

	fs.StringVar(&cfg.inputPath, "input", "", "Path to the Ch10 file to parse")
	fs.StringVar(&cfg.outputDir, "output-dir", ".", "Base directory for per-packet-type output")
	fs.StringVar(&cfg.outputBaseName, "output-base-name", "", "Base name for output subdirectories and files (defaults to the input file name without extension)")
	fs.UintVar(&cfg.threads, "threads", 4, "Number of worker goroutines (parse_thread_count)")
	fs.IntVar(&cfg.chunkMB, "chunk-mb", 64, "Per-worker chunk size, in megabytes (parse_chunk_bytes)")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "Log level: debug|info|warn|error")
	fs.StringVar(&cfg.logFormat, "log-format", "json", "Log format: json|text")
	fs.BoolVar(&cfg.showVersion, "version", false, "Print version and exit")
	fs.Var(&enable, "enable", "Enable or disable a packet type, TYPE=true|false (can be specified multiple times)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg.enableEntries = enable

	if cfg.showVersion {
		return cfg, nil
	}

	if cfg.inputPath == "" {
		return nil, errors.New("-input is required")
	}
	if cfg.chunkMB <= 0 {
		return nil, errors.New("-chunk-mb must be positive")
	}
	if cfg.threads == 0 {
		return nil, errors.New("-threads must be at least 1")
	}
	switch cfg.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid -log-level %q", cfg.logLevel)
	}
	switch cfg.logFormat {
	case "json", "text":
	default:
		return nil, fmt.Errorf("invalid -log-format %q", cfg.logFormat)
	}

	if cfg.outputBaseName == "" {
		base := filepath.Base(cfg.inputPath)
		cfg.outputBaseName = strings.TrimSuffix(base, filepath.Ext(base))
	}

	return cfg, nil
}

// stringSliceFlag implements flag.Value for a repeatable string flag.
type stringSliceFlag []string

func (s *stringSliceFlag) String() string { return strings.Join(*s, ", ") }

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, value)
	return nil
}
