package main

import (
	"context"
	stdErrors "errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alxayo/ch10parse/internal/ch10/config"
	"github.com/alxayo/ch10parse/internal/ch10/header"
	"github.com/alxayo/ch10parse/internal/ch10/manager"
	"github.com/alxayo/ch10parse/internal/ch10/sink"
	ch10err "github.com/alxayo/ch10parse/internal/errors"
	"github.com/alxayo/ch10parse/internal/logger"
)

// Exit codes: 0 success, 2 config error, 3 input error, 1 irrecoverable
// parse failure.
const (
	exitSuccess     = 0
	exitParseAbort  = 1
	exitConfigError = 2
	exitInputError  = 3
)

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		// The flag package has already printed its own parse errors, with
		// usage; err is printed here so parseFlags' validation errors (such
		// as a missing -input) are reported too.
		if !stdErrors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(exitConfigError)
	}
	if cfg.showVersion {
		fmt.Println(version)
		return
	}

	logger.Init()
	if err := logger.SetLevel(cfg.logLevel); err != nil {
		fmt.Printf("Warning: invalid log level %q, using default\n", cfg.logLevel)
	}
	log := logger.Logger().With("component", "cli")

	enableMap, err := cfg.enabledTypeMap()
	if err != nil {
		log.Error("invalid -enable entry", "error", err)
		os.Exit(exitConfigError)
	}

	opts := config.Options{
		Ch10PacketType:    enableMap,
		ParseChunkBytesMB: cfg.chunkMB,
		ParseThreadCount:  uint16(cfg.threads),
		InputPath:         cfg.inputPath,
		OutputBaseDir:     cfg.outputDir,
		OutputBaseName:    cfg.outputBaseName,
		CreateDirs:        true,
	}

	m, err := manager.New(opts, nil)
	if err != nil {
		log.Error("failed to construct parse manager", "error", err)
		os.Exit(exitConfigError)
	}

	sinks := make(map[header.Ch10PacketType]sink.RowSink, len(header.AllPacketTypes()))
	for _, t := range header.AllPacketTypes() {
		sinks[t] = sink.NewMemorySink()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := m.Run(ctx, sinks)
	if err != nil {
		log.Error("parse run failed", "error", err)
		os.Exit(exitCodeFor(err))
	}

	log.Info("parse run complete",
		"worker_count", result.WorkerCount,
		"append_workers", len(result.NeedsAppendOf),
		"metadata_path", result.MetadataPath,
		"tmats_path", result.TMATS.WrittenPath)

	if len(result.WorkerErrors) > 0 {
		log.Warn("some workers reported errors", "count", len(result.WorkerErrors))
	}
}

// exitCodeFor maps a ParseManager.Run error to the CLI's exit codes.
func exitCodeFor(err error) int {
	var ce *ch10err.ConfigError
	var ie *ch10err.InputError
	switch {
	case stdErrors.As(err, &ce):
		return exitConfigError
	case stdErrors.As(err, &ie):
		return exitInputError
	default:
		return exitParseAbort
	}
}
