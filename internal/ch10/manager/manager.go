// Package manager implements ParseManager: partitioning a Ch10 file into
// per-worker chunks, running the initial (Phase A) and append (Phase B)
// passes, merging the per-worker metadata each internal/ch10/worker.Run
// call accumulates, and laying out the output tree. It owns every
// goroutine handle, the same single-threaded-orchestrator role a live
// server's top-level listener plays: workers never talk to one another
// directly.
package manager

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/xid"
	"gopkg.in/yaml.v3"

	"github.com/alxayo/ch10parse/internal/ch10/chronos"
	"github.com/alxayo/ch10parse/internal/ch10/config"
	ch10ctx "github.com/alxayo/ch10parse/internal/ch10/context"
	"github.com/alxayo/ch10parse/internal/ch10/header"
	"github.com/alxayo/ch10parse/internal/ch10/metadata"
	"github.com/alxayo/ch10parse/internal/ch10/sink"
	"github.com/alxayo/ch10parse/internal/ch10/worker"
	ch10err "github.com/alxayo/ch10parse/internal/errors"
	"github.com/alxayo/ch10parse/internal/logger"
)

// Manager is a single ParseManager run's orchestrator: construct one per
// invocation, a one-shot-per-run lifecycle rather than a reusable object.
type Manager struct {
	opts    config.Options
	metrics *Metrics
	runID   xid.ID
}

// New applies opts' defaults and constructs a Manager. The raw maps in opts
// are resolved at the start of Run, before any file I/O, so a ConfigError
// from them is returned by Run, not by New. reg may be nil, in which case a private prometheus.Registry is used so that
// concurrent test runs never collide on the default global registry.
func New(opts config.Options, reg prometheus.Registerer) (*Manager, error) {
	opts = opts.WithDefaults()
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return &Manager{
		opts:    opts,
		metrics: NewMetrics(reg),
		runID:   xid.New(),
	}, nil
}

// RunResult is the merged, run-level view ParseManager hands back, plus
// enough per-worker detail for a caller to diagnose a partial run.
type RunResult struct {
	RunID string

	WorkerCount   int
	WorkerErrors  map[int]error
	NeedsAppendOf []int

	TDP                chronos.TDPState
	LRUAddresses       map[uint16]map[uint8]struct{}
	CommandWords       map[uint16][]ch10ctx.CommandWordPair
	MinVideoTimestamps map[uint16]uint64

	TMATS metadata.TMATSResult

	OutputDirs   map[header.Ch10PacketType]string
	WorkerFiles  map[header.Ch10PacketType][]string
	MetadataPath string
}

// chunkPlan is one worker's slice of the input file.
type chunkPlan struct {
	workerIndex int
	offset      int64
	size        int64
	finalWorker bool
}

// planChunks allocates resources: a chunk per
// ceil(file_size/worker_chunk_size), the last one stretched to
// file_size, and (if MaxChunkReadCount is set) clamped so the run never
// reads more chunks than that safety cap — the last retained chunk absorbs
// whatever remains.
func planChunks(fileSize int64, opts config.Options) []chunkPlan {
	chunkSize := int64(opts.ParseChunkBytesMB) * 1_000_000
	if chunkSize <= 0 {
		chunkSize = fileSize
	}
	workerCount := int((fileSize + chunkSize - 1) / chunkSize)
	if workerCount < 1 {
		workerCount = 1
	}
	if opts.MaxChunkReadCount > 0 && workerCount > int(opts.MaxChunkReadCount) {
		workerCount = int(opts.MaxChunkReadCount)
	}

	plans := make([]chunkPlan, workerCount)
	for i := 0; i < workerCount; i++ {
		offset := int64(i) * chunkSize
		size := chunkSize
		if i == workerCount-1 {
			size = fileSize - offset
		}
		plans[i] = chunkPlan{workerIndex: i, offset: offset, size: size, finalWorker: i == workerCount-1}
	}
	return plans
}

// defaultSuffix is the append-suffix a packet type gets when
// config.Options.OutputSuffixes names no override for it.
func defaultSuffix(t header.Ch10PacketType) string {
	return "_" + strings.ToLower(t.String())
}

// Run drives a full parse of inputPath to completion: Phase A, Phase B,
// metadata merge, output layout, and the _metadata.yaml document. sinks
// supplies one sink.RowSink per enabled packet type, shared across every
// worker: Open is keyed by path, so distinct worker file names never
// collide on the same handle.
func (m *Manager) Run(parentCtx context.Context, sinks map[header.Ch10PacketType]sink.RowSink) (*RunResult, error) {
	log := logger.WithRun(logger.Logger(), m.runID.String())

	enabledTypes, err := config.ConvertCh10PacketTypeMap(m.opts.Ch10PacketType)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(m.opts.InputPath)
	if err != nil {
		return nil, ch10err.NewInputError("manager.run: stat input", err)
	}
	if !info.Mode().IsRegular() {
		return nil, ch10err.NewInputError("manager.run: input is not a regular file", nil)
	}

	overrides, err := config.ResolveOutputSuffixes(m.opts.OutputSuffixes)
	if err != nil {
		return nil, err
	}
	suffixes := make(map[header.Ch10PacketType]string, len(enabledTypes))
	for t, on := range enabledTypes {
		if !on {
			continue
		}
		if s, ok := overrides[t]; ok {
			suffixes[t] = s
			continue
		}
		suffixes[t] = defaultSuffix(t)
	}

	outputDirs, err := metadata.CreatePacketOutputDirs(m.opts.OutputBaseDir, m.opts.OutputBaseName, enabledTypes, suffixes, m.opts.CreateDirs)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(m.opts.InputPath)
	if err != nil {
		return nil, ch10err.NewInputError("manager.run: open input", err)
	}
	defer f.Close()

	plans := planChunks(info.Size(), m.opts)
	workerFiles := metadata.CreateWorkerFileNames(len(plans), outputDirs, "")
	progress := newProgressTable(len(plans))

	runCtx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	phaseA, fatalErr := m.runPhase(runCtx, cancel, log, f, plans, enabledTypes, sinks, workerFiles, progress, false, nil)
	if fatalErr != nil {
		return nil, fatalErr
	}

	mergedTDP := mergeTDP(phaseA)

	var appendPlans []chunkPlan
	var appendIndex []int
	for i, r := range phaseA {
		if r.Result.NeedsAppendPass {
			// Rewind to the first packet this worker deferred, not
			// LastPosition: by the time Phase A's loop ends, LastPosition has
			// already advanced past every deferred packet, so reusing it here
			// would hand the append-pass worker an empty region to re-scan.
			rewind := int64(r.Config.StartPosition) + int64(r.Result.FirstDeferredPosition)
			appendPlans = append(appendPlans, chunkPlan{
				workerIndex: i,
				offset:      rewind,
				size:        plans[i].offset + plans[i].size - rewind,
				finalWorker: plans[i].finalWorker,
			})
			appendIndex = append(appendIndex, i)
		}
	}

	phaseB := make([]workerRun, 0, len(appendPlans))
	if len(appendPlans) > 0 && mergedTDP != nil {
		phaseB, fatalErr = m.runPhase(runCtx, cancel, log, f, appendPlans, enabledTypes, sinks, workerFiles, progress, true, mergedTDP)
		if fatalErr != nil {
			return nil, fatalErr
		}
	}

	result := m.merge(phaseA, phaseB, appendIndex, mergedTDP, outputDirs, workerFiles, len(plans))

	tmatsBytes := combineTMATSBytes(phaseA, phaseB)
	tmatsResult, err := metadata.ProcessTMATS(tmatsBytes, m.opts.OutputBaseDir)
	if err != nil {
		return nil, err
	}
	result.TMATS = tmatsResult

	metadataPath, err := m.writeMetadataDocument(result)
	if err != nil {
		return nil, err
	}
	result.MetadataPath = metadataPath

	log.Info("parse run complete",
		"worker_count", result.WorkerCount,
		"append_workers", len(appendIndex),
		"errors", len(result.WorkerErrors))
	return result, nil
}

// workerRun pairs a worker's Config and Result so later merge steps can
// recover the absolute file offset a relative LastPosition refers to.
type workerRun struct {
	Config worker.Config
	Result worker.Result
}

// runPhase executes plans in parallel, bounded by opts.ParseThreadCount,
// with a staggered start of worker_offset_wait_ms between launches, via a
// bounded semaphore. A ConfigError or InputError from any worker in Phase A
// cancels the rest and aborts the run — only those two kinds abort Phase A;
// Phase B (append) errors are recorded per-worker instead, since by then
// the run has already produced a usable partial result.
func (m *Manager) runPhase(ctx context.Context, cancel context.CancelFunc, log *slog.Logger, f *os.File, plans []chunkPlan, enabledTypes map[header.Ch10PacketType]bool, sinks map[header.Ch10PacketType]sink.RowSink, workerFiles map[header.Ch10PacketType][]string, progress *progressTable, appendMode bool, seedTDP *chronos.TDPState) ([]workerRun, error) {
	results := make([]workerRun, len(plans))
	sem := make(chan struct{}, maxInt(1, int(m.opts.ParseThreadCount)))
	var wg sync.WaitGroup
	var mu sync.Mutex
	var fatal error

	offsetWait := time.Duration(m.opts.WorkerOffsetWaitMS) * time.Millisecond

	for slot, plan := range plans {
		wg.Add(1)
		go func(slot int, plan chunkPlan) {
			defer wg.Done()

			if offsetWait > 0 {
				time.Sleep(time.Duration(slot) * offsetWait)
			}

			sem <- struct{}{}
			defer func() { <-sem }()

			m.metrics.WorkerActive.Inc()
			defer m.metrics.WorkerActive.Dec()

			buf := make([]byte, plan.size)
			if plan.size > 0 {
				if _, err := f.ReadAt(buf, plan.offset); err != nil {
					readErr := ch10err.NewInputError("manager.runPhase: read chunk", err)
					if appendMode {
						results[slot] = workerRun{
							Config: worker.Config{WorkerIndex: plan.workerIndex, StartPosition: int(plan.offset), AppendMode: true},
							Result: worker.Result{WorkerIndex: plan.workerIndex, Err: readErr},
						}
						return
					}
					mu.Lock()
					if fatal == nil {
						fatal = readErr
						cancel()
					}
					mu.Unlock()
					return
				}
			}

			outputPaths := make(map[header.Ch10PacketType]string, len(workerFiles))
			for t, names := range workerFiles {
				if plan.workerIndex < len(names) {
					outputPaths[t] = names[plan.workerIndex]
				}
			}

			cfg := worker.Config{
				WorkerIndex:   plan.workerIndex,
				StartPosition: int(plan.offset),
				FinalWorker:   plan.finalWorker,
				AppendMode:    appendMode,
				EnabledTypes:  enabledTypes,
				OutputPaths:   outputPaths,
				Sinks:         sinks,
				SeedTDP:       seedTDP,
			}

			res := worker.Run(ctx, cfg, buf)

			m.metrics.BytesProcessedTotal.Add(float64(res.LastPosition))
			for t, n := range res.PacketCounts {
				m.metrics.PacketsParsedTotal.WithLabelValues(t.String()).Add(float64(n))
			}
			for kind, n := range res.ErrorCounts {
				m.metrics.ParseErrorsTotal.WithLabelValues(kind).Add(float64(n))
			}

			progress.update(plan.workerIndex, res)

			if res.Err != nil && isPhaseAbortingError(res.Err) && !appendMode {
				mu.Lock()
				if fatal == nil {
					fatal = res.Err
					cancel()
				}
				mu.Unlock()
			}

			results[slot] = workerRun{Config: cfg, Result: res}
		}(slot, plan)
	}

	wg.Wait()
	if fatal != nil {
		return nil, fatal
	}
	return results, nil
}

func isPhaseAbortingError(err error) bool {
	var ce *ch10err.ConfigError
	var ie *ch10err.InputError
	return stdErrors.As(err, &ce) || stdErrors.As(err, &ie)
}

// mergeTDP picks the TDP anchor from the lowest-indexed Phase A worker that
// saw one: the earliest chunk in file order is the best approximation of
// "the TDP that governs the rest of the file" when more than one worker's
// chunk happens to contain a Time-F1 TDP packet.
func mergeTDP(results []workerRun) *chronos.TDPState {
	sorted := append([]workerRun(nil), results...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Config.WorkerIndex < sorted[j].Config.WorkerIndex })
	for _, r := range sorted {
		if r.Result.TDP.HasSeenTDP {
			tdp := r.Result.TDP
			return &tdp
		}
	}
	return nil
}

func combineTMATSBytes(phaseA, phaseB []workerRun) []byte {
	var out []byte
	for _, r := range phaseA {
		out = append(out, r.Result.TMATSBytes...)
	}
	for _, r := range phaseB {
		out = append(out, r.Result.TMATSBytes...)
	}
	return out
}

// merge combines Phase A and Phase B results into one RunResult: the
// equal-length precondition on CombineLRUAddresses is satisfied by padding
// Phase B's slice with empty maps for every Phase A worker that never
// needed an append pass.
func (m *Manager) merge(phaseA, phaseB []workerRun, appendIndex []int, mergedTDP *chronos.TDPState, outputDirs map[header.Ch10PacketType]string, workerFiles map[header.Ch10PacketType][]string, workerCount int) *RunResult {
	lruV1 := make([]map[uint16]map[uint8]struct{}, len(phaseA))
	lruV2 := make([]map[uint16]map[uint8]struct{}, len(phaseA))
	allCmdWords := make([]map[uint16]map[ch10ctx.CommandWordPair]struct{}, 0, len(phaseA)+len(phaseB))
	allMinVideo := make([]map[uint16]uint64, 0, len(phaseA)+len(phaseB))
	workerErrors := make(map[int]error)

	appendByIndex := make(map[int]workerRun, len(phaseB))
	for i, r := range phaseB {
		appendByIndex[appendIndex[i]] = r
	}

	for i, r := range phaseA {
		lruV1[i] = r.Result.LRUAddresses
		lruV2[i] = map[uint16]map[uint8]struct{}{}
		allCmdWords = append(allCmdWords, r.Result.CommandWords)
		allMinVideo = append(allMinVideo, r.Result.MinVideoTimestamps)
		if r.Result.Err != nil {
			workerErrors[r.Config.WorkerIndex] = r.Result.Err
		}
		if ap, ok := appendByIndex[r.Config.WorkerIndex]; ok {
			lruV2[i] = ap.Result.LRUAddresses
			allCmdWords = append(allCmdWords, ap.Result.CommandWords)
			allMinVideo = append(allMinVideo, ap.Result.MinVideoTimestamps)
			if ap.Result.Err != nil {
				workerErrors[r.Config.WorkerIndex] = ap.Result.Err
			}
		}
	}

	lruMerged, _ := metadata.CombineLRUAddresses(lruV1, lruV2)
	cmdMerged := metadata.CombineCommandWords(allCmdWords)
	minVideoMerged := metadata.CreateMinVideoTimestamps(allMinVideo)

	tdp := chronos.TDPState{}
	if mergedTDP != nil {
		tdp = *mergedTDP
	}

	return &RunResult{
		RunID:              m.runID.String(),
		WorkerCount:        workerCount,
		WorkerErrors:       workerErrors,
		NeedsAppendOf:      appendIndex,
		TDP:                tdp,
		LRUAddresses:       lruMerged,
		CommandWords:       cmdMerged,
		MinVideoTimestamps: minVideoMerged,
		OutputDirs:         outputDirs,
		WorkerFiles:        workerFiles,
	}
}

// metadataDocument is the yaml.v3-marshaled shape written to
// <base>/_metadata.yaml. Field order here is the on-disk field order.
type metadataDocument struct {
	RunID              string                        `yaml:"run_id"`
	WorkerCount        int                            `yaml:"worker_count"`
	AppendPassWorkers  []int                          `yaml:"append_pass_workers"`
	TDPSeeded          bool                           `yaml:"tdp_seeded"`
	LRUAddresses       map[uint16][]uint8             `yaml:"lru_addresses,omitempty"`
	CommandWords       map[uint16][]string            `yaml:"command_words,omitempty"`
	MinVideoTimestamps map[uint16]uint64              `yaml:"min_video_timestamps_ns,omitempty"`
	TMATSChannelSource map[uint16]string              `yaml:"tmats_channel_source,omitempty"`
	TMATSChannelType   map[uint16]string              `yaml:"tmats_channel_type,omitempty"`
	WorkerErrors       map[int]string                 `yaml:"worker_errors,omitempty"`
}

func (m *Manager) writeMetadataDocument(r *RunResult) (string, error) {
	doc := metadataDocument{
		RunID:              r.RunID,
		WorkerCount:        r.WorkerCount,
		AppendPassWorkers:  r.NeedsAppendOf,
		TDPSeeded:          r.TDP.HasSeenTDP,
		MinVideoTimestamps: r.MinVideoTimestamps,
		TMATSChannelSource: r.TMATS.ChannelSource,
		TMATSChannelType:   r.TMATS.ChannelType,
	}
	if len(r.LRUAddresses) > 0 {
		doc.LRUAddresses = make(map[uint16][]uint8, len(r.LRUAddresses))
		for chanID, set := range r.LRUAddresses {
			addrs := make([]uint8, 0, len(set))
			for a := range set {
				addrs = append(addrs, a)
			}
			sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
			doc.LRUAddresses[chanID] = addrs
		}
	}
	if len(r.CommandWords) > 0 {
		doc.CommandWords = make(map[uint16][]string, len(r.CommandWords))
		for chanID, pairs := range r.CommandWords {
			strs := make([]string, 0, len(pairs))
			for _, p := range pairs {
				strs = append(strs, fmt.Sprintf("%d/%d", p.Cmd, p.Status))
			}
			sort.Strings(strs)
			doc.CommandWords[chanID] = strs
		}
	}
	if len(r.WorkerErrors) > 0 {
		doc.WorkerErrors = make(map[int]string, len(r.WorkerErrors))
		for idx, err := range r.WorkerErrors {
			doc.WorkerErrors[idx] = err.Error()
		}
	}

	raw, err := yaml.Marshal(doc)
	if err != nil {
		return "", ch10err.NewConfigError("manager.writeMetadataDocument: marshal", err)
	}
	path := filepath.Join(m.opts.OutputBaseDir, "_metadata.yaml")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", ch10err.NewInputError("manager.writeMetadataDocument: write", err)
	}
	return path, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
