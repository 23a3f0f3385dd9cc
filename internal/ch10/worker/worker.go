// Package worker implements ParseWorker: the single-threaded PacketHeader →
// Dispatcher → ComponentParser → Ch10Context → RowSink loop that drives one
// chunk of a Ch10 file from start to its read boundary, generalizing an
// accept → readLoop → dispatch connection lifecycle to a bounded byte chunk
// instead of a socket.
package worker

import (
	"context"
	"errors"
	"log/slog"

	"github.com/alxayo/ch10parse/internal/ch10/chronos"
	ch10ctx "github.com/alxayo/ch10parse/internal/ch10/context"
	"github.com/alxayo/ch10parse/internal/ch10/components/ethernetf0"
	"github.com/alxayo/ch10parse/internal/ch10/components/milstd1553"
	"github.com/alxayo/ch10parse/internal/ch10/components/pcm"
	"github.com/alxayo/ch10parse/internal/ch10/components/timef1"
	"github.com/alxayo/ch10parse/internal/ch10/components/tmats"
	"github.com/alxayo/ch10parse/internal/ch10/components/videof0"
	"github.com/alxayo/ch10parse/internal/ch10/element"
	"github.com/alxayo/ch10parse/internal/ch10/header"
	"github.com/alxayo/ch10parse/internal/ch10/sink"
	ch10err "github.com/alxayo/ch10parse/internal/errors"
	"github.com/alxayo/ch10parse/internal/logger"
)

// DefaultMaxConsecutiveResyncFailures is the escalation threshold: this
// many consecutive header-checksum resyncs without a clean header forces
// the worker to give up on its chunk.
const DefaultMaxConsecutiveResyncFailures = 16

// componentParser is the shape every component package in
// internal/ch10/components exposes.
type componentParser func(ctx *ch10ctx.Ch10Context, cursor *element.Cursor, h *header.PacketHeader) error

var parsers = map[header.Ch10PacketType]componentParser{
	header.MilStd1553F1:        milstd1553.Parse,
	header.PcmF1:               pcm.Parse,
	header.TimeF1:              timef1.Parse,
	header.VideoDataF0:         videof0.Parse,
	header.EthernetDataF0:      ethernetf0.Parse,
	header.ComputerGeneratedF1: tmats.Parse,
}

// Config is the immutable WorkerConfig a ParseManager hands to one worker.
type Config struct {
	WorkerIndex int
	// StartPosition is this worker's offset into the file; LastPosition in
	// the Result is relative to the chunk passed to Run, so the manager
	// adds StartPosition back when resuming elsewhere.
	StartPosition int
	FinalWorker   bool
	AppendMode    bool

	EnabledTypes map[header.Ch10PacketType]bool
	OutputPaths  map[header.Ch10PacketType]string
	Sinks        map[header.Ch10PacketType]sink.RowSink

	// SequenceGapTolerance overrides header.DefaultSequenceGapTolerance when
	// non-zero; it is forwarded to header.NewSequenceTracker.
	SequenceGapTolerance uint8
	// MaxConsecutiveResyncFailures overrides DefaultMaxConsecutiveResyncFailures
	// when non-zero.
	MaxConsecutiveResyncFailures int

	// SeedTDP carries the merged Phase A TDP anchor into an append-pass
	// worker, bypassing the search-for-TDP state entirely.
	SeedTDP *chronos.TDPState
}

// Result is the WorkerResult a completed worker hands back: accumulated
// metadata, the last position this worker consumed cleanly, and whatever
// error ended the run early.
type Result struct {
	WorkerIndex     int
	LastPosition    int
	NeedsAppendPass bool
	// FirstDeferredPosition is the chunk-relative offset of the first packet
	// this worker deferred while searching for its TDP, valid only when
	// NeedsAppendPass is true. The manager rewinds the append-pass worker to
	// this position rather than LastPosition, which has already advanced
	// past every deferred packet by the time the chunk loop ends.
	FirstDeferredPosition int
	TDP                   chronos.TDPState
	TMATSBytes            []byte

	LRUAddresses       map[uint16]map[uint8]struct{}
	CommandWords       map[uint16]map[ch10ctx.CommandWordPair]struct{}
	MinVideoTimestamps map[uint16]uint64

	// PacketCounts and ErrorCounts feed the manager's prometheus counters;
	// they are incidental bookkeeping, not something component parsers or
	// Ch10Context need to know about.
	PacketCounts map[header.Ch10PacketType]int
	ErrorCounts  map[string]int

	Err error
}

// isWorkerFatal reports whether err should abort the whole run rather than
// being logged and skipped at the next packet boundary: only ConfigError
// and InputError in Phase A abort the run.
func isWorkerFatal(err error) bool {
	var ce *ch10err.ConfigError
	var ie *ch10err.InputError
	return errors.As(err, &ce) || errors.As(err, &ie)
}

// Run drives chunkBytes through the header/dispatch loop until the chunk is
// exhausted, a partial trailing header is found, the cooperative ctx is
// cancelled, or the consecutive-resync-failure threshold is exceeded.
func Run(parentCtx context.Context, cfg Config, chunkBytes []byte) Result {
	log := logger.WithWorker(logger.Logger(), cfg.WorkerIndex)

	maxFailures := cfg.MaxConsecutiveResyncFailures
	if maxFailures == 0 {
		maxFailures = DefaultMaxConsecutiveResyncFailures
	}

	ctx := ch10ctx.New()
	ctx.Initialize(cfg.StartPosition, cfg.WorkerIndex)
	if cfg.AppendMode && cfg.SeedTDP != nil {
		ctx.TDP = *cfg.SeedTDP
	}
	ctx.SetSearchingForTDP(!cfg.AppendMode)

	packetCounts := make(map[header.Ch10PacketType]int)
	errorCounts := make(map[string]int)

	result := func(err error) Result {
		_ = ctx.CloseSinks()
		firstDeferred, _ := ctx.FirstDeferredPosition()
		return Result{
			WorkerIndex:           cfg.WorkerIndex,
			LastPosition:          0,
			NeedsAppendPass:       ctx.NeedsAppendPass(),
			FirstDeferredPosition: firstDeferred,
			TDP:                   ctx.TDP,
			TMATSBytes:            ctx.TMATSBytes(),
			LRUAddresses:          ctx.LRUAddresses(),
			CommandWords:          ctx.CommandWords(),
			MinVideoTimestamps:    ctx.MinVideoTimestamps(),
			PacketCounts:          packetCounts,
			ErrorCounts:           errorCounts,
			Err:                   err,
		}
	}

	if err := ctx.Configure(cfg.EnabledTypes, cfg.OutputPaths, cfg.Sinks); err != nil {
		log.Error("worker configuration rejected", "error", err)
		return result(err)
	}

	cursor := element.NewCursor(chunkBytes)
	tolerance := cfg.SequenceGapTolerance
	if tolerance == 0 {
		tolerance = header.DefaultSequenceGapTolerance
	}
	seqTracker := header.NewSequenceTracker(tolerance)
	lastSuccessfulPosition := 0
	consecutiveFailures := 0

	for {
		select {
		case <-parentCtx.Done():
			log.Debug("worker cancelled", "last_position", lastSuccessfulPosition)
			r := result(ch10err.ErrCancelled)
			r.LastPosition = lastSuccessfulPosition
			return r
		default:
		}

		h, warned, err := header.SeekSync(cursor, seqTracker)
		if err != nil {
			// ErrIncompleteTail: whatever remains can't be a full header.
			// Terminal, not an error — the manager resumes the next chunk
			// from lastSuccessfulPosition.
			break
		}
		if warned {
			log.Warn("sequence number deviation", "channel_id", h.ChannelID, "sequence", h.Sequence)
		}

		if !h.VerifyHeaderChecksum(cursor) {
			consecutiveFailures++
			log.Warn("header checksum mismatch, resyncing", "offset", h.StartOffset, "consecutive_failures", consecutiveFailures)
			if consecutiveFailures >= maxFailures {
				r := result(ch10err.NewParseAbortedError("worker.run: consecutive resync failures exceeded threshold", nil))
				r.LastPosition = lastSuccessfulPosition
				return r
			}
			if serr := cursor.SeekAbs(h.StartOffset + 1); serr != nil {
				break
			}
			continue
		}
		consecutiveFailures = 0

		if h.Flags.SecondaryHdr {
			if _, serr := header.ReadSecondaryHeader(cursor); serr != nil {
				_ = cursor.SeekAbs(h.StartOffset)
				break
			}
		}

		bodyLen := h.BodySize()
		if cursor.Remaining() < bodyLen {
			_ = cursor.SeekAbs(h.StartOffset)
			break
		}
		rawBody, terr := cursor.Take(bodyLen)
		if terr != nil {
			_ = cursor.SeekAbs(h.StartOffset)
			break
		}

		ctx.UpdateFromHeader(h)
		dispatchPacket(ctx, log, h, rawBody, packetCounts, errorCounts)

		if err := isWorkerFatalFromDispatch(ctx); err != nil {
			r := result(err)
			r.LastPosition = lastSuccessfulPosition
			return r
		}

		lastSuccessfulPosition = cursor.Pos()
	}

	r := result(nil)
	r.LastPosition = lastSuccessfulPosition
	return r
}

// dispatchPacket looks up h.DataType in the enabled-types map and, if
// enabled and recognized, hands rawBody to its component parser. Disabled
// types (unrecognized data_type codes among them) are skipped silently; an
// enabled type with no parser is logged and skipped — the body bytes
// are already consumed by the caller, which advances the cursor past the
// remaining body bytes and terminates this packet regardless of outcome.
func dispatchPacket(ctx *ch10ctx.Ch10Context, log *slog.Logger, h *header.PacketHeader, rawBody []byte, packetCounts map[header.Ch10PacketType]int, errorCounts map[string]int) {
	if !ctx.EnabledTypes[h.DataType] {
		return
	}
	parse, ok := parsers[h.DataType]
	if !ok {
		log.Warn("enabled type has no component parser", "data_type", h.DataType.String(), "channel_id", h.ChannelID)
		return
	}

	bodyCursor := element.NewCursor(rawBody)
	err := parse(ctx, bodyCursor, h)
	if err == nil {
		packetCounts[h.DataType]++
		if bodyCursor.Remaining() != 0 {
			log.Warn("component parser did not consume full body", "data_type", h.DataType.String(), "channel_id", h.ChannelID, "remaining", bodyCursor.Remaining())
		}
		if h.DataType == header.ComputerGeneratedF1 {
			registerPCMGeometry(ctx, log)
		}
		return
	}
	if errors.Is(err, ch10err.ErrNeedsAppendPass) {
		log.Debug("packet deferred to append pass", "data_type", h.DataType.String(), "channel_id", h.ChannelID)
		return
	}
	if isWorkerFatal(err) {
		errorCounts[ch10err.Kind(err)]++
		ctx.SetFatal(err)
		return
	}
	// Component parsers recover by skipping the rest of the packet; the
	// body bytes are already consumed, so recovery here is just logging and
	// moving on to the next header.
	errorCounts[ch10err.Kind(err)]++
	log.Warn("component parser error, skipping packet", "data_type", h.DataType.String(), "channel_id", h.ChannelID, "error", err)
}

func isWorkerFatalFromDispatch(ctx *ch10ctx.Ch10Context) error {
	return ctx.Fatal()
}

// registerPCMGeometry re-scans the accumulated TMATS buffer for P-d PCM
// geometry blocks after every TMATS packet, registering any channel this
// context has not already seen. TMATS commonly precedes the PCM-F1 packets
// it describes within one chunk; re-scanning on every update lets those
// later packets decode without waiting for a manager-level merge.
func registerPCMGeometry(ctx *ch10ctx.Ch10Context, log *slog.Logger) {
	blocks, err := tmats.ParsePCMBlocks(ctx.TMATSBytes())
	if err != nil {
		log.Warn("TMATS PCM geometry scan failed", "error", err)
		return
	}
	for chanID, data := range blocks {
		if ctx.HasPCMTMATS(chanID) {
			continue
		}
		if err := ctx.SetPCMTMATS(chanID, data); err != nil {
			log.Warn("TMATS PCM geometry registration failed", "channel_id", chanID, "error", err)
		}
	}
}
