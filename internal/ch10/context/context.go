// Package context implements Ch10Context: the per-worker mutable state
// shared by every component parser — current channel id, TDP state, the
// enabled-type map, sink handles, and the accumulated cross-packet
// metadata maps.
package context

import (
	ch10err "github.com/alxayo/ch10parse/internal/errors"
	"github.com/alxayo/ch10parse/internal/ch10/chronos"
	"github.com/alxayo/ch10parse/internal/ch10/header"
	"github.com/alxayo/ch10parse/internal/ch10/sink"
)

// PCMTMATSData is the per-channel PCM geometry read from a TMATS P-d block,
// read-only once parsed.
type PCMTMATSData struct {
	BitsInMinFrame         int
	WordsInMinFrame        int
	MinFramesInMajFrame    int
	CommonWordLength       int
	MinFrameSyncPatternLen int
}

// Validate checks the TMATS consistency rule:
// bits_in_min_frame = (words_in_min_frame-1)*common_word_length +
// min_frame_sync_pattern_len.
func (d PCMTMATSData) Validate() error {
	want := (d.WordsInMinFrame-1)*d.CommonWordLength + d.MinFrameSyncPatternLen
	if want != d.BitsInMinFrame {
		return ch10err.NewPcmF1Error("pcmtmats.validate", nil)
	}
	return nil
}

// CommandWordPair is a {command word, status word} pair observed on a 1553
// channel: the command word addressing the transfer and the status word the
// responding RT returned for it.
type CommandWordPair struct {
	Cmd    uint16
	Status uint16
}

// Ch10Context is exclusively owned by one worker for the lifetime of its
// run; PacketElements it hands to component parsers never outlive the
// worker's chunk buffer.
type Ch10Context struct {
	WorkerIndex int
	StartPos    int

	CurrentChannelID uint16
	BytesRemaining   int

	EnabledTypes map[header.Ch10PacketType]bool
	sinkPaths    map[header.Ch10PacketType]string
	sinks        map[header.Ch10PacketType]sink.RowSink
	handles      map[header.Ch10PacketType]sink.Handle

	TDP              chronos.TDPState
	searchingForTDP  bool
	deferredPackets  int
	hasDeferredPos   bool
	firstDeferredPos int

	lruAddresses map[uint16]map[uint8]struct{}
	commandWords map[uint16]map[CommandWordPair]struct{}
	minVideoTS   map[uint16]uint64
	pcmTMATS     map[uint16]PCMTMATSData
	tmatsRaw     []byte
	fatal        error
}

// New constructs an empty Ch10Context for one worker.
func New() *Ch10Context {
	return &Ch10Context{
		EnabledTypes: make(map[header.Ch10PacketType]bool),
		sinkPaths:    make(map[header.Ch10PacketType]string),
		sinks:        make(map[header.Ch10PacketType]sink.RowSink),
		handles:      make(map[header.Ch10PacketType]sink.Handle),
		lruAddresses: make(map[uint16]map[uint8]struct{}),
		commandWords: make(map[uint16]map[CommandWordPair]struct{}),
		minVideoTS:   make(map[uint16]uint64),
		pcmTMATS:     make(map[uint16]PCMTMATSData),
	}
}

// Initialize resets per-run state: cursors, TDP state, and the
// deferred-packet counter. Configuration (EnabledTypes, sinks) is set up
// separately via Configure, since it is immutable for the worker's
// lifetime while Initialize may be called again for an append pass.
func (c *Ch10Context) Initialize(startPos, workerIndex int) {
	c.StartPos = startPos
	c.WorkerIndex = workerIndex
	c.CurrentChannelID = 0
	c.BytesRemaining = 0
	c.TDP.Reset()
	c.searchingForTDP = false
	c.deferredPackets = 0
	c.hasDeferredPos = false
	c.firstDeferredPos = 0
}

// Configure wires the enabled-type map and a RowSink factory per type. Each
// sink is opened lazily, on the first AppendRow-worthy row for that type.
func (c *Ch10Context) Configure(enabled map[header.Ch10PacketType]bool, paths map[header.Ch10PacketType]string, sinks map[header.Ch10PacketType]sink.RowSink) error {
	c.EnabledTypes = enabled
	c.sinkPaths = paths
	c.sinks = sinks
	return c.CheckConfiguration()
}

// CheckConfiguration enforces that every enabled packet type resolves to a
// configured sink and output path.
func (c *Ch10Context) CheckConfiguration() error {
	for t, on := range c.EnabledTypes {
		if !on {
			continue
		}
		if _, ok := c.sinks[t]; !ok {
			return ch10err.NewConfigError("context.checkConfiguration: missing sink for "+t.String(), nil)
		}
		if _, ok := c.sinkPaths[t]; !ok {
			return ch10err.NewConfigError("context.checkConfiguration: missing output path for "+t.String(), nil)
		}
	}
	return nil
}

// SetSearchingForTDP toggles whether non-TDP packets requiring AbsTime are
// skipped (and recorded for the append pass) because the TDP anchor is not
// yet settled.
func (c *Ch10Context) SetSearchingForTDP(searching bool) {
	c.searchingForTDP = searching
}

// SearchingForTDP reports the current searching-for-TDP state.
func (c *Ch10Context) SearchingForTDP() bool { return c.searchingForTDP }

// NeedsAppendPass reports whether this worker deferred any packets while
// searching for its TDP; a true result tells the manager to schedule an
// append-pass worker for this chunk.
func (c *Ch10Context) NeedsAppendPass() bool { return c.deferredPackets > 0 }

// RecordDeferredPacket increments the deferred-packet counter and, the
// first time it is called, latches pos (the deferred packet's chunk-relative
// header offset) as the append-pass rewind point. Called by a component
// parser when it cannot compute AbsTime because the TDP has not been seen
// yet (and SearchingForTDP is true).
func (c *Ch10Context) RecordDeferredPacket(pos int) {
	c.deferredPackets++
	if !c.hasDeferredPos {
		c.hasDeferredPos = true
		c.firstDeferredPos = pos
	}
}

// FirstDeferredPosition returns the chunk-relative offset of the first
// packet this context deferred while searching for its TDP, and whether any
// packet was deferred at all. The manager rewinds the append-pass worker to
// this position rather than to lastSuccessfulPosition, which advances past
// every deferred packet regardless of whether it was ever processed.
func (c *Ch10Context) FirstDeferredPosition() (int, bool) {
	return c.firstDeferredPos, c.hasDeferredPos
}

// UpdateFromHeader records the current channel id and remaining body bytes
// from a freshly read packet header.
func (c *Ch10Context) UpdateFromHeader(h *header.PacketHeader) {
	c.CurrentChannelID = h.ChannelID
	c.BytesRemaining = h.BodySize()
}

// Handle returns the open sink.Handle for packet type t, opening it lazily
// on first use via the configured sink and path.
func (c *Ch10Context) Handle(t header.Ch10PacketType) (sink.Handle, error) {
	if h, ok := c.handles[t]; ok {
		return h, nil
	}
	s, ok := c.sinks[t]
	if !ok {
		return nil, ch10err.NewConfigError("context.handle: no sink configured for "+t.String(), nil)
	}
	path, ok := c.sinkPaths[t]
	if !ok {
		return nil, ch10err.NewConfigError("context.handle: no output path for "+t.String(), nil)
	}
	h, err := s.Open(path)
	if err != nil {
		return nil, ch10err.NewConfigError("context.handle: open failed for "+t.String(), err)
	}
	c.handles[t] = h
	return h, nil
}

// CloseSinks flushes and closes every opened handle, in the order they
// were first opened is not guaranteed (map iteration).
func (c *Ch10Context) CloseSinks() error {
	var firstErr error
	for _, h := range c.handles {
		if err := h.Flush(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := h.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// RecordLRUAddress tracks a bus A/B address observed on a 1553 channel.
func (c *Ch10Context) RecordLRUAddress(channelID uint16, addr uint8) {
	set, ok := c.lruAddresses[channelID]
	if !ok {
		set = make(map[uint8]struct{})
		c.lruAddresses[channelID] = set
	}
	set[addr] = struct{}{}
}

// LRUAddresses returns an immutable view of the LRU addresses observed so
// far, keyed by channel id.
func (c *Ch10Context) LRUAddresses() map[uint16]map[uint8]struct{} {
	return c.lruAddresses
}

// RecordCommandWords tracks a {command word, status word} pair observed on
// a 1553 channel.
func (c *Ch10Context) RecordCommandWords(channelID uint16, pair CommandWordPair) {
	set, ok := c.commandWords[channelID]
	if !ok {
		set = make(map[CommandWordPair]struct{})
		c.commandWords[channelID] = set
	}
	set[pair] = struct{}{}
}

// CommandWords returns an immutable view of the command-word pairs
// observed so far, keyed by channel id.
func (c *Ch10Context) CommandWords() map[uint16]map[CommandWordPair]struct{} {
	return c.commandWords
}

// RecordVideoTimestamp folds absNS into the running minimum video
// timestamp for channelID.
func (c *Ch10Context) RecordVideoTimestamp(channelID uint16, absNS uint64) {
	cur, ok := c.minVideoTS[channelID]
	if !ok || absNS < cur {
		c.minVideoTS[channelID] = absNS
	}
}

// MinVideoTimestamps returns an immutable view of the per-channel minimum
// video abs-time-ns observed so far.
func (c *Ch10Context) MinVideoTimestamps() map[uint16]uint64 {
	return c.minVideoTS
}

// SetPCMTMATS registers the PCM geometry for channelID, read from TMATS.
// Exactly one entry per channel is allowed; a second call for the same
// channel is a ConfigError.
func (c *Ch10Context) SetPCMTMATS(channelID uint16, data PCMTMATSData) error {
	if _, exists := c.pcmTMATS[channelID]; exists {
		return ch10err.NewConfigError("context.setPCMTMATS: duplicate TMATS entry for channel", nil)
	}
	c.pcmTMATS[channelID] = data
	return nil
}

// HasPCMTMATS reports whether channelID already has a registered PCM
// geometry, so a caller re-scanning an accumulated TMATS buffer can skip
// channels it has already registered instead of tripping SetPCMTMATS's
// duplicate-entry guard.
func (c *Ch10Context) HasPCMTMATS(channelID uint16) bool {
	_, ok := c.pcmTMATS[channelID]
	return ok
}

// PCMTMATS returns the PCM geometry for channelID, or an error if none (or
// more than one, which SetPCMTMATS already prevents) was registered.
func (c *Ch10Context) PCMTMATS(channelID uint16) (PCMTMATSData, error) {
	d, ok := c.pcmTMATS[channelID]
	if !ok {
		return PCMTMATSData{}, ch10err.NewPcmF1Error("context.pcmTMATS: no TMATS entry for channel", nil)
	}
	return d, nil
}

// RecordTMATSBytes appends a raw TMATS (Computer-Generated-Data F1) body to
// the worker's accumulated buffer. After each TMATS packet the worker
// re-scans this buffer for PCM geometry (tmats.ParsePCMBlocks); channel-line
// parsing of the combined buffer happens at the manager level, which may
// see TMATS split across multiple packets.
func (c *Ch10Context) RecordTMATSBytes(raw []byte) {
	c.tmatsRaw = append(c.tmatsRaw, raw...)
}

// TMATSBytes returns the raw TMATS bytes accumulated so far.
func (c *Ch10Context) TMATSBytes() []byte {
	return c.tmatsRaw
}

// SetFatal records a worker-fatal error observed while dispatching a
// packet: ConfigError/InputError abort the run rather than being skipped
// at the next packet boundary. Only the first call sticks.
func (c *Ch10Context) SetFatal(err error) {
	if c.fatal == nil {
		c.fatal = err
	}
}

// Fatal returns the worker-fatal error recorded by SetFatal, or nil.
func (c *Ch10Context) Fatal() error {
	return c.fatal
}
