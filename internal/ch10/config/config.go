// Package config implements the externally-facing Options set a
// ParseManager run is configured with, plus ConvertCh10PacketTypeMap, the
// one piece of that interface with nontrivial validation logic.
package config

import (
	"strings"

	"github.com/alxayo/ch10parse/internal/ch10/header"
	ch10err "github.com/alxayo/ch10parse/internal/errors"
)

// Options is the recognized configuration set a ParseManager run accepts.
// Field names follow Go-idiomatic casing; the wire/CLI names
// (ch10_packet_type, parse_chunk_bytes, ...) are handled by cmd/ch10parse's
// flag layer, not here.
type Options struct {
	// Ch10PacketType is the raw {NAME: "true"/"false"} map as received from
	// a config file or CLI flags, before ConvertCh10PacketTypeMap resolves
	// it against header.Ch10PacketType.
	Ch10PacketType map[string]string

	ParseChunkBytesMB  int
	ParseThreadCount   uint16
	MaxChunkReadCount  uint32
	WorkerOffsetWaitMS uint16
	WorkerShiftWaitMS  uint16

	InputPath      string
	OutputBaseDir  string
	OutputBaseName string
	CreateDirs     bool

	// OutputSuffixes optionally overrides the per-type append-suffix
	// ParseManager composes output directory names from. Any enabled type
	// missing an entry here falls back to the manager's own
	// "_"+lowercase(type) default.
	OutputSuffixes map[string]string
}

// defaults mirror this engine's conservative out-of-the-box behavior: a
// modest chunk size, one worker per available thread slot left unbounded
// by the caller, and no artificial pacing between worker starts.
const (
	DefaultParseChunkBytesMB = 64
	DefaultParseThreadCount  = 4
)

// WithDefaults returns a copy of o with zero-valued numeric fields filled
// in from the package defaults.
func (o Options) WithDefaults() Options {
	if o.ParseChunkBytesMB == 0 {
		o.ParseChunkBytesMB = DefaultParseChunkBytesMB
	}
	if o.ParseThreadCount == 0 {
		o.ParseThreadCount = DefaultParseThreadCount
	}
	return o
}

// ConvertCh10PacketTypeMap resolves a raw {NAME: boolString} map into
// {Ch10PacketType: bool}. Both the name and the boolean
// string are case-insensitive. Any unrecognized name or malformed boolean
// string fails the whole conversion with an empty result map — a partially
// resolved enabled-types map is worse than none, since ParseManager reads
// every entry as authoritative.
func ConvertCh10PacketTypeMap(raw map[string]string) (map[header.Ch10PacketType]bool, error) {
	out := make(map[header.Ch10PacketType]bool, len(raw))
	for name, boolStr := range raw {
		t, ok := header.TypeFromConfigName(name)
		if !ok {
			return map[header.Ch10PacketType]bool{}, ch10err.NewConfigError("config.convertCh10PacketTypeMap: unrecognized packet type name "+name, nil)
		}
		b, ok := parseBool(boolStr)
		if !ok {
			return map[header.Ch10PacketType]bool{}, ch10err.NewConfigError("config.convertCh10PacketTypeMap: malformed boolean "+boolStr+" for "+name, nil)
		}
		out[t] = b
	}
	return out, nil
}

// ResolveOutputSuffixes resolves a raw {NAME: suffix} map the same way
// ConvertCh10PacketTypeMap resolves type names, but without the bool
// parsing: an empty suffix string is valid (it means "no suffix").
func ResolveOutputSuffixes(raw map[string]string) (map[header.Ch10PacketType]string, error) {
	out := make(map[header.Ch10PacketType]string, len(raw))
	for name, suffix := range raw {
		t, ok := header.TypeFromConfigName(name)
		if !ok {
			return map[header.Ch10PacketType]string{}, ch10err.NewConfigError("config.resolveOutputSuffixes: unrecognized packet type name "+name, nil)
		}
		out[t] = suffix
	}
	return out, nil
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true":
		return true, true
	case "false":
		return false, true
	default:
		return false, false
	}
}
