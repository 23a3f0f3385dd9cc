package metadata

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/alxayo/ch10parse/internal/ch10/components/tmats"
	"github.com/alxayo/ch10parse/internal/ch10/header"
	ch10err "github.com/alxayo/ch10parse/internal/errors"
)

// TMATSResult is what ProcessTMATS hands back to the manager: the sibling
// _TMATS.txt it wrote (if any bytes were collected) and the two channel
// line families tmats.ParseChannelLines resolves from it.
type TMATSResult struct {
	WrittenPath   string
	ChannelSource map[uint16]string
	ChannelType   map[uint16]string
}

// ProcessTMATS writes the combined TMATS buffer to outDir/_TMATS.txt and
// parses it for the R-x\TK1-n, R-x\DSI-n, and R-x\CDT-n channel line
// families. An empty buffer (no ComputerGeneratedF1 packets ever seen) is
// not an error: it simply produces no file and empty maps.
func ProcessTMATS(tmatsBytes []byte, outDir string) (TMATSResult, error) {
	if len(tmatsBytes) == 0 {
		return TMATSResult{ChannelSource: map[uint16]string{}, ChannelType: map[uint16]string{}}, nil
	}

	path := filepath.Join(outDir, "_TMATS.txt")
	if err := os.WriteFile(path, tmatsBytes, 0o644); err != nil {
		return TMATSResult{}, ch10err.NewInputError("metadata.processTMATS: writing _TMATS.txt", err)
	}

	source, typ, err := tmats.ParseChannelLines(tmatsBytes)
	if err != nil {
		return TMATSResult{}, err
	}
	return TMATSResult{WrittenPath: path, ChannelSource: source, ChannelType: typ}, nil
}

// CreatePacketOutputDirs composes one output directory per enabled packet
// type: <baseDir>/<baseName><suffix>. suffixes must
// have an entry — possibly empty — for every enabled type, or the run is
// misconfigured. When createDirs is set the directories are created with
// MkdirAll; otherwise CreatePacketOutputDirs only computes the paths, and
// the caller is responsible for the directories already existing.
func CreatePacketOutputDirs(baseDir, baseName string, enabled map[header.Ch10PacketType]bool, suffixes map[header.Ch10PacketType]string, createDirs bool) (map[header.Ch10PacketType]string, error) {
	if baseDir == "" {
		return nil, ch10err.NewConfigError("metadata.createPacketOutputDirs: empty output base directory", nil)
	}
	out := make(map[header.Ch10PacketType]string)
	for t, on := range enabled {
		if !on {
			continue
		}
		suffix, ok := suffixes[t]
		if !ok {
			return nil, ch10err.NewConfigError(fmt.Sprintf("metadata.createPacketOutputDirs: no output suffix configured for %s", t.String()), nil)
		}
		dir := filepath.Join(baseDir, baseName+suffix)
		if createDirs {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, ch10err.NewInputError("metadata.createPacketOutputDirs: "+dir, err)
			}
		}
		out[t] = dir
	}
	return out, nil
}

// CreateWorkerFileNames builds the <type_dir>/<type_dir_name>__NNN[.ext]
// path each worker writes its rows to for a given packet type, zero-padding
// the worker index to 3 digits. outExt is appended
// with a leading dot unless empty.
func CreateWorkerFileNames(workerCount int, dirMap map[header.Ch10PacketType]string, outExt string) map[header.Ch10PacketType][]string {
	out := make(map[header.Ch10PacketType][]string, len(dirMap))
	for t, dir := range dirMap {
		base := filepath.Base(dir)
		names := make([]string, workerCount)
		for i := 0; i < workerCount; i++ {
			name := fmt.Sprintf("%s__%03d", base, i)
			if outExt != "" {
				name += "." + outExt
			}
			names[i] = filepath.Join(dir, name)
		}
		out[t] = names
	}
	return out
}
