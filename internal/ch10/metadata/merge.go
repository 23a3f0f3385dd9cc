// Package metadata implements the manager's post-run merge step: unioning
// the per-worker metadata maps every Ch10Context accumulates (LRU
// addresses, command words, minimum video timestamps) into one per-run
// view, plus the TMATS write-out and the output-path/file-name composition
// functions the manager uses to lay out a run's directory tree.
package metadata

import (
	ch10ctx "github.com/alxayo/ch10parse/internal/ch10/context"
	ch10err "github.com/alxayo/ch10parse/internal/errors"
)

// CombineLRUAddresses unions the per-channel LRU address sets observed by
// every worker across both phases. v1 and v2 (e.g. Phase A and
// Phase B/append-pass results, the latter padded with empty maps for
// workers that never needed an append pass) must have equal length: a
// length mismatch is a sign the two phases' worker lists fell out of
// alignment, which is a configuration bug, not a data condition to
// silently tolerate.
func CombineLRUAddresses(v1, v2 []map[uint16]map[uint8]struct{}) (map[uint16]map[uint8]struct{}, error) {
	if len(v1) != len(v2) {
		return nil, ch10err.NewConfigError("metadata.combineLRUAddresses: phase A/B worker count mismatch", nil)
	}
	out := make(map[uint16]map[uint8]struct{})
	merge := func(maps []map[uint16]map[uint8]struct{}) {
		for _, perWorker := range maps {
			for chanID, addrs := range perWorker {
				set, ok := out[chanID]
				if !ok {
					set = make(map[uint8]struct{})
					out[chanID] = set
				}
				for addr := range addrs {
					set[addr] = struct{}{}
				}
			}
		}
	}
	merge(v1)
	merge(v2)
	return out, nil
}

// CombineCommandWords unions the per-channel {command word, status word}
// pairs observed by every worker, fanning the merged set back out into a
// slice per channel.
func CombineCommandWords(maps []map[uint16]map[ch10ctx.CommandWordPair]struct{}) map[uint16][]ch10ctx.CommandWordPair {
	merged := make(map[uint16]map[ch10ctx.CommandWordPair]struct{})
	for _, perWorker := range maps {
		for chanID, pairs := range perWorker {
			set, ok := merged[chanID]
			if !ok {
				set = make(map[ch10ctx.CommandWordPair]struct{})
				merged[chanID] = set
			}
			for p := range pairs {
				set[p] = struct{}{}
			}
		}
	}
	out := make(map[uint16][]ch10ctx.CommandWordPair, len(merged))
	for chanID, set := range merged {
		pairs := make([]ch10ctx.CommandWordPair, 0, len(set))
		for p := range set {
			pairs = append(pairs, p)
		}
		out[chanID] = pairs
	}
	return out
}

// CreateMinVideoTimestamps takes the element-wise minimum abs_time_ns per
// channel id across every worker's map.
func CreateMinVideoTimestamps(maps []map[uint16]uint64) map[uint16]uint64 {
	out := make(map[uint16]uint64)
	for _, perWorker := range maps {
		for chanID, ts := range perWorker {
			cur, ok := out[chanID]
			if !ok || ts < cur {
				out[chanID] = ts
			}
		}
	}
	return out
}
