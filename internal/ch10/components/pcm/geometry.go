package pcm

import (
	ch10err "github.com/alxayo/ch10parse/internal/errors"
	ch10ctx "github.com/alxayo/ch10parse/internal/ch10/context"
)

func ceilDiv(n, d int) int { return (n + d - 1) / d }

// syncPatternBitCount implements the sync-pattern bit count table: output
// always a whole number of bits, rounded up to the alignment word size in
// unpacked mode.
func syncPatternBitCount(c csdwPCMF1, syncLenBits int) int {
	switch {
	case c.ModeUnpacked:
		switch {
		case syncLenBits <= 16:
			return 16
		case syncLenBits <= 32:
			return 32
		case c.ModeAlign == 16:
			return ceilDiv(syncLenBits, 16) * 16
		default:
			return ceilDiv(syncLenBits, 32) * 32
		}
	default:
		// packed and throughput both pass the raw length through unchanged.
		return syncLenBits
	}
}

// minorFrameBitCount implements the minor-frame bit count table (includes
// the sync pattern, excludes the IPH).
func minorFrameBitCount(tmats ch10ctx.PCMTMATSData, c csdwPCMF1, pktSyncBits int) (int, error) {
	switch {
	case c.ModeUnpacked:
		count := (tmats.WordsInMinFrame-1)*16 + pktSyncBits
		if c.ModeAlign == 32 && count%32 != 0 {
			count += 16
		}
		return count, nil
	case c.ModePacked:
		count := (tmats.WordsInMinFrame-1)*tmats.CommonWordLength + tmats.MinFrameSyncPatternLen
		align := c.ModeAlign
		if count%align != 0 {
			count += align - count%align
		}
		return count, nil
	case c.ModeThroughput:
		count := (tmats.WordsInMinFrame-1)*tmats.CommonWordLength + tmats.MinFrameSyncPatternLen
		if count != tmats.BitsInMinFrame {
			return 0, ch10err.NewPcmF1Error("pcm.minorFrameBitCount: throughput geometry disagrees with TMATS", nil)
		}
		return count, nil
	default:
		return 0, ch10err.NewPcmF1Error("pcm.minorFrameBitCount: no mode set", nil)
	}
}

// ipdhLenBytes returns the intra-packet data header size for the packet's
// alignment: 2 bytes at 16-bit alignment, 4 at 32-bit.
func ipdhLenBytes(align int) int {
	if align == 16 {
		return 2
	}
	return 4
}

// minorFrameCount implements the minor-frame count derivation, failing
// when the packet body does not divide evenly.
func minorFrameCount(pktDataSz, minorFrameBits, align int) (count, sizeBytes int, err error) {
	sizeBytes = minorFrameBits / 8
	denom := sizeBytes + ipdhLenBytes(align) + iptsLenBytes
	if denom == 0 {
		return 0, 0, ch10err.NewPcmF1Error("pcm.minorFrameCount: zero-length minor frame", nil)
	}
	if pktDataSz%denom != 0 {
		return 0, 0, ch10err.NewPcmF1Error("pcm.minorFrameCount: packet body does not divide evenly into minor frames", nil)
	}
	return pktDataSz / denom, sizeBytes, nil
}
