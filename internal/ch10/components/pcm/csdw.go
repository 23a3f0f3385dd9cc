package pcm

import (
	ch10err "github.com/alxayo/ch10parse/internal/errors"
	"github.com/alxayo/ch10parse/internal/ch10/element"
)

// pcmMode is the CSDW's mutually-exclusive mode selector.
type pcmMode uint8

const (
	modeUnpacked pcmMode = iota
	modePacked
	modeThroughput
)

// csdwPCMF1 is the PCM-F1 channel-specific data word. The original source
// exposes mode_throughput/mode_packed/mode_unpacked as independent booleans
// and a separate mode_align flag; the bit positions for those fields were
// not present in the retrieved excerpt, so this layout (IPH, MA, MI in the
// low 3 bits, a 1-bit alignment flag, then a 2-bit mode selector) is my own,
// chosen to keep the mutually-exclusive mode cleanly encoded in 2 bits
// rather than three overlapping single-bit flags.
type csdwPCMF1 struct {
	IPH            bool
	MA             bool
	MI             bool
	ModeAlign      int // 16 or 32
	ModeThroughput bool
	ModePacked     bool
	ModeUnpacked   bool
}

func decodeCSDW(word uint32) (csdwPCMF1, error) {
	iph := element.Bits32(word, 0, 1) != 0
	ma := element.Bits32(word, 1, 1) != 0
	mi := element.Bits32(word, 2, 1) != 0
	alignBit := element.Bits32(word, 3, 1)
	modeBits := pcmMode(element.Bits32(word, 4, 2))

	align := 16
	if alignBit != 0 {
		align = 32
	}

	c := csdwPCMF1{IPH: iph, MA: ma, MI: mi, ModeAlign: align}
	switch modeBits {
	case modeUnpacked:
		c.ModeUnpacked = true
	case modePacked:
		c.ModePacked = true
	case modeThroughput:
		c.ModeThroughput = true
	default:
		return csdwPCMF1{}, ch10err.NewPcmF1Error("pcm.decodeCSDW: unknown mode combination", nil)
	}
	return c, nil
}

// CheckFrameIndicator is the sanity rule that throughput mode makes MI/MA
// irrelevant; otherwise MI and MA cannot both be set.
func CheckFrameIndicator(throughput, mi, ma bool) bool {
	if throughput {
		return true
	}
	return !(mi && ma)
}
