package tmats

import (
	"regexp"
	"strconv"

	ch10err "github.com/alxayo/ch10parse/internal/errors"
	ch10ctx "github.com/alxayo/ch10parse/internal/ch10/context"
)

var (
	tk1Line = regexp.MustCompile(`R-\d+\\TK1-(\d+):(\d+);`)
	dsiLine = regexp.MustCompile(`R-\d+\\DSI-(\d+):([^;]+);`)
	cdtLine = regexp.MustCompile(`R-\d+\\CDT-(\d+):([^;]+);`)
)

// ParseChannelLines scans a TMATS buffer for the R-x\TK1-n, R-x\DSI-n, and
// R-x\CDT-n line families and returns, keyed by channel id,
// the data-source name and channel-data-type name for each channel that has
// a TK1 entry linking its index n to a channel number.
func ParseChannelLines(raw []byte) (channelToSource map[uint16]string, channelToType map[uint16]string, err error) {
	s := string(raw)

	indexToChannel := make(map[string]uint16)
	for _, m := range tk1Line.FindAllStringSubmatch(s, -1) {
		chanNum, perr := strconv.ParseUint(m[2], 10, 16)
		if perr != nil {
			return nil, nil, ch10err.NewConfigError("tmats.parseChannelLines: invalid TK1 channel number", perr)
		}
		indexToChannel[m[1]] = uint16(chanNum)
	}

	channelToSource = make(map[uint16]string)
	for _, m := range dsiLine.FindAllStringSubmatch(s, -1) {
		chanID, ok := indexToChannel[m[1]]
		if !ok {
			continue
		}
		channelToSource[chanID] = m[2]
	}

	channelToType = make(map[uint16]string)
	for _, m := range cdtLine.FindAllStringSubmatch(s, -1) {
		chanID, ok := indexToChannel[m[1]]
		if !ok {
			continue
		}
		channelToType[chanID] = m[2]
	}

	return channelToSource, channelToType, nil
}

// PCM TMATS attribute codes. Real TMATS defines a much larger P-d
// vocabulary; the retrieved original_source excerpt did not include the
// file that enumerates it, so these six short codes (channel linkage plus
// the five PCMTMATSData fields) are self-assigned, modeled on the R-x\TK1-n
// channel-index-indirection idiom already used by ParseChannelLines.
var (
	pdTK1Line = regexp.MustCompile(`P-d\\TK1-(\d+):(\d+);`)
	pdBMFLine = regexp.MustCompile(`P-d\\BMF-(\d+):(\d+);`)
	pdWMFLine = regexp.MustCompile(`P-d\\WMF-(\d+):(\d+);`)
	pdMFMLine = regexp.MustCompile(`P-d\\MFM-(\d+):(\d+);`)
	pdCWLLine = regexp.MustCompile(`P-d\\CWL-(\d+):(\d+);`)
	pdSPLLine = regexp.MustCompile(`P-d\\SPL-(\d+):(\d+);`)
)

func scanIntsByIndex(re *regexp.Regexp, s string) (map[string]int, error) {
	out := make(map[string]int)
	for _, m := range re.FindAllStringSubmatch(s, -1) {
		v, err := strconv.Atoi(m[2])
		if err != nil {
			return nil, ch10err.NewConfigError("tmats.scanIntsByIndex: non-integer P-d value", err)
		}
		out[m[1]] = v
	}
	return out, nil
}

// ParsePCMBlocks scans a TMATS buffer for P-d\… PCM geometry blocks and
// returns one PCMTMATSData per channel id that has a complete set of
// TK1/BMF/WMF/MFM/CWL/SPL entries under the same index.
func ParsePCMBlocks(raw []byte) (map[uint16]ch10ctx.PCMTMATSData, error) {
	s := string(raw)

	indexToChannel := make(map[string]uint16)
	for _, m := range pdTK1Line.FindAllStringSubmatch(s, -1) {
		chanNum, err := strconv.ParseUint(m[2], 10, 16)
		if err != nil {
			return nil, ch10err.NewConfigError("tmats.parsePCMBlocks: invalid TK1 channel number", err)
		}
		indexToChannel[m[1]] = uint16(chanNum)
	}

	bmf, err := scanIntsByIndex(pdBMFLine, s)
	if err != nil {
		return nil, err
	}
	wmf, err := scanIntsByIndex(pdWMFLine, s)
	if err != nil {
		return nil, err
	}
	mfm, err := scanIntsByIndex(pdMFMLine, s)
	if err != nil {
		return nil, err
	}
	cwl, err := scanIntsByIndex(pdCWLLine, s)
	if err != nil {
		return nil, err
	}
	spl, err := scanIntsByIndex(pdSPLLine, s)
	if err != nil {
		return nil, err
	}

	out := make(map[uint16]ch10ctx.PCMTMATSData)
	for idx, chanID := range indexToChannel {
		b, ok1 := bmf[idx]
		w, ok2 := wmf[idx]
		m, ok3 := mfm[idx]
		c, ok4 := cwl[idx]
		sp, ok5 := spl[idx]
		if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 {
			continue
		}
		data := ch10ctx.PCMTMATSData{
			BitsInMinFrame:         b,
			WordsInMinFrame:        w,
			MinFramesInMajFrame:    m,
			CommonWordLength:       c,
			MinFrameSyncPatternLen: sp,
		}
		if err := data.Validate(); err != nil {
			return nil, err
		}
		out[chanID] = data
	}
	return out, nil
}
