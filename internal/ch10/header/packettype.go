package header

import "strings"

// Ch10PacketType identifies which component parser a packet body dispatches
// to, keyed off the header's data_type byte. Byte values (see wireCode) are
// assigned by this engine and are not claimed to match the IRIG 106 Chapter
// 10 data-type code table — only the types this engine supports are
// assigned a value; everything else is DataTypeUnknown.
type Ch10PacketType uint8

const (
	DataTypeUnknown Ch10PacketType = iota
	ComputerGeneratedF1
	TimeF1
	MilStd1553F1
	PcmF1
	VideoDataF0
	EthernetDataF0
)

// wireCode is the on-wire data_type byte for each supported packet type.
var wireCode = map[Ch10PacketType]uint8{
	ComputerGeneratedF1: 0x01,
	TimeF1:              0x11,
	MilStd1553F1:        0x19,
	PcmF1:               0x09,
	VideoDataF0:         0x40,
	EthernetDataF0:      0x50,
}

var typeFromWireCode = func() map[uint8]Ch10PacketType {
	m := make(map[uint8]Ch10PacketType, len(wireCode))
	for t, code := range wireCode {
		m[code] = t
	}
	return m
}()

// TypeFromWireCode maps a header's raw data_type byte to a Ch10PacketType.
// Unrecognized codes return DataTypeUnknown, not an error: an unknown type
// is a dispatch-disabled type, handled the same as a configured-off one.
func TypeFromWireCode(code uint8) Ch10PacketType {
	if t, ok := typeFromWireCode[code]; ok {
		return t
	}
	return DataTypeUnknown
}

// String returns the canonical output name used in merged metadata and in
// convert_ch10_packet_type_map's result keys.
func (t Ch10PacketType) String() string {
	switch t {
	case ComputerGeneratedF1:
		return "COMPUTER_GENERATED_F1"
	case TimeF1:
		return "TIME_F1"
	case MilStd1553F1:
		return "MILSTD1553_F1"
	case PcmF1:
		return "PCM_F1"
	case VideoDataF0:
		return "VIDEO_DATA_F0"
	case EthernetDataF0:
		return "ETHERNET_DATA_F0"
	default:
		return "UNKNOWN"
	}
}

// configName is the name this type is recognized under in the ch10_packet_type
// configuration map, distinct from its canonical output String().
var configName = map[Ch10PacketType]string{
	ComputerGeneratedF1: "COMPUTER_GENERATED_FORMAT1",
	TimeF1:              "TIME_FORMAT1",
	MilStd1553F1:        "MILSTD1553_FORMAT1",
	PcmF1:               "PCM_FORMAT1",
	VideoDataF0:         "VIDEO_FORMAT0",
	EthernetDataF0:      "ETHERNET_FORMAT0",
}

var typeFromConfigName = func() map[string]Ch10PacketType {
	m := make(map[string]Ch10PacketType, len(configName))
	for t, name := range configName {
		m[strings.ToUpper(name)] = t
	}
	return m
}()

// TypeFromConfigName resolves a configuration key to its Ch10PacketType. The
// lookup is case-insensitive; an unrecognized name returns ok=false.
func TypeFromConfigName(name string) (Ch10PacketType, bool) {
	t, ok := typeFromConfigName[strings.ToUpper(name)]
	return t, ok
}

// AllPacketTypes lists every supported type, in a stable order, for
// iteration when building per-type output directories or sinks.
func AllPacketTypes() []Ch10PacketType {
	return []Ch10PacketType{
		ComputerGeneratedF1,
		TimeF1,
		MilStd1553F1,
		PcmF1,
		VideoDataF0,
		EthernetDataF0,
	}
}
