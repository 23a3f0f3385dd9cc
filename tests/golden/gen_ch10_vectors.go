//go:build ignore

// Generates deterministic Ch10 packet golden vector binary files.
// Run: go run ./tests/golden/gen_ch10_vectors.go
// Files:
//   - ch10_header_valid.bin (24-byte header, checksum mode none)
//   - ch10_header_corrupt_checksum.bin (24-byte header, 8-bit checksum mode, corrupted)
//   - ch10_timef1_tdp_packet.bin (header + Time-F1 TDP body: CSDW + BCD day-of-year; channel_id=2)
//   - ch10_milstd1553_mode_code_packet.bin (header + CSDW + one mode-code message; channel_id=3)
//
// Packet header layout (24 bytes, little-endian):
//
//	sync(2) channel_id(2) packet_length(4) data_length(4) header_version(1)
//	sequence(1) flags(1) data_type(1) rtc_low(4) rtc_high(2) header_checksum(2)
//
// Deterministic values chosen for reproducibility: channel_id=1, sequence=0,
// rtc_low/rtc_high=0 unless noted otherwise per vector.
package main

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

const (
	headerSize     = 24
	syncPattern    = 0xEB25
	dataTypeTimeF1 = 0x11
	dataType1553F1 = 0x19
)

// sum8 is the 8-bit truncated-sum checksum, independently reimplemented here
// (not imported from internal/ch10/header) since golden-vector generators
// are standalone fixtures, not consumers of the engine under test.
func sum8(data []byte) uint8 {
	var s uint8
	for _, b := range data {
		s += b
	}
	return s
}

// buildHeader assembles a 24-byte packet header. checksumMode selects the
// header_checksum field's encoding: 0 (none, field left zero), 1 (8-bit sum
// over the first 22 bytes).
func buildHeader(channelID uint16, packetLength, dataLength uint32, sequence, flags, dataType byte, checksumMode int) []byte {
	b := make([]byte, headerSize)
	binary.LittleEndian.PutUint16(b[0:2], syncPattern)
	binary.LittleEndian.PutUint16(b[2:4], channelID)
	binary.LittleEndian.PutUint32(b[4:8], packetLength)
	binary.LittleEndian.PutUint32(b[8:12], dataLength)
	b[12] = 1 // header_version
	b[13] = sequence
	b[14] = flags
	b[15] = dataType
	binary.LittleEndian.PutUint32(b[16:20], 0) // rtc_low
	binary.LittleEndian.PutUint16(b[20:22], 0) // rtc_high

	switch checksumMode {
	case 1:
		b[14] |= byte(1) << 6 // checksum_mode bits (6,2) = 1 (8-bit)
		binary.LittleEndian.PutUint16(b[22:24], uint16(sum8(b[0:22])))
	default:
		binary.LittleEndian.PutUint16(b[22:24], 0)
	}
	return b
}

// timeF1TDPBody is a 12-byte Time-F1 body: a 4-byte CSDW (unused by this
// engine) followed by the 8-byte packed-BCD day-of-year word, encoding day
// 1, 00:00:00.000 — the minimal value decodeIRIGDayOfYear accepts.
func timeF1TDPBody() []byte {
	body := make([]byte, 12)
	body[9] = 0x01 // day-of-year low byte, BCD 01 (tens=0, ones=1)
	return body
}

// milstd1553ModeCodePacketBody is a CSDW (message_count=1) followed by one
// 1553 message: a 14-byte IPH, then a 2-byte mode-code command word (T/R=1,
// RT=5, subaddress=0 (mode code), mode code 17 -> one data word) plus a
// 2-byte data word and a 2-byte status word.
func milstd1553ModeCodePacketBody() []byte {
	csdw := make([]byte, 4)
	binary.LittleEndian.PutUint32(csdw, 1) // message_count=1, ttb=0

	iph := make([]byte, 14)
	binary.LittleEndian.PutUint32(iph[0:4], 0)  // rtc1
	binary.LittleEndian.PutUint32(iph[4:8], 0)  // rtc2
	binary.LittleEndian.PutUint16(iph[8:10], 0) // block_status
	iph[10] = 0                                 // gap1
	iph[11] = 0                                 // gap2
	binary.LittleEndian.PutUint16(iph[12:14], 6) // message_bytes: cmd+data+status = 6

	// command word: RT addr=5 (bits15-11), T/R=1 (bit10), subaddr=0 (bits9-5),
	// mode code field=17 (bits4-0) -> one data word expected.
	var cmdWord uint16 = (5 << 11) | (1 << 10) | (0 << 5) | 17
	msg := make([]byte, 6)
	binary.LittleEndian.PutUint16(msg[0:2], cmdWord)
	binary.LittleEndian.PutUint16(msg[2:4], 0xBEEF) // data word
	binary.LittleEndian.PutUint16(msg[4:6], 0)       // status word

	out := append([]byte{}, csdw...)
	out = append(out, iph...)
	out = append(out, msg...)
	return out
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func main() {
	dir, _ := os.Getwd()
	fmt.Println("Generating Ch10 golden vectors in", dir)

	validHeader := buildHeader(1, headerSize+4, 4, 0, 0, dataTypeTimeF1, 0)

	corruptHeader := buildHeader(1, headerSize+4, 4, 0, 0, dataTypeTimeF1, 1)
	corruptHeader[22] ^= 0xFF // flip the checksum so verification fails

	tdpBody := timeF1TDPBody()
	tdpPacket := append(buildHeader(2, headerSize+uint32(len(tdpBody)), uint32(len(tdpBody)), 0, 0, dataTypeTimeF1, 0), tdpBody...)

	msgBody := milstd1553ModeCodePacketBody()
	msgPacket := append(buildHeader(3, headerSize+uint32(len(msgBody)), uint32(len(msgBody)), 0, 0, dataType1553F1, 0), msgBody...)

	files := []struct {
		name string
		data []byte
	}{
		{"ch10_header_valid.bin", validHeader},
		{"ch10_header_corrupt_checksum.bin", corruptHeader},
		{"ch10_timef1_tdp_packet.bin", tdpPacket},
		{"ch10_milstd1553_mode_code_packet.bin", msgPacket},
	}

	for _, f := range files {
		p := filepath.Join(dir, f.name)
		if err := writeFile(p, f.data); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		h := sha256.Sum256(f.data)
		fmt.Printf("Wrote %-40s size=%4d sha256=%s\n", f.name, len(f.data), hex.EncodeToString(h[:8]))
	}
}
