package metadata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/alxayo/ch10parse/internal/ch10/header"
)

func TestProcessTMATSWritesFileAndParsesChannelLines(t *testing.T) {
	dir := t.TempDir()
	raw := []byte("R-1\\TK1-1:1;\nR-1\\CDT-1:PCM;\n")

	got, err := ProcessTMATS(raw, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.WrittenPath == "" {
		t.Fatalf("expected a written path")
	}
	if _, err := os.Stat(got.WrittenPath); err != nil {
		t.Fatalf("expected _TMATS.txt to exist: %v", err)
	}
}

func TestProcessTMATSEmptyBufferWritesNothing(t *testing.T) {
	dir := t.TempDir()
	got, err := ProcessTMATS(nil, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.WrittenPath != "" {
		t.Fatalf("expected no file written for an empty TMATS buffer")
	}
	if len(got.ChannelSource) != 0 || len(got.ChannelType) != 0 {
		t.Fatalf("expected empty channel maps")
	}
}

func TestCreatePacketOutputDirsComposesPaths(t *testing.T) {
	dir := t.TempDir()
	enabled := map[header.Ch10PacketType]bool{header.TimeF1: true, header.VideoDataF0: false}
	suffixes := map[header.Ch10PacketType]string{header.TimeF1: "_time", header.VideoDataF0: "_video"}

	got, err := CreatePacketOutputDirs(dir, "run", enabled, suffixes, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected only the enabled type to produce a dir, got %d", len(got))
	}
	want := filepath.Join(dir, "run_time")
	if got[header.TimeF1] != want {
		t.Fatalf("expected %s, got %s", want, got[header.TimeF1])
	}
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("expected directory to be created: %v", err)
	}
}

func TestCreatePacketOutputDirsRejectsMissingSuffix(t *testing.T) {
	enabled := map[header.Ch10PacketType]bool{header.TimeF1: true}
	_, err := CreatePacketOutputDirs(t.TempDir(), "run", enabled, map[header.Ch10PacketType]string{}, false)
	if err == nil {
		t.Fatalf("expected an error for a missing suffix entry")
	}
}

func TestCreatePacketOutputDirsRejectsEmptyBaseDir(t *testing.T) {
	enabled := map[header.Ch10PacketType]bool{header.TimeF1: true}
	suffixes := map[header.Ch10PacketType]string{header.TimeF1: ""}
	_, err := CreatePacketOutputDirs("", "run", enabled, suffixes, false)
	if err == nil {
		t.Fatalf("expected an error for an empty base directory")
	}
}

func TestCreateWorkerFileNamesZeroPadsIndex(t *testing.T) {
	dirMap := map[header.Ch10PacketType]string{header.TimeF1: "/out/run_time"}
	got := CreateWorkerFileNames(2, dirMap, "csv")
	want := []string{"/out/run_time/run_time__000.csv", "/out/run_time/run_time__001.csv"}
	for i, w := range want {
		if got[header.TimeF1][i] != w {
			t.Fatalf("expected %s, got %s", w, got[header.TimeF1][i])
		}
	}
}

func TestCreateWorkerFileNamesOmitsDotWhenExtEmpty(t *testing.T) {
	dirMap := map[header.Ch10PacketType]string{header.TimeF1: "/out/run_time"}
	got := CreateWorkerFileNames(1, dirMap, "")
	want := "/out/run_time/run_time__000"
	if got[header.TimeF1][0] != want {
		t.Fatalf("expected %s, got %s", want, got[header.TimeF1][0])
	}
}
