package config

import "testing"

func TestConvertCh10PacketTypeMapScenario(t *testing.T) {
	raw := map[string]string{
		"MILSTD1553_FORMAT1": "True",
		"VIDEO_FORMAT0":      "fAlse",
	}
	got, err := ConvertCh10PacketTypeMap(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	for t2, want := range map[string]bool{"MILSTD1553_F1": true, "VIDEO_DATA_F0": false} {
		found := false
		for k, v := range got {
			if k.String() == t2 {
				found = true
				if v != want {
					t.Fatalf("%s: expected %v, got %v", t2, want, v)
				}
			}
		}
		if !found {
			t.Fatalf("expected an entry resolving to %s", t2)
		}
	}
}

func TestConvertCh10PacketTypeMapRejectsMalformedBoolean(t *testing.T) {
	raw := map[string]string{"MILSTD1553_FORMAT1": "tru"}
	got, err := ConvertCh10PacketTypeMap(raw)
	if err == nil {
		t.Fatalf("expected an error for malformed boolean")
	}
	if len(got) != 0 {
		t.Fatalf("expected an empty map on failure, got %v", got)
	}
}

func TestConvertCh10PacketTypeMapRejectsUnknownName(t *testing.T) {
	raw := map[string]string{"VIDEO_FORMAT": "true"}
	got, err := ConvertCh10PacketTypeMap(raw)
	if err == nil {
		t.Fatalf("expected an error for unrecognized packet type name")
	}
	if len(got) != 0 {
		t.Fatalf("expected an empty map on failure, got %v", got)
	}
}

func TestResolveOutputSuffixesAllowsEmptyString(t *testing.T) {
	got, err := ResolveOutputSuffixes(map[string]string{"TIME_FORMAT1": ""})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(got))
	}
}

func TestResolveOutputSuffixesRejectsUnknownName(t *testing.T) {
	_, err := ResolveOutputSuffixes(map[string]string{"NOT_A_TYPE": "_x"})
	if err == nil {
		t.Fatalf("expected an error for unrecognized packet type name")
	}
}

func TestWithDefaultsFillsZeroValues(t *testing.T) {
	o := Options{}.WithDefaults()
	if o.ParseChunkBytesMB != DefaultParseChunkBytesMB {
		t.Fatalf("expected default chunk size, got %d", o.ParseChunkBytesMB)
	}
	if o.ParseThreadCount != DefaultParseThreadCount {
		t.Fatalf("expected default thread count, got %d", o.ParseThreadCount)
	}
}
