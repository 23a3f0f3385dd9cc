package sink

import "testing"

func TestMemorySinkAccumulatesRowsPerPath(t *testing.T) {
	s := NewMemorySink()
	h1, err := s.Open("a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h2, err := s.Open("b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := h1.AppendRow(Row{"x": 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := h2.AppendRow(Row{"x": 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := h1.AppendRow(Row{"x": 3}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rowsA := s.Rows("a")
	if len(rowsA) != 2 || rowsA[0]["x"] != 1 || rowsA[1]["x"] != 3 {
		t.Fatalf("unexpected rows for a: %v", rowsA)
	}
	rowsB := s.Rows("b")
	if len(rowsB) != 1 || rowsB[0]["x"] != 2 {
		t.Fatalf("unexpected rows for b: %v", rowsB)
	}
}

func TestMemorySinkOpenIsIdempotentPerPath(t *testing.T) {
	s := NewMemorySink()
	h1, _ := s.Open("a")
	h1.AppendRow(Row{"x": 1})
	h2, _ := s.Open("a")
	h2.AppendRow(Row{"x": 2})

	rows := s.Rows("a")
	if len(rows) != 2 {
		t.Fatalf("expected reopening the same path to share state, got %d rows", len(rows))
	}
}

func TestMemorySinkUnopenedPathReturnsNil(t *testing.T) {
	s := NewMemorySink()
	if rows := s.Rows("missing"); rows != nil {
		t.Fatalf("expected nil for unopened path, got %v", rows)
	}
}

func TestHandleCloseIsIdempotent(t *testing.T) {
	s := NewMemorySink()
	h, _ := s.Open("a")
	if err := h.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("expected idempotent close, got error: %v", err)
	}
}
