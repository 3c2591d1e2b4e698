package jsonl_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fairlens/leaseaudit/internal/jsonl"
)

type record struct {
	ID    string `json:"id"`
	Value int    `json:"value"`
}

func writeRecords(t *testing.T, path string, recs []record) {
	t.Helper()
	w, err := jsonl.NewWriter(path)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	for _, r := range recs {
		if err := w.Encode(r); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestRoundTrip(t *testing.T) {
	for _, name := range []string{"plain.jsonl", "compressed.jsonl.gz"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			want := []record{{ID: "a", Value: 1}, {ID: "b", Value: 2}}
			writeRecords(t, path, want)

			var got []record
			err := jsonl.Decode(path, func(r record) error {
				got = append(got, r)
				return nil
			})
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
				t.Errorf("got %v, want %v", got, want)
			}
		})
	}
}

func TestDecodeSkipsBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blank.jsonl")
	data := "{\"id\":\"a\",\"value\":1}\n\n  \n{\"id\":\"b\",\"value\":2}\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	count := 0
	err := jsonl.Decode(path, func(record) error {
		count++
		return nil
	})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 records, got %d", count)
	}
}

func TestDecodeMalformedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jsonl")
	if err := os.WriteFile(path, []byte("{\"id\":\"a\"}\nnot json\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	err := jsonl.Decode(path, func(record) error { return nil })
	if err == nil {
		t.Fatal("expected error for malformed line")
	}
}

func TestDecodeFirst(t *testing.T) {
	path := filepath.Join(t.TempDir(), "first.jsonl")
	writeRecords(t, path, []record{{ID: "first", Value: 1}, {ID: "second", Value: 2}})

	var r record
	if err := jsonl.DecodeFirst(path, &r); err != nil {
		t.Fatalf("DecodeFirst: %v", err)
	}
	if r.ID != "first" {
		t.Errorf("got %q, want first record", r.ID)
	}
}

func TestDecodeFirstEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.jsonl")
	if err := os.WriteFile(path, []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}
	var r record
	if err := jsonl.DecodeFirst(path, &r); err == nil {
		t.Error("expected error for empty file")
	}
}

func TestAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "append.jsonl")
	for i := 0; i < 2; i++ {
		f, err := jsonl.Append(path)
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		if _, err := f.WriteString("{\"id\":\"x\",\"value\":1}\n"); err != nil {
			t.Fatal(err)
		}
		if err := f.Close(); err != nil {
			t.Fatal(err)
		}
	}
	count := 0
	if err := jsonl.Decode(path, func(record) error { count++; return nil }); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 records after two appends, got %d", count)
	}
}
