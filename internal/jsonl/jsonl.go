// Package jsonl reads and writes newline-delimited JSON files, with
// transparent gzip handling for .gz paths.
package jsonl

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// Long model answers can push a record past bufio's default line cap.
const maxLineBytes = 16 * 1024 * 1024

type readCloser struct {
	io.Reader
	closers []io.Closer
}

func (r *readCloser) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Open returns a reader over the (possibly gzip-compressed) file.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("opening gzip %s: %w", path, err)
	}
	return &readCloser{Reader: gz, closers: []io.Closer{gz, f}}, nil
}

// Decode streams every record of the file into fresh values of T,
// invoking fn per record. Blank lines are skipped; a malformed line is
// a hard error carrying its line number.
func Decode[T any](path string, fn func(T) error) error {
	r, err := Open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var v T
		if err := json.Unmarshal([]byte(line), &v); err != nil {
			return fmt.Errorf("%s line %d: %w", path, lineNo, err)
		}
		if err := fn(v); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return nil
}

// DecodeFirst decodes only the first non-blank record.
func DecodeFirst[T any](path string, v *T) error {
	r, err := Open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if err := json.Unmarshal([]byte(line), v); err != nil {
			return fmt.Errorf("%s line 1: %w", path, err)
		}
		return nil
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return fmt.Errorf("%s: empty file", path)
}

// Writer emits one JSON record per line, gzip-compressing when the
// target path ends in .gz.
type Writer struct {
	f   *os.File
	gz  *gzip.Writer
	bw  *bufio.Writer
	enc *json.Encoder
}

func NewWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := &Writer{f: f}
	var out io.Writer = f
	if strings.HasSuffix(path, ".gz") {
		w.gz = gzip.NewWriter(f)
		out = w.gz
	}
	w.bw = bufio.NewWriter(out)
	w.enc = json.NewEncoder(w.bw)
	return w, nil
}

func (w *Writer) Encode(v any) error {
	return w.enc.Encode(v)
}

func (w *Writer) Close() error {
	if err := w.bw.Flush(); err != nil {
		w.f.Close()
		return err
	}
	if w.gz != nil {
		if err := w.gz.Close(); err != nil {
			w.f.Close()
			return err
		}
	}
	return w.f.Close()
}

// Append opens path for appending without compression; used for result
// files that accumulate across resumed runs.
func Append(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}
