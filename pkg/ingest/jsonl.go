package ingest

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
)

// JSONLSource reads newline-delimited JSON rows. Blank lines are skipped;
// line numbers are 1-based and count physical lines.
type JSONLSource struct {
	r       io.ReadCloser
	scanner *bufio.Scanner
	line    int
}

// maxRowBytes bounds a single row; feeds with larger rows are broken feeds.
const maxRowBytes = 4 << 20

// OpenJSONL opens a JSONL file as a Source.
func OpenJSONL(path string) (*JSONLSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return NewJSONLSource(f), nil
}

// NewJSONLSource wraps any reader as a JSONL source.
func NewJSONLSource(r io.ReadCloser) *JSONLSource {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxRowBytes)
	return &JSONLSource{r: r, scanner: scanner}
}

// Next implements Source.
func (s *JSONLSource) Next(ctx context.Context) (*RawRecord, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return nil, err
			}
			return nil, io.EOF
		}
		s.line++
		data := bytes.TrimSpace(s.scanner.Bytes())
		if len(data) == 0 {
			continue
		}
		// The scanner reuses its buffer; hand out a copy.
		out := make([]byte, len(data))
		copy(out, data)
		return &RawRecord{Line: s.line, Data: out}, nil
	}
}

// Close implements Source.
func (s *JSONLSource) Close() error {
	return s.r.Close()
}
