package source

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"
)

// maxLineBytes bounds one JSONL frame. A full 33-landmark frame is a few
// kilobytes.
const maxLineBytes = 1 << 20

// jsonlSource replays frames from a newline-delimited JSON stream.
type jsonlSource struct {
	id      string
	r       io.ReadCloser
	scanner *bufio.Scanner
	line    int
	now     func() time.Time
}

// openJSONL opens path for replay. "-" reads standard input.
func openJSONL(id, path string) (*jsonlSource, error) {
	if path == "-" {
		return newJSONLSource(id, io.NopCloser(os.Stdin)), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("source %q: open %q: %w", id, path, err)
	}
	return newJSONLSource(id, f), nil
}

func newJSONLSource(id string, r io.ReadCloser) *jsonlSource {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	return &jsonlSource{
		id:      id,
		r:       r,
		scanner: sc,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Next returns the next non-blank line as a Sample.
func (s *jsonlSource) Next(ctx context.Context) (*Sample, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return nil, fmt.Errorf("source %q: read line %d: %w", s.id, s.line+1, err)
			}
			return nil, io.EOF
		}
		s.line++

		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		sample := decodeSample(s.id, line, s.now())
		if sample.Err != nil {
			sample.Err = fmt.Errorf("line %d: %w", s.line, sample.Err)
		}
		return sample, nil
	}
}

func (s *jsonlSource) Close() error {
	return s.r.Close()
}
