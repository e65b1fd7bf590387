package segment

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/bytedance/sonic"
)

// MaxFileSize is the maximum accepted segment file size (100MB).
const MaxFileSize = 100 * 1024 * 1024

// LoadFile reads a segment file. The document may be a single segment
// object or an array of segments.
//
// Segments are returned as decoded; call Validate to check them. When
// some array elements fail to decode, the rest are still returned along
// with a *PartialError naming the failed indexes.
func LoadFile(path string) ([]Segment, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	if info.Size() > MaxFileSize {
		return nil, &LoadError{Path: path, Index: -1, Err: fmt.Errorf("%w: size=%d, max=%d",
			ErrFileTooLarge, info.Size(), MaxFileSize)}
	}

	// #nosec G304: path comes from discovery over configured directories
	data, err := os.ReadFile(path) // nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	segs, err := Parse(data)
	if err != nil {
		var partial *PartialError
		if errors.As(err, &partial) {
			for _, le := range partial.Failed {
				le.Path = path
			}
			return segs, partial
		}
		return nil, &LoadError{Path: path, Index: -1, Err: err}
	}
	return segs, nil
}

// Decode reads every segment from r. See Parse.
func Decode(r io.Reader) ([]Segment, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read segments: %w", err)
	}
	if len(data) > MaxFileSize {
		return nil, ErrFileTooLarge
	}
	return Parse(data)
}

// Parse decodes a segment object or an array of segment objects.
//
// Array elements are decoded one at a time. An element that fails is
// left out and reported in a *PartialError; the segments that decoded
// are returned with it, in document order.
func Parse(data []byte) ([]Segment, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, ErrEmptyDocument
	}

	if trimmed[0] == '[' {
		return parseArray(trimmed)
	}

	var seg Segment
	if err := sonic.Unmarshal(trimmed, &seg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}
	return []Segment{seg}, nil
}

func parseArray(data []byte) ([]Segment, error) {
	var elems []json.RawMessage
	if err := sonic.Unmarshal(data, &elems); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}
	if len(elems) == 0 {
		return nil, ErrEmptyDocument
	}

	segs := make([]Segment, 0, len(elems))
	var failed []*LoadError
	for i, elem := range elems {
		var seg Segment
		if err := sonic.Unmarshal(elem, &seg); err != nil {
			failed = append(failed, &LoadError{Index: i, Err: fmt.Errorf("%w: %v", ErrMalformedJSON, err)})
			continue
		}
		segs = append(segs, seg)
	}

	if len(failed) > 0 {
		return segs, &PartialError{Failed: failed}
	}
	return segs, nil
}
