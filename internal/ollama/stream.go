// Copyright (c) 2025 David Bennett
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// StreamReader decodes an NDJSON generate stream line by line.
type StreamReader struct {
	reader *bufio.Reader
}

// NewStreamReader creates a stream reader over a response body.
func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{
		// 1MB line buffer; single chunks can carry long responses when
		// the backend coalesces tokens.
		reader: bufio.NewReaderSize(r, 1024*1024),
	}
}

// Process reads chunks until the terminal chunk or an error, invoking the
// callback for each token. Malformed lines are skipped rather than failing
// the whole stream. If the stream ends before a terminal chunk and no token
// was ever decoded, the response is reported as malformed.
func (s *StreamReader) Process(ctx context.Context, callback TokenCallback) error {
	sawToken := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := s.reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				if line != "" {
					if chunk, ok := decodeChunk(line); ok {
						sawToken = true
						callback(tokenFrom(chunk))
						if chunk.Done {
							return nil
						}
					}
				}
				if !sawToken {
					return ErrMalformedStream
				}
				return nil
			}
			// Body closed under us, usually by context cancellation.
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &ClientError{Type: ErrTypeConnection, Message: "stream read failed", Cause: err}
		}

		chunk, ok := decodeChunk(line)
		if !ok {
			continue
		}
		sawToken = true
		callback(tokenFrom(chunk))
		if chunk.Done {
			return nil
		}
	}
}

func decodeChunk(line string) (generateChunk, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return generateChunk{}, false
	}
	var chunk generateChunk
	if err := json.Unmarshal([]byte(line), &chunk); err != nil {
		return generateChunk{}, false
	}
	return chunk, true
}

func tokenFrom(chunk generateChunk) Token {
	return Token{Text: chunk.Response, Model: chunk.Model, Done: chunk.Done}
}
