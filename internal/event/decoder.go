// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FramePipe - VapourSynth 流水线转码工具

package event

import "bytes"

// StreamDecoder reassembles newline-delimited lines from arbitrarily
// chunked reads. A read boundary may fall anywhere, including inside a
// line; the partial tail is held and prefixed to the next chunk, so the
// decoded line sequence is independent of how the byte stream was
// split.
type StreamDecoder struct {
	buf []byte
}

// Feed appends one chunk and returns every line completed by it, in
// order, without terminators. Empty lines and lone carriage returns are
// dropped.
func (d *StreamDecoder) Feed(p []byte) [][]byte {
	d.buf = append(d.buf, p...)

	var lines [][]byte
	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			return lines
		}
		line := trimCR(d.buf[:i])
		d.buf = d.buf[i+1:]
		if len(line) > 0 {
			out := make([]byte, len(line))
			copy(out, line)
			lines = append(lines, out)
		}
	}
}

// Flush returns any unterminated tail, for end-of-stream handling.
func (d *StreamDecoder) Flush() []byte {
	line := trimCR(d.buf)
	d.buf = nil
	if len(line) == 0 {
		return nil
	}
	out := make([]byte, len(line))
	copy(out, line)
	return out
}

func trimCR(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == '\r' {
		return b[:n-1]
	}
	return b
}
