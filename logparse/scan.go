package logparse

import "bytes"

// ScanLines is a bufio.SplitFunc recognizing the three delimiters FFmpeg
// emits: \n, \r\n, and a bare \r used for progress updates that overwrite the
// previous line. An unterminated trailing fragment at EOF is flushed as a
// final line.
func ScanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\n' {
			return i + 1, data[:i], nil
		}
		// \r at the very end of the buffer: without the next byte we cannot
		// tell \r from \r\n, so ask for more data unless the stream is done.
		if i+1 == len(data) {
			if atEOF {
				return i + 1, data[:i], nil
			}
			return 0, nil, nil
		}
		if data[i+1] == '\n' {
			return i + 2, data[:i], nil
		}
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
