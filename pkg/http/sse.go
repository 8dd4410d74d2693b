package http

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

// ErrStreamDone is returned by an SSE handler to stop reading early.
var ErrStreamDone = errors.New("stream done")

const maxSSELine = 1 << 20

var (
	ssePrefix = []byte("data:")
	sseDone   = []byte("[DONE]")
)

// ReadSSE calls handle with the payload of every "data:" line of a
// server-sent event stream until EOF or a "[DONE]" payload. Comments and
// other fields are skipped.
func ReadSSE(r io.Reader, handle func(data []byte) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), maxSSELine)

	for scanner.Scan() {
		line := scanner.Bytes()
		if !bytes.HasPrefix(line, ssePrefix) {
			continue
		}

		data := bytes.TrimSpace(line[len(ssePrefix):])
		if len(data) == 0 {
			continue
		}
		if bytes.Equal(data, sseDone) {
			return nil
		}

		if err := handle(data); err != nil {
			if errors.Is(err, ErrStreamDone) {
				return nil
			}
			return err
		}
	}

	return scanner.Err()
}
