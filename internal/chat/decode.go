package chat

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
)

const readChunkSize = 32 * 1024

// recognizer inspects one complete line of a streaming response body. It
// returns the text fragment carried by the line (possibly empty) and whether
// the line marks the end of the stream. A non-nil error means the line was
// malformed; the decoder drops it and keeps going.
type recognizer func(line string) (delta string, done bool, err error)

// lineDecoder turns a byte stream into accumulated text. Bytes may arrive in
// arbitrary pieces: complete lines are recognized as soon as their newline
// arrives, and the trailing partial line is held until the next Feed.
type lineDecoder struct {
	recognize recognizer
	onDelta   func(accumulated string)
	onDrop    func(line string, err error)

	buf  []byte
	text strings.Builder
	done bool
}

func newLineDecoder(r recognizer, onDelta func(string)) *lineDecoder {
	return &lineDecoder{recognize: r, onDelta: onDelta}
}

// Feed consumes the next piece of the body. It returns true once a terminal
// line has been seen; further input is ignored.
func (d *lineDecoder) Feed(p []byte) bool {
	if d.done {
		return true
	}
	d.buf = append(d.buf, p...)
	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			break
		}
		line := string(bytes.TrimRight(d.buf[:i], "\r"))
		d.buf = d.buf[i+1:]
		if d.line(line) {
			d.done = true
			d.buf = nil
			return true
		}
	}
	if len(d.buf) == 0 {
		d.buf = nil
	}
	return false
}

// Close flushes a final line that was not newline-terminated.
func (d *lineDecoder) Close() {
	if !d.done && len(d.buf) > 0 {
		line := string(bytes.TrimRight(d.buf, "\r"))
		d.line(line)
	}
	d.buf = nil
	d.done = true
}

// Text returns everything accumulated so far.
func (d *lineDecoder) Text() string {
	return d.text.String()
}

func (d *lineDecoder) line(line string) bool {
	delta, done, err := d.recognize(line)
	if err != nil {
		if d.onDrop != nil {
			d.onDrop(line, err)
		}
		return false
	}
	if delta != "" {
		d.text.WriteString(delta)
		if d.onDelta != nil {
			d.onDelta(d.text.String())
		}
	}
	return done
}

// decodeStream pumps r through d until a terminal line, end of input, a read
// error, or cancellation of ctx. Reaching end of input counts as completion.
func decodeStream(ctx context.Context, r io.Reader, d *lineDecoder) error {
	buf := make([]byte, readChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(buf)
		if n > 0 && d.Feed(buf[:n]) {
			return nil
		}
		if errors.Is(err, io.EOF) {
			d.Close()
			return nil
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}
	}
}

// sseData strips the "data: " prefix from an SSE line. ok is false for lines
// that do not carry data (blank lines, comments, event names).
func sseData(line string) (string, bool) {
	const prefix = "data: "
	if !strings.HasPrefix(line, prefix) {
		return "", false
	}
	return line[len(prefix):], true
}
