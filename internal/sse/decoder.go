package sse

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
)

// DataPrefix marks a protocol payload line. Any other line is ignored.
const DataPrefix = "data: "

// Decoder reads a server-sent line stream and yields the payload of every
// "data: " line. Lines may be split across reads of the underlying reader;
// the decoder buffers partial lines until the terminating newline arrives.
type Decoder struct {
	r    *bufio.Reader
	data []byte
	err  error
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Next advances to the next payload line. It returns false on EOF or error.
// A final line without a trailing newline is still delivered.
func (d *Decoder) Next() bool {
	if d.err != nil {
		return false
	}

	for {
		line, err := d.r.ReadBytes('\n')
		if err != nil && err != io.EOF {
			d.err = err
			return false
		}
		eof := err == io.EOF

		line = bytes.TrimRight(line, "\r\n")
		if payload, ok := bytes.CutPrefix(line, []byte(DataPrefix)); ok {
			d.data = append(d.data[:0], payload...)
			if eof {
				d.err = io.EOF
			}
			return true
		}
		if eof {
			d.err = io.EOF
			return false
		}
	}
}

// Data returns the payload of the current line. The slice is reused by the
// next call to Next.
func (d *Decoder) Data() []byte {
	if d == nil {
		return nil
	}
	return d.data
}

func (d *Decoder) Err() error {
	if d == nil {
		return nil
	}
	if d.err == io.EOF {
		return nil
	}
	return d.err
}

func (d *Decoder) ExpectNoError() error {
	if err := d.Err(); err != nil {
		return fmt.Errorf("sse decode: %w", err)
	}
	return nil
}
