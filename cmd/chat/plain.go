package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/bitop-dev/chat"
	"github.com/bitop-dev/chat/internal/tui"
)

// transcriptPrinter writes a Feed incrementally: new entries on their own
// line, growth of the last entry appended in place.
type transcriptPrinter struct {
	w       io.Writer
	entries int
	written int
	started bool
}

func (p *transcriptPrinter) print(entries []chat.Entry) {
	if p.entries > 0 && p.entries <= len(entries) {
		last := entries[p.entries-1].Content
		if len(last) > p.written {
			io.WriteString(p.w, last[p.written:])
			p.written = len(last)
			p.started = true
		}
	}
	for ; p.entries < len(entries); p.entries++ {
		e := entries[p.entries]
		if p.started {
			io.WriteString(p.w, "\n")
		}
		io.WriteString(p.w, tui.Label(e)+e.Content)
		p.written = len(e.Content)
		p.started = true
	}
}

// runTurn submits text and prints the feed until the turn finishes.
func runTurn(ctx context.Context, session *chat.Session, p *transcriptPrinter, text string) (*chat.TurnResult, error) {
	if err := session.Submit(ctx, text); err != nil {
		return nil, err
	}
	done := make(chan struct{})
	var res *chat.TurnResult
	go func() {
		defer close(done)
		res, _ = session.Wait(context.Background())
	}()

	feed := session.Feed()
	for {
		select {
		case <-feed.Updates():
			entries, _ := feed.Snapshot()
			p.print(entries)
		case <-done:
			entries, _ := feed.Snapshot()
			p.print(entries)
			io.WriteString(p.w, "\n")
			return res, nil
		}
	}
}

func runOnce(ctx context.Context, session *chat.Session, text string, w io.Writer) error {
	entries, _ := session.Feed().Snapshot()
	// Skip the transcript so far and the echoed user entry.
	p := &transcriptPrinter{w: w, entries: len(entries) + 1, written: len(text)}
	res, err := runTurn(ctx, session, p, text)
	if err != nil {
		return err
	}
	if res != nil && res.Err != nil {
		return res.Err
	}
	return nil
}

// runPlain reads one message per line. On a terminal it uses x/term line
// editing, otherwise it scans in until EOF.
func runPlain(ctx context.Context, session *chat.Session, in *os.File, out io.Writer) error {
	readLine := lineReader(in, out)

	p := &transcriptPrinter{w: out}
	entries, _ := session.Feed().Snapshot()
	p.print(entries)
	io.WriteString(out, "\n")

	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := readLine()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if _, err := runTurn(ctx, session, p, line); err != nil {
			return err
		}
	}
}

func lineReader(in *os.File, out io.Writer) func() (string, error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		return func() (string, error) {
			if sc.Scan() {
				return sc.Text(), nil
			}
			if err := sc.Err(); err != nil {
				return "", err
			}
			return "", io.EOF
		}
	}

	t := term.NewTerminal(struct {
		io.Reader
		io.Writer
	}{in, out}, "> ")
	return func() (string, error) {
		oldState, err := term.MakeRaw(fd)
		if err != nil {
			return "", err
		}
		if width, height, err := term.GetSize(fd); err == nil {
			_ = t.SetSize(width, height)
		}
		line, err := t.ReadLine()
		if rerr := term.Restore(fd, oldState); rerr != nil && err == nil {
			err = fmt.Errorf("restore terminal: %w", rerr)
		}
		return line, err
	}
}
