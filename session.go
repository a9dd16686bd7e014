package chat

import (
	"context"
	"sync"
)

type SessionConfig struct {
	Backend Backend
	Gateway Gateway

	// SystemPrompt, when set, seeds the history with a system message.
	SystemPrompt string

	// Feed receives display updates. A new Feed is created when nil.
	Feed *Feed

	Options Options

	// OnTurnFinish is called from the turn goroutine after every turn.
	OnTurnFinish func(res *TurnResult)
}

// Session runs turns of one conversation in the background, one at a time.
type Session struct {
	orch *Orchestrator
	feed *Feed

	onTurnFinish func(*TurnResult)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	last   *TurnResult
}

func NewSession(cfg SessionConfig) (*Session, error) {
	var seed []Message
	if cfg.SystemPrompt != "" {
		seed = append(seed, System(cfg.SystemPrompt))
	}
	h, err := NewHistory(seed...)
	if err != nil {
		return nil, err
	}
	feed := cfg.Feed
	if feed == nil {
		feed = NewFeed()
	}
	return &Session{
		orch:         NewOrchestrator(cfg.Backend, cfg.Gateway, h, feed, cfg.Options),
		feed:         feed,
		onTurnFinish: cfg.OnTurnFinish,
	}, nil
}

func (s *Session) Feed() *Feed                 { return s.feed }
func (s *Session) History() *History           { return s.orch.History() }
func (s *Session) Orchestrator() *Orchestrator { return s.orch }

// LoadTools loads the gateway's tools for subsequent turns.
func (s *Session) LoadTools(ctx context.Context) error { return s.orch.LoadTools(ctx) }

// Submit starts a turn for text in a new goroutine. It returns
// ErrTurnInProgress while a previous turn is still running.
func (s *Session) Submit(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return ErrTurnInProgress
	}

	turnCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go func() {
		defer close(done)
		defer cancel()

		res, _ := s.orch.BeginTurn(turnCtx, text)

		s.mu.Lock()
		s.last = res
		s.cancel = nil
		s.done = nil
		s.mu.Unlock()

		if s.onTurnFinish != nil {
			s.onTurnFinish(res)
		}
	}()
	return nil
}

// Busy reports whether a turn is running.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done != nil
}

// Cancel abandons the running turn, if any. Messages already appended stay in
// the history.
func (s *Session) Cancel() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Wait blocks until no turn is running or ctx is done, and returns the result
// of the most recent turn.
func (s *Session) Wait(ctx context.Context) (*TurnResult, error) {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, nil
}
