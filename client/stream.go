package client

import (
	"bufio"
	"context"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"kanban-api/domain"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
	maxAttempts    = 5
)

// Stream reads the server's event stream and hands decoded frames to a
// handler. A dropped connection is retried with exponential backoff; once
// the attempt budget is spent the stream stops silently and the board keeps
// its last-known-good state.
type Stream struct {
	URL     string
	Bearer  string
	HTTP    *http.Client
	Logger  *log.Logger
	Handler func(domain.Event)

	// Backoff knobs, overridable in tests. Zero values take the defaults.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxAttempts    int

	sleep func(ctx context.Context, d time.Duration)
}

// Run connects and consumes frames until the context is cancelled or the
// reconnect budget is exhausted. A successfully established connection
// resets the budget.
func (s *Stream) Run(ctx context.Context) {
	if s.HTTP == nil {
		s.HTTP = &http.Client{}
	}
	if s.Logger == nil {
		s.Logger = log.StandardLogger()
	}
	if s.InitialBackoff <= 0 {
		s.InitialBackoff = initialBackoff
	}
	if s.MaxBackoff <= 0 {
		s.MaxBackoff = maxBackoff
	}
	if s.MaxAttempts <= 0 {
		s.MaxAttempts = maxAttempts
	}
	if s.sleep == nil {
		s.sleep = sleepCtx
	}

	backoff := s.InitialBackoff
	attempts := 0
	for {
		if ctx.Err() != nil {
			return
		}
		connected, err := s.consume(ctx)
		if ctx.Err() != nil {
			return
		}
		if connected {
			backoff = s.InitialBackoff
			attempts = 0
		} else {
			attempts++
			if attempts >= s.MaxAttempts {
				s.Logger.Warnf("event stream: giving up after %d failed attempts: %v", attempts, err)
				return
			}
		}
		if err != nil {
			s.Logger.Debugf("event stream dropped, retrying in %s: %v", backoff, err)
		}
		s.sleep(ctx, backoff)
		backoff = min(backoff*2, s.MaxBackoff)
	}
}

// consume runs one connection. connected reports whether a connected frame
// arrived, which is what resets the retry budget.
func (s *Stream) consume(ctx context.Context) (connected bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return false, err
	}
	if s.Bearer != "" {
		req.Header.Set("Authorization", "Bearer "+s.Bearer)
	}
	resp, err := s.HTTP.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, &streamError{status: resp.StatusCode}
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		ev, decodeErr := domain.DecodeEvent([]byte(strings.TrimPrefix(line, "data: ")))
		if decodeErr != nil {
			s.Logger.Warnf("event stream: skipping undecodable frame: %v", decodeErr)
			continue
		}
		switch ev.(type) {
		case domain.Connected:
			connected = true
		case domain.Ping:
		default:
			if s.Handler != nil {
				s.Handler(ev)
			}
		}
	}
	return connected, scanner.Err()
}

type streamError struct {
	status int
}

func (e *streamError) Error() string {
	return "event stream: unexpected status " + http.StatusText(e.status)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
