// Package serializer funnels outbound provider calls through a single
// consumer goroutine so platform rate limits are respected process-wide.
// Calls are paced by a token bucket and retried with exponential backoff on
// throttling and server errors.
package serializer

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/okian/duet/pkg/logger"
	"github.com/okian/duet/pkg/metrics"
)

// Default serializer configuration constants.
const (
	defaultQueueSize       = 256
	defaultMaxAttempts     = 3
	defaultInitialInterval = 2 * time.Second
	defaultMaxInterval     = 30 * time.Second
	defaultRateLimit       = rate.Limit(5) // calls per second
	defaultBurst           = 1
)

// Response is what a Call produced, status and body already drained.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Call performs one outbound request attempt. It must honor ctx and return
// the response with the body fully read.
type Call func(ctx context.Context) (Response, error)

type result struct {
	resp Response
	err  error
}

type job struct {
	ctx           context.Context
	call          Call
	retryNotFound bool
	// Buffered so a caller that gave up never blocks the consumer.
	reply chan result
}

// Serializer owns the single consumer goroutine and the job queue.
type Serializer struct {
	jobs    chan job
	quit    chan struct{}
	wg      sync.WaitGroup
	started sync.Once

	mu     sync.RWMutex
	closed bool

	limiter         *rate.Limiter
	maxAttempts     int
	initialInterval time.Duration
	maxInterval     time.Duration
	logger          logger.Logger
}

// New creates a serializer with configuration options. Start must be called
// before Do.
func New(opts ...Option) *Serializer {
	s := &Serializer{
		maxAttempts:     defaultMaxAttempts,
		initialInterval: defaultInitialInterval,
		maxInterval:     defaultMaxInterval,
		limiter:         rate.NewLimiter(defaultRateLimit, defaultBurst),
		logger:          logger.Named("serializer"),
		quit:            make(chan struct{}),
	}
	queueSize := defaultQueueSize
	for _, opt := range opts {
		opt(s, &queueSize)
	}
	s.jobs = make(chan job, queueSize)
	return s
}

// Start launches the consumer goroutine. Safe to call once.
func (s *Serializer) Start() {
	s.started.Do(func() {
		s.wg.Add(1)
		go s.consume()
	})
}

// Stop shuts the consumer down and waits for the in-flight call to finish.
// Queued jobs are failed with ErrStopped.
func (s *Serializer) Stop() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.quit)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Do submits a call and waits for its serialized execution. The caller's ctx
// bounds the total wait: queueing, pacing, attempts and backoff included. A
// late result after ctx expiry is discarded, never delivered.
func (s *Serializer) Do(ctx context.Context, call Call, opts ...CallOption) (Response, error) {
	j := job{
		ctx:   ctx,
		call:  call,
		reply: make(chan result, 1),
	}
	for _, opt := range opts {
		opt(&j)
	}

	// Enqueue under the read lock so Stop cannot drain between the closed
	// check and the send; that would strand the job forever.
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return Response{}, ErrStopped
	}
	select {
	case s.jobs <- j:
		s.mu.RUnlock()
		metrics.UpdateSerializerQueueDepth(len(s.jobs))
	case <-ctx.Done():
		s.mu.RUnlock()
		metrics.RecordSerializerTimeout()
		return Response{}, ctx.Err()
	}

	select {
	case r := <-j.reply:
		return r.resp, r.err
	case <-ctx.Done():
		metrics.RecordSerializerTimeout()
		return Response{}, ctx.Err()
	}
}

func (s *Serializer) consume() {
	defer s.wg.Done()
	for {
		select {
		case <-s.quit:
			s.drain()
			return
		case j := <-s.jobs:
			metrics.UpdateSerializerQueueDepth(len(s.jobs))
			j.reply <- s.execute(j)
		}
	}
}

// drain fails whatever was queued at shutdown so no caller hangs.
func (s *Serializer) drain() {
	for {
		select {
		case j := <-s.jobs:
			j.reply <- result{err: ErrStopped}
		default:
			return
		}
	}
}

func (s *Serializer) execute(j job) result {
	if err := j.ctx.Err(); err != nil {
		// Caller already gave up while queued; skip the rate token.
		return result{err: err}
	}
	if err := s.limiter.Wait(j.ctx); err != nil {
		return result{err: err}
	}

	start := time.Now()
	defer func() {
		metrics.RecordSerializerCallDuration(float64(time.Since(start).Milliseconds()))
	}()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.initialInterval
	bo.MaxInterval = s.maxInterval
	policy := backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(s.maxAttempts-1)), //nolint:gosec // maxAttempts is a small positive option value
		j.ctx,
	)

	var resp Response
	attempt := 0
	op := func() error {
		attempt++
		if attempt > 1 {
			metrics.RecordSerializerRetry()
		}
		r, err := j.call(j.ctx)
		if err != nil {
			return fmt.Errorf("call attempt %d: %w", attempt, err)
		}
		resp = r
		return s.classify(j, r)
	}
	if err := backoff.Retry(op, policy); err != nil {
		return result{resp: resp, err: err}
	}
	return result{resp: resp}
}

// classify maps a response status to the retry decision.
func (s *Serializer) classify(j job, r Response) error {
	switch {
	case r.StatusCode == http.StatusUnauthorized:
		// Credentials are broken; retrying cannot help and would only
		// burn rate budget. Loud on purpose.
		s.logger.Error(j.ctx, "provider rejected credentials",
			logger.Int("status", r.StatusCode),
		)
		return backoff.Permanent(ErrUnauthorized)
	case r.StatusCode == http.StatusNotFound && j.retryNotFound:
		return fmt.Errorf("%w: status %d", ErrRetryable, r.StatusCode)
	case r.StatusCode == http.StatusTooManyRequests || r.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: status %d", ErrRetryable, r.StatusCode)
	default:
		return nil
	}
}
