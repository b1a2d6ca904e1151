package llm

import (
	"context"
	"log/slog"
	"time"
)

// queueDepth bounds the number of waiting requests. Submission blocks when
// the queue is full; LLM requests are never dropped.
const queueDepth = 64

type pendingRequest struct {
	ctx      context.Context
	provider Provider
	req      CompletionRequest
	result   chan completionResult
}

type completionResult struct {
	text string
	err  error
}

// requestQueue serializes provider calls and enforces the configured
// inter-request delay to stay under rate limits.
type requestQueue struct {
	requests chan *pendingRequest
	delay    time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func newRequestQueue(delay, timeout time.Duration, logger *slog.Logger) *requestQueue {
	return &requestQueue{
		requests: make(chan *pendingRequest, queueDepth),
		delay:    delay,
		timeout:  timeout,
		logger:   logger,
	}
}

// start launches the single worker. Idempotent.
func (q *requestQueue) start(ctx context.Context) {
	if q.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	q.done = make(chan struct{})

	go func() {
		defer close(q.done)
		for {
			select {
			case <-ctx.Done():
				return
			case p := <-q.requests:
				q.serve(ctx, p)
				if q.delay > 0 {
					select {
					case <-ctx.Done():
						return
					case <-time.After(q.delay):
					}
				}
			}
		}
	}()
}

func (q *requestQueue) serve(ctx context.Context, p *pendingRequest) {
	// The caller may have given up while queued.
	if err := p.ctx.Err(); err != nil {
		p.result <- completionResult{err: err}
		return
	}

	callCtx, cancel := context.WithTimeout(p.ctx, q.timeout)
	defer cancel()
	start := time.Now()
	text, err := p.provider.Complete(callCtx, p.req)
	if err != nil {
		q.logger.Warn("LLM completion failed",
			"provider", p.provider.Name(), "duration", time.Since(start), "error", err)
	} else {
		q.logger.Debug("LLM completion served",
			"provider", p.provider.Name(), "duration", time.Since(start))
	}

	select {
	case p.result <- completionResult{text: text, err: err}:
	case <-ctx.Done():
	}
}

// submit enqueues a request and waits for its result. Blocks while the queue
// is full.
func (q *requestQueue) submit(ctx context.Context, provider Provider, req CompletionRequest) (string, error) {
	p := &pendingRequest{
		ctx:      ctx,
		provider: provider,
		req:      req,
		result:   make(chan completionResult, 1),
	}
	select {
	case q.requests <- p:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	select {
	case res := <-p.result:
		return res.text, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// stop halts the worker after the in-flight call finishes.
func (q *requestQueue) stop() {
	if q.cancel == nil {
		return
	}
	q.cancel()
	<-q.done
	q.cancel = nil
}
