package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"tcm-backend/metrics"
	"tcm-backend/openai"
)

// ErrAllCandidatesFailed is returned by RunStream when no candidate
// produced a stream. Non-streaming runs never return an error; they
// resolve to the fallback payload instead.
var ErrAllCandidatesFailed = errors.New("all candidate models failed")

// RetryPolicy spaces out consecutive candidate attempts. The same model
// is never retried; the delay only applies between different candidates.
type RetryPolicy struct {
	BaseDelay  time.Duration
	Multiplier float64
	MaxDelay   time.Duration
}

func (rp RetryPolicy) newBackoff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = rp.BaseDelay
	bo.Multiplier = rp.Multiplier
	bo.MaxInterval = rp.MaxDelay
	bo.MaxElapsedTime = 0 // termination is bounded by the candidate list
	bo.RandomizationFactor = 0
	bo.Reset()
	return bo
}

// Pipeline runs the candidate/validate/fallback loop shared by every
// AI-backed endpoint. It holds no per-request state; concurrent runs
// are independent.
type Pipeline struct {
	inv       Invoker
	validator *Validator
	log       *zap.Logger
	retry     RetryPolicy
}

func New(inv Invoker, v *Validator, log *zap.Logger, retry RetryPolicy) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{inv: inv, validator: v, log: log, retry: retry}
}

// Run executes the pipeline for a non-streaming request. Candidates are
// tried strictly in order; the first one whose output validates wins.
// Transient provider failures and semantically invalid responses are
// treated identically: both advance to the next candidate. When the
// list is exhausted the endpoint's fallback payload is served.
func (p *Pipeline) Run(ctx context.Context, req Request) Result {
	opts := openai.CallOptions{
		SystemPrompt: req.SystemPrompt,
		Messages:     req.Messages,
		ImageURL:     req.ImageURL,
		JSONMode:     req.JSONMode,
	}

	// NotStarted -> Trying(0) is unconditional.
	state := stateTrying
	attempts := make([]Attempt, 0, len(req.Candidates))
	bo := p.retry.newBackoff()
	for i, model := range req.Candidates {
		if i > 0 && !sleep(ctx, bo.NextBackOff()) {
			break
		}
		start := time.Now()
		raw, err := p.inv.Complete(ctx, model, opts)
		metrics.ProviderDuration.WithLabelValues(req.Endpoint, model).Observe(time.Since(start).Seconds())

		if err != nil {
			attempts = append(attempts, Attempt{ModelID: model, FailureReason: err.Error()})
			metrics.AttemptsTotal.WithLabelValues(req.Endpoint, "error").Inc()
			p.log.Warn("completion failed",
				zap.String("endpoint", req.Endpoint),
				zap.String("model", model),
				zap.Error(err))
			continue
		}

		var vr ValidatedResult
		if req.JSONMode {
			vr = p.validator.ValidateJSON(raw, req.Schema)
		} else {
			vr = p.validator.ValidateText(raw)
		}
		if !vr.IsValid {
			attempts = append(attempts, Attempt{ModelID: model, RawResult: raw, FailureReason: vr.Diagnostic})
			metrics.AttemptsTotal.WithLabelValues(req.Endpoint, "invalid").Inc()
			p.log.Warn("completion rejected",
				zap.String("endpoint", req.Endpoint),
				zap.String("model", model),
				zap.String("reason", vr.Diagnostic))
			continue
		}

		state = stateSucceeded
		attempts = append(attempts, Attempt{ModelID: model, RawResult: raw, Succeeded: true})
		metrics.AttemptsTotal.WithLabelValues(req.Endpoint, "success").Inc()
		p.log.Info("completion served",
			zap.String("endpoint", req.Endpoint),
			zap.String("model", model),
			zap.String("state", state.String()),
			zap.Int("attempts", len(attempts)))
		return normalize(req, vr, model, attempts)
	}

	state = stateExhausted
	metrics.ExhaustedTotal.WithLabelValues(req.Endpoint).Inc()
	p.log.Error("candidates exhausted, serving fallback",
		zap.String("endpoint", req.Endpoint),
		zap.String("state", state.String()),
		zap.Int("attempts", len(attempts)))
	return fallbackResult(req, attempts)
}

// RunStream obtains a token stream from the first candidate that
// connects. Fallback only happens before the first byte: once a stream
// handle is returned the pipeline is committed to it.
func (p *Pipeline) RunStream(ctx context.Context, req Request) (<-chan string, string, error) {
	opts := openai.CallOptions{
		SystemPrompt: req.SystemPrompt,
		Messages:     req.Messages,
	}

	bo := p.retry.newBackoff()
	var lastErr error
	for i, model := range req.Candidates {
		if i > 0 && !sleep(ctx, bo.NextBackOff()) {
			break
		}
		ch, err := p.inv.Stream(ctx, model, opts)
		if err != nil {
			lastErr = err
			metrics.AttemptsTotal.WithLabelValues(req.Endpoint, "error").Inc()
			p.log.Warn("stream connect failed",
				zap.String("endpoint", req.Endpoint),
				zap.String("model", model),
				zap.Error(err))
			continue
		}
		metrics.AttemptsTotal.WithLabelValues(req.Endpoint, "success").Inc()
		return ch, model, nil
	}

	metrics.ExhaustedTotal.WithLabelValues(req.Endpoint).Inc()
	if lastErr == nil {
		lastErr = ErrAllCandidatesFailed
	}
	return nil, "", lastErr
}

// sleep waits d unless the request context ends first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
