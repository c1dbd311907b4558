package ai

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Completion is the first successful answer and the model that produced it.
type Completion struct {
	Text  string
	Model string
}

// Dispatcher walks providers in order until one succeeds. Calls are never raced.
type Dispatcher struct {
	providers []Provider
	timeout   time.Duration
}

// NewDispatcher builds a dispatcher. timeout <= 0 disables the per-candidate limit.
func NewDispatcher(timeout time.Duration, providers ...Provider) *Dispatcher {
	return &Dispatcher{providers: providers, timeout: timeout}
}

// Complete returns the first success. When every candidate fails the error is a
// *DispatchError whose Kind is QuotaExceeded if any attempt hit a quota and the
// last attempt's kind otherwise.
func (d *Dispatcher) Complete(ctx context.Context, prompt string) (Completion, error) {
	var (
		attempts []Attempt
		quota    bool
	)
	for _, p := range d.providers {
		if ctx.Err() != nil {
			break
		}

		start := time.Now()
		text, err := d.call(ctx, p, prompt)
		if err == nil {
			log.Info().Str("model", p.Model()).Dur("took", time.Since(start)).Int("failed_before", len(attempts)).Msg("ai completion ok")
			return Completion{Text: text, Model: p.Model()}, nil
		}

		kind := Classify(err)
		if kind == QuotaExceeded {
			quota = true
		}
		attempts = append(attempts, Attempt{Model: p.Model(), Kind: kind, Err: err})
		log.Warn().Err(err).Str("model", p.Model()).Str("kind", kind.String()).Msg("ai candidate failed")
	}

	derr := &DispatchError{Kind: Unknown, Attempts: attempts}
	if len(attempts) > 0 {
		derr.Kind = attempts[len(attempts)-1].Kind
	}
	if quota {
		derr.Kind = QuotaExceeded
	}
	log.Error().Str("kind", derr.Kind.String()).Int("attempts", len(attempts)).Msg("ai dispatch failed")
	return Completion{}, derr
}

func (d *Dispatcher) call(ctx context.Context, p Provider, prompt string) (string, error) {
	if d.timeout <= 0 {
		return p.Complete(ctx, prompt)
	}
	cctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return p.Complete(cctx, prompt)
}
