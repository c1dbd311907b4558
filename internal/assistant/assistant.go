// Package assistant answers study questions with a completion backend and
// applies the single action a reply may carry.
package assistant

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"studyflow-backend/internal/ai"
)

// User-facing replies for the cases where no model answered.
const (
	NotConfiguredAnswer = "The AI service is not active right now. Please add an API key on the server."
	QuotaAnswer         = "The AI service has reached its usage quota. Please try again later."
	UnavailableAnswer   = "All AI models are currently unavailable. Please try again later."
)

// Completer is the dispatcher as seen by the assistant.
type Completer interface {
	Complete(ctx context.Context, prompt string) (ai.Completion, error)
}

type OutcomeKind int

const (
	OutcomeNone OutcomeKind = iota
	OutcomeSuccess
	OutcomeFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	}
	return "none"
}

type Outcome struct {
	Kind    OutcomeKind
	Message string
}

// Reply is the final answer of one Ask. Answer never holds a raw action payload.
type Reply struct {
	Answer    string
	Model     string
	Timestamp time.Time
	Outcome   Outcome
}

// Identity is the asking user.
type Identity struct {
	ID   int
	Name string
}

// Service composes snapshot, prompt, dispatch, extraction and execution.
// A nil Completer means no backend is configured.
type Service struct {
	Assembler *Assembler
	Completer Completer
	Extractor Extractor
	Executor  *Executor
	Quizzes   *QuizStore
	Now       func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) extractor() Extractor {
	if s.Extractor != nil {
		return s.Extractor
	}
	return DelimitedExtractor{}
}

// Ask never fails: configuration and dispatch problems become the answer text,
// action problems become the outcome.
func (s *Service) Ask(ctx context.Context, user Identity, prompt string) Reply {
	now := s.now()
	if s.Completer == nil {
		return Reply{Answer: NotConfiguredAnswer, Timestamp: now}
	}

	snap := s.Assembler.Assemble(ctx, user.ID)
	full := BuildPrompt(user.Name, now, snap, prompt)

	completion, err := s.Completer.Complete(ctx, full)
	if err != nil {
		return Reply{Answer: dispatchAnswer(err), Timestamp: s.now()}
	}

	ex := s.extractor().Extract(completion.Text)
	reply := Reply{Answer: ex.DisplayText, Model: completion.Model}

	switch {
	case ex.Action != nil:
		msg, err := s.Executor.Execute(ctx, user.ID, ex.Action)
		if err != nil {
			log.Warn().Err(err).Int("user_id", user.ID).Str("action", ex.Action.Tag()).Msg("assistant action failed")
			reply.Answer += "\n\n⚠️ " + err.Error()
			reply.Outcome = Outcome{Kind: OutcomeFailure, Message: err.Error()}
		} else {
			reply.Answer += "\n\n✅ " + msg
			reply.Outcome = Outcome{Kind: OutcomeSuccess, Message: msg}
		}
	case ex.ParseError != "":
		log.Warn().Str("parse_error", ex.ParseError).Int("user_id", user.ID).Msg("assistant action payload rejected")
		reply.Outcome = Outcome{Kind: OutcomeFailure, Message: ex.ParseError}
	}

	reply.Timestamp = s.now()
	return reply
}

func dispatchAnswer(err error) string {
	var de *ai.DispatchError
	if errors.As(err, &de) && de.Kind == ai.QuotaExceeded {
		return QuotaAnswer
	}
	if errors.Is(err, ai.ErrNotConfigured) {
		return NotConfiguredAnswer
	}
	return UnavailableAnswer
}
