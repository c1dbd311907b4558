// Package ai wraps completion backends: a priority roster of models, a
// provider per model and a dispatcher that walks them until one answers.
package ai

import "context"

// Provider produces a completion from one backend model.
type Provider interface {
	Model() string
	Complete(ctx context.Context, prompt string) (string, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc struct {
	Name string
	Fn   func(ctx context.Context, prompt string) (string, error)
}

func (p ProviderFunc) Model() string { return p.Name }

func (p ProviderFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return p.Fn(ctx, prompt)
}

var _ Provider = ProviderFunc{}
