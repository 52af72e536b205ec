package internal

import "github.com/starford/othala/internal/llm"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	model  llm.Client
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLLMClient overrides the language-model backend. Used by tests and
// by commands that do not need a live model.
func WithLLMClient(c llm.Client) Option {
	return func(a *application) {
		a.model = c
	}
}
