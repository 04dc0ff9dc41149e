package provider

import (
	"context"
	"log/slog"
	"time"

	"github.com/johnayoung/req-analyzer/internal/logging"
)

// Logged records every generation call made through the wrapped Provider.
type Logged struct {
	next   Provider
	name   string
	logger *slog.Logger
}

// NewLogged wraps p with call logging.
func NewLogged(p Provider, name string, logger *slog.Logger) *Logged {
	return &Logged{next: p, name: name, logger: logging.Component(logger, "provider")}
}

func (l *Logged) Generate(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	resp, err := l.next.Generate(ctx, req)
	logging.LLMCall(ctx, l.logger, l.name, req.Model, time.Since(start), err)
	return resp, err
}
