package mailer

import (
	"context"
	"log/slog"

	"github.com/MrEthical07/carauth"
)

// LogSender writes the rendered link to the log instead of sending mail.
// Meant for development; the link carries a live token.
type LogSender struct {
	renderer *Renderer
	logger   *slog.Logger
}

var _ carauth.EmailSender = (*LogSender)(nil)

// NewLogSender returns a LogSender.
func NewLogSender(renderer *Renderer, logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{renderer: renderer, logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg carauth.EmailMessage) error {
	out, err := s.renderer.Render(msg)
	if err != nil {
		return err
	}
	s.logger.Info("email not sent (log sender)",
		slog.String("to", out.To),
		slog.String("subject", out.Subject),
		slog.String("link", out.Link),
	)
	return nil
}
