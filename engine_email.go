package carauth

import (
	"context"
	"log/slog"

	internalflows "github.com/MrEthical07/carauth/internal/flows"
)

// mailer returns the flow hook that queues an email of kind. Queueing never
// blocks the request; a full queue drops the message.
func (e *Engine) mailer(kind EmailKind) internalflows.MailFunc {
	return func(ctx context.Context, account internalflows.Account, token string) {
		if e.mail == nil {
			return
		}
		msg := EmailMessage{
			Account: viewOf(account),
			Kind:    kind,
			Token:   token,
		}
		if !e.mail.Enqueue(ctx, msg) {
			e.metricInc(MetricEmailFailed)
			e.logger.Warn("email queue full, message dropped",
				slog.String("kind", string(kind)),
				slog.String("account_id", account.ID),
			)
		}
	}
}

func (e *Engine) deliverEmail(ctx context.Context, msg EmailMessage) {
	if e.emailSender == nil {
		e.logger.Info("no email sender configured, message discarded",
			slog.String("kind", string(msg.Kind)),
			slog.String("account_id", msg.Account.ID),
		)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, e.config.Email.SendTimeout)
	defer cancel()

	if err := e.emailSender.Send(ctx, msg); err != nil {
		e.metricInc(MetricEmailFailed)
		e.logger.Error("email delivery failed",
			slog.String("kind", string(msg.Kind)),
			slog.String("account_id", msg.Account.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	e.metricInc(MetricEmailSent)
}
