package prompts

import (
	"context"

	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
)

const (
	MessageGeneric        = "Something went wrong. Please try again."
	MessageSessionExpired = "Your session has expired. Please log in again."
)

// SessionEnder forgets the stored bearer token.
type SessionEnder interface {
	Clear(ctx context.Context) error
}

// FailureReporter is the single catch-site handler for API failures: it
// logs the error chain and surfaces a notice. An expired session also drops
// the token and sends the shopper to login.
type FailureReporter struct {
	ui      UI
	logg    *logger.Logger
	session SessionEnder
}

func NewFailureReporter(ui UI, logg *logger.Logger, session SessionEnder) *FailureReporter {
	return &FailureReporter{ui: ui, logg: logg, session: session}
}

// Report handles err and returns it unchanged.
func (r *FailureReporter) Report(ctx context.Context, event string, err error, fallback string) error {
	if err == nil {
		return nil
	}
	if r.logg != nil {
		r.logg.Error(r.logg.WithField(ctx, "error_dump", pkgerrors.Dump(err)), event, err)
	}
	if pkgerrors.Is(err, pkgerrors.CodeUnauthorized) {
		if r.session != nil {
			if clearErr := r.session.Clear(ctx); clearErr != nil && r.logg != nil {
				r.logg.Error(ctx, "prompts.session_clear_failed", clearErr)
			}
		}
		r.ui.Notify(ctx, Error(MessageSessionExpired))
		r.ui.Navigate(ctx, RouteLogin)
		return err
	}
	if fallback == "" {
		fallback = MessageGeneric
	}
	r.ui.Notify(ctx, Error(pkgerrors.UserMessage(err, fallback)))
	return err
}
