package portal

import (
	"errors"
	"log/slog"
	"time"

	"github.com/sakif/student-library/internal/apperror"
	"github.com/sakif/student-library/internal/view"
)

// Flow outcomes reported to the Recorder.
const (
	OutcomeSuccess    = "success"
	OutcomeValidation = "validation"
	OutcomeProvider   = "provider_error"
	OutcomeNotFound   = "not_found"
	OutcomeBusy       = "busy"
	OutcomeError      = "error"
)

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, apperror.ErrValidation):
		return OutcomeValidation
	case errors.Is(err, apperror.ErrProvider):
		return OutcomeProvider
	case errors.Is(err, apperror.ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, apperror.ErrBusy):
		return OutcomeBusy
	default:
		return OutcomeError
	}
}

// guard marks flow as running. When it already is, the call is counted as
// busy and ok is false. Otherwise finish must be deferred with the flow's
// final error.
func (a *App) guard(flow string) (finish func(*error), ok bool) {
	if !a.state.begin(flow) {
		a.logger.Debug("flow already in progress", "flow", flow)
		a.metrics.FlowFinished(flow, OutcomeBusy, 0)
		return nil, false
	}
	start := time.Now()
	return func(errp *error) {
		a.state.end(flow)
		a.metrics.FlowFinished(flow, outcomeOf(*errp), time.Since(start))
	}, true
}

// fail shows err in slot. Provider failures carry their own message;
// anything else gets the generic one.
func (a *App) fail(flow, slot string, err error) error {
	if errors.Is(err, apperror.ErrProvider) {
		a.logger.Warn("provider rejected request",
			slog.String("flow", flow),
			slog.String("error", err.Error()),
		)
		a.showMessage(slot, apperror.UserMessage(err, MsgGeneric), view.KindError)
		return err
	}

	a.logger.Error("unexpected flow failure",
		slog.String("flow", flow),
		slog.String("error", err.Error()),
	)
	a.showMessage(slot, MsgGeneric, view.KindError)
	return err
}
