package portal

import (
	"github.com/sakif/student-library/internal/view"
)

// showMessage fills slot and schedules it to hide after the message
// timeout. A newer message in the same slot restarts the timer. The hide
// task tolerates a slot that no longer exists.
func (a *App) showMessage(slot, text string, kind view.MessageKind) {
	if !a.view.ShowMessage(slot, text, kind) {
		a.logger.Debug("message slot not found", "slot", slot)
		return
	}
	a.scheduler.Schedule(messageKey(slot), a.cfg.MessageTimeout, func() {
		if !a.view.HideMessage(slot) {
			a.logger.Debug("message slot gone before auto-hide", "slot", slot)
		}
	})
}

// loading is the busy state of one control.
type loading struct {
	view      View
	id        string
	idleLabel string
}

// startLoading disables a control and swaps in its busy label. The
// returned done restores the label it had before.
func (a *App) startLoading(id, busyLabel string) (done func()) {
	idle, ok := a.view.ControlLabel(id)
	if !ok {
		return func() {}
	}
	l := &loading{view: a.view, id: id, idleLabel: idle}
	a.view.SetControl(id, busyLabel, true)
	return l.stop
}

func (l *loading) stop() {
	l.view.SetControl(l.id, l.idleLabel, false)
}

// clearSecrets empties the password fields of form.
func (a *App) clearSecrets(form string) {
	for _, field := range a.view.FormFields(form) {
		if view.IsSecret(field) {
			a.view.SetField(form, field, "")
		}
	}
}
