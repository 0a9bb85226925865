// Package view holds the in-memory document a tab renders: page sections,
// navigation links, message slots, controls, form fields, the profile
// content region and a pending confirmation dialog.
//
// The portal mutates a Document the way browser code mutates the DOM; the
// HTTP layer renders a Snapshot of it. A Document is safe for concurrent use.
// Listeners and confirmation callbacks always run without the lock held, so
// they may call back into the Document.
package view

import (
	"context"
	"errors"
	"sync"
)

// Stable element identifiers.
const (
	FormRegistration = "registrationForm"
	FormLogin        = "loginForm"

	FieldFullName        = "fullName"
	FieldEmail           = "email"
	FieldPhone           = "phone"
	FieldPassword        = "password"
	FieldConfirmPassword = "confirmPassword"
	FieldLoginEmail      = "loginEmail"
	FieldLoginPassword   = "loginPassword"

	SlotRegister = "registerMessage"
	SlotLogin    = "loginMessage"
	SlotHome     = "homeMessage"

	ControlGoToRegister         = "goToRegister"
	ControlGoToLogin            = "goToLogin"
	ControlBackFromRegister     = "backFromRegister"
	ControlBackFromLogin        = "backFromLogin"
	ControlRegisterSubmit       = "registerSubmit"
	ControlLoginSubmit          = "loginSubmit"
	ControlGoToLoginFromProfile = "goToLoginFromProfile"
	ControlLogout               = "logoutBtn"

	RegionProfile = "profileContent"
)

var (
	ErrUnknownControl  = errors.New("view: unknown control")
	ErrControlDisabled = errors.New("view: control is disabled")
	ErrUnknownField    = errors.New("view: unknown form field")
	ErrNoConfirmation  = errors.New("view: no confirmation pending")
)

// MessageKind selects the styling of a message slot.
type MessageKind string

const (
	KindSuccess MessageKind = "success"
	KindError   MessageKind = "error"
	KindInfo    MessageKind = "info"
)

// Message is the state of one message slot.
type Message struct {
	Text    string      `json:"text"`
	Kind    MessageKind `json:"kind"`
	Visible bool        `json:"visible"`
}

// Control is a clickable element.
type Control struct {
	Label    string `json:"label"`
	Disabled bool   `json:"disabled"`
}

type form struct {
	fields []string
	values map[string]string
}

// pageSections lists the page sections in document order, each with the
// label of its navigation link.
var pageSections = []struct{ id, nav string }{
	{"home", "Home"},
	{"register", "Register"},
	{"login", "Login"},
	{"profile", "Profile"},
}

// regionControls are the controls that live inside the profile region and
// disappear whenever it is replaced.
var regionControls = []string{ControlGoToLoginFromProfile, ControlLogout}

// Document is one tab's page.
type Document struct {
	mu sync.Mutex

	sections  []string
	active    string
	navActive string
	scrolls   int

	messages  map[string]*Message
	controls  map[string]*Control
	listeners map[string]func(context.Context)
	forms     map[string]*form

	profile ProfileContent
	prompt  string
	answer  func(context.Context, bool)
}

// New returns the portal's initial document: no section active, every
// message slot empty and the profile region showing the logged-out
// placeholder. No listener is bound yet.
func New() *Document {
	d := &Document{
		messages:  make(map[string]*Message),
		controls:  make(map[string]*Control),
		listeners: make(map[string]func(context.Context)),
		forms:     make(map[string]*form),
	}
	for _, s := range pageSections {
		d.sections = append(d.sections, s.id)
	}
	for _, slot := range []string{SlotHome, SlotRegister, SlotLogin} {
		d.messages[slot] = &Message{}
	}

	d.controls[ControlGoToRegister] = &Control{Label: "Register Now"}
	d.controls[ControlGoToLogin] = &Control{Label: "Login"}
	d.controls[ControlBackFromRegister] = &Control{Label: "Back to Home"}
	d.controls[ControlBackFromLogin] = &Control{Label: "Back to Home"}
	d.controls[ControlRegisterSubmit] = &Control{Label: "Register"}
	d.controls[ControlLoginSubmit] = &Control{Label: "Login"}
	d.controls[ControlGoToLoginFromProfile] = &Control{Label: "Go to Login"}

	d.forms[FormRegistration] = newForm(FieldFullName, FieldEmail, FieldPhone, FieldPassword, FieldConfirmPassword)
	d.forms[FormLogin] = newForm(FieldLoginEmail, FieldLoginPassword)
	return d
}

func newForm(fields ...string) *form {
	return &form{fields: fields, values: make(map[string]string, len(fields))}
}

// ShowSection makes page the only active section. It reports false, leaving
// every section inactive, when no section has that id.
func (d *Document) ShowSection(page string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.active = ""
	for _, id := range d.sections {
		if id == page {
			d.active = id
			return true
		}
	}
	return false
}

// SetActiveNav clears every navigation indicator and sets the one linking to
// page, if there is one.
func (d *Document) SetActiveNav(page string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.navActive = ""
	for _, id := range d.sections {
		if id == page {
			d.navActive = id
			return
		}
	}
}

// ScrollToTop resets the viewport.
func (d *Document) ScrollToTop() {
	d.mu.Lock()
	d.scrolls++
	d.mu.Unlock()
}

// ShowMessage fills slot and makes it visible. It reports false when the
// slot does not exist.
func (d *Document) ShowMessage(slot, text string, kind MessageKind) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	m, ok := d.messages[slot]
	if !ok {
		return false
	}
	*m = Message{Text: text, Kind: kind, Visible: true}
	return true
}

// HideMessage hides slot, keeping its text. It reports false when the slot
// does not exist.
func (d *Document) HideMessage(slot string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	m, ok := d.messages[slot]
	if !ok {
		return false
	}
	m.Visible = false
	return true
}

// removeMessageSlot deletes slot from the document.
func (d *Document) removeMessageSlot(slot string) {
	d.mu.Lock()
	delete(d.messages, slot)
	d.mu.Unlock()
}

// ControlLabel returns the current label of a control.
func (d *Document) ControlLabel(id string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.controls[id]
	if !ok {
		return "", false
	}
	return c.Label, true
}

// SetControl updates a control's label and enabled state. It reports false
// when the control does not exist.
func (d *Document) SetControl(id, label string, disabled bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.controls[id]
	if !ok {
		return false
	}
	c.Label = label
	c.Disabled = disabled
	return true
}

// On binds the click listener of a control, replacing any earlier one. It
// reports false when the control does not exist.
func (d *Document) On(id string, fn func(context.Context)) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.controls[id]; !ok {
		return false
	}
	d.listeners[id] = fn
	return true
}

// Click dispatches the listener bound to a control. Clicking a control with
// no listener does nothing.
func (d *Document) Click(ctx context.Context, id string) error {
	d.mu.Lock()
	c, ok := d.controls[id]
	if !ok {
		d.mu.Unlock()
		return ErrUnknownControl
	}
	if c.Disabled {
		d.mu.Unlock()
		return ErrControlDisabled
	}
	fn := d.listeners[id]
	d.mu.Unlock()

	if fn != nil {
		fn(ctx)
	}
	return nil
}

// SetField sets the value of a form field.
func (d *Document) SetField(formID, field, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	f, ok := d.forms[formID]
	if !ok || !f.has(field) {
		return ErrUnknownField
	}
	f.values[field] = value
	return nil
}

// Fill sets every field of a form present in values; other keys are ignored.
func (d *Document) Fill(formID string, values map[string]string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	f, ok := d.forms[formID]
	if !ok {
		return ErrUnknownField
	}
	for _, name := range f.fields {
		if v, ok := values[name]; ok {
			f.values[name] = v
		}
	}
	return nil
}

// FieldValue returns the value of a form field; missing fields read as "".
func (d *Document) FieldValue(formID, field string) string {
	d.mu.Lock()
	defer d.mu.Unlock()

	f, ok := d.forms[formID]
	if !ok {
		return ""
	}
	return f.values[field]
}

// FormFields returns the field identifiers of a form in document order.
func (d *Document) FormFields(formID string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	f, ok := d.forms[formID]
	if !ok {
		return nil
	}
	return append([]string(nil), f.fields...)
}

// ResetForm empties every field of a form. It reports false when the form
// does not exist.
func (d *Document) ResetForm(formID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	f, ok := d.forms[formID]
	if !ok {
		return false
	}
	clear(f.values)
	return true
}

// IsSecret reports whether field holds a password. Secret fields never
// leave the document through a Snapshot.
func IsSecret(field string) bool {
	switch field {
	case FieldPassword, FieldConfirmPassword, FieldLoginPassword:
		return true
	}
	return false
}

func (f *form) has(field string) bool {
	for _, name := range f.fields {
		if name == field {
			return true
		}
	}
	return false
}

// SetProfile replaces the profile region. The controls inside the old
// content go away with their listeners; the new content brings its own
// unbound control ("Go to Login" or "Logout").
func (d *Document) SetProfile(content ProfileContent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, id := range regionControls {
		delete(d.controls, id)
		delete(d.listeners, id)
	}
	d.profile = content

	if content.Card == nil {
		d.controls[ControlGoToLoginFromProfile] = &Control{Label: "Go to Login"}
	} else {
		d.controls[ControlLogout] = &Control{Label: "Logout"}
	}
}

// Profile returns the current content of the profile region.
func (d *Document) Profile() ProfileContent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.profile
}

// LogoutVisible reports whether the logout control is on the page.
func (d *Document) LogoutVisible() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.controls[ControlLogout]
	return ok
}

// Confirm opens a yes/no dialog. A dialog still open is replaced and its
// callback never runs.
func (d *Document) Confirm(prompt string, answer func(ctx context.Context, yes bool)) {
	d.mu.Lock()
	d.prompt = prompt
	d.answer = answer
	d.mu.Unlock()
}

// Answer closes the pending dialog and runs its callback.
func (d *Document) Answer(ctx context.Context, yes bool) error {
	d.mu.Lock()
	fn := d.answer
	d.prompt, d.answer = "", nil
	d.mu.Unlock()

	if fn == nil {
		return ErrNoConfirmation
	}
	fn(ctx, yes)
	return nil
}
