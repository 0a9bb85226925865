package view

// Snapshot is a point-in-time copy of a Document, used for rendering and
// for the JSON state endpoint.
type Snapshot struct {
	ActivePage    string                       `json:"active_page"`
	ActiveNav     string                       `json:"active_nav"`
	Scrolls       int                          `json:"scrolls"`
	Nav           []NavLink                    `json:"nav"`
	Messages      map[string]Message           `json:"messages"`
	Controls      map[string]Control           `json:"controls"`
	Forms         map[string]map[string]string `json:"forms"`
	Profile       ProfileContent               `json:"profile"`
	LogoutVisible bool                         `json:"logout_visible"`
	Confirmation  string                       `json:"confirmation,omitempty"`
}

// NavLink is one navigation entry.
type NavLink struct {
	Page   string `json:"page"`
	Label  string `json:"label"`
	Active bool   `json:"active"`
}

// Snapshot copies the document.
func (d *Document) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := Snapshot{
		ActivePage:   d.active,
		ActiveNav:    d.navActive,
		Scrolls:      d.scrolls,
		Messages:     make(map[string]Message, len(d.messages)),
		Controls:     make(map[string]Control, len(d.controls)),
		Forms:        make(map[string]map[string]string, len(d.forms)),
		Profile:      d.profile,
		Confirmation: d.prompt,
	}
	for _, p := range pageSections {
		s.Nav = append(s.Nav, NavLink{Page: p.id, Label: p.nav, Active: p.id == d.navActive})
	}
	for id, m := range d.messages {
		s.Messages[id] = *m
	}
	for id, c := range d.controls {
		s.Controls[id] = *c
	}
	for id, f := range d.forms {
		values := make(map[string]string, len(f.fields))
		for _, name := range f.fields {
			if IsSecret(name) {
				continue
			}
			values[name] = f.values[name]
		}
		s.Forms[id] = values
	}
	_, s.LogoutVisible = d.controls[ControlLogout]
	return s
}

// Message returns the state of a slot; missing slots read as hidden.
func (s Snapshot) Message(slot string) Message {
	return s.Messages[slot]
}

// Control returns a control and whether it is on the page.
func (s Snapshot) Control(id string) (Control, bool) {
	c, ok := s.Controls[id]
	return c, ok
}

// Field returns a form field value. Secret fields read as empty.
func (s Snapshot) Field(formID, field string) string {
	return s.Forms[formID][field]
}
