package view

// ProfileContent is what the profile region shows: the logged-out
// placeholder when Card is nil, a profile card otherwise.
type ProfileContent struct {
	Card *ProfileCard `json:"card,omitempty"`
}

// LoggedOut returns the placeholder content.
func LoggedOut() ProfileContent { return ProfileContent{} }

// Placeholder texts of the logged-out profile region.
const (
	LoggedOutText  = "Please login to view your profile"
	LoggedOutLabel = "Go to Login"
	NoBooksText    = "No books currently borrowed."
)

// ProfileCard is the rendered profile of a signed-in student.
type ProfileCard struct {
	Details []Detail  `json:"details"`
	Books   []BookRow `json:"books"`
}

// Detail is one labelled row of the card.
type Detail struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// BookRow is one borrowed book.
type BookRow struct {
	Title   string `json:"title"`
	Author  string `json:"author"`
	Due     string `json:"due"`
	Fine    int    `json:"fine"`
	Overdue bool   `json:"overdue"`
}

// Value returns the value of the detail labelled label.
func (c *ProfileCard) Value(label string) (string, bool) {
	for _, d := range c.Details {
		if d.Label == label {
			return d.Value, true
		}
	}
	return "", false
}
