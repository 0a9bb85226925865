package model

// BorrowedBook is a presentational record on the profile page.
// The portal does not persist these; see SampleBooks.
type BorrowedBook struct {
	Title   string `json:"title"`
	Author  string `json:"author"`
	DueDate string `json:"dueDate"` // YYYY-MM-DD
	Fine    int    `json:"fine"`    // rupees
}

// Overdue reports whether the book carries a fine.
func (b BorrowedBook) Overdue() bool {
	return b.Fine > 0
}

// SampleBooks returns the static borrowed-book list shown on every profile.
// A fresh slice is returned so callers may modify it.
func SampleBooks() []BorrowedBook {
	return []BorrowedBook{
		{Title: "Introduction to Algorithms", Author: "Thomas H. Cormen", DueDate: "2025-12-15", Fine: 0},
		{Title: "Clean Code", Author: "Robert C. Martin", DueDate: "2025-12-10", Fine: 50},
		{Title: "The Great Gatsby", Author: "F. Scott Fitzgerald", DueDate: "2025-11-28", Fine: 120},
	}
}
