package model

// Page names one logical section of the portal. Exactly one is active at a time.
type Page string

const (
	PageHome     Page = "home"
	PageRegister Page = "register"
	PageLogin    Page = "login"
	PageProfile  Page = "profile"
)

// Pages lists the known pages in navigation order.
var Pages = []Page{PageHome, PageRegister, PageLogin, PageProfile}

// Known reports whether p is one of the portal's pages.
func (p Page) Known() bool {
	for _, known := range Pages {
		if p == known {
			return true
		}
	}
	return false
}

func (p Page) String() string {
	return string(p)
}
