package services

const (
	defaultPageLimit = 20
	maxPageLimit     = 50
)

// Page is a 1-based page request.
type Page struct {
	Number int
	Limit  int
}

// NewPage clamps page and limit to sane values.
func NewPage(number, limit int) Page {
	if number < 1 {
		number = 1
	}
	if limit < 1 || limit > maxPageLimit {
		limit = defaultPageLimit
	}
	return Page{Number: number, Limit: limit}
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.Limit
}
