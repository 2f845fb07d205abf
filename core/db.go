package core

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 100
)

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// Page is a limit/offset window over an ordered result set.
// A zero Limit means "no limit"; use NewPage for client supplied values.
type Page struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// NewPage clamps limit into [1, MaxPageLimit] and offset to >= 0.
// A nil limit selects DefaultPageLimit.
func NewPage(limit *int, offset int) Page {
	l := DefaultPageLimit
	if limit != nil {
		l = *limit
	}
	if l < 1 {
		l = 1
	} else if l > MaxPageLimit {
		l = MaxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return Page{Limit: l, Offset: offset}
}

// Bounds returns the [start, end) slice indexes of the page within n items.
func (p Page) Bounds(n int) (int, int) {
	start := p.Offset
	if start > n {
		start = n
	}
	end := n
	if p.Limit > 0 && start+p.Limit < n {
		end = start + p.Limit
	}
	return start, end
}
