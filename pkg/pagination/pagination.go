package pagination

const (
	// DefaultPageSize is the standard page size when a size is not provided.
	DefaultPageSize = 10
	// MaxPageSize caps how many rows any page query can request.
	MaxPageSize = 100
)

// Params holds offset pagination inputs from controllers or services.
type Params struct {
	Page     int
	PageSize int
}

// Limits bounds page sizes for a caller.
type Limits struct {
	Default int
	Max     int
}

// DefaultLimits mirrors the package defaults.
var DefaultLimits = Limits{Default: DefaultPageSize, Max: MaxPageSize}

// Normalize clamps page to >= 1 and the page size into [1, Max], substituting
// Default for non-positive sizes.
func (l Limits) Normalize(p Params) Params {
	def := l.Default
	if def <= 0 {
		def = DefaultPageSize
	}
	maxSize := l.Max
	if maxSize < def {
		maxSize = def
	}

	out := p
	if out.Page < 1 {
		out.Page = 1
	}
	if out.PageSize < 1 {
		out.PageSize = def
	}
	if out.PageSize > maxSize {
		out.PageSize = maxSize
	}
	return out
}

// Offset returns the zero-based row offset of a normalized page.
func (p Params) Offset() int {
	if p.Page < 1 || p.PageSize < 1 {
		return 0
	}
	return (p.Page - 1) * p.PageSize
}

// Window returns the [start, end) slice bounds of the page over total rows.
// Both bounds equal total when the offset runs past the end.
func (p Params) Window(total int) (int, int) {
	start := p.Offset()
	if start > total {
		start = total
	}
	end := start + p.PageSize
	if end > total || end < start {
		end = total
	}
	return start, end
}
