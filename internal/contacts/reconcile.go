package contacts

import (
	"fmt"
	"strings"

	"github.com/angelmondragon/contactbook-backend/pkg/config"
	"github.com/angelmondragon/contactbook-backend/pkg/types"
)

// DefaultDetailLimit bounds the row error descriptions returned by an import.
const DefaultDetailLimit = 10

// ImportMode decides what happens to a candidate whose phone already exists.
type ImportMode string

const (
	// ImportModeSkip counts phone matches as duplicates and leaves them alone.
	ImportModeSkip ImportMode = config.ImportModeSkip
	// ImportModeOverwrite replaces the matched record's other fields.
	ImportModeOverwrite ImportMode = config.ImportModeOverwrite
)

// ParseImportMode maps configuration text onto an ImportMode, defaulting to skip.
func ParseImportMode(value string) ImportMode {
	if strings.EqualFold(strings.TrimSpace(value), string(ImportModeOverwrite)) {
		return ImportModeOverwrite
	}
	return ImportModeSkip
}

// Candidate is one loosely typed import row.
type Candidate struct {
	Name          types.LooseString `json:"name"`
	Phone         types.LooseString `json:"phone"`
	Email         types.LooseString `json:"email"`
	SocialAccount types.LooseString `json:"socialAccount"`
	Address       types.LooseString `json:"address"`
	Favorite      types.LooseBool   `json:"favorite"`
}

// ImportOptions tunes the reconciler.
type ImportOptions struct {
	Mode        ImportMode
	DetailLimit int
}

// ImportResult summarizes an applied import batch.
type ImportResult struct {
	Imported   int      `json:"imported"`
	Duplicates int      `json:"duplicates"`
	Updated    int      `json:"updated"`
	Errors     int      `json:"errors"`
	Details    []string `json:"details,omitempty"`
}

// PhoneIndex resolves phones to existing record ids.
type PhoneIndex interface {
	LookupPhone(phone string) (int64, bool)
}

// PhoneMap is an in-memory PhoneIndex.
type PhoneMap map[string]int64

// LookupPhone implements PhoneIndex.
func (m PhoneMap) LookupPhone(phone string) (int64, bool) {
	id, ok := m[phone]
	return id, ok
}

// PlannedUpdate overwrites an existing record with an accepted candidate.
type PlannedUpdate struct {
	ID     int64
	Row    int
	Fields NewContact
}

// Plan is the reconciler's classification of a batch. Nothing in it has been
// applied yet.
type Plan struct {
	Creates    []NewContact
	Updates    []PlannedUpdate
	Duplicates int
	Invalid    int
	Details    []string
}

// Result converts the plan into the counts reported once it is applied.
func (p Plan) Result() *ImportResult {
	return &ImportResult{
		Imported:   len(p.Creates),
		Duplicates: p.Duplicates,
		Updated:    len(p.Updates),
		Errors:     p.Invalid,
		Details:    p.Details,
	}
}

// Empty reports whether applying the plan would write nothing.
func (p Plan) Empty() bool {
	return len(p.Creates) == 0 && len(p.Updates) == 0
}

// Reconcile classifies every candidate, in order, as invalid, duplicate or
// accepted. Rows are 1-based. A phone seen earlier in the batch is always a
// duplicate; a phone held by an existing record is a duplicate in skip mode
// and an update in overwrite mode.
func Reconcile(candidates []Candidate, existing PhoneIndex, opts ImportOptions) Plan {
	limit := opts.DetailLimit
	if limit <= 0 {
		limit = DefaultDetailLimit
	}
	if existing == nil {
		existing = PhoneMap{}
	}

	var plan Plan
	seen := make(map[string]struct{}, len(candidates))
	invalid := func(row int, reason string) {
		plan.Invalid++
		if len(plan.Details) < limit {
			plan.Details = append(plan.Details, fmt.Sprintf("row %d: %s", row, reason))
		}
	}

	for i, cand := range candidates {
		row := i + 1

		if field := cand.malformedField(); field != "" {
			invalid(row, fmt.Sprintf("unsupported value for %s", field))
			continue
		}

		fields := cand.fields().Normalize()
		if fields.Name == "" || fields.Phone == "" {
			invalid(row, "missing name or phone")
			continue
		}
		if reason := fields.violation(); reason != "" {
			invalid(row, reason)
			continue
		}

		if _, dup := seen[fields.Phone]; dup {
			plan.Duplicates++
			continue
		}
		seen[fields.Phone] = struct{}{}

		if id, ok := existing.LookupPhone(fields.Phone); ok {
			if opts.Mode == ImportModeOverwrite {
				plan.Updates = append(plan.Updates, PlannedUpdate{ID: id, Row: row, Fields: fields})
				continue
			}
			plan.Duplicates++
			continue
		}

		plan.Creates = append(plan.Creates, fields)
	}

	return plan
}

// Phones returns the trimmed, non-empty phones of candidates for index lookups.
func Phones(candidates []Candidate) []string {
	out := make([]string, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, cand := range candidates {
		phone := strings.TrimSpace(cand.Phone.Value)
		if phone == "" {
			continue
		}
		if _, ok := seen[phone]; ok {
			continue
		}
		seen[phone] = struct{}{}
		out = append(out, phone)
	}
	return out
}

func (c Candidate) fields() NewContact {
	return NewContact{
		Name:          c.Name.Value,
		Phone:         c.Phone.Value,
		Email:         c.Email.Value,
		SocialAccount: c.SocialAccount.Value,
		Address:       c.Address.Value,
		Favorite:      c.Favorite.Value,
	}
}

func (c Candidate) malformedField() string {
	switch {
	case c.Name.Malformed:
		return "name"
	case c.Phone.Malformed:
		return "phone"
	case c.Email.Malformed:
		return "email"
	case c.SocialAccount.Malformed:
		return "socialAccount"
	case c.Address.Malformed:
		return "address"
	}
	return ""
}
