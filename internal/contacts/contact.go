package contacts

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	pkgerrors "github.com/angelmondragon/contactbook-backend/pkg/errors"
	"github.com/angelmondragon/contactbook-backend/pkg/types"
)

// Column limits shared by every backend; they match the SQL schema.
const (
	MaxNameLength  = 100
	MaxPhoneLength = 50
	MaxTextLength  = 255
)

// Contact is a single phone-unique address book entry.
type Contact struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone"`
	Email         string    `json:"email"`
	SocialAccount string    `json:"socialAccount"`
	Address       string    `json:"address"`
	Favorite      bool      `json:"favorite"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// NewContact holds the fields accepted when creating a contact.
type NewContact struct {
	Name          string
	Phone         string
	Email         string
	SocialAccount string
	Address       string
	Favorite      bool
}

// Normalize trims every text field.
func (n NewContact) Normalize() NewContact {
	n.Name = strings.TrimSpace(n.Name)
	n.Phone = strings.TrimSpace(n.Phone)
	n.Email = strings.TrimSpace(n.Email)
	n.SocialAccount = strings.TrimSpace(n.SocialAccount)
	n.Address = strings.TrimSpace(n.Address)
	return n
}

// Validate checks a normalized NewContact.
func (n NewContact) Validate() error {
	if reason := n.violation(); reason != "" {
		return pkgerrors.New(pkgerrors.CodeValidation, reason)
	}
	return nil
}

func (n NewContact) violation() string {
	switch {
	case n.Name == "" && n.Phone == "":
		return "name and phone are required"
	case n.Name == "":
		return "name is required"
	case n.Phone == "":
		return "phone is required"
	}
	return lengthViolation(n.Name, n.Phone, n.Email, n.SocialAccount)
}

func lengthViolation(name, phone, email, social string) string {
	checks := []struct {
		field string
		value string
		max   int
	}{
		{"name", name, MaxNameLength},
		{"phone", phone, MaxPhoneLength},
		{"email", email, MaxTextLength},
		{"socialAccount", social, MaxTextLength},
	}
	for _, c := range checks {
		if utf8.RuneCountInString(c.value) > c.max {
			return fmt.Sprintf("%s must be at most %d characters", c.field, c.max)
		}
	}
	return ""
}

// Patch is a partial update. Absent fields are left untouched; a null on an
// optional text field clears it.
type Patch struct {
	Name          types.Optional[string] `json:"name"`
	Phone         types.Optional[string] `json:"phone"`
	Email         types.Optional[string] `json:"email"`
	SocialAccount types.Optional[string] `json:"socialAccount"`
	Address       types.Optional[string] `json:"address"`
	Favorite      types.Optional[bool]   `json:"favorite"`
}

// IsEmpty reports whether the patch carries no fields.
func (p Patch) IsEmpty() bool {
	return !p.Name.Set && !p.Phone.Set && !p.Email.Set && !p.SocialAccount.Set && !p.Address.Set && !p.Favorite.Set
}

// Apply returns current with the patch applied and text fields trimmed. It
// does not touch timestamps.
func (p Patch) Apply(current Contact) (Contact, error) {
	if p.IsEmpty() {
		return current, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}
	next := current

	if p.Name.Set {
		name := strings.TrimSpace(p.Name.Value)
		if p.Name.Null || name == "" {
			return current, pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
		}
		next.Name = name
	}
	if p.Phone.Set {
		phone := strings.TrimSpace(p.Phone.Value)
		if p.Phone.Null || phone == "" {
			return current, pkgerrors.New(pkgerrors.CodeValidation, "phone cannot be empty")
		}
		next.Phone = phone
	}
	if p.Email.Set {
		next.Email = strings.TrimSpace(p.Email.Value)
	}
	if p.SocialAccount.Set {
		next.SocialAccount = strings.TrimSpace(p.SocialAccount.Value)
	}
	if p.Address.Set {
		next.Address = strings.TrimSpace(p.Address.Value)
	}
	if p.Favorite.Set {
		next.Favorite = p.Favorite.Value
	}

	if reason := lengthViolation(next.Name, next.Phone, next.Email, next.SocialAccount); reason != "" {
		return current, pkgerrors.New(pkgerrors.CodeValidation, reason)
	}
	return next, nil
}

// fields projects a contact onto its writable fields.
func (c Contact) fields() NewContact {
	return NewContact{
		Name:          c.Name,
		Phone:         c.Phone,
		Email:         c.Email,
		SocialAccount: c.SocialAccount,
		Address:       c.Address,
		Favorite:      c.Favorite,
	}
}

func (c *Contact) assign(n NewContact) {
	c.Name = n.Name
	c.Phone = n.Phone
	c.Email = n.Email
	c.SocialAccount = n.SocialAccount
	c.Address = n.Address
	c.Favorite = n.Favorite
}

func notFound(id int64) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "contact not found").WithDetails(map[string]any{"id": id})
}

func duplicatePhone(phone string) error {
	return pkgerrors.New(pkgerrors.CodeDuplicatePhone, "phone already exists").WithDetails(map[string]any{"phone": phone})
}
