package contacts

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	pkgerrors "github.com/angelmondragon/contactbook-backend/pkg/errors"
	"github.com/angelmondragon/contactbook-backend/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestNewContactNormalizeAndValidate(t *testing.T) {
	n := NewContact{Name: " A ", Phone: "\t1\n", Email: " e "}.Normalize()
	require.Equal(t, NewContact{Name: "A", Phone: "1", Email: "e"}, n)
	require.NoError(t, n.Validate())

	tests := []struct {
		input NewContact
		msg   string
	}{
		{NewContact{}, "name and phone are required"},
		{NewContact{Phone: "1"}, "name is required"},
		{NewContact{Name: "A"}, "phone is required"},
		{NewContact{Name: strings.Repeat("n", MaxNameLength+1), Phone: "1"}, "name must be at most 100 characters"},
		{NewContact{Name: "A", Phone: "1", Email: strings.Repeat("e", MaxTextLength+1)}, "email must be at most 255 characters"},
	}
	for _, tt := range tests {
		err := tt.input.Validate()
		require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
		require.Equal(t, tt.msg, pkgerrors.As(err).Message())
	}

	// limits count characters, not bytes
	require.NoError(t, NewContact{Name: strings.Repeat("名", MaxNameLength), Phone: "1"}.Validate())
}

func TestPatchDecodesPresenceAndNull(t *testing.T) {
	var p Patch
	require.NoError(t, json.Unmarshal([]byte(`{"email":null,"favorite":false,"name":" Z "}`), &p))
	require.True(t, p.Email.Set)
	require.True(t, p.Email.Null)
	require.True(t, p.Favorite.Set)
	require.False(t, p.Phone.Set)
	require.False(t, p.IsEmpty())

	current := Contact{ID: 3, Name: "A", Phone: "1", Email: "old", Favorite: true, CreatedAt: time.Unix(10, 0)}
	next, err := p.Apply(current)
	require.NoError(t, err)
	require.Equal(t, "Z", next.Name)
	require.Equal(t, "1", next.Phone)
	require.Equal(t, "", next.Email)
	require.False(t, next.Favorite)
	require.Equal(t, current.CreatedAt, next.CreatedAt)
}

func TestPatchApplyRejectsBlankRequiredFields(t *testing.T) {
	current := Contact{Name: "A", Phone: "1"}
	for _, p := range []Patch{
		{},
		{Name: types.Some("")},
		{Name: types.Optional[string]{Set: true, Null: true}},
		{Phone: types.Some("   ")},
		{SocialAccount: types.Some(strings.Repeat("s", MaxTextLength+1))},
	} {
		got, err := p.Apply(current)
		require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation), "patch %+v", p)
		require.Equal(t, current, got)
	}
}

func TestTouchNeverPrecedesCreatedAt(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := Contact{CreatedAt: created}
	touch(&c, created.Add(-time.Hour))
	require.Equal(t, created, c.UpdatedAt)
	touch(&c, created.Add(time.Hour))
	require.Equal(t, created.Add(time.Hour), c.UpdatedAt)
}

func TestContactJSONUsesCamelCase(t *testing.T) {
	b, err := json.Marshal(Contact{ID: 1, SocialAccount: "@x"})
	require.NoError(t, err)
	require.Contains(t, string(b), `"socialAccount":"@x"`)
	require.Contains(t, string(b), `"createdAt"`)
	require.Contains(t, string(b), `"updatedAt"`)
}
