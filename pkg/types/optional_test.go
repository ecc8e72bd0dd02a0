package types

import (
	"encoding/json"
	"testing"
)

func TestOptionalUnmarshal(t *testing.T) {
	type payload struct {
		Email    Optional[string] `json:"email"`
		Favorite Optional[bool]   `json:"favorite"`
	}

	var got payload
	if err := json.Unmarshal([]byte(`{"email": "a@b.c", "favorite": true}`), &got); err != nil {
		t.Fatalf("unmarshal value: %v", err)
	}
	if !got.Email.Set || got.Email.Value != "a@b.c" {
		t.Fatalf("expected email to be set, got %+v", got.Email)
	}
	if !got.Favorite.Set || !got.Favorite.Value {
		t.Fatalf("expected favorite true, got %+v", got.Favorite)
	}

	got = payload{}
	if err := json.Unmarshal([]byte(`{"email": null}`), &got); err != nil {
		t.Fatalf("unmarshal null: %v", err)
	}
	if !got.Email.Set || !got.Email.Null || got.Email.Value != "" {
		t.Fatalf("expected null to be set and null, got %+v", got.Email)
	}

	got = payload{}
	if err := json.Unmarshal([]byte(`{}`), &got); err != nil {
		t.Fatalf("unmarshal missing: %v", err)
	}
	if got.Email.Set || got.Favorite.Set {
		t.Fatalf("expected missing fields to stay unset, got %+v", got)
	}

	if err := json.Unmarshal([]byte(`{"favorite": "nope"}`), &got); err == nil {
		t.Fatalf("expected type mismatch to fail")
	}
}

func TestOptionalMarshal(t *testing.T) {
	b, err := json.Marshal(struct {
		A Optional[string] `json:"a"`
		B Optional[string] `json:"b"`
	}{A: Some("x")})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"a":"x","b":null}` {
		t.Fatalf("unexpected json %s", b)
	}
}

func TestLooseStringUnmarshal(t *testing.T) {
	tests := []struct {
		raw       string
		want      string
		malformed bool
	}{
		{`"  Alice "`, "  Alice ", false},
		{`13800138000`, "13800138000", false},
		{`1.5e3`, "1500", false},
		{`12.25`, "12.25", false},
		{`true`, "true", false},
		{`null`, "", false},
		{`{"a":1}`, "", true},
		{`[1,2]`, "", true},
	}
	for _, tt := range tests {
		var got LooseString
		if err := json.Unmarshal([]byte(tt.raw), &got); err != nil {
			t.Fatalf("%s: unexpected error %v", tt.raw, err)
		}
		if got.Value != tt.want || got.Malformed != tt.malformed {
			t.Fatalf("%s: expected %q/%v got %q/%v", tt.raw, tt.want, tt.malformed, got.Value, got.Malformed)
		}
	}
}

func TestLooseBoolUnmarshal(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{`true`, true},
		{`false`, false},
		{`1`, true},
		{`0`, false},
		{`"1"`, true},
		{`"0"`, false},
		{`"yes"`, true},
		{`"No"`, false},
		{`"是"`, true},
		{`"否"`, false},
		{`""`, false},
		{`null`, false},
		{`"starred"`, true},
	}
	for _, tt := range tests {
		var got LooseBool
		if err := json.Unmarshal([]byte(tt.raw), &got); err != nil {
			t.Fatalf("%s: unexpected error %v", tt.raw, err)
		}
		if got.Value != tt.want {
			t.Fatalf("%s: expected %v got %v", tt.raw, tt.want, got.Value)
		}
	}
}
