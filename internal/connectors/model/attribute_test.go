package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestAttributeAccessorsRejectWrongCardinality(t *testing.T) {
	t.Parallel()

	single := Single("mail", "a@example.com")
	if _, err := single.Values(); !errors.Is(err, ErrSingleValued) {
		t.Fatalf("Values() error = %v, want %v", err, ErrSingleValued)
	}
	v, err := single.Value()
	if err != nil {
		t.Fatalf("Value() error = %v", err)
	}
	if v != "a@example.com" {
		t.Fatalf("Value() = %v, want a@example.com", v)
	}

	multi := Multi("groups", "admins", "ops")
	if _, err := multi.Value(); !errors.Is(err, ErrMultiValued) {
		t.Fatalf("Value() error = %v, want %v", err, ErrMultiValued)
	}
	vs, err := multi.Values()
	if err != nil {
		t.Fatalf("Values() error = %v", err)
	}
	if len(vs) != 2 || vs[0] != "admins" || vs[1] != "ops" {
		t.Fatalf("Values() = %v, want [admins ops]", vs)
	}
}

func TestAttributeValuesReturnsCopy(t *testing.T) {
	t.Parallel()

	src := []any{"a", "b"}
	attr := Multi("roles", src...)
	src[0] = "mutated"

	vs, _ := attr.Values()
	vs[1] = "mutated"

	again, _ := attr.Values()
	if again[0] != "a" || again[1] != "b" {
		t.Fatalf("Values() = %v, want [a b]", again)
	}
}

func TestAttributeTags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		attr Attribute
		want Tag
	}{
		{name: "plain", attr: Single("cn", "x"), want: 0},
		{name: "identifier", attr: Identifier("id", "42", "7"), want: TagIdentifier},
		{name: "login", attr: LoginName("username", "jdoe"), want: TagLoginName},
		{name: "secret", attr: SecretAttribute("password", NewSecret("pw")), want: TagSecret},
		{name: "enabled", attr: Enabled("status", EnabledState{Enabled: Bool(true)}), want: TagEnabledState},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			if got := test.attr.Tags(); got != test.want {
				t.Fatalf("Tags() = %v, want %v", got, test.want)
			}
		})
	}
}

func TestIdentifierRevisionAndUID(t *testing.T) {
	t.Parallel()

	id := Identifier("id", "uid-1", "rev-3")
	uid, err := id.UID()
	if err != nil {
		t.Fatalf("UID() error = %v", err)
	}
	if uid != "uid-1" {
		t.Fatalf("UID() = %q, want uid-1", uid)
	}
	if id.Revision() != "rev-3" {
		t.Fatalf("Revision() = %q, want rev-3", id.Revision())
	}
	if _, err := Single("cn", "x").UID(); err == nil {
		t.Fatalf("UID() on plain attribute error = nil, want error")
	}
}

func TestEnabledStateEquality(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	a := Enabled("status", EnabledState{Enabled: Bool(false), DisabledAt: Time(at)})
	b := Enabled("status", EnabledState{Enabled: Bool(false), DisabledAt: Time(at.In(time.FixedZone("x", 3600)))})
	c := Enabled("status", EnabledState{Enabled: Bool(false)})

	if !a.Equal(b) {
		t.Fatalf("Equal() = false for same instant in different zones")
	}
	if a.Equal(c) {
		t.Fatalf("Equal() = true with a missing facet")
	}
}

func TestSecretNeverRendersClearText(t *testing.T) {
	t.Parallel()

	attr := SecretAttribute("password", NewSecret("hunter2"))
	s, err := attr.Secret()
	if err != nil {
		t.Fatalf("Secret() error = %v", err)
	}

	outputs := []string{
		fmt.Sprintf("%v", s),
		fmt.Sprintf("%+v", s),
		fmt.Sprintf("%#v", s),
		attr.String(),
	}
	raw, err := json.Marshal(map[string]any{"password": s})
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	outputs = append(outputs, string(raw))

	for _, out := range outputs {
		if strings.Contains(out, "hunter2") {
			t.Fatalf("secret leaked in %q", out)
		}
	}
	if s.Reveal() != "hunter2" {
		t.Fatalf("Reveal() = %q, want hunter2", s.Reveal())
	}
}

func TestSecretEquality(t *testing.T) {
	t.Parallel()

	if !NewSecret("a").Equal(NewSecret("a")) {
		t.Fatalf("Equal() = false for same secret")
	}
	if NewSecret("a").Equal(NewSecret("b")) {
		t.Fatalf("Equal() = true for different secrets")
	}
	if NewSecret("").Equal(Secret{}) {
		t.Fatalf("Equal() = true for empty vs unset secret")
	}
}

func TestSchemaGuard(t *testing.T) {
	t.Parallel()

	schema := Schema{
		ObjectClasses: []ObjectClassInfo{{Type: "__ACCOUNT__"}},
		SupportedOperationsByObjectClass: map[Operation][]string{
			OpCreate: {"__ACCOUNT__"},
			OpSync:   {"__ACCOUNT__", "__GROUP__"},
		},
	}
	if err := schema.Guard(OpCreate, "__ACCOUNT__"); err != nil {
		t.Fatalf("Guard(create, account) error = %v", err)
	}
	if err := schema.Guard(OpCreate, "__GROUP__"); !errors.Is(err, ErrUnsupportedOperation) {
		t.Fatalf("Guard(create, group) error = %v, want %v", err, ErrUnsupportedOperation)
	}
	if err := schema.Guard(OpDelete, "__ACCOUNT__"); !errors.Is(err, ErrUnsupportedOperation) {
		t.Fatalf("Guard(delete, account) error = %v, want %v", err, ErrUnsupportedOperation)
	}
	if !schema.Supports(OpSync, "__GROUP__") {
		t.Fatalf("Supports(sync, group) = false, want true")
	}
}
