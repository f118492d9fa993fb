// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package jsonvalue

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseEncodeKeepsMemberOrder(t *testing.T) {
	cases := []string{
		`{"name":"t","inputSchema":{"type":"integer"}}`,
		`{"z":1,"a":2,"m":[3,{"y":null,"b":true}]}`,
		`[]`,
		`{}`,
		`"plain"`,
		`12345678901234567890123`,
		`null`,
		`false`,
		`{"html":"<b>&</b>"}`,
		`{"esc":"line\nbreak \"quoted\" \\ tab\t"}`,
	}

	for _, tc := range cases {
		v, err := Parse([]byte(tc))
		if err != nil {
			t.Fatalf("parse %s: %v", tc, err)
		}
		if got := string(v.Encode()); got != tc {
			t.Errorf("round trip mismatch:\n got  %s\n want %s", got, tc)
		}
	}
}

func TestEncodeNormalizesNumbers(t *testing.T) {
	v, err := Parse([]byte(`{"minimum":1.0,"step":2.50,"big":-1.50e+10,"tiny":1E-7,"huge":1e21,"id":12345678901234567890123}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := `{"minimum":1,"step":2.5,"big":-15000000000,"tiny":1e-7,"huge":1e+21,"id":12345678901234567890123}`
	if got := string(v.Encode()); got != want {
		t.Fatalf("got  %s\nwant %s", got, want)
	}
}

func TestParseCompactsWhitespace(t *testing.T) {
	v, err := Parse([]byte(" {\n  \"a\" : [ 1 , 2 ],\r\n \"b\":{ } }\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got, want := string(v.Encode()), `{"a":[1,2],"b":{}}`; got != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestParseUnescapesKeysAndStrings(t *testing.T) {
	v, err := Parse([]byte(`{"\u0061bc":"\u00e9\ud83d\ude00"}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	field, ok := v.Field("abc")
	if !ok {
		t.Fatalf("expected unescaped key abc, members %+v", v.Members())
	}
	if got, want := field.Text(), "é😀"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestParseDuplicateKeysKeepFirstPosition(t *testing.T) {
	v, err := Parse([]byte(`{"a":1,"b":2,"a":3}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got, want := string(v.Encode()), `{"a":3,"b":2}`; got != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestParseRejectsInvalidInput(t *testing.T) {
	cases := []string{
		``,
		`   `,
		`{`,
		`{"a":1}}`,
		`{"a":1} trailing`,
		`not json`,
		`{'a':1}`,
		`[1,2,]`,
		`data: {}`,
	}

	for _, tc := range cases {
		if _, err := Parse([]byte(tc)); !errors.Is(err, ErrInvalidJSON) {
			t.Errorf("Parse(%q) error = %v, want ErrInvalidJSON", tc, err)
		}
	}
}

func TestWithAndWithout(t *testing.T) {
	orig := NewObject(
		Member{Key: "id", Value: NewNumber("1")},
		Member{Key: "result", Value: NewObject()},
	)

	replaced := orig.With("id", NewString("1"))
	if got, want := string(replaced.Encode()), `{"id":"1","result":{}}`; got != want {
		t.Fatalf("With replace: got %s want %s", got, want)
	}
	if got, want := string(orig.Encode()), `{"id":1,"result":{}}`; got != want {
		t.Fatalf("With mutated receiver: got %s", got)
	}

	appended := orig.With("extra", NewBool(true))
	if got, want := string(appended.Encode()), `{"id":1,"result":{},"extra":true}`; got != want {
		t.Fatalf("With append: got %s want %s", got, want)
	}

	removed := orig.Without("id")
	if got, want := string(removed.Encode()), `{"result":{}}`; got != want {
		t.Fatalf("Without: got %s want %s", got, want)
	}
	if got := orig.Without("missing"); !Equal(got, orig) {
		t.Fatalf("Without missing key changed value: %s", got.Encode())
	}

	scalar := NewString("x")
	if got := scalar.With("k", NewBool(true)); !Equal(got, scalar) {
		t.Fatalf("With on scalar changed value: %s", got.Encode())
	}
}

func TestEqual(t *testing.T) {
	mustParse := func(s string) Value {
		t.Helper()
		v, err := Parse([]byte(s))
		if err != nil {
			t.Fatalf("parse %s: %v", s, err)
		}
		return v
	}

	cases := []struct {
		a, b string
		want bool
	}{
		{`{"a":1,"b":[1,2]}`, `{"b":[1,2],"a":1}`, true},
		{`[1,2]`, `[2,1]`, false},
		{`{"a":1}`, `{"a":1,"b":2}`, false},
		{`{"a":null}`, `{"a":false}`, false},
		{`"1"`, `1`, false},
		{`{"a":{"b":{"c":"d"}}}`, `{"a":{"b":{"c":"d"}}}`, true},
	}

	for _, tc := range cases {
		if got := Equal(mustParse(tc.a), mustParse(tc.b)); got != tc.want {
			t.Errorf("Equal(%s, %s) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestToString(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`42`, "42"},
		{`-7`, "-7"},
		{`"abc"`, "abc"},
		{`""`, ""},
		{`1.0`, "1"},
		{`1e2`, "100"},
		{`0.5`, "0.5"},
		{`2.50`, "2.5"},
		{`1e21`, "1e+21"},
		{`1e-7`, "1e-7"},
		{`0.0`, "0"},
		{`123456789012345678901234567890`, "123456789012345678901234567890"},
		{`true`, "true"},
		{`null`, "null"},
		{`{"a":1}`, `{"a":1}`},
	}

	for _, tc := range cases {
		v, err := Parse([]byte(tc.in))
		if err != nil {
			t.Fatalf("parse %s: %v", tc.in, err)
		}
		if got := v.ToString(); got != tc.want {
			t.Errorf("ToString(%s) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestValueImplementsJSONMarshalers(t *testing.T) {
	var wrapper struct {
		Payload Value `json:"payload"`
	}
	if err := json.Unmarshal([]byte(`{"payload":{"z":1,"a":2}}`), &wrapper); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	out, err := json.Marshal(wrapper)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got, want := string(out), `{"payload":{"z":1,"a":2}}`; got != want {
		t.Fatalf("got %s want %s", got, want)
	}
}
