package partitionkey

import (
	"errors"
	"testing"
)

func TestParseJSON_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"object order", `{"b":1,"a":2}`, `{"b":1,"a":2}`},
		{"whitespace", " {\n  \"a\" : [ true , null , \"x\" ] ,\n  \"c\" : { \"d\" : -0.5 }\n} ", `{"a":[true,null,"x"],"c":{"d":-0.5}}`},
		{"numbers", `[1.0,1e2,-0,2.50]`, `[1,100,0,2.5]`},
		{"duplicate keys", `{"a":1,"b":2,"a":3}`, `{"a":3,"b":2}`},
		{"escapes", `{"a\"b":"line\nbreak é"}`, `{"a\"b":"line\nbreak é"}`},
		{"string", `"hi"`, `"hi"`},
		{"number", `42`, `42`},
		{"null", `null`, `null`},
		{"empty containers", `{"o":{},"a":[]}`, `{"o":{},"a":[]}`},
		{"numbers out of range", `[1e400,-1e400,1e-400]`, `[null,null,0]`},
		{"index keys first", `{"b":1,"2":2}`, `{"2":2,"b":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ParseJSON([]byte(tt.in))
			if err != nil {
				t.Fatalf("ParseJSON() error = %v", err)
			}
			got, err := Stringify(v)
			if err != nil {
				t.Fatalf("Stringify() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("round trip = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseJSON_Types(t *testing.T) {
	v, err := ParseJSON([]byte(`{"s":"x","n":1,"b":false,"z":null,"a":[1],"o":{}}`))
	if err != nil {
		t.Fatalf("ParseJSON() error = %v", err)
	}

	obj, ok := v.(*Object)
	if !ok {
		t.Fatalf("ParseJSON() returned %T, want *Object", v)
	}
	if got := obj.Keys(); len(got) != 6 || got[0] != "s" || got[5] != "o" {
		t.Errorf("Keys() = %v", got)
	}

	checks := map[string]func(any) bool{
		"s": func(v any) bool { s, ok := v.(string); return ok && s == "x" },
		"n": func(v any) bool { f, ok := v.(float64); return ok && f == 1 },
		"b": func(v any) bool { b, ok := v.(bool); return ok && !b },
		"z": func(v any) bool { return v == nil },
		"a": func(v any) bool { a, ok := v.([]any); return ok && len(a) == 1 },
		"o": func(v any) bool { o, ok := v.(*Object); return ok && o.Len() == 0 },
	}
	for key, check := range checks {
		value, found := obj.Get(key)
		if !found || !check(value) {
			t.Errorf("member %s = %#v", key, value)
		}
	}
}

func TestParseJSON_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ``},
		{"unterminated object", `{"a":1`},
		{"unterminated array", `[1,2`},
		{"trailing data", `{"a":1} x`},
		{"trailing comma in object", `{"a":1,}`},
		{"trailing comma in array", `[1,2,]`},
		{"leading zero", `{"a":01}`},
		{"bare word", `{"a":nul}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseJSON([]byte(tt.in)); err == nil {
				t.Errorf("ParseJSON(%q) expected error", tt.in)
			}
		})
	}

	if _, err := ParseJSON([]byte(`1 2`)); !errors.Is(err, ErrTrailingData) {
		t.Errorf("ParseJSON(\"1 2\") error = %v, want ErrTrailingData", err)
	}
	if _, err := ParseJSON([]byte(`{"a":01}`)); !errors.Is(err, ErrInvalidJSON) {
		t.Errorf("ParseJSON(`{\"a\":01}`) error = %v, want ErrInvalidJSON", err)
	}
}
