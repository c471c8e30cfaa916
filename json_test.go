package chemsolve_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/njchilds90/chemsolve"
)

func decodeJSON(t *testing.T, s string) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		t.Fatalf("decode %s: %v", s, err)
	}
	return m
}

func TestToJSON_Num(t *testing.T) {
	j, err := chemsolve.ToJSON(chemsolve.F(1, 3))
	if err != nil {
		t.Fatalf("ToJSON error: %v", err)
	}
	m := decodeJSON(t, j)
	if m["type"] != "num" || m["value"] != "1/3" {
		t.Errorf("want num 1/3, got %v", m)
	}
}

func TestToJSON_Tree(t *testing.T) {
	m := chemsolve.ToMap(chemsolve.MustParse("log(x) + pi"))
	if m["type"] != "binary" || m["op"] != "+" {
		t.Fatalf("want binary +, got %v", m)
	}
	left := m["left"].(map[string]interface{})
	if left["type"] != "unary" || left["op"] != "log" {
		t.Errorf("want unary log, got %v", left)
	}
	right := m["right"].(map[string]interface{})
	if right["type"] != "const" || right["name"] != "pi" {
		t.Errorf("want const pi, got %v", right)
	}
}

func TestFromJSON_RoundTrip(t *testing.T) {
	for _, text := range []string{
		"2*x + 1",
		"x^2/(1/10 - x)",
		"-sqrt(x + 1)",
		"exp(2*x - 1) - 3",
		"sin(pi*x)^2 + cos(x)",
		"ln(e)",
	} {
		original := chemsolve.MustParse(text)
		j, err := chemsolve.ToJSON(original)
		if err != nil {
			t.Fatalf("%s: %v", text, err)
		}
		rebuilt, err := chemsolve.FromJSON(decodeJSON(t, j))
		if err != nil {
			t.Fatalf("%s: FromJSON error: %v", text, err)
		}
		if !rebuilt.Equal(original) {
			t.Errorf("round-trip mismatch: %s != %s", chemsolve.String(rebuilt), chemsolve.String(original))
		}
	}
}

func TestFromJSON_FloatValue(t *testing.T) {
	e, err := chemsolve.FromJSON(decodeJSON(t, `{"type":"num","value":0.5}`))
	if err != nil {
		t.Fatal(err)
	}
	if e.String() != "1/2" {
		t.Errorf("want 1/2, got %s", e)
	}
}

func TestFromJSON_FoldsLiterals(t *testing.T) {
	e, err := chemsolve.FromJSON(decodeJSON(t, `{"type":"binary","op":"*",
		"left":{"type":"num","value":"2"},"right":{"type":"num","value":"3/4"}}`))
	if err != nil {
		t.Fatal(err)
	}
	if e.String() != "3/2" {
		t.Errorf("want 3/2, got %s", e)
	}
}

func TestFromJSON_Errors(t *testing.T) {
	cases := []string{
		`{}`,
		`{"type":""}`,
		`{"type":"matrix"}`,
		`{"type":"num","value":"abc"}`,
		`{"type":"num","value":true}`,
		`{"type":"sym","name":"sin"}`,
		`{"type":"sym","name":"2x"}`,
		`{"type":"const","name":"tau"}`,
		`{"type":"unary","op":"asin","arg":{"type":"sym","name":"x"}}`,
		`{"type":"unary","op":"log"}`,
		`{"type":"binary","op":"%","left":{"type":"sym","name":"x"},"right":{"type":"num","value":"2"}}`,
		`{"type":"binary","op":"+","left":{"type":"sym","name":"x"},"right":"2"}`,
	}
	for _, c := range cases {
		_, err := chemsolve.FromJSON(decodeJSON(t, c))
		if !errors.Is(err, chemsolve.ErrSyntax) {
			t.Errorf("%s: want syntax error, got %v", c, err)
		}
	}
	if _, err := chemsolve.FromJSON(nil); !errors.Is(err, chemsolve.ErrSyntax) {
		t.Errorf("nil: want syntax error, got %v", err)
	}
}
