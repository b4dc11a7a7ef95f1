package recipients

import (
	"errors"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		want      []string
		malformed bool
	}{
		{name: "empty", raw: "", want: []string{}},
		{name: "json array", raw: `["a@x.com","b@x.com"]`, want: []string{"a@x.com", "b@x.com"}},
		{name: "empty array", raw: `[]`, want: []string{}},
		{name: "bare address", raw: "a@x.com", want: []string{"a@x.com"}},
		{name: "comma list is not split", raw: "a@x.com, b@x.com", want: []string{"a@x.com, b@x.com"}},
		{name: "malformed json", raw: "[not json", want: []string{"[not json"}},
		{name: "bracketed garbage", raw: "[not json]", want: []string{"[not json]"}, malformed: true},
		{name: "non-string elements", raw: `["a@x.com", 7, true, null]`, want: []string{"a@x.com", "7", "true"}},
		{name: "nested array", raw: `[["a@x.com"]]`, want: []string{`["a@x.com"]`}},
		{name: "extra closing bracket", raw: `["a@x"]]`, want: []string{`["a@x"]]`}, malformed: true},
		{name: "trailing brace", raw: `["a@x"]}]`, want: []string{`["a@x"]}]`}, malformed: true},
		{name: "second array", raw: `[1] ]`, want: []string{`[1] ]`}, malformed: true},
		{name: "leading space skips json", raw: ` ["a@x.com"]`, want: []string{` ["a@x.com"]`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.raw)
			if tt.malformed {
				if !errors.Is(err, ErrMalformed) {
					t.Errorf("expected ErrMalformed, got %v", err)
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Decode(%q) = %#v, want %#v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeNeverNil(t *testing.T) {
	for _, raw := range []string{"", "[]", "[null]"} {
		if got := Normalize(raw); got == nil {
			t.Errorf("Normalize(%q) returned nil", raw)
		}
	}
}

func TestEncode(t *testing.T) {
	t.Run("nil encodes as empty array", func(t *testing.T) {
		if got := Encode(nil); got != "[]" {
			t.Errorf("expected [], got %q", got)
		}
	})

	t.Run("html characters are not escaped", func(t *testing.T) {
		got := Encode([]string{"Bob <bob@x.com>"})
		if got != `["Bob <bob@x.com>"]` {
			t.Errorf("unexpected encoding %q", got)
		}
	})
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{name: "no input", in: nil, want: []string{}},
		{name: "single", in: []string{"a@x.com"}, want: []string{"a@x.com"}},
		{name: "comma list", in: []string{"b@x, c@x"}, want: []string{"b@x", "c@x"}},
		{name: "empties dropped", in: []string{" , a@x ,,", ""}, want: []string{"a@x"}},
		{name: "multiple values", in: []string{"a@x", "b@x,c@x"}, want: []string{"a@x", "b@x", "c@x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Split(tt.in...); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Split(%q) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}

func TestProperty_NormalizeIsIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("normalize(encode(normalize(r))) == normalize(r)", prop.ForAll(
		func(raw string) bool {
			once := Normalize(raw)
			twice := Normalize(Encode(once))
			return reflect.DeepEqual(once, twice)
		},
		gen.OneGenOf(
			gen.AnyString(),
			gen.AlphaString(),
			gen.SliceOf(gen.AnyString()).Map(func(v []string) string { return Encode(v) }),
			gen.AnyString().Map(func(v string) string { return "[" + v + "]" }),
		),
	))

	properties.Property("encoded lists decode to themselves", prop.ForAll(
		func(list []string) bool {
			got, err := Decode(Encode(list))
			if err != nil {
				return false
			}
			if len(list) == 0 {
				return len(got) == 0
			}
			return reflect.DeepEqual(got, list)
		},
		gen.SliceOf(gen.AnyString()),
	))

	properties.TestingRun(t)
}
