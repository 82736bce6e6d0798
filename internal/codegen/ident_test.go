package codegen

import "testing"

func TestIdent(t *testing.T) {
	for _, tc := range []struct{ in, want string }{
		{"gLight", "gLight"},
		{"Ring<float, 4>", "Ring_float_4"},
		{"ns::Light", "ns_Light"},
		{"fn", "fn_"},
		{"3d", "v3d"},
		{"<>", "v"},
		{"café", "caf"},
	} {
		if got := ident(tc.in); got != tc.want {
			t.Errorf("ident(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestUniqueSuffixesRepeats(t *testing.T) {
	e := &Emitter{names: make(map[string]int)}
	for i, want := range []string{"Light", "Light_1", "Light_2"} {
		if got := e.unique("Light"); got != want {
			t.Fatalf("unique #%d = %q, want %q", i, got, want)
		}
	}
}
