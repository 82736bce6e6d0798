package project

import "testing"

func TestNormalizeModuleName(t *testing.T) {
	cases := []struct {
		in, want string
		ok       bool
	}{
		{"lighting", "lighting", true},
		{"lighting.toml", "lighting", true},
		{"common\\math.yaml", "common/math", true},
		{"/shadows/", "shadows", true},
		{"a//b", "", false},
		{"../escape", "", false},
		{"1st", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := NormalizeModuleName(tc.in)
		if (err == nil) != tc.ok || got != tc.want {
			t.Fatalf("NormalizeModuleName(%q) = %q, %v; want %q ok=%v", tc.in, got, err, tc.want, tc.ok)
		}
	}
}

func TestCombineIsOrderSensitive(t *testing.T) {
	a, b := HashString("a"), HashString("b")
	if Combine(a, b) == Combine(b, a) {
		t.Fatalf("Combine must depend on order")
	}
	if Combine(a, b) != Combine(a, b) {
		t.Fatalf("Combine must be deterministic")
	}
}
