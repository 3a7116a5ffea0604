package env

import "testing"

func TestGetFallback(t *testing.T) {
	t.Setenv("RESTO_TEST_VALUE", "")
	if got := Get("RESTO_TEST_VALUE", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
	t.Setenv("RESTO_TEST_VALUE", " console ")
	if got := Get("RESTO_TEST_VALUE", "json"); got != "console" {
		t.Fatalf("expected trimmed value, got %q", got)
	}
}

func TestBool(t *testing.T) {
	t.Setenv("RESTO_TEST_FLAG", "true")
	if !Bool("RESTO_TEST_FLAG", false) {
		t.Fatal("expected true")
	}
	t.Setenv("RESTO_TEST_FLAG", "nope")
	if Bool("RESTO_TEST_FLAG", false) {
		t.Fatal("expected fallback for malformed value")
	}
}

func TestBoolWords(t *testing.T) {
	cases := map[string]bool{"YES": true, "on": true, "1": true, "off": false, "No": false, "0": false}
	for raw, want := range cases {
		t.Setenv("RESTO_TEST_FLAG", raw)
		if got := Bool("RESTO_TEST_FLAG", !want); got != want {
			t.Fatalf("%q: expected %v, got %v", raw, want, got)
		}
	}
	t.Setenv("RESTO_TEST_FLAG", "")
	if !Bool("RESTO_TEST_FLAG", true) {
		t.Fatal("expected fallback when unset")
	}
}
