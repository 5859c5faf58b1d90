package config

import "testing"

func TestSanitizeEnv(t *testing.T) {
	cases := map[string]string{
		`"sk-abc"`:     "sk-abc",
		`'sk-abc'`:     "sk-abc",
		" sk-xyz ":     "sk-xyz",
		"sk-no-quotes": "sk-no-quotes",
		"\"incomplete": "\"incomplete", // unmatched quote: leave as-is
	}
	for in, exp := range cases {
		if got := sanitizeEnv(in); got != exp {
			t.Errorf("sanitizeEnv(%q)=%q; want %q", in, got, exp)
		}
	}
}

func TestSplitModels(t *testing.T) {
	got := splitModels("gpt-4o, gpt-4o-mini ,,gpt-3.5-turbo")
	want := []string{"gpt-4o", "gpt-4o-mini", "gpt-3.5-turbo"}
	if len(got) != len(want) {
		t.Fatalf("splitModels returned %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestValidateRequiresAPIKey(t *testing.T) {
	cfg := &Config{}
	cfg.Database.Host = "localhost"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing API key")
	}
	cfg.AI.APIKey = "sk-test"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
