package prompts

import (
	"strings"
	"testing"
)

// Scenario D: language "zh" makes the assembled prompt begin with the
// Chinese directive regardless of template content.
func TestAssemblePrependsChineseDirective(t *testing.T) {
	out := Assemble("Analyze the tongue image.", nil, "zh")
	if !strings.HasPrefix(out, languageDirectives["zh"]) {
		t.Fatalf("prompt does not start with zh directive: %q", out[:40])
	}
}

func TestAssembleUnsupportedLanguageFallsBack(t *testing.T) {
	out := Assemble("template", nil, "klingon")
	if !strings.HasPrefix(out, languageDirectives[defaultLanguage]) {
		t.Fatal("unsupported language should use the default directive")
	}
}

func TestAssembleInterpolatesContext(t *testing.T) {
	out := Assemble("Patient {{name}}, age {{age}}.", map[string]string{
		"name": "Li Wei",
		"age":  "42",
	}, "en")
	if !strings.Contains(out, "Patient Li Wei, age 42.") {
		t.Fatalf("placeholders not interpolated: %q", out)
	}
}

func TestAssembleLeavesUnresolvedPlaceholdersVerbatim(t *testing.T) {
	out := Assemble("Known {{name}}, unknown {{future_field}}.", map[string]string{
		"name": "Li Wei",
	}, "en")
	if !strings.Contains(out, "{{future_field}}") {
		t.Fatal("unresolved placeholder should stay verbatim")
	}
}

func TestDefaultTemplatesExistForAllRoles(t *testing.T) {
	roles := []string{
		"patient_intake", "doctor_chat", "tongue_inspection",
		"face_inspection", "voice_listening", "pulse_palpation",
		"diagnostic_report",
	}
	for _, role := range roles {
		if Default(role) == "" {
			t.Errorf("missing default template for %s", role)
		}
	}
	if Default("nope") != "" {
		t.Error("unknown role should return empty template")
	}
}
