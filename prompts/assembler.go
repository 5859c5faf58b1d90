package prompts

import "strings"

// Language directives. One is always prepended to the assembled prompt;
// unsupported codes fall back to the default.
var languageDirectives = map[string]string{
	"zh": "请始终使用简体中文回答，语气专业且体贴。",
	"en": "Always respond in English with a professional, caring tone.",
	"es": "Responde siempre en español con un tono profesional y cercano.",
}

const defaultLanguage = "zh"

// Directive returns the language directive for code, defaulting when the
// code is not supported.
func Directive(code string) string {
	if d, ok := languageDirectives[code]; ok {
		return d
	}
	return languageDirectives[defaultLanguage]
}

// Assemble builds the final system prompt: language directive first,
// then the template with {{placeholder}} fields interpolated from the
// patient context. Unresolved placeholders are left verbatim so newer
// templates keep working against older callers.
func Assemble(template string, context map[string]string, language string) string {
	body := template
	for name, value := range context {
		body = strings.ReplaceAll(body, "{{"+name+"}}", value)
	}
	return Directive(language) + "\n\n" + body
}
