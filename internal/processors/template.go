package processors

import (
	"context"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/compresr/context-engine/internal/message"
	"github.com/compresr/context-engine/internal/pipeline"
)

// =============================================================================
// INPUT TEMPLATE
// =============================================================================

var textPlaceholder = regexp.MustCompile(`\{\{\s*text\s*\}\}`)

// InputTemplate wraps the latest user message in a template. The template
// refers to the message as {{text}}.
type InputTemplate struct {
	Template string
}

// NewInputTemplate creates the template stage.
func NewInputTemplate(template string) *InputTemplate {
	return &InputTemplate{Template: template}
}

// Name implements pipeline.Stage.
func (p *InputTemplate) Name() string { return NameInputTemplate }

// Process implements pipeline.Stage.
func (p *InputTemplate) Process(_ context.Context, pc *pipeline.Context) (*pipeline.Context, error) {
	applied := false
	defer func() { pc.SetMeta("inputTemplateApplied", applied) }()

	if strings.TrimSpace(p.Template) == "" {
		return pc, nil
	}
	if !textPlaceholder.MatchString(p.Template) {
		log.Debug().Msg("processors: input template has no {{text}} placeholder, skipped")
		return pc, nil
	}
	idx := pipeline.FindLastUser(pc.Messages)
	if idx < 0 {
		return pc, nil
	}

	pc.Messages[idx].Content = pc.Messages[idx].Content.MapText(func(s string) string {
		return ApplyTemplate(p.Template, s)
	})
	applied = true
	return pc, nil
}

// ApplyTemplate substitutes text for every {{text}} in template.
func ApplyTemplate(template, text string) string {
	return textPlaceholder.ReplaceAllLiteralString(template, text)
}

// =============================================================================
// PLACEHOLDER VARIABLES
// =============================================================================

var variablePlaceholder = regexp.MustCompile(`\{\{\s*([\w.\-]+)\s*\}\}`)

// Generator produces the current value of a placeholder variable.
type Generator func() string

// PlaceholderVariables replaces {{name}} in every message with the output of
// the generator registered under name. Unknown names are left untouched.
type PlaceholderVariables struct {
	Generators map[string]Generator
}

// NewPlaceholderVariables creates the substitution stage.
func NewPlaceholderVariables(generators map[string]Generator) *PlaceholderVariables {
	return &PlaceholderVariables{Generators: generators}
}

// Name implements pipeline.Stage.
func (p *PlaceholderVariables) Name() string { return NamePlaceholderVariables }

// Process implements pipeline.Stage.
func (p *PlaceholderVariables) Process(_ context.Context, pc *pipeline.Context) (*pipeline.Context, error) {
	changed := 0
	if len(p.Generators) > 0 {
		// One value per variable per run.
		cache := make(map[string]string)
		replace := func(s string) string { return p.render(s, cache) }

		for i := range pc.Messages {
			before := pc.Messages[i].Content
			after := before.MapText(replace)
			if !sameText(before, after) {
				pc.Messages[i].Content = after
				changed++
			}
		}
	}

	pc.SetMeta("placeholderVariablesProcessed", changed)
	return pc, nil
}

// Render substitutes every known variable in s.
func (p *PlaceholderVariables) Render(s string) string {
	return p.render(s, make(map[string]string))
}

func (p *PlaceholderVariables) render(s string, cache map[string]string) string {
	if !strings.Contains(s, "{{") {
		return s
	}
	return variablePlaceholder.ReplaceAllStringFunc(s, func(match string) string {
		name := variablePlaceholder.FindStringSubmatch(match)[1]
		if v, ok := cache[name]; ok {
			return v
		}
		gen, ok := p.Generators[name]
		if !ok || gen == nil {
			return match
		}
		v := gen()
		cache[name] = v
		return v
	})
}

func sameText(a, b message.Content) bool {
	if a.IsParts() != b.IsParts() {
		return false
	}
	if !a.IsParts() {
		return a.Text == b.Text
	}
	for i := range a.Parts {
		if a.Parts[i].Text != b.Parts[i].Text {
			return false
		}
	}
	return true
}
