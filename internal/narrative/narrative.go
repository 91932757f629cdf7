// internal/narrative/narrative.go
//
// Deterministic rendering of town events into single prose lines. The
// renderer is pure: the same event always yields the same line, so
// journals and live observers agree on the story.

package narrative

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/kgang/agenttown/internal/town"
)

// NameResolver maps a citizen id to a display name. Nil resolvers fall
// back to the raw id.
type NameResolver func(id town.CitizenID) string

// Renderer turns events into narration lines.
type Renderer struct {
	templates map[string]*template.Template
	fallback  *template.Template
	resolve   NameResolver
}

// lineContext is the data handed to every template.
type lineContext struct {
	Names       []string
	Cast        string
	Region      string
	Daypart     string
	Operation   string
	Note        string
	Topic       string
	OutcomeKind string
}

var operationLines = map[string]string{
	"greet":     "{{.Cast}} exchange greetings in the {{.Region}}{{with .Note}} ({{.}}){{end}}",
	"gossip":    "{{.Cast}} trade whispers{{with .Topic}} about {{.}}{{end}} in the {{.Region}}",
	"trade":     "{{.Cast}} strike a bargain in the {{.Region}}{{with .Note}}: {{.}}{{end}}",
	"dispute":   "{{.Cast}} argue in the {{.Region}}{{with .Note}} until {{.}}{{end}}",
	"celebrate": "{{.Cast}} raise a celebration in the {{.Region}}{{with .Note}}: {{.}}{{end}}",
	"teach":     "{{.Cast}} gather for a lesson in the {{.Region}}{{with .Note}}: {{.}}{{end}}",
	"solo":      "{{.Cast}} keeps to a solitary pursuit in the {{.Region}}{{with .Note}}: {{.}}{{end}}",
	"mourn":     "{{.Cast}} mourn together in the {{.Region}}{{with .Note}}: {{.}}{{end}}",
	"identity":  "{{.Cast}} pauses, unchanged, in the {{.Region}}",
	"trace":     "{{.Cast}} is observed in the {{.Region}}{{with .Note}} ({{.}}){{end}}",
}

const fallbackLine = "{{.Cast}} {{.Operation}} in the {{.Region}}{{with .Note}}: {{.}}{{end}}"

// NewRenderer builds a renderer. The resolver may be nil.
func NewRenderer(resolve NameResolver) (*Renderer, error) {
	r := &Renderer{
		templates: make(map[string]*template.Template, len(operationLines)),
		resolve:   resolve,
	}
	for op, text := range operationLines {
		tmpl, err := template.New(op).Parse(text)
		if err != nil {
			return nil, fmt.Errorf("narrative: parse %s template: %w", op, err)
		}
		r.templates[op] = tmpl
	}
	fb, err := template.New("fallback").Parse(fallbackLine)
	if err != nil {
		return nil, fmt.Errorf("narrative: parse fallback template: %w", err)
	}
	r.fallback = fb
	return r, nil
}

// Render produces the narration line for one event, prefixed with its
// daypart and region.
func (r *Renderer) Render(e town.Event) string {
	ctx := r.context(e)
	tmpl, ok := r.templates[e.Operation]
	if !ok {
		tmpl = r.fallback
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s · %s] ", ctx.Daypart, ctx.Region)
	if err := tmpl.Execute(&sb, ctx); err != nil {
		// Template data is ours; failure here means a broken template,
		// not broken input. Degrade to a flat line.
		return fmt.Sprintf("[%s · %s] %s: %s", ctx.Daypart, ctx.Region, e.Operation, e.Outcome.Note)
	}
	return sb.String()
}

func (r *Renderer) context(e town.Event) lineContext {
	names := make([]string, 0, len(e.Participants))
	for _, id := range e.Participants {
		names = append(names, r.name(id))
	}
	return lineContext{
		Names:       names,
		Cast:        joinCast(names),
		Region:      string(e.Region),
		Daypart:     string(e.Daypart),
		Operation:   e.Operation,
		Note:        e.Outcome.Note,
		Topic:       e.Outcome.Topic,
		OutcomeKind: e.Outcome.Kind,
	}
}

func (r *Renderer) name(id town.CitizenID) string {
	if r.resolve != nil {
		if name := r.resolve(id); name != "" {
			return name
		}
	}
	return string(id)
}

// joinCast renders a participant list as natural prose: "Mira",
// "Mira and Tobin", "Mira, Tobin and Wren".
func joinCast(names []string) string {
	switch len(names) {
	case 0:
		return "the town"
	case 1:
		return names[0]
	case 2:
		return names[0] + " and " + names[1]
	default:
		return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
	}
}
