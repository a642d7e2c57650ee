// Package prompt renders the generation requests sent to the text model.
package prompt

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/rotisserie/eris"

	"github.com/sells-group/investor-cli/internal/apperr"
	"github.com/sells-group/investor-cli/internal/taxonomy"
)

// Strictness selects how many result-validation heuristics are applied.
type Strictness string

const (
	// Basic applies structural checks and duplicate rejection only.
	Basic Strictness = "basic"
	// Strict adds website-required, email-domain and LinkedIn slug checks.
	Strict Strictness = "strict"
)

// ParseStrictness maps a config value onto a Strictness, defaulting to Strict.
func ParseStrictness(s string) Strictness {
	if strings.EqualFold(strings.TrimSpace(s), string(Basic)) {
		return Basic
	}
	return Strict
}

// DefaultCount is the number of firms requested per query.
const DefaultCount = 5

// Query holds normalized find-investors parameters.
type Query struct {
	EntityType string
	SubType    string
	Sector     string
	Geo        string
	Count      int
}

// ContactQuery holds the inputs for a single-contact enrichment prompt.
type ContactQuery struct {
	Name        string
	Designation string
	FirmName    string
	Domain      string
	Evidence    []string
}

// Builder renders prompts for a fixed strictness.
type Builder struct {
	strictness Strictness
}

// NewBuilder creates a Builder.
func NewBuilder(s Strictness) *Builder {
	return &Builder{strictness: s}
}

// Strictness returns the builder's strictness.
func (b *Builder) Strictness() Strictness {
	return b.strictness
}

// FindInvestors renders the firm-discovery prompt. Geo is required.
func (b *Builder) FindInvestors(q Query) (string, error) {
	if strings.TrimSpace(q.Geo) == "" {
		return "", apperr.Input("geo is required")
	}
	if q.Count <= 0 {
		q.Count = DefaultCount
	}
	return render(findInvestorsTmpl, map[string]any{
		"Q":           q,
		"Strict":      b.strictness == Strict,
		"EntityTypes": taxonomy.EntityTypes(),
		"SubTypes":    taxonomy.SubTypes(q.EntityType),
		"Sectors":     taxonomy.Sectors(),
		"Stages":      taxonomy.Stages(),
	})
}

// FindContacts renders the contact-discovery prompt for a firm.
func (b *Builder) FindContacts(firmName, website string, n int) (string, error) {
	if strings.TrimSpace(firmName) == "" {
		return "", apperr.Input("firm name is required")
	}
	if n <= 0 {
		n = 2
	}
	return render(findContactsTmpl, map[string]any{
		"FirmName": firmName,
		"Website":  website,
		"N":        n,
		"Strict":   b.strictness == Strict,
	})
}

// EnrichContact renders the evidence-constrained contact extraction prompt.
func (b *Builder) EnrichContact(q ContactQuery) (string, error) {
	if strings.TrimSpace(q.Name) == "" {
		return "", apperr.Input("contact name is required")
	}
	return render(enrichContactTmpl, map[string]any{
		"Q":      q,
		"Strict": b.strictness == Strict && q.Domain != "",
	})
}

// EnrichFirm renders the firm-level enrichment prompt.
func (b *Builder) EnrichFirm(firmName, website string) (string, error) {
	if strings.TrimSpace(firmName) == "" {
		return "", apperr.Input("firm name is required")
	}
	return render(enrichFirmTmpl, map[string]any{
		"FirmName": firmName,
		"Website":  website,
	})
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", eris.Wrapf(err, "prompt: render %s", t.Name())
	}
	return strings.TrimSpace(buf.String()), nil
}

var funcs = template.FuncMap{
	"join": strings.Join,
}

var findInvestorsTmpl = template.Must(template.New("find_investors").Funcs(funcs).Parse(`
You are an expert LP/GP data analyst working for an investment-intelligence platform.

TASK
Find {{.Q.Count}} real firms that match:
- entityType  : "{{.Q.EntityType}}"
- subType     : "{{.Q.SubType}}"
- sectorFocus : "{{.Q.Sector}}"
- geography   : "{{.Q.Geo}}"

ALLOWED VALUES
- entityType: {{join .EntityTypes ", "}}
- subType: {{join .SubTypes ", "}}
- sector: {{join .Sectors ", "}}
- stage: {{join .Stages ", "}}

OUTPUT
Return ONLY a JSON array of exactly {{.Q.Count}} objects with exactly these fields:
[
  {"firmName":"","entityType":"","subType":"","address":"","country":"",
   "website":"","companyLinkedIn":"","about":"","investmentStrategy":"",
   "sector":"","sectorDetails":"","stage":"","contacts":[]}
]

RULES
- Use only the allowed values for entityType, subType, sector and stage.
- Never use placeholder values such as "example.com", "John Doe" or "TBD"; leave a field "" when unknown.
- Do not add fields that are not in the schema.
{{- if .Strict}}
- Every firm must have its official website; skip firms whose website you cannot confirm.
- contacts must only list people publicly associated with the firm, each as {"contactName":"","designation":"","email":"","linkedIn":"","contactNumber":""}.
{{- end}}
`))

var findContactsTmpl = template.Must(template.New("find_contacts").Funcs(funcs).Parse(`
You are a lead generation specialist. Find up to {{.N}} key decision-makers at "{{.FirmName}}"{{if .Website}} (website "{{.Website}}"){{end}}.

PROCESS
1. Use the firm's "Team", "Leadership" or "About Us" pages.
2. Cross-check roles against public professional profiles.

OUTPUT
Return ONLY a JSON array of up to {{.N}} objects:
[
  {"contactName":"","designation":"","email":"","linkedIn":"","contactNumber":""}
]

RULES
- Leave a field "" rather than guess.
{{- if .Strict}}
- linkedIn must start with https://www.linkedin.com/in/.
{{- if .Website}}
- email must use the firm's own domain.
{{- end}}
{{- end}}
`))

var enrichContactTmpl = template.Must(template.New("enrich_contact").Funcs(funcs).Parse(`
You are an expert contact-data researcher.

PERSON
"{{.Q.Name}}"{{if .Q.Designation}}, {{.Q.Designation}}{{end}} at "{{.Q.FirmName}}"

EVIDENCE
{{- if .Q.Evidence}}
{{join .Q.Evidence "\n"}}
{{- else}}
(none)
{{- end}}

TASK
Return a minified JSON object: {"email":"","linkedIn":"","contactNumber":""}

RULES
- linkedIn: only if the evidence shows the profile belongs to "{{.Q.Name}}" at "{{.Q.FirmName}}". URL must start https://www.linkedin.com/in/.
{{- if .Strict}}
- email: must end "@{{.Q.Domain}}". Supply it only if explicitly present in the evidence; never guess.
{{- else}}
- email: supply it only if explicitly present in the evidence; never guess.
{{- end}}
- contactNumber: only if clearly tied to the person in the evidence.
- If uncertain, leave the field "".
- No commentary. Output exactly one JSON object on one line.
`))

var enrichFirmTmpl = template.Must(template.New("enrich_firm").Funcs(funcs).Parse(`
You are a sharp financial analyst. For the investment firm "{{.FirmName}}"{{if .Website}} with the website "{{.Website}}"{{end}}, return a single JSON object:

{
  "investmentPhilosophy": "",
  "assetsUnderManagement": "",
  "typicalCheckSize": "",
  "portfolioHighlights": [],
  "notableExits": [],
  "recentNews": [{"date":"","headline":"","source":"","link":""}]
}

RULES
1. investmentPhilosophy: the firm's thesis in 1-2 sentences.
2. assetsUnderManagement: e.g. "$500M". If not found, "Not publicly disclosed".
3. typicalCheckSize: e.g. "$1M - $5M". If not found, "Not disclosed".
4. portfolioHighlights: up to 3 notable current portfolio companies.
5. notableExits: up to 2 notable exits, or [].
6. recentNews: up to 3 items from the last 12 months, or [].
Output only the raw JSON object, no markdown.
`))
