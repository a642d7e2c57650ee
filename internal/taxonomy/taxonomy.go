// Package taxonomy maps free-text investor classifications onto the closed
// vocabularies used throughout the store.
package taxonomy

import (
	_ "embed"
	"strings"

	"gopkg.in/yaml.v3"
)

// Canonical fallbacks.
const (
	EntityLP     = "LP"
	EntityGP     = "GP"
	EntityBroker = "Broker"
	EntityOther  = "Other"

	SubTypeOther   = "Other"
	SectorAgnostic = "Sector Agnostic"
)

//go:embed vocabulary.yaml
var vocabularyYAML []byte

// Synonym maps a lowercase substring onto a canonical label.
type Synonym struct {
	Key   string `yaml:"key"`
	Label string `yaml:"label"`
}

// Vocabulary is the full controlled vocabulary.
type Vocabulary struct {
	EntityTypes []string  `yaml:"entity_types"`
	LPSubTypes  []Synonym `yaml:"lp_sub_types"`
	GPSubTypes  []Synonym `yaml:"gp_sub_types"`
	Sectors     []Synonym `yaml:"sectors"`
	Stages      []Synonym `yaml:"stages"`
}

var vocab = mustParse(vocabularyYAML)

func mustParse(data []byte) *Vocabulary {
	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		panic("taxonomy: parse embedded vocabulary: " + err.Error())
	}
	return &v
}

// Classification is the set of taxonomy fields carried by a firm.
type Classification struct {
	EntityType string
	SubType    string
	Sector     string
	Stage      string
}

// Normalize canonicalizes every field of c. It never fails: unresolvable
// input falls back to LP / Other / Sector Agnostic, and an unmatched stage
// keeps its trimmed free text.
func Normalize(c Classification) Classification {
	et := EntityType(c.EntityType)
	return Classification{
		EntityType: et,
		SubType:    SubType(et, c.SubType),
		Sector:     Sector(c.Sector),
		Stage:      Stage(c.Stage),
	}
}

// EntityType resolves raw by case-insensitive exact match, defaulting to LP.
func EntityType(raw string) string {
	lower := strings.ToLower(strings.TrimSpace(raw))
	for _, t := range vocab.EntityTypes {
		if strings.ToLower(t) == lower {
			return t
		}
	}
	return EntityLP
}

// SubType resolves raw against the vocabulary of entityType, which must
// already be canonical. Broker and Other always resolve to Other.
func SubType(entityType, raw string) string {
	table := subTypeTable(entityType)
	if table == nil {
		return SubTypeOther
	}
	if label, ok := match(raw, table, labels(table, SubTypeOther)); ok {
		return label
	}
	return SubTypeOther
}

// Sector resolves raw against the sector vocabulary, defaulting to Sector Agnostic.
func Sector(raw string) string {
	if label, ok := match(raw, vocab.Sectors, labels(vocab.Sectors)); ok {
		return label
	}
	return SectorAgnostic
}

// Stage resolves raw against the stage vocabulary when possible.
func Stage(raw string) string {
	if label, ok := match(raw, vocab.Stages, labels(vocab.Stages)); ok {
		return label
	}
	return strings.TrimSpace(raw)
}

// EntityTypes returns the canonical entity types.
func EntityTypes() []string {
	return append([]string(nil), vocab.EntityTypes...)
}

// SubTypes returns the canonical sub-types allowed for entityType, always
// ending with Other.
func SubTypes(entityType string) []string {
	return labels(subTypeTable(entityType), SubTypeOther)
}

// Sectors returns the canonical sectors.
func Sectors() []string {
	return labels(vocab.Sectors)
}

// Stages returns the canonical stage labels.
func Stages() []string {
	return labels(vocab.Stages)
}

func subTypeTable(entityType string) []Synonym {
	switch entityType {
	case EntityLP:
		return vocab.LPSubTypes
	case EntityGP:
		return vocab.GPSubTypes
	default:
		return nil
	}
}

// match resolves raw to a label. An exact (case-insensitive) canonical label
// wins outright; otherwise the longest synonym key contained in raw wins,
// with table order breaking ties.
func match(raw string, table []Synonym, canonical []string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(raw))
	if lower == "" {
		return "", false
	}
	for _, l := range canonical {
		if strings.ToLower(l) == lower {
			return l, true
		}
	}

	best := -1
	for i, s := range table {
		if !strings.Contains(lower, s.Key) {
			continue
		}
		if best < 0 || len(s.Key) > len(table[best].Key) {
			best = i
		}
	}
	if best < 0 {
		return "", false
	}
	return table[best].Label, true
}

// labels returns the distinct labels of table in order, followed by extra.
func labels(table []Synonym, extra ...string) []string {
	seen := make(map[string]bool, len(table)+len(extra))
	out := make([]string, 0, len(table)+len(extra))
	for _, s := range table {
		if !seen[s.Label] {
			seen[s.Label] = true
			out = append(out, s.Label)
		}
	}
	for _, e := range extra {
		if !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}
	return out
}
