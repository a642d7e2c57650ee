package canonical

import (
	"bytes"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/investor-cli/internal/apperr"
	"github.com/sells-group/investor-cli/internal/model"
	"github.com/sells-group/investor-cli/internal/prompt"
	"github.com/sells-group/investor-cli/internal/taxonomy"
)

// Defaults fill the classification and geography of generated firms that
// left those fields blank.
type Defaults struct {
	EntityType string
	SubType    string
	Sector     string
	Geo        string
	Source     model.Source
}

// Canonicalizer validates raw records for a fixed strictness.
type Canonicalizer struct {
	strictness prompt.Strictness
}

// New creates a Canonicalizer.
func New(s prompt.Strictness) *Canonicalizer {
	return &Canonicalizer{strictness: s}
}

// Candidates parses generation output into firm records. Elements without a
// firm name (or, under strict, without a website) are dropped; the batch only
// fails when the output holds no parseable array.
func (c *Canonicalizer) Candidates(text string, d Defaults) ([]model.Firm, error) {
	elems, err := ExtractArray(text)
	if err != nil {
		return nil, err
	}

	firms := make([]model.Firm, 0, len(elems))
	for i, raw := range elems {
		var in rawFirm
		if err := json.Unmarshal(raw, &in); err != nil {
			zap.L().Debug("canonical: skipping non-object element", zap.Int("index", i), zap.Error(err))
			continue
		}
		if strings.TrimSpace(string(in.FirmName)) == "" {
			zap.L().Debug("canonical: skipping element without firmName", zap.Int("index", i))
			continue
		}
		if c.strictness == prompt.Strict && IsPlaceholder(string(in.Website)) {
			zap.L().Debug("canonical: skipping element without website",
				zap.Int("index", i), zap.String("firm", string(in.FirmName)))
			continue
		}
		firms = append(firms, generated(in.input(), d))
	}
	return firms, nil
}

func generated(in model.FirmInput, d Defaults) model.Firm {
	cls := taxonomy.Normalize(taxonomy.Classification{
		EntityType: first(in.EntityType, d.EntityType),
		SubType:    first(in.SubType, d.SubType),
		Sector:     first(in.Sector, d.Sector),
		Stage:      in.Stage,
	})
	website := NormalizeWebsite(in.Website)
	name := strings.TrimSpace(in.FirmName)
	return model.Firm{
		Website:            website,
		FirmName:           name,
		EntityType:         cls.EntityType,
		SubType:            cls.SubType,
		Sector:             cls.Sector,
		Stage:              orPlaceholder(cls.Stage),
		Address:            orPlaceholder(in.Address),
		Country:            orPlaceholder(first(in.Country, d.Geo)),
		CompanyLinkedIn:    orPlaceholder(in.CompanyLinkedIn),
		About:              orPlaceholder(in.About),
		InvestmentStrategy: orPlaceholder(in.InvestmentStrategy),
		SectorDetails:      orPlaceholder(in.SectorDetails),
		Source:             d.Source,
		Contacts:           cleanContacts(in.Contacts),
		DedupeKey:          DedupeKey(website, name),
	}
}

// Upload canonicalizes an uploaded row. Uploaded rows are trusted: taxonomy
// is normalized but blank descriptive fields stay blank. The second return
// is false when the row has neither a website nor a firm name.
func Upload(in model.FirmInput) (model.Firm, bool) {
	website := NormalizeWebsite(in.Website)
	name := strings.TrimSpace(in.FirmName)
	key := DedupeKey(website, name)
	if key == "" {
		return model.Firm{}, false
	}
	cls := taxonomy.Normalize(taxonomy.Classification{
		EntityType: in.EntityType,
		SubType:    in.SubType,
		Sector:     in.Sector,
		Stage:      in.Stage,
	})
	return model.Firm{
		Website:            website,
		FirmName:           name,
		EntityType:         cls.EntityType,
		SubType:            cls.SubType,
		Sector:             cls.Sector,
		Stage:              cls.Stage,
		Address:            strings.TrimSpace(in.Address),
		Country:            strings.TrimSpace(in.Country),
		CompanyLinkedIn:    strings.TrimSpace(in.CompanyLinkedIn),
		About:              strings.TrimSpace(in.About),
		InvestmentStrategy: strings.TrimSpace(in.InvestmentStrategy),
		SectorDetails:      strings.TrimSpace(in.SectorDetails),
		Source:             model.SourceUpload,
		Validated:          true,
		Contacts:           cleanContacts(in.Contacts),
		DedupeKey:          key,
	}, true
}

// DecodeInput leniently decodes one uploaded firm object. Non-string scalars
// are kept as text and a malformed contacts value yields no contacts.
func DecodeInput(raw []byte) (model.FirmInput, error) {
	var r rawFirm
	if err := json.Unmarshal(raw, &r); err != nil {
		return model.FirmInput{}, apperr.Input("firm row is not a JSON object")
	}
	return r.input(), nil
}

// Contacts parses a contact-discovery array. Nameless and repeated entries
// are dropped; the result is never nil.
func Contacts(text string) ([]model.Contact, error) {
	elems, err := ExtractArray(text)
	if err != nil {
		return nil, err
	}
	out := make([]model.Contact, 0, len(elems))
	for _, raw := range elems {
		var rc rawContact
		if err := json.Unmarshal(raw, &rc); err != nil {
			continue
		}
		out = append(out, rc.contact())
	}
	return cleanContacts(out), nil
}

// ContactFields parses the single-object contact extraction output.
func ContactFields(text string) (model.Contact, error) {
	obj, err := ExtractObject(text)
	if err != nil {
		return model.Contact{}, err
	}
	var rc rawContact
	if err := json.Unmarshal(obj, &rc); err != nil {
		return model.Contact{}, apperr.Malformed(err, "generation output was not a contact object")
	}
	return rc.contact(), nil
}

// Enrichment parses firm-level enrichment output, capping list lengths at
// 3 portfolio companies, 2 exits and 3 news items.
func Enrichment(text string) (model.Enrichment, error) {
	obj, err := ExtractObject(text)
	if err != nil {
		return model.Enrichment{}, err
	}
	var re rawEnrichment
	if err := json.Unmarshal(obj, &re); err != nil {
		return model.Enrichment{}, apperr.Malformed(err, "generation output was not an enrichment object")
	}

	e := model.Enrichment{
		InvestmentPhilosophy:  strings.TrimSpace(string(re.InvestmentPhilosophy)),
		AssetsUnderManagement: strings.TrimSpace(string(re.AssetsUnderManagement)),
		TypicalCheckSize:      strings.TrimSpace(string(re.TypicalCheckSize)),
		PortfolioHighlights:   capStrings(re.PortfolioHighlights, 3),
		NotableExits:          capStrings(re.NotableExits, 2),
	}
	for _, n := range re.RecentNews {
		if len(e.RecentNews) == 3 {
			break
		}
		item := model.NewsItem{
			Date:     strings.TrimSpace(string(n.Date)),
			Headline: strings.TrimSpace(string(n.Headline)),
			Source:   strings.TrimSpace(string(n.Source)),
			Link:     strings.TrimSpace(string(n.Link)),
		}
		if item.Headline != "" {
			e.RecentNews = append(e.RecentNews, item)
		}
	}
	return e, nil
}

func cleanContacts(in []model.Contact) []model.Contact {
	return model.MergeContacts(nil, in)
}

func capStrings(in []looseString, n int) []string {
	out := make([]string, 0, n)
	for _, s := range in {
		if len(out) == n {
			break
		}
		if v := strings.TrimSpace(string(s)); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func first(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func orPlaceholder(v string) string {
	if s := strings.TrimSpace(v); s != "" {
		return s
	}
	return model.Placeholder
}

// looseString accepts strings, numbers, booleans and null.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*s = ""
	case len(b) > 0 && b[0] == '"':
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = looseString(v)
	case len(b) > 0 && (b[0] == '[' || b[0] == '{'):
		*s = ""
	default:
		*s = looseString(b)
	}
	return nil
}

// looseStrings accepts an array of scalars, a single scalar or null.
type looseStrings []looseString

func (l *looseStrings) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var items []looseString
		if err := json.Unmarshal(b, &items); err != nil {
			return err
		}
		*l = items
		return nil
	}
	var s looseString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	*l = nil
	if s != "" {
		*l = looseStrings{s}
	}
	return nil
}

// looseContacts decodes a contacts array, yielding nil for anything else.
type looseContacts []model.Contact

func (c *looseContacts) UnmarshalJSON(b []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(b, &raws); err != nil {
		*c = nil
		return nil
	}
	out := make([]model.Contact, 0, len(raws))
	for _, r := range raws {
		var rc rawContact
		if json.Unmarshal(r, &rc) == nil {
			out = append(out, rc.contact())
		}
	}
	*c = out
	return nil
}

type rawContact struct {
	ContactName   looseString `json:"contactName"`
	Designation   looseString `json:"designation"`
	Email         looseString `json:"email"`
	LinkedIn      looseString `json:"linkedIn"`
	ContactNumber looseString `json:"contactNumber"`
}

func (r rawContact) contact() model.Contact {
	return model.Contact{
		ContactName:   string(r.ContactName),
		Designation:   string(r.Designation),
		Email:         string(r.Email),
		LinkedIn:      string(r.LinkedIn),
		ContactNumber: string(r.ContactNumber),
	}.Trim()
}

type rawFirm struct {
	FirmName           looseString   `json:"firmName"`
	EntityType         looseString   `json:"entityType"`
	SubType            looseString   `json:"subType"`
	Address            looseString   `json:"address"`
	Country            looseString   `json:"country"`
	Website            looseString   `json:"website"`
	CompanyLinkedIn    looseString   `json:"companyLinkedIn"`
	About              looseString   `json:"about"`
	InvestmentStrategy looseString   `json:"investmentStrategy"`
	Sector             looseString   `json:"sector"`
	SectorDetails      looseString   `json:"sectorDetails"`
	Stage              looseString   `json:"stage"`
	Contacts           looseContacts `json:"contacts"`
}

func (r rawFirm) input() model.FirmInput {
	return model.FirmInput{
		FirmName:           string(r.FirmName),
		EntityType:         string(r.EntityType),
		SubType:            string(r.SubType),
		Address:            string(r.Address),
		Country:            string(r.Country),
		Website:            string(r.Website),
		CompanyLinkedIn:    string(r.CompanyLinkedIn),
		About:              string(r.About),
		InvestmentStrategy: string(r.InvestmentStrategy),
		Sector:             string(r.Sector),
		SectorDetails:      string(r.SectorDetails),
		Stage:              string(r.Stage),
		Contacts:           r.Contacts,
	}
}

type rawNews struct {
	Date     looseString `json:"date"`
	Headline looseString `json:"headline"`
	Source   looseString `json:"source"`
	Link     looseString `json:"link"`
}

// UnmarshalJSON reads a news object, or takes a bare string as the headline.
func (n *rawNews) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		type plain rawNews
		var p plain
		if err := json.Unmarshal(b, &p); err != nil {
			return err
		}
		*n = rawNews(p)
		return nil
	}
	*n = rawNews{}
	return n.Headline.UnmarshalJSON(b)
}

// looseNews accepts an array of news items, a single item or null.
type looseNews []rawNews

func (l *looseNews) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var items []rawNews
		if err := json.Unmarshal(b, &items); err != nil {
			return err
		}
		*l = items
		return nil
	}
	var n rawNews
	if err := n.UnmarshalJSON(b); err != nil {
		return err
	}
	*l = looseNews{n}
	return nil
}

type rawEnrichment struct {
	InvestmentPhilosophy  looseString  `json:"investmentPhilosophy"`
	AssetsUnderManagement looseString  `json:"assetsUnderManagement"`
	TypicalCheckSize      looseString  `json:"typicalCheckSize"`
	PortfolioHighlights   looseStrings `json:"portfolioHighlights"`
	NotableExits          looseStrings `json:"notableExits"`
	RecentNews            looseNews    `json:"recentNews"`
}
