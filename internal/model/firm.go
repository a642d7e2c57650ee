package model

import (
	"time"
)

// Source identifies how a firm record entered the store.
type Source = string

const (
	SourceGemini Source = "Gemini"
	SourceClaude Source = "Claude"
	SourceUpload Source = "Upload"
)

// Placeholder is written into descriptive fields the generation service left blank.
const Placeholder = "N/A"

// Firm is one investment entity stored in the firms table.
type Firm struct {
	ID                 int64     `json:"id"`
	Website            string    `json:"website"`
	FirmName           string    `json:"firmName"`
	EntityType         string    `json:"entityType"`
	SubType            string    `json:"subType"`
	Address            string    `json:"address"`
	Country            string    `json:"country"`
	CompanyLinkedIn    string    `json:"companyLinkedIn"`
	About              string    `json:"about"`
	InvestmentStrategy string    `json:"investmentStrategy"`
	Sector             string    `json:"sector"`
	SectorDetails      string    `json:"sectorDetails"`
	Stage              string    `json:"stage"`
	Source             Source    `json:"source"`
	Validated          bool      `json:"validated"`
	Contacts           []Contact `json:"contacts"`
	ContactsSource     string    `json:"contactsSource,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`

	// DedupeKey is the normalized website, or the folded firm name when the
	// website is absent. It is never serialized to clients.
	DedupeKey string `json:"-"`

	Enrichment
}

// Enrichment holds the sparse firm-level enrichment columns.
type Enrichment struct {
	InvestmentPhilosophy  string     `json:"investmentPhilosophy,omitempty"`
	AssetsUnderManagement string     `json:"assetsUnderManagement,omitempty"`
	TypicalCheckSize      string     `json:"typicalCheckSize,omitempty"`
	PortfolioHighlights   []string   `json:"portfolioHighlights,omitempty"`
	NotableExits          []string   `json:"notableExits,omitempty"`
	RecentNews            []NewsItem `json:"recentNews,omitempty"`
}

// IsZero reports whether no enrichment field has been populated.
func (e Enrichment) IsZero() bool {
	return e.InvestmentPhilosophy == "" &&
		e.AssetsUnderManagement == "" &&
		e.TypicalCheckSize == "" &&
		len(e.PortfolioHighlights) == 0 &&
		len(e.NotableExits) == 0 &&
		len(e.RecentNews) == 0
}

// NewsItem is one recent headline about a firm.
type NewsItem struct {
	Date     string `json:"date"`
	Headline string `json:"headline"`
	Source   string `json:"source"`
	Link     string `json:"link"`
}

// FirmInput is the loosely-typed shape accepted from uploads and from the
// generation service before canonicalization.
type FirmInput struct {
	FirmName           string    `json:"firmName"`
	EntityType         string    `json:"entityType"`
	SubType            string    `json:"subType"`
	Address            string    `json:"address"`
	Country            string    `json:"country"`
	Website            string    `json:"website"`
	CompanyLinkedIn    string    `json:"companyLinkedIn"`
	About              string    `json:"about"`
	InvestmentStrategy string    `json:"investmentStrategy"`
	Sector             string    `json:"sector"`
	SectorDetails      string    `json:"sectorDetails"`
	Stage              string    `json:"stage"`
	Contacts           []Contact `json:"contacts"`
}
