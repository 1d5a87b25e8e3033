// Package menu holds the data model shared by the extraction pipeline and the
// snapshot assembler.
package menu

import "strings"

type PriceBand string

const (
	PriceUnder10 PriceBand = "UNDER_10"
	PriceUnder15 PriceBand = "UNDER_15"
	PriceOver20  PriceBand = "OVER_20"
)

// DefaultPriceBand is used wherever a record carries no usable price band.
const DefaultPriceBand = PriceUnder10

// Valid reports whether p is one of the known bands.
func (p PriceBand) Valid() bool {
	switch p {
	case PriceUnder10, PriceUnder15, PriceOver20:
		return true
	}
	return false
}

// ParsePriceBand maps s to a known band, case-insensitively.
func ParsePriceBand(s string) (PriceBand, bool) {
	p := PriceBand(strings.ToUpper(strings.TrimSpace(s)))
	return p, p.Valid()
}

// Fixed venue identifiers. They double as JSON keys of the snapshot.
const (
	VenueNdegust  = "ndegust"
	VenueUMedveda = "umedveda"
)

// Venues lists the fixed venues in output order.
var Venues = []string{VenueNdegust, VenueUMedveda}

// SourceConfig describes where and how to scrape one venue's menu.
type SourceConfig struct {
	URL            string
	Container      string
	Selectors      []string
	BlockSelectors []string
	PriceBand      PriceBand
	RenderJS       bool
}

type MenuRecord struct {
	Menu      []string  `json:"menu"`
	PriceBand PriceBand `json:"priceBand"`
	SourceURL string    `json:"sourceUrl"`
}

type Tip struct {
	Name      string    `json:"name"`
	Dish      string    `json:"dish"`
	PriceBand PriceBand `json:"priceBand"`
	URL       string    `json:"url"`
}

// Snapshot is the document consumed by the website.
type Snapshot struct {
	Date     string     `json:"date"`
	Ndegust  MenuRecord `json:"ndegust"`
	UMedveda MenuRecord `json:"umedveda"`
	Tips     []Tip      `json:"tips"`
}

// Venue returns a pointer to the record stored under name, or nil for an
// unknown venue.
func (s *Snapshot) Venue(name string) *MenuRecord {
	switch name {
	case VenueNdegust:
		return &s.Ndegust
	case VenueUMedveda:
		return &s.UMedveda
	}
	return nil
}

// ExtractionResult is the outcome of scraping one venue. Trace is for
// operators only and is never persisted as menu data.
type ExtractionResult struct {
	Items []string
	Trace string
}
