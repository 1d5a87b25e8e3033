// Package snapshot converts stored and generated snapshot data to the
// canonical shape and merges fresh menus with the previous day's snapshot.
package snapshot

import (
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/pitrvalent-netizen/kam-ideme-na-obed/internal/menu"
)

const (
	defaultTipName = "Tip"
	defaultTipDish = "—"
	soupPrefix     = "Soup: "
)

// venueDefaults are used when neither the source config nor the previous
// snapshot says anything about a venue.
var venueDefaults = map[string]menu.MenuRecord{
	menu.VenueNdegust:  {PriceBand: menu.PriceUnder15},
	menu.VenueUMedveda: {PriceBand: menu.PriceUnder10},
}

// VenueDefault returns the fallback record of a venue with an empty menu.
func VenueDefault(venue string) menu.MenuRecord {
	rec, ok := venueDefaults[venue]
	if !ok {
		rec = menu.MenuRecord{PriceBand: menu.DefaultPriceBand}
	}
	rec.Menu = []string{}
	return rec
}

// Placeholder is the snapshot used when no previous data exists.
func Placeholder() menu.Snapshot {
	return menu.Snapshot{
		Ndegust:  VenueDefault(menu.VenueNdegust),
		UMedveda: VenueDefault(menu.VenueUMedveda),
		Tips:     []menu.Tip{},
	}
}

// Normalize converts one venue object in either known shape to a MenuRecord.
// Objects carrying a "menu" array are passed through; objects with separate
// "soup" and "main" fields become a menu of at most two lines.
func Normalize(raw map[string]any) menu.MenuRecord {
	rec := menu.MenuRecord{
		Menu:      []string{},
		PriceBand: priceBandField(raw, "priceBand"),
		SourceURL: stringField(raw, "sourceUrl"),
	}

	if items, ok := raw["menu"].([]any); ok {
		seen := make(map[string]struct{}, len(items))
		for _, item := range items {
			s, ok := item.(string)
			if !ok {
				continue
			}
			s = strings.TrimSpace(s)
			if _, dup := seen[s]; s == "" || dup {
				continue
			}
			seen[s] = struct{}{}
			rec.Menu = append(rec.Menu, s)
		}
		return rec
	}

	if soup := legacyField(raw, "soup"); soup != "" {
		rec.Menu = append(rec.Menu, soupPrefix+soup)
	}
	if main := legacyField(raw, "main"); main != "" && (len(rec.Menu) == 0 || rec.Menu[0] != main) {
		rec.Menu = append(rec.Menu, main)
	}
	return rec
}

// normalizeVenue is Normalize with the venue's own default price band in
// place of the global one.
func normalizeVenue(venue string, raw map[string]any) menu.MenuRecord {
	rec := Normalize(raw)
	if _, ok := menu.ParsePriceBand(stringField(raw, "priceBand")); !ok {
		rec.PriceBand = VenueDefault(venue).PriceBand
	}
	return rec
}

// NormalizeTip fills every missing tip field with its default.
func NormalizeTip(raw map[string]any) menu.Tip {
	tip := menu.Tip{
		Name:      stringField(raw, "name"),
		Dish:      stringField(raw, "dish"),
		PriceBand: priceBandField(raw, "priceBand"),
		URL:       stringField(raw, "url"),
	}
	if tip.Name == "" {
		tip.Name = defaultTipName
	}
	if tip.Dish == "" {
		tip.Dish = defaultTipDish
	}
	return tip
}

// ParseSnapshot decodes and normalizes a stored snapshot. It fails only when
// data is not a JSON object.
func ParseSnapshot(data []byte) (menu.Snapshot, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Placeholder(), errors.Wrap(err, "failed to decode snapshot")
	}
	if raw == nil {
		return Placeholder(), errors.New("snapshot is not a JSON object")
	}
	return NormalizeSnapshotMap(raw), nil
}

// NormalizeSnapshot is ParseSnapshot without the error: undecodable input
// gives the placeholder.
func NormalizeSnapshot(data []byte) menu.Snapshot {
	snap, _ := ParseSnapshot(data)
	return snap
}

// NormalizeSnapshotMap converts a decoded snapshot object.
func NormalizeSnapshotMap(raw map[string]any) menu.Snapshot {
	snap := Placeholder()
	snap.Date = stringField(raw, "date")

	for _, venue := range menu.Venues {
		if obj, ok := raw[venue].(map[string]any); ok {
			*snap.Venue(venue) = normalizeVenue(venue, obj)
		}
	}

	if tips, ok := raw["tips"].([]any); ok {
		for _, t := range tips {
			obj, _ := t.(map[string]any)
			snap.Tips = append(snap.Tips, NormalizeTip(obj))
		}
	}
	return snap
}

func stringField(raw map[string]any, key string) string {
	s, _ := raw[key].(string)
	return strings.TrimSpace(s)
}

func priceBandField(raw map[string]any, key string) menu.PriceBand {
	if p, ok := menu.ParsePriceBand(stringField(raw, key)); ok {
		return p
	}
	return menu.DefaultPriceBand
}

// legacyField reads soup/main, treating the "—" placeholder as absent.
func legacyField(raw map[string]any, key string) string {
	s := stringField(raw, key)
	switch s {
	case "—", "–", "-":
		return ""
	}
	return s
}
