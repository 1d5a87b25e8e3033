package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/pitrvalent-netizen/kam-ideme-na-obed/internal/menu"
)

// DateLayout is the format of Snapshot.Date.
const DateLayout = "2006-01-02"

// MenuSource extracts one venue's menu. Implementations never fail; an
// unusable page is reported as an empty result with a trace.
type MenuSource interface {
	Extract(ctx context.Context, src menu.SourceConfig) menu.ExtractionResult
}

// MenuSourceFunc adapts a function to MenuSource.
type MenuSourceFunc func(ctx context.Context, src menu.SourceConfig) menu.ExtractionResult

func (f MenuSourceFunc) Extract(ctx context.Context, src menu.SourceConfig) menu.ExtractionResult {
	return f(ctx, src)
}

// TraceFunc receives the extraction trace of each venue.
type TraceFunc func(venue, trace string)

// Assembler builds today's snapshot from fresh extractions and the previous
// snapshot.
type Assembler struct {
	Source MenuSource
	// Concurrency bounds parallel venue extractions. Zero means unbounded.
	Concurrency int
	// Now defaults to time.Now.
	Now     func() time.Time
	OnTrace TraceFunc
}

// Assemble extracts every configured venue and merges the results into a new
// snapshot. A venue without fresh items keeps its previous menu. Tips are
// carried over unchanged.
func (a *Assembler) Assemble(ctx context.Context, sources map[string]menu.SourceConfig, previous menu.Snapshot) menu.Snapshot {
	results := make([]menu.ExtractionResult, len(menu.Venues))

	var g errgroup.Group
	if a.Concurrency > 0 {
		g.SetLimit(a.Concurrency)
	}
	for i, venue := range menu.Venues {
		src, ok := sources[venue]
		if !ok {
			results[i] = menu.ExtractionResult{Items: []string{}, Trace: "source: not configured"}
			continue
		}
		g.Go(func() error {
			results[i] = a.extract(ctx, venue, src)
			return nil
		})
	}
	_ = g.Wait()

	out := menu.Snapshot{
		Date: a.Today(),
		Tips: cloneTips(previous.Tips),
	}
	for i, venue := range menu.Venues {
		src, hasSrc := sources[venue]
		fresh := menu.MenuRecord{Menu: results[i].Items}
		*out.Venue(venue) = mergeVenue(venue, srcPtr(src, hasSrc), fresh, *previous.Venue(venue))

		if a.OnTrace != nil {
			a.OnTrace(venue, results[i].Trace)
		}
		log.Info().Str("venue", venue).Int("items", len(results[i].Items)).
			Bool("stale", len(results[i].Items) == 0).Msg("venue assembled")
	}
	return out
}

// Merge combines a generated snapshot with the previous one using the same
// stale-over-empty policy as Assemble. Fresh tips replace the previous ones
// only when there are any.
func (a *Assembler) Merge(fresh menu.Snapshot, sources map[string]menu.SourceConfig, previous menu.Snapshot) menu.Snapshot {
	out := menu.Snapshot{Date: a.Today(), Tips: cloneTips(previous.Tips)}
	if len(fresh.Tips) > 0 {
		out.Tips = cloneTips(fresh.Tips)
	}
	for _, venue := range menu.Venues {
		src, hasSrc := sources[venue]
		*out.Venue(venue) = mergeVenue(venue, srcPtr(src, hasSrc), *fresh.Venue(venue), *previous.Venue(venue))
	}
	return out
}

// Fallback returns previous stamped with today's date, for runs that
// produced nothing at all.
func (a *Assembler) Fallback(previous menu.Snapshot) menu.Snapshot {
	return a.Merge(menu.Snapshot{}, nil, previous)
}

func (a *Assembler) extract(ctx context.Context, venue string, src menu.SourceConfig) (result menu.ExtractionResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("venue", venue).Interface("panic", r).Msg("extraction panicked")
			result = menu.ExtractionResult{Items: []string{}, Trace: fmt.Sprintf("panic: %v", r)}
		}
	}()
	if a.Source == nil {
		return menu.ExtractionResult{Items: []string{}, Trace: "source: no extractor"}
	}
	result = a.Source.Extract(ctx, src)
	if result.Items == nil {
		result.Items = []string{}
	}
	return result
}

// Today is the run date in UTC.
func (a *Assembler) Today() string {
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	return now().UTC().Format(DateLayout)
}

// mergeVenue picks the menu from fresh when it has items and from previous
// otherwise. Price band and URL come from the source config, then fresh, then
// previous, then the venue default.
func mergeVenue(venue string, src *menu.SourceConfig, fresh, previous menu.MenuRecord) menu.MenuRecord {
	def := VenueDefault(venue)
	rec := menu.MenuRecord{Menu: cloneLines(previous.Menu)}
	if len(fresh.Menu) > 0 {
		rec.Menu = cloneLines(fresh.Menu)
	}

	var cfgBand menu.PriceBand
	var cfgURL string
	if src != nil {
		cfgBand, cfgURL = src.PriceBand, src.URL
	}
	rec.PriceBand = firstBand(cfgBand, fresh.PriceBand, previous.PriceBand, def.PriceBand)
	rec.SourceURL = firstString(cfgURL, fresh.SourceURL, previous.SourceURL, def.SourceURL)
	return rec
}

func firstBand(bands ...menu.PriceBand) menu.PriceBand {
	for _, b := range bands {
		if b.Valid() {
			return b
		}
	}
	return menu.DefaultPriceBand
}

func firstString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func srcPtr(src menu.SourceConfig, ok bool) *menu.SourceConfig {
	if !ok {
		return nil
	}
	return &src
}

func cloneLines(lines []string) []string {
	return append([]string{}, lines...)
}

func cloneTips(tips []menu.Tip) []menu.Tip {
	return append([]menu.Tip{}, tips...)
}
