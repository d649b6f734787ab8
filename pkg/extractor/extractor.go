// Package extractor turns decoded favorites exchanges into a deduplicated
// item collection.
package extractor

import (
	"iter"

	"dyfav/pkg/aweme"
	errs "dyfav/pkg/errors"
	"dyfav/pkg/har"
	"dyfav/pkg/logger"
)

// Collection is the ordered set of unique items from one capture. Item ids
// are unique and items appear in first-seen order.
type Collection struct {
	Items []aweme.Item
}

// Len returns the number of items
func (c Collection) Len() int {
	return len(c.Items)
}

// IDs returns the item ids in order
func (c Collection) IDs() []string {
	ids := make([]string, len(c.Items))
	for i, it := range c.Items {
		ids[i] = it.ID
	}
	return ids
}

// PageInfo is the pagination state reported by one parsed response.
// It is kept for diagnostics only.
type PageInfo struct {
	Index     int
	Items     int
	HasMore   bool
	MaxCursor int64
	MinCursor int64
}

// Stats summarizes one extraction
type Stats struct {
	// Decoder counters
	Scanned      int
	Matched      int
	NonOK        int
	Empty        int
	DecodeFailed int

	Parsed      int
	WithoutData int
	ParseFailed int
	RawItems    int
	MissingID   int
	Malformed   int
	Duplicates  int
	Unique      int
	Pages       []PageInfo
}

// Extract consumes exchanges, parses each body as a favorites page and
// returns the deduplicated collection. The first occurrence of an id wins.
// No single bad exchange, page or item aborts the extraction.
func Extract(exchanges iter.Seq[har.Exchange], log logger.Logger) (Collection, Stats) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	var (
		stats Stats
		coll  Collection
		seen  = make(map[string]struct{})
	)

	for ex := range exchanges {
		page, err := aweme.ParsePage(ex.Body)
		if err != nil {
			stats.ParseFailed++
			log.WithError(errs.Wrap(errs.ErrorTypeParse, err, "invalid page body")).
				WarnWithFields("Skipping unparseable response", map[string]interface{}{
					"entry": ex.Index,
				})
			continue
		}
		stats.Parsed++

		if !page.HasData() {
			stats.WithoutData++
			log.DebugWithFields("Response has no aweme_list", map[string]interface{}{
				"entry":       ex.Index,
				"status_code": page.StatusCode,
			})
			continue
		}

		stats.Pages = append(stats.Pages, PageInfo{
			Index:     ex.Index,
			Items:     len(page.AwemeList),
			HasMore:   page.More(),
			MaxCursor: page.MaxCursor,
			MinCursor: page.MinCursor,
		})

		for _, raw := range page.AwemeList {
			stats.RawItems++
			item, err := aweme.Decode(raw)
			if err != nil {
				if errs.Is(err, errs.ErrorTypeMissingField) {
					stats.MissingID++
				} else {
					stats.Malformed++
				}
				log.WithError(err).DebugWithFields("Dropping item", map[string]interface{}{
					"entry": ex.Index,
				})
				continue
			}

			if _, dup := seen[item.ID]; dup {
				stats.Duplicates++
				continue
			}
			seen[item.ID] = struct{}{}
			coll.Items = append(coll.Items, item)
		}
	}

	stats.Unique = len(coll.Items)
	return coll, stats
}

// FromDocument extracts the collection from exchanges of doc that match
// endpoint and merges the decoder counters into the returned stats.
func FromDocument(doc *har.Document, endpoint string, log logger.Logger) (Collection, Stats) {
	seq, dstats := doc.Exchanges(endpoint)
	coll, stats := Extract(seq, log)

	stats.Scanned = dstats.Total
	stats.Matched = dstats.Matched
	stats.NonOK = dstats.NonOK
	stats.Empty = dstats.Empty
	stats.DecodeFailed = dstats.DecodeFailed

	if log != nil {
		for _, err := range dstats.Errors {
			log.WithError(err).Warn("Skipping undecodable response")
		}
	}
	return coll, stats
}

// FromFile loads the capture at path and extracts its collection
func FromFile(path, endpoint string, log logger.Logger) (Collection, Stats, error) {
	doc, err := har.Load(path)
	if err != nil {
		return Collection{}, Stats{}, err
	}
	coll, stats := FromDocument(doc, endpoint, log)
	return coll, stats, nil
}
