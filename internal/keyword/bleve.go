package keyword

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	bleveindex "github.com/blevesearch/bleve_index_api"
	"github.com/hyperjump/skfed/internal/models"
	"github.com/hyperjump/skfed/pkg/utils"
)

// document is what gets stored in Bleve for both events and announcements.
type document struct {
	Kind  string `json:"kind"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// BleveIndex implements Index using Bleve.
type BleveIndex struct {
	index      bleve.Index
	generation atomic.Uint64
}

// NewBleveIndex creates or opens a Bleve index at path.
// An existing index is reopened as-is; if the mapping changes in code, remove the
// directory and run reindex.
func NewBleveIndex(path string) (*BleveIndex, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) keeps names like "Basketball" intact.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("title", textFieldMapping)
	docMapping.AddFieldMappingsAt("body", textFieldMapping)
	docMapping.AddFieldMappingsAt("kind", bleve.NewKeywordFieldMapping())
	im.AddDocumentMapping("document", docMapping)
	im.DefaultType = "document"
	im.DefaultMapping = docMapping

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

func docID(kind, id string) string { return kind + ":" + id }

func eventDocument(ev *models.Event) document {
	return document{
		Kind:  KindEvent,
		Title: utils.CollapseWhitespace(ev.Title),
		Body:  joinNonEmpty(ev.Description, ev.Location, ev.Category),
	}
}

func announcementDocument(a *models.Announcement) document {
	return document{
		Kind:  KindAnnouncement,
		Title: utils.CollapseWhitespace(a.Title),
		Body:  joinNonEmpty(a.Content, a.Author),
	}
}

func joinNonEmpty(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = utils.CollapseWhitespace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}

// IndexEvent indexes or replaces an event.
func (b *BleveIndex) IndexEvent(ctx context.Context, ev *models.Event) error {
	if err := b.index.Index(docID(KindEvent, ev.ID), eventDocument(ev)); err != nil {
		return fmt.Errorf("failed to index event %s: %w", ev.ID, err)
	}
	b.generation.Add(1)
	return nil
}

// IndexAnnouncement indexes or replaces an announcement.
func (b *BleveIndex) IndexAnnouncement(ctx context.Context, a *models.Announcement) error {
	if err := b.index.Index(docID(KindAnnouncement, a.ID), announcementDocument(a)); err != nil {
		return fmt.Errorf("failed to index announcement %s: %w", a.ID, err)
	}
	b.generation.Add(1)
	return nil
}

// IndexBatch indexes events and announcements in a single Bleve batch.
func (b *BleveIndex) IndexBatch(ctx context.Context, events []models.Event, announcements []models.Announcement) error {
	batch := b.index.NewBatch()
	for i := range events {
		if err := batch.Index(docID(KindEvent, events[i].ID), eventDocument(&events[i])); err != nil {
			return fmt.Errorf("failed to batch event %s: %w", events[i].ID, err)
		}
	}
	for i := range announcements {
		if err := batch.Index(docID(KindAnnouncement, announcements[i].ID), announcementDocument(&announcements[i])); err != nil {
			return fmt.Errorf("failed to batch announcement %s: %w", announcements[i].ID, err)
		}
	}
	if batch.Size() == 0 {
		return nil
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("Bleve batch failed: %w", err)
	}
	b.generation.Add(1)
	return nil
}

// Search runs a match query over title and body restricted to kind.
// Title matches are boosted by opts.TitleBoost; opts.FuzzyEnabled swaps in per-term fuzzy queries.
func (b *BleveIndex) Search(ctx context.Context, kind, query string, limit int, opts *SearchOptions) ([]*Hit, error) {
	if strings.TrimSpace(query) == "" || limit <= 0 {
		return nil, nil
	}
	titleBoost := 1.0
	fuzzyEnabled := false
	fuzziness := 1
	if opts != nil {
		if opts.TitleBoost > 0 {
			titleBoost = opts.TitleBoost
		}
		fuzzyEnabled = opts.FuzzyEnabled
		if opts.Fuzziness > 0 {
			fuzziness = opts.Fuzziness
		}
	}

	var titleQuery, bodyQuery blevequery.Query
	if fuzzyEnabled {
		titleQuery = buildFuzzyQuery(query, fuzziness, "title", titleBoost)
		bodyQuery = buildFuzzyQuery(query, fuzziness, "body", 1.0)
	} else {
		tq := bleve.NewMatchQuery(query)
		tq.SetField("title")
		tq.SetBoost(titleBoost)
		titleQuery = tq
		bq := bleve.NewMatchQuery(query)
		bq.SetField("body")
		bodyQuery = bq
	}

	kindQuery := bleve.NewTermQuery(kind)
	kindQuery.SetField("kind")
	q := bleve.NewConjunctionQuery(kindQuery, bleve.NewDisjunctionQuery(titleQuery, bodyQuery))

	req := bleve.NewSearchRequest(q)
	req.Size = limit
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*Hit, 0, len(results.Hits))
	prefix := kind + ":"
	for _, hit := range results.Hits {
		out = append(out, &Hit{ID: strings.TrimPrefix(hit.ID, prefix), Score: hit.Score})
	}
	return out, nil
}

// tokenizeQuery splits query into lowercase terms, filtering out empty strings.
func tokenizeQuery(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// buildFuzzyQuery creates a disjunction of FuzzyQueries, one per query term, on field.
func buildFuzzyQuery(queryStr string, fuzziness int, field string, boost float64) blevequery.Query {
	terms := tokenizeQuery(queryStr)
	if len(terms) == 0 {
		mq := bleve.NewMatchQuery(queryStr)
		mq.SetField(field)
		mq.SetBoost(boost)
		return mq
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		fq.SetField(field)
		fq.SetBoost(boost)
		queries = append(queries, fq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// Delete removes a document from the index.
func (b *BleveIndex) Delete(ctx context.Context, kind, id string) error {
	if err := b.index.Delete(docID(kind, id)); err != nil {
		return err
	}
	b.generation.Add(1)
	return nil
}

// IDs returns the store IDs of all documents of kind.
func (b *BleveIndex) IDs(ctx context.Context, kind string) ([]string, error) {
	total, err := b.index.DocCount()
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, nil
	}
	kindQuery := bleve.NewTermQuery(kind)
	kindQuery.SetField("kind")
	req := bleve.NewSearchRequest(kindQuery)
	req.Size = int(total)
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve id listing failed: %w", err)
	}
	prefix := kind + ":"
	ids := make([]string, 0, len(results.Hits))
	for _, hit := range results.Hits {
		ids = append(ids, strings.TrimPrefix(hit.ID, prefix))
	}
	return ids, nil
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}

// DocCount returns the total number of documents in the index.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Generation is bumped on every write.
func (b *BleveIndex) Generation() uint64 {
	return b.generation.Load()
}

// Terms returns all unique title and body terms with their document frequency.
func (b *BleveIndex) Terms() (map[string]uint64, error) {
	terms := make(map[string]uint64)
	for _, field := range []string{"title", "body"} {
		dict, err := b.index.FieldDict(field)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s dictionary: %w", field, err)
		}
		if err := collectTerms(dict, terms); err != nil {
			_ = dict.Close()
			return nil, fmt.Errorf("failed to read %s dictionary: %w", field, err)
		}
		if err := dict.Close(); err != nil {
			return nil, fmt.Errorf("failed to close %s dictionary: %w", field, err)
		}
	}
	return terms, nil
}

// termDictionary is the subset of index.FieldDict that Terms consumes.
type termDictionary interface {
	Next() (*bleveindex.DictEntry, error)
}

// collectTerms drains dict into terms, keeping the highest count per term.
func collectTerms(dict termDictionary, terms map[string]uint64) error {
	for {
		entry, err := dict.Next()
		if err != nil {
			return err
		}
		if entry == nil {
			return nil
		}
		if entry.Count > terms[entry.Term] {
			terms[entry.Term] = entry.Count
		}
	}
}
