package search

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/partsdesk/importer/internal/domain"
	"github.com/partsdesk/importer/internal/repository"
)

// DefaultBatchSize is how many documents stream into the index per
// request during a rebuild.
const DefaultBatchSize = 1000

// Synchronizer keeps the search index consistent with the store.
//
// Full rebuilds are blue-green: documents stream into a fresh
// timestamped collection while queries keep hitting the old one through
// the alias, and the alias only repoints once the new collection is
// fully populated. A rebuild that fails partway leaves the previously
// aliased collection untouched and authoritative.
type Synchronizer struct {
	engine    Engine
	products  repository.ProductRepository
	alias     string
	batchSize int
	log       *logrus.Logger
	now       func() time.Time
}

// NewSynchronizer creates a synchronizer serving the given alias.
func NewSynchronizer(engine Engine, products repository.ProductRepository, alias string, log *logrus.Logger) *Synchronizer {
	if alias == "" {
		alias = "parts"
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Synchronizer{
		engine:    engine,
		products:  products,
		alias:     alias,
		batchSize: DefaultBatchSize,
		log:       log,
		now:       time.Now,
	}
}

// Rebuild builds a fresh collection from the full catalog and atomically
// cuts the alias over to it. The old collection is deleted only after
// the repoint succeeds.
func (s *Synchronizer) Rebuild(ctx context.Context) error {
	previous, err := s.engine.CurrentCollection(ctx, s.alias)
	if err != nil {
		// Missing alias is expected on first run; queries have nothing
		// to lose, so proceed with an empty previous.
		s.log.WithError(err).Debug("no current collection behind alias")
		previous = ""
	}

	name := fmt.Sprintf("%s_%s", s.alias, s.now().UTC().Format("20060102150405"))
	if err := s.engine.CreateCollection(ctx, name); err != nil {
		return fmt.Errorf("failed to create collection %s: %w", name, err)
	}

	total := 0
	offset := 0
	for {
		views, err := s.products.ListSearchViews(ctx, s.batchSize, offset)
		if err != nil {
			s.abandon(name)
			return fmt.Errorf("failed to load catalog batch at offset %d: %w", offset, err)
		}
		if len(views) == 0 {
			break
		}
		if err := s.engine.UpsertDocuments(ctx, name, documents(views)); err != nil {
			s.abandon(name)
			return fmt.Errorf("failed to index batch at offset %d: %w", offset, err)
		}
		total += len(views)
		offset += len(views)
		if len(views) < s.batchSize {
			break
		}
	}

	if err := s.engine.RepointAlias(ctx, s.alias, name); err != nil {
		s.abandon(name)
		return fmt.Errorf("failed to repoint alias %s: %w", s.alias, err)
	}

	if previous != "" && previous != name {
		if err := s.engine.DeleteCollection(ctx, previous); err != nil {
			s.log.WithField("collection", previous).WithError(err).Warn("failed to delete replaced collection")
		}
	}

	s.log.WithFields(logrus.Fields{
		"collection": name,
		"documents":  total,
	}).Info("search index rebuilt")
	return nil
}

// UpdateParts refreshes the documents for the given part numbers in the
// currently aliased collection. Unknown part numbers are skipped.
func (s *Synchronizer) UpdateParts(ctx context.Context, partNumbers []string) error {
	if len(partNumbers) == 0 {
		return nil
	}

	views, err := s.products.SearchViewsByPartNumbers(ctx, partNumbers)
	if err != nil {
		return fmt.Errorf("failed to load parts for index update: %w", err)
	}
	if len(views) == 0 {
		return nil
	}

	docs := documents(views)
	for start := 0; start < len(docs); start += s.batchSize {
		end := start + s.batchSize
		if end > len(docs) {
			end = len(docs)
		}
		if err := s.engine.UpsertDocuments(ctx, s.alias, docs[start:end]); err != nil {
			return fmt.Errorf("failed to update index documents: %w", err)
		}
	}

	s.log.WithField("documents", len(docs)).Debug("search index updated incrementally")
	return nil
}

// abandon deletes a half-built collection after a failed rebuild. The
// alias still points at the old collection, so this is cleanup only.
func (s *Synchronizer) abandon(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.engine.DeleteCollection(ctx, name); err != nil {
		s.log.WithField("collection", name).WithError(err).Warn("failed to clean up abandoned collection")
	}
}

func documents(views []domain.ProductSearchView) []map[string]any {
	docs := make([]map[string]any, 0, len(views))
	for _, v := range views {
		doc := map[string]any{
			"id":          v.PartNumber,
			"partNumber":  v.PartNumber,
			"description": v.Description,
		}
		if v.Brand != "" {
			doc["brand"] = v.Brand
		}
		if v.DealerPrice != nil {
			doc["dealerPrice"] = *v.DealerPrice
		}
		if v.RetailPrice != nil {
			doc["retailPrice"] = *v.RetailPrice
		}
		if v.StockQuantity != nil {
			doc["stockQuantity"] = *v.StockQuantity
		}
		if v.SupersededBy != nil {
			doc["supersededBy"] = *v.SupersededBy
		}
		if v.BackorderedUnits != nil {
			doc["backorderedUnits"] = *v.BackorderedUnits
		}
		docs = append(docs, doc)
	}
	return docs
}
