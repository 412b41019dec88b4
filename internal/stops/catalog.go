package stops

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"fleetline/internal/docstore"
	"fleetline/internal/domain"
)

// Catalog owns stop documents. Stops referenced by routes are treated
// as immutable by convention; the catalog itself does not track back
// references.
type Catalog struct {
	db     docstore.Store
	logger *slog.Logger
}

func NewCatalog(db docstore.Store, logger *slog.Logger) *Catalog {
	return &Catalog{db: db, logger: logger.With("component", "stop_catalog")}
}

func (c *Catalog) Put(ctx context.Context, stop domain.Stop) error {
	if stop.ID == "" {
		return fmt.Errorf("stop id: %w", domain.ErrValidation)
	}
	if stop.Name == "" {
		stop.Name = stop.ID
	}
	return c.db.Set(ctx, docstore.CollectionStops, stop.ID, stop, docstore.Overwrite)
}

func (c *Catalog) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("stop id: %w", domain.ErrValidation)
	}
	return c.db.Delete(ctx, docstore.CollectionStops, id)
}

func (c *Catalog) Get(ctx context.Context, id string) (domain.Stop, error) {
	raw, err := c.db.Get(ctx, docstore.CollectionStops, id)
	if err != nil {
		return domain.Stop{}, err
	}
	var stop domain.Stop
	if err := json.Unmarshal(raw, &stop); err != nil {
		return domain.Stop{}, fmt.Errorf("decode stop %s: %w", id, err)
	}
	return stop, nil
}

func (c *Catalog) List(ctx context.Context) ([]domain.Stop, error) {
	docs, err := c.db.List(ctx, docstore.CollectionStops)
	if err != nil {
		return nil, err
	}
	stops := make([]domain.Stop, 0, len(docs))
	for _, raw := range docs {
		var stop domain.Stop
		if err := json.Unmarshal(raw, &stop); err != nil {
			c.logger.Warn("skipping undecodable stop document", "error", err)
			continue
		}
		stops = append(stops, stop)
	}
	return stops, nil
}
