package docstore

import (
	"context"
	"encoding/json"
)

// Collection names used across the service.
const (
	CollectionStops      = "stops"
	CollectionRoutes     = "routes"
	CollectionShifts     = "shifts"
	CollectionVehicles   = "vehicles"
	CollectionPassengers = "passengers"
)

// SetMode selects between a full document overwrite and a shallow
// field merge into whatever is already stored.
type SetMode int

const (
	Overwrite SetMode = iota
	Merge
)

// Store is the keyed document store the service persists through.
// Implementations must return domain.ErrNotFound from Get when the id
// is absent; queries return empty slices, never a miss error.
type Store interface {
	Get(ctx context.Context, collection, id string) (json.RawMessage, error)
	Set(ctx context.Context, collection, id string, doc any, mode SetMode) error
	Delete(ctx context.Context, collection, id string) error
	List(ctx context.Context, collection string) ([]json.RawMessage, error)
	QueryEquals(ctx context.Context, collection, field, value string) ([]json.RawMessage, error)
	QueryContains(ctx context.Context, collection, field, value string) ([]json.RawMessage, error)
	Ping(ctx context.Context) error
	Close() error
}

// mergeDocs overlays the fields of patch onto base at the top level.
// Shared by the memory and redis drivers; postgres merges in SQL.
func mergeDocs(base, patch []byte) ([]byte, error) {
	merged := make(map[string]json.RawMessage)
	if len(base) > 0 {
		if err := json.Unmarshal(base, &merged); err != nil {
			return nil, err
		}
	}
	var overlay map[string]json.RawMessage
	if err := json.Unmarshal(patch, &overlay); err != nil {
		return nil, err
	}
	for k, v := range overlay {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// fieldEquals reports whether doc's top-level field holds the string value.
func fieldEquals(doc []byte, field, value string) bool {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(doc, &m); err != nil {
		return false
	}
	raw, ok := m[field]
	if !ok {
		return false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return false
	}
	return s == value
}

// fieldContains reports whether doc's top-level array field holds value
// as a member.
func fieldContains(doc []byte, field, value string) bool {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(doc, &m); err != nil {
		return false
	}
	raw, ok := m[field]
	if !ok {
		return false
	}
	var items []string
	if err := json.Unmarshal(raw, &items); err != nil {
		return false
	}
	for _, item := range items {
		if item == value {
			return true
		}
	}
	return false
}
