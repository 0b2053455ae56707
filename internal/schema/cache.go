package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const loadQuery = `
SELECT
	e.id, e.name, e.storage_schema, e.storage_table,
	c.id, c.name, c.type, c.storage_column,
	c.is_exposed, c.is_excludable, c.labels
FROM metadata.entities e
LEFT JOIN metadata.columns c ON c.entity_id = e.id
ORDER BY e.name, c.ordinal
`

// Cache holds entity definitions loaded from the metadata schema.
// Reads are lock-free after Load; Reload swaps the maps atomically
// under the write lock.
type Cache struct {
	mu       sync.RWMutex
	entities map[string]*EntityDef
	byID     map[uuid.UUID]*EntityDef
}

func NewCache() *Cache {
	return &Cache{
		entities: make(map[string]*EntityDef),
		byID:     make(map[uuid.UUID]*EntityDef),
	}
}

func (c *Cache) Load(ctx context.Context, pool *pgxpool.Pool) error {
	rows, err := pool.Query(ctx, loadQuery)
	if err != nil {
		return fmt.Errorf("schema cache load: %w", err)
	}
	defer rows.Close()

	entities := make(map[string]*EntityDef)

	for rows.Next() {
		var (
			eID            uuid.UUID
			eName          string
			eStorageSchema string
			eStorageTable  string
			cID            *uuid.UUID
			cName          *string
			cType          *string
			cStorageCol    *string
			cExposed       *bool
			cExcludable    *bool
			cLabels        []byte
		)
		if err := rows.Scan(
			&eID, &eName, &eStorageSchema, &eStorageTable,
			&cID, &cName, &cType, &cStorageCol,
			&cExposed, &cExcludable, &cLabels,
		); err != nil {
			return fmt.Errorf("schema cache scan: %w", err)
		}

		ent := entities[eName]
		if ent == nil {
			ent = &EntityDef{
				ID:            eID,
				Name:          eName,
				StorageSchema: eStorageSchema,
				StorageTable:  eStorageTable,
				Exposed:       make(map[string]bool),
				Excludable:    make(map[string]bool),
			}
			entities[eName] = ent
		}

		if cID == nil {
			continue
		}
		col := ColumnDef{
			ID:       *cID,
			EntityID: eID,
			Name:     *cName,
			Type:     ColumnType(*cType),
		}
		if cStorageCol != nil {
			col.StorageColumn = *cStorageCol
		} else {
			col.StorageColumn = col.Name
		}
		if len(cLabels) > 0 {
			if err := json.Unmarshal(cLabels, &col.Labels); err != nil {
				return fmt.Errorf("schema cache: labels for %s.%s: %w", eName, col.Name, err)
			}
		}
		ent.Columns = append(ent.Columns, col)
		if cExposed != nil && *cExposed {
			ent.Exposed[col.Name] = true
		}
		if cExcludable != nil && *cExcludable {
			ent.Excludable[col.Name] = true
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("schema cache load: %w", err)
	}

	byID := make(map[uuid.UUID]*EntityDef, len(entities))
	for _, ent := range entities {
		ent.Index()
		byID[ent.ID] = ent
	}

	c.mu.Lock()
	c.entities = entities
	c.byID = byID
	c.mu.Unlock()
	return nil
}

// Get returns the entity definition registered under name, or nil.
func (c *Cache) Get(name string) *EntityDef {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entities[name]
}

// GetByID returns the entity definition with the given id, or nil.
func (c *Cache) GetByID(id uuid.UUID) *EntityDef {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.byID[id]
}

// Put registers an entity definition directly, bypassing the metadata
// tables. Used at startup for statically defined entities and by tests.
func (c *Cache) Put(ent *EntityDef) {
	ent.Index()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entities[ent.Name] = ent
	c.byID[ent.ID] = ent
}

// EntityCount returns the number of loaded entities.
func (c *Cache) EntityCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entities)
}
