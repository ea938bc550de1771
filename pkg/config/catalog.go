package config

import "fmt"

// ErrModelNotFound is returned by Catalog.ByID for an unknown model id.
type ErrModelNotFound struct{ ID string }

func (e *ErrModelNotFound) Error() string {
	return fmt.Sprintf("model %q not found in catalog", e.ID)
}

// Catalog is the read-only, process-wide index over ModelSpecs, built once
// at startup. It never mutates after newCatalog returns — the same
// guarantee tarsy's AgentRegistry/MCPServerRegistry give their callers,
// here specialized to a slice-backed ordered list plus a lookup map.
type Catalog struct {
	byID     map[string]*ModelSpec
	ordered  []*ModelSpec
	Defaults Defaults
	Server   ServerConfig
}

func newCatalog(models []ModelSpec, defaults Defaults, server ServerConfig) (*Catalog, error) {
	c := &Catalog{
		byID:     make(map[string]*ModelSpec, len(models)),
		ordered:  make([]*ModelSpec, 0, len(models)),
		Defaults: defaults,
		Server:   server,
	}
	for i := range models {
		spec := models[i]
		c.byID[spec.ID] = &spec
		c.ordered = append(c.ordered, &spec)
	}
	return c, nil
}

// ByID looks up a ModelSpec by id.
func (c *Catalog) ByID(id string) (*ModelSpec, error) {
	spec, ok := c.byID[id]
	if !ok {
		return nil, &ErrModelNotFound{ID: id}
	}
	return spec, nil
}

// All returns every ModelSpec in declaration order. Callers must not
// mutate the returned specs; they are shared, process-wide values.
func (c *Catalog) All() []*ModelSpec {
	return c.ordered
}

// Len reports how many models the catalog declares.
func (c *Catalog) Len() int {
	return len(c.ordered)
}
