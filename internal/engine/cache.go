package engine

import (
	"fmt"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/tinoosan/posting/internal/dsl"
	"github.com/tinoosan/posting/internal/ledger"
)

// CacheKey identifies one immutable template version.
type CacheKey struct {
	ID      uuid.UUID
	Version int
}

func (k CacheKey) String() string { return fmt.Sprintf("%s@%d", k.ID, k.Version) }

// TemplateCache holds compiled templates keyed by (id, version). Entries are written
// once and never replaced; concurrent misses on one key compile only once.
type TemplateCache struct {
	entries *lru.Cache[CacheKey, *dsl.CompiledTemplate]
	group   singleflight.Group
}

// NewTemplateCache returns a cache holding at most size compiled versions.
func NewTemplateCache(size int) (*TemplateCache, error) {
	entries, err := lru.New[CacheKey, *dsl.CompiledTemplate](size)
	if err != nil {
		return nil, err
	}
	return &TemplateCache{entries: entries}, nil
}

// Get returns the compiled form of t, compiling it on first use.
func (c *TemplateCache) Get(t ledger.Template) (*dsl.CompiledTemplate, error) {
	key := CacheKey{ID: t.ID, Version: t.Version}
	if ct, ok := c.entries.Get(key); ok {
		templateCacheTotal.WithLabelValues("hit").Inc()
		return ct, nil
	}
	templateCacheTotal.WithLabelValues("miss").Inc()

	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		if ct, ok := c.entries.Get(key); ok {
			return ct, nil
		}
		ct, err := dsl.Compile(t.Source)
		if err != nil {
			compilesTotal.WithLabelValues("error").Inc()
			return nil, err
		}
		compilesTotal.WithLabelValues("ok").Inc()
		if found, _ := c.entries.ContainsOrAdd(key, ct); found {
			if existing, ok := c.entries.Get(key); ok {
				return existing, nil
			}
		}
		return ct, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*dsl.CompiledTemplate), nil
}

// Contains reports whether a version is cached without touching recency.
func (c *TemplateCache) Contains(id uuid.UUID, version int) bool {
	return c.entries.Contains(CacheKey{ID: id, Version: version})
}

// Len returns the number of cached versions.
func (c *TemplateCache) Len() int { return c.entries.Len() }
