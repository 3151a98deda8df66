package engine

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinoosan/posting/internal/dsl"
	"github.com/tinoosan/posting/internal/errs"
	"github.com/tinoosan/posting/internal/ledger"
	"github.com/tinoosan/posting/internal/seed"
)

func TestTemplateCacheCompilesOncePerVersion(t *testing.T) {
	cache, err := NewTemplateCache(8)
	require.NoError(t, err)
	src, err := seed.Source("receipt_co")
	require.NoError(t, err)
	tpl := ledger.Template{ID: uuid.New(), Version: 1, Source: src}

	const workers = 16
	results := make([]*dsl.CompiledTemplate, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ct, err := cache.Get(tpl)
			assert.NoError(t, err)
			results[i] = ct
		}(i)
	}
	wg.Wait()
	for _, ct := range results {
		assert.Same(t, results[0], ct)
	}
	assert.Equal(t, 1, cache.Len())

	// a new version is a different key, the old one stays cached
	v2 := tpl
	v2.Version = 2
	ct2, err := cache.Get(v2)
	require.NoError(t, err)
	assert.NotSame(t, results[0], ct2)
	assert.True(t, cache.Contains(tpl.ID, 1))
	assert.True(t, cache.Contains(tpl.ID, 2))
}

func TestTemplateCacheDoesNotStoreFailures(t *testing.T) {
	cache, err := NewTemplateCache(8)
	require.NoError(t, err)
	tpl := ledger.Template{ID: uuid.New(), Version: 1, Source: "let a = "}

	_, err = cache.Get(tpl)
	assert.True(t, errors.Is(err, errs.ErrCompile))
	assert.Equal(t, 0, cache.Len())
}

func TestTemplateCacheEvictsLeastRecent(t *testing.T) {
	cache, err := NewTemplateCache(2)
	require.NoError(t, err)
	src, err := seed.Source("payment_co")
	require.NoError(t, err)

	id := uuid.New()
	for v := 1; v <= 3; v++ {
		_, err := cache.Get(ledger.Template{ID: id, Version: v, Source: src})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, cache.Len())
	assert.False(t, cache.Contains(id, 1))
	assert.True(t, cache.Contains(id, 3))
}

func TestNewTemplateCacheRejectsBadSize(t *testing.T) {
	_, err := NewTemplateCache(0)
	assert.Error(t, err)
}
