package v1

import (
	"github.com/tinoosan/posting/internal/storage/memory"
	"github.com/tinoosan/posting/internal/storage/postgres"
)

var (
	_ IdempotencyStore = (*memory.Store)(nil)
	_ IdempotencyStore = (*postgres.Store)(nil)
	_ ReadyChecker     = (*postgres.Store)(nil)
)
