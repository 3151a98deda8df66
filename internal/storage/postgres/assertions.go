package postgres

import (
	"github.com/tinoosan/posting/internal/service/journal"
	"github.com/tinoosan/posting/internal/service/template"
	"github.com/tinoosan/posting/internal/service/voucher"
)

var (
	_ journal.Repo    = (*Store)(nil)
	_ journal.Writer  = (*Store)(nil)
	_ template.Repo   = (*Store)(nil)
	_ template.Writer = (*Store)(nil)
	_ voucher.Repo    = (*Store)(nil)
	_ voucher.Writer  = (*Store)(nil)
)
