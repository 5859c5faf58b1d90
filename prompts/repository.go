package prompts

import (
	"context"
	"database/sql"
	"strings"
)

// Repository reads admin-stored prompt templates from system_prompts.
// A nil db (tests, degraded boot) falls through to the built-ins.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// TemplateFor returns the stored template for roleName, or the built-in
// default when no row exists or the store is unreachable. Template
// lookup never fails a request.
func (r *Repository) TemplateFor(ctx context.Context, roleName string) string {
	if r.db != nil {
		var tpl string
		err := r.db.QueryRowContext(ctx,
			`SELECT template FROM system_prompts WHERE role_name = $1`, roleName,
		).Scan(&tpl)
		if err == nil && strings.TrimSpace(tpl) != "" {
			return tpl
		}
	}
	return Default(roleName)
}
