package repomanager

import (
	"context"
	"database/sql"

	"github.com/avasiljevs/pulseboard/internal/dbx"
	"github.com/avasiljevs/pulseboard/internal/server/repositories/posts"
	"github.com/avasiljevs/pulseboard/internal/server/repositories/users"
)

// RepositoryManager vends repository implementations bound to a particular
// DB handle (plain connection or transaction) and exposes a schema
// migration hook.
type RepositoryManager interface {
	Users(db dbx.DBTX) users.Repository
	Posts(db dbx.DBTX) posts.Repository
	RunMigrations(ctx context.Context, db *sql.DB) error
}
