package repomanager

import (
	"context"
	"database/sql"

	"github.com/parleyhq/parley/internal/dbx"
	"github.com/parleyhq/parley/internal/server/repositories/groups"
	"github.com/parleyhq/parley/internal/server/repositories/members"
	"github.com/parleyhq/parley/internal/server/repositories/messages"
	"github.com/parleyhq/parley/internal/server/repositories/readmarks"
	"github.com/parleyhq/parley/internal/server/repositories/typing"
)

// RepositoryManager vends repository implementations bound to a DBTX, so a
// service can run several repositories inside one transaction by handing
// them the same tx handle.
type RepositoryManager interface {
	Members(db dbx.DBTX) members.Repository
	Groups(db dbx.DBTX) groups.Repository
	Messages(db dbx.DBTX) messages.Repository
	Typing(db dbx.DBTX) typing.Repository
	ReadMarks(db dbx.DBTX) readmarks.Repository
	RunMigrations(ctx context.Context, db *sql.DB) error
}
