// Package repomanager owns the database handle and hands out repositories
// bound to it. The hosting process opens it at startup and closes it at
// shutdown; core components only ever see the repository interfaces.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/filekeeper/internal/repositories/files"
	"github.com/dmitrijs2005/filekeeper/internal/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context) error
	Conn() *sql.DB
	Files() files.Repository
	Users() users.Repository
	Close() error
}
