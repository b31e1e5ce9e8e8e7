package app

import (
	"database/sql"

	"timecard/internal/config"
	"timecard/internal/db"
	"timecard/internal/engine"
	"timecard/internal/migrate"
	"timecard/internal/repo"
)

// Context bundles the open database and configured engine for one workspace.
type Context struct {
	Workspace string
	Config    *config.Config
	DB        *sql.DB
	Engine    engine.Engine
}

// Open resolves the workspace config, opens the database and runs pending
// migrations. Missing timecard.yml falls back to defaults.
func Open(workspace string) (*Context, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return &Context{
		Workspace: workspace,
		Config:    cfg,
		DB:        conn,
		Engine:    engine.New(conn, cfg),
	}, nil
}

func (c *Context) Repo() repo.Repo { return c.Engine.Repo }

func (c *Context) Close() error {
	if c.DB == nil {
		return nil
	}
	return c.DB.Close()
}
