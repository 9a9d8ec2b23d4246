package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/lokera/lokera/internal/clock"
	"github.com/lokera/lokera/internal/config"
	"github.com/lokera/lokera/internal/migration"
	"github.com/lokera/lokera/internal/observability"
	"github.com/lokera/lokera/internal/server"
	"github.com/lokera/lokera/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,
	)
	app.Run()
}

func registerSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
