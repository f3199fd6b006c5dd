package main

import (
	"context"
	"log"

	"github.com/parleyhq/parley/internal/server"
	"github.com/parleyhq/parley/internal/server/config"
)

func main() {
	ctx := context.Background()
	cfg := config.LoadConfig()

	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)
}
