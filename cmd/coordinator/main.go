package main

import (
	"context"
	"log"

	"github.com/dmitrijs2005/filekeeper/internal/app"
	"github.com/dmitrijs2005/filekeeper/internal/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()

	a, err := app.NewApp(ctx, cfg, "filekeeper-coordinator")
	if err != nil {
		log.Printf("%v", err)
		return
	}
	defer a.Close()

	if err := a.RunCoordinator(ctx); err != nil {
		log.Printf("%v", err)
	}
}
