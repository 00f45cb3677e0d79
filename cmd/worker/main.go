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

	a, err := app.NewApp(ctx, cfg, "filekeeper-worker")
	if err != nil {
		log.Printf("%v", err)
		return
	}
	defer a.Close()

	if err := a.RunWorker(ctx); err != nil {
		log.Printf("%v", err)
	}
}
