package main

import (
	"context"
	"log"

	"github.com/chunkvault/chunkvault/internal/app"
	"github.com/chunkvault/chunkvault/internal/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()

	a, err := app.NewServerApp(cfg)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	if err := a.Run(ctx); err != nil {
		log.Printf("%v", err)
	}
}
