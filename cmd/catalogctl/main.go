// Command catalogctl inspects, browses and imports the classifieds catalog.
//
// Usage:
//
//	go run ./cmd/catalogctl categories
//	go run ./cmd/catalogctl list hydrocycles --sort price_asc --pages 2
package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/internal/cli"
)

func main() {
	_ = godotenv.Load()
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
