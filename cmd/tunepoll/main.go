package main

import (
	"context"
	"log"
	"os"
	"os/signal"

	"github.com/igolaizola/tunepoll/pkg/cli"
	"github.com/joho/godotenv"
)

// Build flags
var version = ""
var commit = ""
var date = ""

func main() {
	// Load .env so TUNEPOLL_* variables can live next to the binary
	_ = godotenv.Load()

	// Create signal based context
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Launch command
	cmd := cli.New(version, commit, date)
	if err := cmd.ParseAndRun(ctx, os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}
