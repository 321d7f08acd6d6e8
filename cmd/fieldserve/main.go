package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"fieldserve-backend/internal/cli"
)

func main() {
	// Local development convenience; production sets real env vars.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: could not load .env: %v\n", err)
	}

	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
