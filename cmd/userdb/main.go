package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/userdb/internal/cli"
	"github.com/dmitrijs2005/userdb/internal/config"
)

// Set with -ldflags "-X main.buildVersion=..."
var buildVersion = "dev"

func main() {
	cfg := config.LoadConfig(os.Args[1:])

	if err := cli.Execute(context.Background(), cfg, buildVersion, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
