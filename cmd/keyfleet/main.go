package main

import (
	"os"

	"github.com/rileyhilliard/keyfleet/internal/askpass"
	"github.com/rileyhilliard/keyfleet/internal/cli"
)

// Version info set via ldflags at build time:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123 -X main.date=2024-01-01"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// OpenSSH runs this binary as SSH_ASKPASS; answer the prompt and exit.
	if askpass.IsHelper() {
		os.Exit(askpass.Main(os.Args[1:], os.Stdout, os.Stderr))
	}

	cli.SetVersionInfo(version, commit, date)
	cli.Execute()
}
