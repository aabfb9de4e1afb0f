// Command register submits the channels of a definitions file to a running
// RSS Rules server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/lysyi3m/rss-rules/app/channel"
	"github.com/lysyi3m/rss-rules/app/registration"
)

type options struct {
	Server  string `long:"server" env:"RSS_RULES_SERVER" default:"http://localhost:8080" description:"Base URL of the RSS Rules server"`
	File    string `long:"file" short:"f" env:"CHANNELS_FILE" default:"channels.yml" description:"YAML file with channel definitions"`
	DryRun  bool   `long:"dry-run" description:"Validate definitions without registering them"`
	Timeout int    `long:"timeout" default:"30" description:"Request timeout in seconds"`
}

func main() {
	var opts options

	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			return
		}
		os.Exit(2)
	}

	entries, err := channel.LoadDefinitions(opts.File)
	if err != nil {
		slog.Error("Failed to load channel definitions", "file", opts.File, "error", err)
		os.Exit(1)
	}

	if opts.DryRun {
		for _, entry := range entries {
			fmt.Printf("%s\t%s\n", entry.Name, entry.Source)
		}
		slog.Info("Definitions are valid", "count", len(entries))
		return
	}

	client := registration.NewClient(opts.Server, &http.Client{
		Timeout: time.Duration(opts.Timeout) * time.Second,
	})

	registered, err := client.RegisterAll(context.Background(), entries)
	if err != nil {
		slog.Error("Registration failed", "registered", registered, "total", len(entries), "error", err)
		os.Exit(1)
	}

	slog.Info("Success", "registered", registered)
}
