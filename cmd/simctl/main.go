package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path"

	"github.com/google/subcommands"

	"StockSim/internal/cli"
	"StockSim/internal/config"
	"StockSim/internal/logger"
	"StockSim/internal/simapi"
	"StockSim/internal/syncer"
)

func main() {
	cfg, err := config.Load(config.Path())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(int(subcommands.ExitFailure))
	}

	apiURL := flag.String("api", cfg.Simulation.BaseURL, "Simulation service base URL.")
	verbose := flag.Bool("v", false, "Log requests to stderr.")

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	app := &cli.App{Out: os.Stdout, Err: os.Stderr}
	for _, c := range cli.Commands(app) {
		commander.Register(c, "")
	}
	flag.Parse()

	cfg.Simulation.BaseURL = *apiURL
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config validation: %v\n", err)
		os.Exit(int(subcommands.ExitFailure))
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	log := logger.New(logger.Config{Level: level, Pretty: true})

	client := simapi.New(cfg.Simulation.BaseURL, cfg.Simulation.Timeout, cfg.Simulation.Retries,
		simapi.WithLogger(log.With().Str("component", "simapi").Logger()))
	app.Core = syncer.New(client, syncer.WithLogger(log.With().Str("component", "syncer").Logger()))

	os.Exit(int(commander.Execute(context.Background())))
}
