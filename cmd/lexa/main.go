// Command lexa serves DNS answers (and a read-only JSON mirror) for the
// containers running on an LXD-style host, by polling the host's REST
// API and reshaping its inventory into zone-scoped DNS records.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/kaidyth/lexa/internal/config"
	"github.com/kaidyth/lexa/internal/logging"
	"github.com/kaidyth/lexa/internal/server"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("lexa", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to the lexa configuration file")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	subcommand := "server"
	if rest := fs.Args(); len(rest) > 0 {
		subcommand = rest[0]
	}
	if subcommand != "server" {
		fmt.Fprintf(os.Stderr, "lexa: unknown subcommand %q (only \"server\" is supported)\n", subcommand)
		return 1
	}

	path := config.ResolveConfigPath(*configPath)
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lexa: %v\n", err)
		return 1
	}

	logger := logging.Configure(logging.Config{
		Level: cfg.Server.Log.Level,
		Out:   cfg.Server.Log.Out,
	})
	logger.Info("lexa starting", "config", path, "suffix", cfg.Server.LXD.Suffix)

	runner := server.NewRunner(logger)
	if err := runner.Run(cfg); err != nil {
		logger.Error("lexa exited with error", "err", err)
		return 1
	}

	logger.Info("lexa stopped")
	return 0
}
