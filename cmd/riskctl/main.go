package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"loan-risk/internal/client"
	"loan-risk/internal/common"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

var (
	version = "v0.0.1-default"

	serverFlag = &cli.StringFlag{
		Name:    "server",
		Aliases: []string{"s"},
		Usage:   "Scoring service URL",
		Value:   common.DefaultScoreURL,
		EnvVars: []string{common.EnvScoreURL},
	}

	timeoutFlag = &cli.DurationFlag{
		Name:  "timeout",
		Usage: "Request timeout",
		Value: 10 * time.Second,
	}

	debugFlag = &cli.BoolFlag{
		Name:  "debug",
		Usage: "Prints verbose logs (optional, default: false)",
	}
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	app := &cli.App{
		Name:    "riskctl",
		Version: version,
		Usage:   "CLI for the loan default risk service",
		Flags: []cli.Flag{
			serverFlag,
			timeoutFlag,
			debugFlag,
		},
		Commands: []*cli.Command{
			scoreCmd,
			healthCmd,
			historyCmd,
		},
		Before: func(c *cli.Context) error {
			if c.Bool(debugFlag.Name) {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("fatal error")
	}
}

func newClient(c *cli.Context) (*client.Client, error) {
	server := c.String(serverFlag.Name)
	log.Debug().Str("server", server).Msg("Connecting to scoring service")
	return client.New(server, c.Duration(timeoutFlag.Name))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("error encoding output: %w", err)
	}
	return nil
}

func requestContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Context, c.Duration(timeoutFlag.Name)+time.Second)
}
