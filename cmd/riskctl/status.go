package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"loan-risk/internal/client"
)

const historyLimitDefault = 20

var (
	historyLimitFlag = &cli.IntFlag{
		Name:  "limit",
		Usage: "Limits number of predictions returned",
		Value: historyLimitDefault,
	}

	fromFlag = &cli.TimestampFlag{
		Name:   "from",
		Usage:  "Only predictions at or after this RFC 3339 time",
		Layout: time.RFC3339,
	}

	toFlag = &cli.TimestampFlag{
		Name:   "to",
		Usage:  "Only predictions at or before this RFC 3339 time",
		Layout: time.RFC3339,
	}

	jsonFlag = &cli.BoolFlag{
		Name:  "json",
		Usage: "Print raw JSON",
	}

	healthCmd = &cli.Command{
		Name:   "health",
		Usage:  "Check whether the service has a model loaded",
		Action: cmdHealth,
	}

	historyCmd = &cli.Command{
		Name:   "history",
		Usage:  "List recently served predictions, or those within --from/--to",
		Action: cmdHistory,
		Flags: []cli.Flag{
			historyLimitFlag,
			fromFlag,
			toFlag,
			jsonFlag,
		},
	}
)

func cmdHealth(c *cli.Context) error {
	api, err := newClient(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	h, err := api.Health(ctx)
	if err != nil {
		return errors.Wrap(err, "error checking health")
	}
	if err := printJSON(h); err != nil {
		return err
	}
	if !h.Healthy {
		return cli.Exit("service unhealthy", 1)
	}
	return nil
}

func cmdHistory(c *cli.Context) error {
	limit := c.Int(historyLimitFlag.Name)
	if limit <= 0 {
		return fmt.Errorf("--limit must be positive, got %d", limit)
	}

	api, err := newClient(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	var entries []client.HistoryEntry
	from, to := c.Timestamp(fromFlag.Name), c.Timestamp(toFlag.Name)
	if from != nil || to != nil {
		var lo, hi time.Time
		if from != nil {
			lo = *from
		}
		if to != nil {
			hi = *to
		}
		entries, err = api.Between(ctx, lo, hi, limit)
	} else {
		entries, err = api.Recent(ctx, limit)
	}
	if err != nil {
		return errors.Wrap(err, "error listing predictions")
	}
	if c.Bool(jsonFlag.Name) {
		return printJSON(entries)
	}
	printHistory(entries)
	return nil
}

func printHistory(entries []client.HistoryEntry) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tP(DEFAULT)\tTOP DRIVER\tSCHEMA")
	for _, e := range entries {
		driver := "-"
		if len(e.TopAttributions) > 0 {
			a := e.TopAttributions[0]
			driver = fmt.Sprintf("%s (%+.3f)", a.Feature, a.Value)
		}
		schema := e.SchemaVersion
		if len(schema) > 12 {
			schema = schema[:12]
		}
		fmt.Fprintf(w, "%s\t%.4f\t%s\t%s\n", e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.DefaultProbability, driver, schema)
	}
	w.Flush()
}
