package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

var (
	applicantFileFlag = &cli.StringFlag{
		Name:    "file",
		Aliases: []string{"f"},
		Usage:   "JSON file with one applicant record",
	}

	setFlag = &cli.StringSliceFlag{
		Name:  "set",
		Usage: "Applicant field as key=value (repeatable, applied after --file)",
	}

	scoreCmd = &cli.Command{
		Name:    "score",
		Aliases: []string{"s"},
		Usage:   "Score one loan application",
		Action:  cmdScore,
		Flags: []cli.Flag{
			applicantFileFlag,
			setFlag,
		},
	}
)

func cmdScore(c *cli.Context) error {
	record, err := buildRecord(c.String(applicantFileFlag.Name), c.StringSlice(setFlag.Name))
	if err != nil {
		return err
	}

	api, err := newClient(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	pred, err := api.Predict(ctx, record)
	if err != nil {
		return errors.Wrap(err, "error scoring application")
	}
	return printJSON(pred)
}

// buildRecord merges the optional JSON file with key=value overrides.
// Override values that parse as numbers are sent as numbers.
func buildRecord(file string, sets []string) (map[string]any, error) {
	record := map[string]any{}
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, errors.Wrapf(err, "error reading %s", file)
		}
		if err := json.Unmarshal(data, &record); err != nil {
			return nil, errors.Wrapf(err, "%s must contain a JSON object", file)
		}
		if record == nil {
			return nil, fmt.Errorf("%s must contain a JSON object", file)
		}
	}

	for _, kv := range sets {
		key, value, ok := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q, expected key=value", kv)
		}
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			record[key] = f
		} else {
			record[key] = value
		}
	}

	if len(record) == 0 {
		return nil, errors.New("no applicant fields given, use --file or --set")
	}
	return record, nil
}
