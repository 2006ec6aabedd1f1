package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	logging "github.com/ipfs/go-log/v2"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

var log = logging.Logger("erasure-bench")

func main() {
	app := cli.NewApp()
	app.Name = "erasure-bench"
	app.Usage = "encode, lose and reconstruct shards with timings"
	app.Flags = []cli.Flag{
		&cli.StringFlag{Name: "log-level", Value: "error", Usage: "debug, info, warn or error"},
	}
	app.Before = func(c *cli.Context) error {
		lvl, err := logging.LevelFromString(c.String("log-level"))
		if err != nil {
			return errors.Wrap(err, "--log-level")
		}
		logging.SetAllLoggers(lvl)
		return nil
	}

	app.Commands = []*cli.Command{
		{
			Name:   "run",
			Usage:  "run [--config <file>] [--size <bytes>] [--scenario <name>]... [--compare]",
			Flags:  runFlags(),
			Action: run,
		},
		{
			Name:   "list",
			Usage:  "list [--config <file>] [--size <bytes>]",
			Flags:  runFlags()[:2],
			Action: list,
		},
	}
	// Without a command, run every scenario.
	app.Flags = append(app.Flags, runFlags()...)
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "config", Usage: "TOML file with [[scenario]] tables"},
		&cli.StringFlag{Name: "size", Value: "64MiB", Usage: "payload size of the large scenarios", Aliases: []string{"s"}},
		&cli.StringSliceFlag{Name: "scenario", Usage: "run only the named scenarios"},
		&cli.BoolFlag{Name: "compare", Usage: "also time github.com/klauspost/reedsolomon"},
		&cli.StringFlag{Name: "output", Usage: "write results as JSON to this file", Aliases: []string{"o"}},
	}
}

func scenarios(c *cli.Context) ([]Scenario, error) {
	if path := c.String("config"); path != "" {
		return loadScenarios(path)
	}
	size, err := humanize.ParseBytes(c.String("size"))
	if err != nil {
		return nil, errors.Wrap(err, "--size")
	}
	if size == 0 || size > 1<<40 {
		return nil, errors.Errorf("--size %s out of range", c.String("size"))
	}
	return defaultScenarios(int(size)), nil
}

func list(c *cli.Context) error {
	all, err := scenarios(c)
	if err != nil {
		return err
	}
	for _, sc := range all {
		scheme := sc.Scheme
		if scheme == "" {
			scheme = schemeRS
		}
		fmt.Printf("%-16s %-3s %d+%d  %-9s lose %v\n", sc.Name, scheme, sc.Data, sc.Parity,
			humanize.IBytes(uint64(sc.Size)), sc.Lose)
	}
	return nil
}

func run(c *cli.Context) error {
	all, err := scenarios(c)
	if err != nil {
		return err
	}
	selected, err := selectScenarios(all, c.StringSlice("scenario"))
	if err != nil {
		return err
	}

	compare := c.Bool("compare")
	results := make([]*Result, 0, len(selected))
	for _, sc := range selected {
		res, err := runScenario(sc, compare)
		if err != nil {
			return errors.Wrapf(err, "scenario %s", sc.Name)
		}
		printResult(res)
		results = append(results, res)
	}

	if path := c.String("output"); path != "" {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return errors.Wrap(err, "marshal results")
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return errors.Wrap(err, "write results")
		}
		fmt.Printf("\nResults written to: %s\n", path)
	}
	return nil
}

func printResult(res *Result) {
	fmt.Printf("%s (%s %d+%d, %s in %s shards, lost %v)\n", res.Name, res.Scheme,
		res.DataShards, res.ParityShards, humanize.IBytes(uint64(res.Size)),
		humanize.IBytes(uint64(res.ShardSize)), res.Lost)
	fmt.Printf("  encode:      %-12v %s/s\n", res.Encode, throughput(res.Size, res.Encode))
	fmt.Printf("  reconstruct: %-12v %s/s\n", res.Reconstruct, throughput(res.Size, res.Reconstruct))
	fmt.Printf("  verify:      %v\n", res.Verify)
	if res.BaselineEncode > 0 {
		fmt.Printf("  baseline encode:      %-12v %s/s\n", res.BaselineEncode, throughput(res.Size, res.BaselineEncode))
		fmt.Printf("  baseline reconstruct: %-12v %s/s\n", res.BaselineReconstruct, throughput(res.Size, res.BaselineReconstruct))
	}
}

func throughput(size int, d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return humanize.IBytes(uint64(float64(size) / d.Seconds()))
}
