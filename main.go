package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/zdhzdh102417/rxminer/algorithms/randomx"
	"github.com/zdhzdh102417/rxminer/device"
	"github.com/zdhzdh102417/rxminer/metrics"
	"github.com/zdhzdh102417/rxminer/mining"
	"github.com/zdhzdh102417/rxminer/work"
)

//Version is the released version string of rxminer
var Version = "0.1-Dev"

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	app := &cli.App{
		Name:    "rxminer",
		Usage:   "batched RandomX-family proof of work pipeline",
		Version: Version,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "device",
				Aliases: []string{"d"},
				Value:   0,
				Usage:   "`ordinal` of the device to run on",
			},
			&cli.Uint64Flag{
				Name:  "device-mem",
				Usage: "override the device memory budget, in `MiB`",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "search",
				Usage: "iterate nonce windows and report digests below the target",
				Flags: []cli.Flag{
					&cli.Uint64Flag{
						Name:  "difficulty",
						Value: 1 << 16,
						Usage: "target = MaxUint64 / `difficulty`",
					},
					&cli.IntFlag{
						Name:  "batches",
						Usage: "stop after `count` batches (0 = run until stopped)",
					},
					&cli.StringFlag{
						Name:  "metrics",
						Usage: "serve Prometheus metrics on `addr`",
					},
				},
				Action: func(c *cli.Context) error {
					return runSearch(c, log)
				},
			},
			{
				Name:  "validate",
				Usage: "verify every kernel against the sequential reference, then benchmark",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "lanes",
						Value: 48,
						Usage: "verification sub-batch size in `lanes`",
					},
					&cli.IntFlag{
						Name:  "bench-iterations",
						Value: 4,
						Usage: "timed iterations per benchmark",
					},
				},
				Action: func(c *cli.Context) error {
					return runValidate(c, log)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Error().Err(err).Msg("rxminer")
		os.Exit(1)
	}
}

func openDevice(c *cli.Context, log zerolog.Logger) (*device.Device, error) {
	for _, info := range device.List() {
		log.Info().
			Int("ordinal", info.Ordinal).
			Str("name", info.Name).
			Int("computeUnits", info.ComputeUnits).
			Uint64("totalMem", info.TotalMem).
			Msg("device found")
	}
	var opts device.Options
	if mem := c.Uint64("device-mem"); mem != 0 {
		opts.TotalMem = mem << 20
	}
	return device.Open(c.Int("device"), opts)
}

func runSearch(c *cli.Context, log zerolog.Logger) error {
	dev, err := openDevice(c, log)
	if err != nil {
		return err
	}
	defer dev.Close()

	runID := uuid.New().String()
	log = log.With().Str("run", runID).Logger()
	log.Info().Uint64("difficulty", c.Uint64("difficulty")).Msg("starting search")

	var m *metrics.Metrics
	if addr := c.String("metrics"); addr != "" {
		m = metrics.New()
		go func() {
			if err := m.Serve(addr); err != nil {
				log.Error().Err(err).Str("addr", addr).Msg("metrics endpoint stopped")
			}
		}()
	}

	source := &work.LocalSource{
		TemplateSize: randomx.TemplateSize,
		Difficulty:   c.Uint64("difficulty"),
		Log:          log,
	}
	hashRateReports := make(chan *mining.HashRateReport, 10)
	var miner mining.Miner = &randomx.Miner{
		Device:          dev,
		MinerID:         c.Int("device"),
		HashRateReports: hashRateReports,
		Source:          source,
		VM:              randomx.NoopVM{},
		Log:             log,
		BatchLimit:      c.Int("batches"),
		Metrics:         m,
	}
	miner.Mine()
	for report := range hashRateReports {
		fmt.Printf("\r%d - %.1f H/s   ", report.MinerID, report.HashRate)
	}
	return nil
}

func runValidate(c *cli.Context, log zerolog.Logger) error {
	dev, err := openDevice(c, log)
	if err != nil {
		return err
	}
	defer dev.Close()

	harness := &randomx.Harness{
		Device: dev,
		Lanes:  c.Int("lanes"),
		Log:    log,
	}
	results := harness.Run()
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	if _, err := harness.Benchmark(c.Int("bench-iterations")); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d verification cases failed", failed, len(results))
	}
	log.Info().Int("cases", len(results)).Msg("all verification cases passed")
	return nil
}
