package arcana

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"arcana/internal/pipeline"
)

var (
	ingestSince  string
	ingestUntil  string
	ingestWindow time.Duration
	ingestSource string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <pair>",
	Short: "Bulk backfill trades for a pair from an exchange into storage",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		pair := args[0]

		since, err := time.Parse(time.RFC3339, ingestSince)
		if err != nil {
			fail(fmt.Errorf("--since: %w", err))
		}

		var until *time.Time
		if ingestUntil != "" {
			u, err := time.Parse(time.RFC3339, ingestUntil)
			if err != nil {
				fail(fmt.Errorf("--until: %w", err))
			}
			until = &u
		}

		cfg, err := loadConfig()
		if err != nil {
			fail(err)
		}

		ds, err := resolveSource(ingestSource)
		if err != nil {
			fail(err)
		}

		s, err := openStorage(cfg)
		if err != nil {
			fail(err)
		}
		defer s.Close()

		token, cancel := pipeline.WatchSignals()
		defer cancel()

		window := ingestWindow
		if window <= 0 {
			window = pipeline.DefaultWindow
		}

		inserted, err := pipeline.Backfill(token.Context(), ds, s, pair, since, until, window, cfg.Pipeline.RateDelay, token)
		if err != nil {
			fail(err)
		}
		fmt.Printf("inserted %d trades for %s\n", inserted, pair)
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestSince, "since", "", "start time, RFC3339 (required)")
	ingestCmd.Flags().StringVar(&ingestUntil, "until", "", "end time, RFC3339 (default: now)")
	ingestCmd.Flags().DurationVar(&ingestWindow, "window", pipeline.DefaultWindow, "size of each fetch window")
	ingestCmd.Flags().StringVar(&ingestSource, "source", "coinbase", "exchange data source")
	ingestCmd.MarkFlagRequired("since")
}
