package arcana

import (
	"time"

	"github.com/spf13/cobra"

	"arcana/internal/pipeline"
)

var (
	daemonInterval time.Duration
	daemonSource   string
)

var daemonCmd = &cobra.Command{
	Use:   "daemon <pair>",
	Short: "Run the ingestion daemon, polling an exchange for new trades",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		pair := args[0]

		cfg, err := loadConfig()
		if err != nil {
			fail(err)
		}

		ds, err := resolveSource(daemonSource)
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

		interval := daemonInterval
		if interval <= 0 {
			interval = cfg.Pipeline.DaemonInterval
		}

		if err := pipeline.Daemon(token.Context(), ds, s, pair, interval, cfg.Pipeline.RateDelay, token); err != nil {
			fail(err)
		}
	},
}

func init() {
	daemonCmd.Flags().DurationVar(&daemonInterval, "interval", 0, "poll interval (default: config ARCANA_DAEMON_INTERVAL)")
	daemonCmd.Flags().StringVar(&daemonSource, "source", "coinbase", "exchange data source")
}
