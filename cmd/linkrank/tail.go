package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/linkrank/internal/consumer"
	"github.com/fyrsmithlabs/linkrank/internal/logging"
)

var tailFinal bool

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print snapshots published to NATS",
	Long: `Subscribe to the snapshots another linkrank process publishes on
<nats.subject_prefix>.partial and <nats.subject_prefix>.final and print them as
JSON lines. Requires nats.url (LINKRANK_NATS_URL).`,
	Args: cobra.NoArgs,
	RunE: runTail,
}

func init() {
	tailCmd.Flags().BoolVar(&tailFinal, "final", false, "print final snapshots only")
}

func runTail(cmd *cobra.Command, _ []string) error {
	cfg, logCfg, _, err := loadSettings()
	if err != nil {
		return err
	}
	if !cfg.NATS.Enabled() {
		return errors.New("nats.url is not configured")
	}
	logCfg.Output.Stream = "stderr"
	logCfg.Output.OTEL = false
	logger, err := logging.NewLogger(logCfg, nil)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	zl := logger.Underlying().Named("tail")

	nc, err := connectNATS(cfg.NATS)
	if err != nil {
		return err
	}
	defer nc.Close()

	out := consumer.NewJSONLines(cmd.OutOrStdout(), tailFinal)
	sub, err := consumer.Subscribe(nc, cfg.NATS.SubjectPrefix, zl, func(s consumer.Snapshot) {
		if err := out.Deliver(context.Background(), s); err != nil {
			zl.Warn("Failed to print snapshot", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}
	defer func() { _ = sub.Unsubscribe() }()

	zl.Info("Tailing snapshots", zap.String("url", cfg.NATS.URL), zap.String("subject", sub.Subject))
	<-cmd.Context().Done()
	return nil
}
