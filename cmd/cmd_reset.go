package cmd

import (
	"github.com/cockroachdb/errors"
	"github.com/pointsflow/points-indexer/internal/config"
	"github.com/pointsflow/points-indexer/internal/postgres"
	pointspostgres "github.com/pointsflow/points-indexer/modules/points/repository/postgres"
	"github.com/pointsflow/points-indexer/pkg/logger"
	"github.com/pointsflow/points-indexer/pkg/logger/slogx"
	"github.com/spf13/cobra"
)

type resetCheckpointCmdOptions struct {
	SourceId string
	Block    uint64
}

// NewResetCheckpointCommand is the explicit operator path to rewind a source.
// The service must not be crawling the source while this runs.
func NewResetCheckpointCommand() *cobra.Command {
	opts := &resetCheckpointCmdOptions{}

	cmd := &cobra.Command{
		Use:   "reset-checkpoint",
		Short: "Reset a source's crawl checkpoint to a specific block",
		RunE: func(cmd *cobra.Command, args []string) error {
			return resetCheckpointHandler(opts, cmd, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.SourceId, "source", "", "Source id to reset")
	flags.Uint64Var(&opts.Block, "block", 0, "Block number to resume crawling from")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("block")

	return cmd
}

func resetCheckpointHandler(opts *resetCheckpointCmdOptions, cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	conf := config.Load()

	pg, err := postgres.NewPool(ctx, conf.Modules.Points.Postgres)
	if err != nil {
		return errors.Wrap(err, "can't create Postgres connection pool")
	}
	defer pg.Close()

	repo := pointspostgres.NewRepository(pg)
	if err := repo.ResetCheckpoint(ctx, opts.SourceId, opts.Block); err != nil {
		return errors.Wrapf(err, "failed to reset checkpoint for source %q", opts.SourceId)
	}

	logger.InfoContext(ctx, "Reset source checkpoint",
		slogx.String("sourceId", opts.SourceId),
		slogx.Uint64("nextBlock", opts.Block),
	)
	return nil
}
