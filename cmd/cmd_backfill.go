package cmd

import (
	"github.com/cockroachdb/errors"
	"github.com/pointsflow/points-indexer/core/datasources"
	"github.com/pointsflow/points-indexer/internal/config"
	"github.com/pointsflow/points-indexer/internal/postgres"
	pointspostgres "github.com/pointsflow/points-indexer/modules/points/repository/postgres"
	"github.com/pointsflow/points-indexer/modules/points/usecase"
	"github.com/pointsflow/points-indexer/pkg/logger"
	"github.com/pointsflow/points-indexer/pkg/logger/slogx"
	"github.com/spf13/cobra"
)

type backfillSendersCmdOptions struct {
	BatchSize int32
}

// NewBackfillSendersCommand resolves transaction senders for events ingested
// before sender backfill existed, or whose backfill was interrupted.
func NewBackfillSendersCommand() *cobra.Command {
	opts := &backfillSendersCmdOptions{}

	cmd := &cobra.Command{
		Use:   "backfill-senders",
		Short: "Backfill transaction senders of stored events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return backfillSendersHandler(opts, cmd, args)
		},
	}

	flags := cmd.Flags()
	flags.Int32Var(&opts.BatchSize, "batch-size", 500, "Events to backfill per batch")

	return cmd
}

func backfillSendersHandler(opts *backfillSendersCmdOptions, cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	conf := config.Load()
	cfg := conf.Modules.Points

	pg, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return errors.Wrap(err, "can't create Postgres connection pool")
	}
	defer pg.Close()
	repo := pointspostgres.NewRepository(pg)

	datasource, err := datasources.NewEVMNode(ctx, cfg.EVMNode.RPCURL, datasources.EVMNodeOptions{
		RequestTimeout: cfg.EVMNode.RequestTimeout,
	})
	if err != nil {
		return errors.Wrap(err, "can't create EVM node datasource")
	}

	pointsUsecase := usecase.New(usecase.Params{
		EventDg:      repo,
		CheckpointDg: repo,
		SnapshotDg:   repo,
		Datasource:   datasource,
		Series:       cfg.Series,
	})

	var total int
	for {
		fixed, err := pointsUsecase.FixEventSenders(ctx, opts.BatchSize)
		total += fixed
		if err != nil {
			return errors.Wrap(err, "failed to backfill event senders")
		}
		if fixed == 0 {
			break
		}
		logger.InfoContext(ctx, "Backfilled event sender batch", slogx.Int("fixed", fixed))
	}

	logger.InfoContext(ctx, "Backfill finished", slogx.Int("total", total))
	return nil
}
