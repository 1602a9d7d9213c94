package usecase

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/pointsflow/points-indexer/common/errs"
	"github.com/pointsflow/points-indexer/pkg/logger"
	"github.com/pointsflow/points-indexer/pkg/logger/slogx"
)

// FixEventSenders resolves and stores the transaction sender for events
// ingested without one, up to limit events per call. Returns the number of
// events fixed.
func (u *Usecase) FixEventSenders(ctx context.Context, limit int32) (int, error) {
	events, err := u.eventDg.GetEventsMissingSender(ctx, limit)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get events missing sender")
	}

	var fixed int
	for _, event := range events {
		sender, err := u.datasource.GetTransactionSender(ctx, event.TxHash)
		if err != nil {
			if errors.Is(err, errs.NotFound) {
				logger.WarnContext(ctx, "Transaction not found while backfilling sender",
					slogx.Stringer("txHash", event.TxHash),
				)
				continue
			}
			return fixed, errors.Wrapf(err, "failed to get sender of tx %s", event.TxHash)
		}
		if err := u.eventDg.UpdateEventSender(ctx, event.SourceId, event.TxHash, event.LogIndex, sender); err != nil {
			return fixed, errors.Wrap(err, "failed to update event sender")
		}
		fixed++
	}
	return fixed, nil
}
