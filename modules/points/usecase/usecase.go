package usecase

import (
	"sync"

	"github.com/pointsflow/points-indexer/core/crawler"
	"github.com/pointsflow/points-indexer/core/datasources"
	"github.com/pointsflow/points-indexer/modules/points/datagateway"
	"github.com/pointsflow/points-indexer/modules/points/engine"
	"github.com/pointsflow/points-indexer/modules/points/entity"
	"github.com/pointsflow/points-indexer/modules/points/ranking"
)

type Usecase struct {
	eventDg      datagateway.EventDataGateway
	checkpointDg datagateway.CheckpointDataGateway
	snapshotDg   datagateway.SnapshotDataGateway
	datasource   datasources.ChainLogSource
	crawler      *crawler.Crawler[*entity.Event]
	sources      map[string]crawler.Source
	series       string
	engineConfig engine.Config
	boostTable   ranking.BoostTable
	tierWeights  ranking.TierWeights

	// calcMu serializes snapshot calculation so two triggers cannot race
	// on the same (series, blockHeight).
	calcMu sync.Mutex
}

type Params struct {
	EventDg      datagateway.EventDataGateway
	CheckpointDg datagateway.CheckpointDataGateway
	SnapshotDg   datagateway.SnapshotDataGateway
	Datasource   datasources.ChainLogSource
	Crawler      *crawler.Crawler[*entity.Event]
	Sources      []crawler.Source
	Series       string
	EngineConfig engine.Config
	BoostTable   ranking.BoostTable
	TierWeights  ranking.TierWeights
}

func New(params Params) *Usecase {
	sources := make(map[string]crawler.Source, len(params.Sources))
	for _, source := range params.Sources {
		sources[source.Id] = source
	}
	return &Usecase{
		eventDg:      params.EventDg,
		checkpointDg: params.CheckpointDg,
		snapshotDg:   params.SnapshotDg,
		datasource:   params.Datasource,
		crawler:      params.Crawler,
		sources:      sources,
		series:       params.Series,
		engineConfig: params.EngineConfig,
		boostTable:   params.BoostTable,
		tierWeights:  params.TierWeights,
	}
}

// Sources returns the configured crawl sources, keyed by id.
func (u *Usecase) Sources() map[string]crawler.Source {
	return u.sources
}
