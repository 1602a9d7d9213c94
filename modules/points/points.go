package points

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	ethcommon "github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/gofiber/fiber/v2"
	"github.com/pointsflow/points-indexer/common/errs"
	"github.com/pointsflow/points-indexer/core"
	"github.com/pointsflow/points-indexer/core/crawler"
	"github.com/pointsflow/points-indexer/core/datasources"
	"github.com/pointsflow/points-indexer/internal/config"
	"github.com/pointsflow/points-indexer/internal/postgres"
	"github.com/pointsflow/points-indexer/modules/points/api/httphandler"
	pointsconfig "github.com/pointsflow/points-indexer/modules/points/config"
	"github.com/pointsflow/points-indexer/modules/points/datagateway"
	"github.com/pointsflow/points-indexer/modules/points/engine"
	"github.com/pointsflow/points-indexer/modules/points/entity"
	pointspostgres "github.com/pointsflow/points-indexer/modules/points/repository/postgres"
	"github.com/pointsflow/points-indexer/modules/points/scheduler"
	"github.com/pointsflow/points-indexer/modules/points/usecase"
	"github.com/pointsflow/points-indexer/pkg/logger"
	"github.com/pointsflow/points-indexer/pkg/reportingclient"
	"github.com/samber/do/v2"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Version is the points module version.
const Version = "v0.1.0"

func New(injector do.Injector) (core.Worker, error) {
	ctx := do.MustInvoke[context.Context](injector)
	conf := do.MustInvoke[config.Config](injector)
	reportingClient := do.MustInvoke[*reportingclient.ReportingClient](injector)
	cfg := conf.Modules.Points

	var (
		eventDg      datagateway.EventDataGateway
		checkpointDg datagateway.CheckpointDataGateway
		snapshotDg   datagateway.SnapshotDataGateway
	)
	var cleanupFuncs []func(context.Context) error
	switch strings.ToLower(cfg.Database) {
	case "postgresql", "postgres", "pg":
		pg, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			if errors.Is(err, errs.InvalidArgument) {
				return nil, errors.Wrap(err, "Invalid Postgres configuration for points module")
			}
			return nil, errors.Wrap(err, "can't create Postgres connection pool")
		}
		cleanupFuncs = append(cleanupFuncs, func(ctx context.Context) error {
			pg.Close()
			return nil
		})
		repo := pointspostgres.NewRepository(pg)
		eventDg = repo
		checkpointDg = repo
		snapshotDg = repo
	default:
		return nil, errors.Wrapf(errs.Unsupported, "%q database for points module is not supported", cfg.Database)
	}

	var datasource datasources.ChainLogSource
	switch strings.ToLower(cfg.Datasource) {
	case "evm-node":
		evmNode, err := datasources.NewEVMNode(ctx, cfg.EVMNode.RPCURL, datasources.EVMNodeOptions{
			RequestTimeout: cfg.EVMNode.RequestTimeout,
		})
		if err != nil {
			return nil, errors.Wrap(err, "can't create EVM node datasource")
		}
		datasource = evmNode
	default:
		return nil, errors.Wrapf(errs.Unsupported, "%q datasource is not supported", cfg.Datasource)
	}

	sources, decoders, err := buildSources(cfg.Sources)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	eventCrawler := crawler.New[*entity.Event](datasource, checkpointDg, eventSink{eventDg}, dispatchDecoder(decoders))

	engineConfig, err := buildEngineConfig(cfg.BoostRules)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	pointsUsecase := usecase.New(usecase.Params{
		EventDg:      eventDg,
		CheckpointDg: checkpointDg,
		SnapshotDg:   snapshotDg,
		Datasource:   datasource,
		Crawler:      eventCrawler,
		Sources:      sources,
		Series:       cfg.Series,
		EngineConfig: engineConfig,
		BoostTable:   decimalsOf(cfg.BoostTable),
		TierWeights:  decimalsOf(cfg.TierWeights),
	})

	// Mount API
	apiHandlers := lo.Uniq(cfg.APIHandlers)
	for _, handler := range apiHandlers {
		switch handler {
		case "http":
			httpServer := do.MustInvoke[*fiber.App](injector)
			pointsHTTPHandler := httphandler.New(pointsUsecase)
			if err := pointsHTTPHandler.Mount(httpServer); err != nil {
				return nil, errors.Wrap(err, "can't mount Points API")
			}
			logger.InfoContext(ctx, "Mounted HTTP handler")
		default:
			return nil, errors.Wrapf(errs.Unsupported, "%q API handler is not supported", handler)
		}
	}

	sched, err := scheduler.New(ctx, cfg.Scheduler, pointsUsecase)
	if err != nil {
		return nil, errors.Wrap(err, "can't create scheduler")
	}

	return NewWorker(pointsUsecase, sched, reportingClient, conf.Chain, cleanupFuncs), nil
}

// buildSources resolves the configured sources into crawler sources and a
// per-source decoder registry.
func buildSources(configs []pointsconfig.Source) ([]crawler.Source, map[string]crawler.Decoder[*entity.Event], error) {
	sources := make([]crawler.Source, 0, len(configs))
	decoders := make(map[string]crawler.Decoder[*entity.Event], len(configs))
	for _, sc := range configs {
		if sc.Id == "" {
			return nil, nil, errors.Wrap(errs.InvalidArgument, "source id is required")
		}
		if _, ok := decoders[sc.Id]; ok {
			return nil, nil, errors.Wrapf(errs.Duplicate, "duplicate source id %q", sc.Id)
		}
		if !ethcommon.IsHexAddress(sc.Address) {
			return nil, nil, errors.Wrapf(errs.InvalidArgument, "source %q address %q is not a valid address", sc.Id, sc.Address)
		}
		kind := entity.EventKind(sc.Kind)
		if !kind.IsValid() {
			return nil, nil, errors.Wrapf(errs.Unsupported, "source %q event kind %q is not supported", sc.Id, sc.Kind)
		}

		topic, err := EventTopic(kind)
		if err != nil {
			return nil, nil, errors.WithStack(err)
		}
		decode, err := NewEventDecoder(kind)
		if err != nil {
			return nil, nil, errors.WithStack(err)
		}

		sources = append(sources, crawler.Source{
			Id:            sc.Id,
			Address:       ethcommon.HexToAddress(sc.Address),
			Topic0:        topic,
			CreationBlock: sc.CreationBlock,
			Window:        sc.Window,
			RetryDelay:    sc.RetryDelay,
		})
		decoders[sc.Id] = decode
	}
	return sources, decoders, nil
}

// dispatchDecoder routes each log to the decoder of the source it came from.
func dispatchDecoder(decoders map[string]crawler.Decoder[*entity.Event]) crawler.Decoder[*entity.Event] {
	return func(source crawler.Source, log ethtypes.Log) (*entity.Event, error) {
		decode, ok := decoders[source.Id]
		if !ok {
			return nil, errors.Wrapf(errs.NotFound, "no decoder for source %q", source.Id)
		}
		return decode(source, log)
	}
}

func buildEngineConfig(rules []pointsconfig.BoostRule) (engine.Config, error) {
	var cfg engine.Config
	for _, rule := range rules {
		category := entity.RewardCategory(rule.Category)
		if !category.IsValid() {
			return engine.Config{}, errors.Wrapf(errs.Unsupported, "boost rule category %q is not supported", rule.Category)
		}
		cfg.BoostRules = append(cfg.BoostRules, engine.BoostRule{
			Category: category,
			Cap:      decimal.NewFromFloat(rule.Cap),
		})
	}
	return cfg, nil
}

func decimalsOf(values []float64) []decimal.Decimal {
	return lo.Map(values, func(v float64, _ int) decimal.Decimal {
		return decimal.NewFromFloat(v)
	})
}

// eventSink adapts the event data gateway to the crawler sink.
type eventSink struct {
	dg datagateway.EventWriterDataGateway
}

func (s eventSink) StoreEvents(ctx context.Context, events []*entity.Event) error {
	return errors.WithStack(s.dg.CreateEvents(ctx, events))
}
