package config

import (
	"time"

	"github.com/pointsflow/points-indexer/internal/postgres"
)

// Config is the points module configuration.
type Config struct {
	Database string          `mapstructure:"database"` // only "postgres" is supported
	Postgres postgres.Config `mapstructure:"postgres"`

	Datasource string  `mapstructure:"datasource"` // only "evm-node" is supported
	EVMNode    EVMNode `mapstructure:"evm_node"`

	// Series is the snapshot series this deployment produces.
	Series string `mapstructure:"series"`

	APIHandlers []string `mapstructure:"api_handlers"`

	// Sources is the registry of indexed (contract, event) pairs. One generic
	// crawler is parameterized per entry; adding an asset is a config change,
	// not a code change.
	Sources []Source `mapstructure:"sources"`

	// BoostTable maps group rank (index+1) to group boost. Ranks past the
	// table get zero.
	BoostTable []float64 `mapstructure:"boost_table"`

	// TierWeights are the fractions deposits count at by referral depth when
	// ranking groups. Empty means tier-0 only at full value.
	TierWeights []float64 `mapstructure:"tier_weights"`

	// BoostRules are the secondary-asset boost factors with their caps.
	BoostRules []BoostRule `mapstructure:"boost_rules"`

	Scheduler Scheduler `mapstructure:"scheduler"`
}

type EVMNode struct {
	RPCURL         string        `mapstructure:"rpc_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type Source struct {
	Id            string        `mapstructure:"id"`
	Address       string        `mapstructure:"address"`
	Kind          string        `mapstructure:"kind"`
	CreationBlock uint64        `mapstructure:"creation_block"`
	Window        uint64        `mapstructure:"window"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
}

type BoostRule struct {
	Category string  `mapstructure:"category"`
	Cap      float64 `mapstructure:"cap"`
}

type Scheduler struct {
	// Cron specs (robfig/cron). Empty disables the job.
	CrawlSpec     string `mapstructure:"crawl_spec"`
	CalculateSpec string `mapstructure:"calculate_spec"`
	RankingSpec   string `mapstructure:"ranking_spec"`
}
