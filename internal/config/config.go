package config

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/pointsflow/points-indexer/common"
	pointsconfig "github.com/pointsflow/points-indexer/modules/points/config"
	"github.com/pointsflow/points-indexer/pkg/logger"
	"github.com/pointsflow/points-indexer/pkg/logger/slogx"
	"github.com/pointsflow/points-indexer/pkg/middleware/requestlogger"
	"github.com/pointsflow/points-indexer/pkg/reportingclient"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	configOnce sync.Once
	configFile string
	config     = &Config{
		Logger: logger.Config{
			Output: "TEXT",
		},
		Chain: common.ChainMainnet,
		HTTPServer: HTTPServer{
			Port: 8080,
		},
	}
)

type Config struct {
	Logger        logger.Config          `mapstructure:"logger"`
	Chain         common.Chain           `mapstructure:"chain"`
	APIOnly       bool                   `mapstructure:"api_only"`
	EnableModules []string               `mapstructure:"enable_modules"`
	HTTPServer    HTTPServer             `mapstructure:"http_server"`
	Reporting     reportingclient.Config `mapstructure:"reporting"`
	Modules       Modules                `mapstructure:"modules"`
}

type HTTPServer struct {
	Port   int                  `mapstructure:"port"`
	Logger requestlogger.Config `mapstructure:"logger"`
}

type Modules struct {
	Points pointsconfig.Config `mapstructure:"points"`
}

// BindPFlag binds a command-line flag to a configuration key. Must be called
// before the first Load.
func BindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		logger.Panic("failed to bind pflag", slogx.String("key", key), slogx.Error(err))
	}
}

// SetFile overrides the config file location. Must be called before the
// first Load.
func SetFile(path string) {
	configFile = path
}

// Load reads the configuration once from config file and environment
// variables and caches it for the rest of the process lifetime.
func Load() Config {
	ctx := logger.WithContext(context.Background(), slog.String("package", "config"))
	configOnce.Do(func() {
		if configFile != "" {
			viper.SetConfigFile(configFile)
		} else {
			viper.AddConfigPath("./")
			viper.SetConfigName("config")
		}

		viper.AutomaticEnv()
		viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		if err := viper.ReadInConfig(); err != nil {
			var errNotfound viper.ConfigFileNotFoundError
			if errors.As(err, &errNotfound) {
				logger.WarnContext(ctx, "config file not found, use default value", slogx.Error(err))
			} else {
				logger.PanicContext(ctx, "invalid config file", slogx.Error(err))
			}
		}

		if err := viper.Unmarshal(&config); err != nil {
			logger.PanicContext(ctx, "failed to unmarshal config", slogx.Error(err))
		}
	})

	return *config
}
