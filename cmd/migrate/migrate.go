package migrate

import (
	"fmt"
	"net/url"

	"github.com/golang-migrate/migrate/v4"
)

const (
	pointsMigrationSource = "modules/points/database/postgresql/migrations"
	pointsMigrationTable  = "points_schema_migrations"
)

// consoleLogger prints migration progress to stdout, tagged with the module
// whose schema is being migrated.
type consoleLogger struct {
	module string
}

var _ migrate.Logger = consoleLogger{}

func (l consoleLogger) Printf(format string, args ...any) {
	fmt.Printf("[%s] "+format, append([]any{l.module}, args...)...)
}

func (l consoleLogger) Verbose() bool {
	return false
}

func cloneURLWithQuery(u *url.URL, newQuery url.Values) *url.URL {
	clone := *u
	query := clone.Query()
	for key, values := range newQuery {
		for _, value := range values {
			query.Add(key, value)
		}
	}
	clone.RawQuery = query.Encode()
	return &clone
}

var supportedDrivers = map[string]struct{}{
	"postgres":   {},
	"postgresql": {},
}
