package gtfsdb

import "adherence.onebusaway.org/internal/appconf"

// Config selects the database file and logging behavior of a Client.
type Config struct {
	DBPath  string
	Env     appconf.Environment
	verbose bool
}

func NewConfig(dbPath string, env appconf.Environment, verbose bool) Config {
	return Config{
		DBPath:  dbPath,
		Env:     env,
		verbose: verbose,
	}
}
