package main

import (
	"fmt"

	"github.com/jrsteele09/dashboard-auth/internal/config"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

// Build information, set via ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

const runtimeKey = "runtime"

// App creates the dashauth command-line application.
func App() *cli.App {
	return &cli.App{
		Name:    "dashauth",
		Usage:   "Dashboard authentication session tool",
		Version: fmt.Sprintf("%s (commit: %s)", Version, Commit),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			LoginCommand(),
			RegisterCommand(),
			LogoutCommand(),
			StatusCommand(),
			OpenCommand(),
			WatchCommand(),
			ServeCommand(),
			WhoAmICommand(),
		},
		After: func(c *cli.Context) error {
			if rt, ok := c.App.Metadata[runtimeKey].(*runtime); ok {
				rt.Close()
				delete(c.App.Metadata, runtimeKey)
			}
			return nil
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "YAML config file; DASHAUTH_* environment variables override it",
			EnvVars: []string{"DASHAUTH_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "storage",
			Aliases: []string{"s"},
			Usage:   "Session storage driver: memory, file, redis",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: text, json",
			Value:   "text",
		},
	}
}

// getRuntime builds the runtime on first use so --help and --version never
// touch storage.
func getRuntime(c *cli.Context) (*runtime, error) {
	if rt, ok := c.App.Metadata[runtimeKey].(*runtime); ok {
		return rt, nil
	}

	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}
	if driver := c.String("storage"); driver != "" {
		cfg = storageOverride{Config: cfg, driver: config.StorageDriver(driver)}
	}

	rt, err := newRuntime(cfg)
	if err != nil {
		return nil, err
	}
	if c.App.Metadata == nil {
		c.App.Metadata = map[string]interface{}{}
	}
	c.App.Metadata[runtimeKey] = rt
	return rt, nil
}

func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, errors.Wrap(err, "[loadConfig]")
	}
	return cfg, nil
}

type storageOverride struct {
	config.Config
	driver config.StorageDriver
}

func (o storageOverride) GetStorageDriver() config.StorageDriver {
	return o.driver
}
