package config

var _ EnvConfig = mainConfig{}

func (c mainConfig) GetEnv() string {
	if c.v.Env == "" {
		return "DEV"
	}
	return c.v.Env
}

func (c mainConfig) GetAppName() string {
	return c.v.AppName
}

func (c mainConfig) GetLogLevel() string {
	return c.v.Log.Level
}

// GetLogFile returns the rotating log file path, empty for stderr only.
func (c mainConfig) GetLogFile() string {
	return c.v.Log.File
}

func (c mainConfig) GetLogMaxSizeMB() int {
	return c.v.Log.MaxSizeMB
}

func (c mainConfig) GetServerAddr() string {
	return c.v.Server.Addr
}

// GetMetricsAddr returns the listen address for /metrics, empty to disable.
func (c mainConfig) GetMetricsAddr() string {
	return c.v.Metrics.Addr
}
