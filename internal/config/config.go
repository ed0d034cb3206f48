package config

import "time"

type Config interface {
	EnvConfig
	TokenConfig
	LatencyConfig
	StorageConfig
}

type EnvConfig interface {
	GetEnv() string
	GetAppName() string
	GetLogLevel() string
	GetLogFile() string
	GetLogMaxSizeMB() int
	GetServerAddr() string
	GetMetricsAddr() string
}

// values is the koanf unmarshal target. Getters on mainConfig read from it.
type values struct {
	Env     string `koanf:"env"`
	AppName string `koanf:"app_name"`

	Log struct {
		Level     string `koanf:"level"`
		File      string `koanf:"file"`
		MaxSizeMB int    `koanf:"max_size_mb"`
	} `koanf:"log"`

	Token struct {
		AccessTTL   time.Duration `koanf:"access_ttl"`
		RefreshTTL  time.Duration `koanf:"refresh_ttl"`
		RefreshLead time.Duration `koanf:"refresh_lead"`
		Secret      string        `koanf:"secret"`
		Issuer      string        `koanf:"issuer"`
	} `koanf:"token"`

	Latency struct {
		Login    time.Duration `koanf:"login"`
		Register time.Duration `koanf:"register"`
		Refresh  time.Duration `koanf:"refresh"`
		Logout   time.Duration `koanf:"logout"`
	} `koanf:"latency"`

	Refresh struct {
		Attempts uint          `koanf:"attempts"`
		Delay    time.Duration `koanf:"delay"`
	} `koanf:"refresh"`

	Storage struct {
		Driver    string `koanf:"driver"`
		Path      string `koanf:"path"`
		RedisAddr string `koanf:"redis_addr"`
		Namespace string `koanf:"namespace"`
	} `koanf:"storage"`

	Server struct {
		Addr string `koanf:"addr"`
	} `koanf:"server"`

	Metrics struct {
		Addr string `koanf:"addr"`
	} `koanf:"metrics"`
}

type mainConfig struct {
	v values
}

var _ Config = mainConfig{}

// New returns the built-in defaults overridden by DASHAUTH_ environment
// variables. It panics if the environment holds a malformed value; use Load
// to get the error instead.
func New() Config {
	cfg, err := newLoader("").load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads defaults, then the YAML file at path if one is given, then
// DASHAUTH_ environment variables. Later sources win.
func Load(path string) (Config, error) {
	return newLoader(path).load()
}
