package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is stripped from environment variables before they are mapped
// to config keys: DASHAUTH_TOKEN_ACCESS_TTL -> token.access_ttl.
const EnvPrefix = "DASHAUTH_"

var defaults = map[string]interface{}{
	"env":                "DEV",
	"app_name":           "Dashboard Auth",
	"log.level":          "info",
	"log.file":           "",
	"log.max_size_mb":    10,
	"token.access_ttl":   "1h",
	"token.refresh_ttl":  "2h",
	"token.refresh_lead": "60s",
	"token.secret":       "change-me",
	"token.issuer":       "dashboard-auth",
	"latency.login":      "1s",
	"latency.register":   "1s",
	"latency.refresh":    "1s",
	"latency.logout":     "500ms",
	"refresh.attempts":   3,
	"refresh.delay":      "2s",
	"storage.driver":     string(StorageFile),
	"storage.path":       "./data/session.json",
	"storage.redis_addr": "localhost:6379",
	"storage.namespace":  "dashauth",
	"server.addr":        ":8080",
	"metrics.addr":       "",
}

// sections are the nested key groups. An env var whose first segment is a
// section keeps the rest of its name (underscores included) as the leaf key.
var sections = map[string]struct{}{
	"log":     {},
	"token":   {},
	"latency": {},
	"refresh": {},
	"storage": {},
	"server":  {},
	"metrics": {},
}

type loader struct {
	k        *koanf.Koanf
	filePath string
}

func newLoader(filePath string) *loader {
	return &loader{
		k:        koanf.New("."),
		filePath: filePath,
	}
}

func (l *loader) load() (mainConfig, error) {
	if err := l.k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return mainConfig{}, fmt.Errorf("load defaults: %w", err)
	}

	if l.filePath != "" {
		if err := l.k.Load(file.Provider(l.filePath), yaml.Parser()); err != nil {
			return mainConfig{}, fmt.Errorf("load file %s: %w", l.filePath, err)
		}
	}

	if err := l.k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return mainConfig{}, fmt.Errorf("load env: %w", err)
	}

	var v values
	if err := l.k.Unmarshal("", &v); err != nil {
		return mainConfig{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return mainConfig{v: v}, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, rest, found := strings.Cut(s, "_")
	if !found {
		return s
	}
	if _, ok := sections[section]; ok {
		return section + "." + rest
	}
	return s
}
