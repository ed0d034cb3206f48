package config

import "time"

type TokenConfig interface {
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
	GetRefreshLead() time.Duration
	GetTokenSecret() string
	GetTokenIssuer() string
	GetRefreshAttempts() uint
	GetRefreshRetryDelay() time.Duration
}

type LatencyConfig interface {
	GetLoginLatency() time.Duration
	GetRegisterLatency() time.Duration
	GetRefreshLatency() time.Duration
	GetLogoutLatency() time.Duration
}

var (
	_ TokenConfig   = mainConfig{}
	_ LatencyConfig = mainConfig{}
)

func (c mainConfig) GetAccessTokenExpiry() time.Duration {
	return c.v.Token.AccessTTL
}

func (c mainConfig) GetRefreshTokenExpiry() time.Duration {
	return c.v.Token.RefreshTTL
}

// GetRefreshLead is how long before access expiry the refresh timer fires.
func (c mainConfig) GetRefreshLead() time.Duration {
	return c.v.Token.RefreshLead
}

func (c mainConfig) GetTokenSecret() string {
	return c.v.Token.Secret
}

func (c mainConfig) GetTokenIssuer() string {
	return c.v.Token.Issuer
}

func (c mainConfig) GetRefreshAttempts() uint {
	if c.v.Refresh.Attempts == 0 {
		return 1
	}
	return c.v.Refresh.Attempts
}

func (c mainConfig) GetRefreshRetryDelay() time.Duration {
	return c.v.Refresh.Delay
}

func (c mainConfig) GetLoginLatency() time.Duration {
	return c.v.Latency.Login
}

func (c mainConfig) GetRegisterLatency() time.Duration {
	return c.v.Latency.Register
}

func (c mainConfig) GetRefreshLatency() time.Duration {
	return c.v.Latency.Refresh
}

func (c mainConfig) GetLogoutLatency() time.Duration {
	return c.v.Latency.Logout
}
