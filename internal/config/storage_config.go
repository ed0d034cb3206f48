package config

type StorageDriver string

const (
	StorageMemory StorageDriver = "memory"
	StorageFile   StorageDriver = "file"
	StorageRedis  StorageDriver = "redis"
)

type StorageConfig interface {
	GetStorageDriver() StorageDriver
	GetStoragePath() string
	GetRedisAddr() string
	GetStorageNamespace() string
}

var _ StorageConfig = mainConfig{}

func (c mainConfig) GetStorageDriver() StorageDriver {
	return StorageDriver(c.v.Storage.Driver)
}

// GetStoragePath is the JSON document used by the file driver.
func (c mainConfig) GetStoragePath() string {
	return c.v.Storage.Path
}

func (c mainConfig) GetRedisAddr() string {
	return c.v.Storage.RedisAddr
}

func (c mainConfig) GetStorageNamespace() string {
	return c.v.Storage.Namespace
}
