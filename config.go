package ledgerxgo

type Config struct {
	Listen   string `yaml:"listen"`
	Database struct {
		ConnectionString string `yaml:"conn_str"`
	} `yaml:"database"`
	Snowflake struct {
		Node int64 `yaml:"node"`
	} `yaml:"snowflake"`
	Cache struct {
		// RefreshSeconds arms a periodic full invalidation of the
		// aggregate maps. 0 disables it; warm maps then live for the
		// process lifetime.
		RefreshSeconds int64 `yaml:"refresh_seconds"`
	} `yaml:"cache"`
	Limits LimitsConfig `yaml:"limits"`
}
