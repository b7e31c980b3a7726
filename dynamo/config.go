package dynamo

import "log/slog"

// Config holds configuration for the DynamoDB driver.
type Config struct {
	// TablePrefix is prepended to every table name.
	// Default: "" (tables are named after their model: "BlogPost" -> "blog_posts")
	TablePrefix string

	// UniqueTable is the table holding unique constraint records. Unique
	// properties are only enforced when it is set.
	// Default: ""
	UniqueTable string

	// Region and Endpoint configure the client built by Connect when no
	// client was supplied. Endpoint targets DynamoDB Local and similar.
	Region   string
	Endpoint string

	// Workers bounds the concurrent UpdateItem calls of one Update.
	// Default: 8
	// Max: 64
	Workers int

	// Logger receives driver logs. Default: slog.Default()
	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Workers: 8,
		Logger:  slog.Default(),
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.Workers < 1 {
		c.Workers = 8
	}
	if c.Workers > 64 {
		c.Workers = 64
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
