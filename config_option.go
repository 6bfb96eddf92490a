package relmap

import (
	"time"

	"github.com/relmap/relmap/logger"
	"github.com/relmap/relmap/persist"
	"github.com/relmap/relmap/schema"
)

// Option use functional option for relmap Config.
type Option func(c *Config)

// WithLogger set logger.
func WithLogger(logger logger.Interface) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithNamingStrategy set schema namer.
func WithNamingStrategy(namer schema.Namer) Option {
	return func(c *Config) {
		c.NamingStrategy = namer
	}
}

// WithRegistry share a schema registry.
func WithRegistry(registry *schema.Registry) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

// WithNowFunc set now func.
func WithNowFunc(fn func() time.Time) Option {
	return func(c *Config) {
		c.NowFunc = fn
	}
}

// WithDryRun enable dry run.
func WithDryRun() Option {
	return func(c *Config) {
		c.DryRun = true
	}
}

// WithAssumeExisting treat entities with an identity as persisted.
func WithAssumeExisting() Option {
	return func(c *Config) {
		c.AssumeExisting = true
	}
}

// WithLookupConcurrency set the number of concurrent point lookups.
func WithLookupConcurrency(n int) Option {
	return func(c *Config) {
		c.LookupConcurrency = n
	}
}

// WithRequireExistingOwner check relation owners before mutating.
func WithRequireExistingOwner() Option {
	return func(c *Config) {
		c.RequireExistingOwner = true
	}
}

// WithFinder set the finder loading database state.
func WithFinder(finder persist.Finder) Option {
	return func(c *Config) {
		c.Finder = finder
	}
}
