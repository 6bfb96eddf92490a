package relmap

import (
	"time"

	"github.com/relmap/relmap/logger"
	"github.com/relmap/relmap/persist"
	"github.com/relmap/relmap/schema"
)

// Config relmap config
type Config struct {
	// NamingStrategy tables, columns naming strategy, ignored when Registry is set
	NamingStrategy schema.Namer
	// Registry caches parsed schemas, one per DB unless shared explicitly
	Registry *schema.Registry
	// Logger
	Logger logger.Interface
	// NowFunc the function to be used when stamping auto create/update times
	NowFunc func() time.Time
	// DryRun plans and logs operations without touching storage
	DryRun bool
	// AssumeExisting updates entities carrying an identity without looking
	// them up, instead of inserting those missing from storage
	AssumeExisting bool
	// LookupConcurrency bounds concurrent point lookups while loading
	LookupConcurrency int
	// RequireExistingOwner makes relation mutations check that the owner exists
	RequireExistingOwner bool
	// Finder loads database state, defaults to a RowFinder over the storage
	Finder persist.Finder
}

func (c *Config) planOptions() persist.PlanOptions {
	return persist.PlanOptions{NowFunc: c.NowFunc, AssumeExisting: c.AssumeExisting}
}
