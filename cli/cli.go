// Package cli implements the relmap command line tool
package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/relmap/relmap/dialects/mysql"
	"github.com/relmap/relmap/dialects/postgres"
	"github.com/relmap/relmap/dialects/sqlite"
	"github.com/relmap/relmap/logger"
	"github.com/relmap/relmap/storage/sqlstore"
)

type options struct {
	driver   string
	dsn      string
	envFile  string
	logLevel string
	timeout  time.Duration
}

// NewRootCommand builds the relmap command tree
func NewRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "relmap",
		Short: "Inspect and maintain relmap managed databases",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.loadEnv()
		},
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.driver, "driver", "d", "", "Database driver: mysql, postgres, pq, sqlite (env RELMAP_DRIVER)")
	flags.StringVar(&opts.dsn, "dsn", "", "Data source name (env RELMAP_DSN)")
	flags.StringVarP(&opts.envFile, "env-file", "e", ".env", "Path to .env file")
	flags.StringVarP(&opts.logLevel, "log-level", "l", "", "Log level: silent, error, warn, info (env RELMAP_LOG_LEVEL)")
	flags.DurationVar(&opts.timeout, "timeout", 30*time.Second, "Timeout of the whole command")

	root.AddCommand(newPingCommand(opts), newJunctionCommand(opts))
	return root
}

func (o *options) loadEnv() error {
	if _, err := os.Stat(o.envFile); err == nil {
		if err := godotenv.Load(o.envFile); err != nil {
			return fmt.Errorf("loading %s: %w", o.envFile, err)
		}
	}
	if o.driver == "" {
		o.driver = os.Getenv("RELMAP_DRIVER")
	}
	if o.dsn == "" {
		o.dsn = os.Getenv("RELMAP_DSN")
	}
	if o.logLevel == "" {
		o.logLevel = os.Getenv("RELMAP_LOG_LEVEL")
	}
	return nil
}

func (o *options) logger() logger.Interface {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	level := logger.LevelFromEnv(o.logLevel, logger.Warn)
	if level == logger.Info {
		l.SetLevel(logrus.DebugLevel)
	}
	return logger.NewLogrusLogger(l, logger.Config{
		SlowThreshold: 200 * time.Millisecond,
		LogLevel:      level,
	})
}

func (o *options) open() (*sqlstore.Store, error) {
	if o.dsn == "" {
		return nil, fmt.Errorf("no dsn given, use --dsn or RELMAP_DSN")
	}

	log := o.logger()
	switch strings.ToLower(o.driver) {
	case "mysql":
		return mysql.Open(o.dsn, log)
	case "postgres", "pgx":
		return postgres.Open(o.dsn, log)
	case "pq":
		return postgres.New(postgres.Config{DSN: o.dsn, DriverName: postgres.DriverPq}, log)
	case "sqlite", "sqlite3":
		return sqlite.Open(o.dsn, log)
	}
	return nil, fmt.Errorf("unsupported driver %q", o.driver)
}

func (o *options) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), o.timeout)
}

func newPingCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check the database connection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.open()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, cancel := opts.context(cmd)
			defer cancel()
			if err := store.Ping(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok %s\n", store.Dialect.Name())
			return nil
		},
	}
}
