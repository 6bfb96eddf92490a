package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/relmap/relmap/persist"
	"github.com/relmap/relmap/schema"
)

type junctionOptions struct {
	table         string
	ownerColumn   string
	inverseColumn string
	owner         string
	ids           []string
	dryRun        bool
}

func newJunctionCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "junction",
		Short: "Maintain many-to-many junction tables",
	}
	cmd.AddCommand(newJunctionSyncCommand(opts))
	return cmd
}

func newJunctionSyncCommand(opts *options) *cobra.Command {
	j := &junctionOptions{}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Make the ids paired with one owner exactly the given ones",
		Example: `  relmap junction sync --table post_tags --owner-column post_id \
    --inverse-column tag_id --owner 1 --ids 2,3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.open()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, cancel := opts.context(cmd)
			defer cancel()

			rel := j.relation()
			owner := parseID(j.owner)
			rows, err := store.SelectRows(ctx, j.table, map[string]interface{}{j.ownerColumn: owner})
			if err != nil {
				return err
			}
			current := make([]interface{}, 0, len(rows))
			for _, row := range rows {
				current = append(current, row[j.inverseColumn])
			}
			desired := make([]interface{}, 0, len(j.ids))
			for _, id := range j.ids {
				desired = append(desired, parseID(id))
			}

			inserts, deletes, err := persist.DiffJunction(rel, persist.Ref{Value: owner}, current, desired)
			if err != nil {
				return err
			}
			op := &persist.PersistOperation{JunctionInserts: inserts, JunctionDeletes: deletes}

			out := cmd.OutOrStdout()
			if op.Empty() {
				fmt.Fprintln(out, "nothing to do")
				return nil
			}
			fmt.Fprint(out, op)

			executor := persist.NewExecutor(store, persist.ExecutorOptions{Logger: opts.logger(), DryRun: j.dryRun})
			return executor.Execute(ctx, op)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&j.table, "table", "", "Junction table")
	flags.StringVar(&j.ownerColumn, "owner-column", "", "Column referencing the owner")
	flags.StringVar(&j.inverseColumn, "inverse-column", "", "Column referencing the related rows")
	flags.StringVar(&j.owner, "owner", "", "Owner identity")
	flags.StringSliceVar(&j.ids, "ids", nil, "Related identities to keep paired, comma separated")
	flags.BoolVar(&j.dryRun, "dry-run", false, "Print the plan without applying it")
	for _, name := range []string{"table", "owner-column", "inverse-column", "owner", "ids"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

// relation a many-to-many relation known only by its junction table
func (j *junctionOptions) relation() *schema.Relationship {
	return &schema.Relationship{
		Name:     j.table,
		Kind:     schema.ManyToMany,
		IsOwning: true,
		JunctionTable: &schema.JunctionTable{
			Name:          j.table,
			OwnerColumn:   j.ownerColumn,
			InverseColumn: j.inverseColumn,
		},
	}
}

// parseID integer identities as int64, anything else as given
func parseID(s string) interface{} {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return s
}
