package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/syssam/relgraph/compiler/query"
	"github.com/syssam/relgraph/compiler/resolve"
	"github.com/syssam/relgraph/schema"
)

func (c *cli) modelCmd() *cobra.Command {
	var edges bool
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Print the resolved model",
		Long: `Print the model after normalization and relation resolution, with every
relation directive made explicit. With --edges, list the relations instead:
one line per relation field with its cardinality, mirror field and the table
and columns holding the keys.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.build()
			if err != nil {
				return err
			}
			if edges {
				return c.printEdges(s.Model)
			}
			out, err := schema.PrintTypes(s.Model)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(c.out, out)
			return err
		},
	}
	cmd.Flags().BoolVar(&edges, "edges", false, "list the resolved relations")
	return cmd
}

func (c *cli) printEdges(g *schema.Graph) error {
	w := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	for _, e := range resolve.Edges(g) {
		mirror := e.Mirror
		if mirror == "" {
			mirror = "-"
		}
		fmt.Fprintf(w, "%s.%s\t%s\t%s.%s\t%s(%s)\n", e.Type, e.Field, e.Rel, e.Ref, mirror, e.Table, strings.Join(e.Columns, ", "))
	}
	return w.Flush()
}

func (c *cli) schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the expanded query and mutation schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.build()
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(c.out, s.Source)
			return err
		},
	}
}

func (c *cli) sqlCmd() *cobra.Command {
	var varsFile string
	cmd := &cobra.Command{
		Use:   "sql <operation-file>",
		Short: "Print the SQL an operation compiles to",
		Example: `  # Compile a query with variables
  relgraph sql users.graphql --vars vars.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.build()
			if err != nil {
				return err
			}
			src, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			vars, err := readVars(varsFile)
			if err != nil {
				return err
			}
			p, err := query.New(s, query.WithLogger(c.log)).Compile(string(src), vars)
			if err != nil {
				return err
			}
			return c.printJSON(p)
		},
	}
	cmd.Flags().StringVar(&varsFile, "vars", "", "JSON file of variables")
	return cmd
}

func (c *cli) migrateCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or extend the database tables of the model",
		Long: `Apply the model to the configured database. Tables, nullable columns and
indexes are added; changes that would lose data are reported and nothing is
applied.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := c.open()
			if err != nil {
				return err
			}
			defer cl.Close()
			if !dryRun {
				return cl.Migrate(cmd.Context())
			}
			stmts, err := cl.Migrator().Plan(cmd.Context())
			if err != nil {
				return err
			}
			for _, s := range stmts {
				fmt.Fprintln(c.out, s+";")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the statements without applying them")
	return cmd
}

func (c *cli) queryCmd() *cobra.Command {
	var varsFile string
	cmd := &cobra.Command{
		Use:   "query <operation-file>",
		Short: "Execute an operation against the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			vars, err := readVars(varsFile)
			if err != nil {
				return err
			}
			cl, err := c.open()
			if err != nil {
				return err
			}
			defer cl.Close()
			if c.cfg.Migrate {
				if err := cl.Migrate(cmd.Context()); err != nil {
					return err
				}
			}
			data, err := cl.Query(cmd.Context(), string(src), vars)
			if err != nil {
				return err
			}
			return c.printJSON(data)
		},
	}
	cmd.Flags().StringVar(&varsFile, "vars", "", "JSON file of variables")
	return cmd
}
