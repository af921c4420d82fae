package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/syssam/relgraph/client"
	"github.com/syssam/relgraph/compiler/gen"
	"github.com/syssam/relgraph/config"
)

// cli is the state shared by the commands of one invocation.
type cli struct {
	cfg *config.Config
	log *slog.Logger

	// Persistent flags.
	cfgFile string
	schema  string
	dsn     string
	verbose bool

	in          io.Reader
	out, errOut io.Writer
}

// Command group IDs.
const (
	groupModel    = "model"
	groupDatabase = "database"
)

func newRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	c := &cli{in: in, out: out, errOut: errOut}
	root := &cobra.Command{
		Use:   "relgraph",
		Short: "Compile GraphQL models and operations to SQLite",
		Long: `relgraph - GraphQL to SQLite compiler

relgraph reads a model of GraphQL object types, resolves the relations
between them and derives a query and mutation schema. Operations against
that schema compile to single SQLite statements returning JSON.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}
			return c.load()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&c.cfgFile, "config", "", "config file (default: "+config.DefaultFile+")")
	flags.StringVar(&c.schema, "schema", "", "model file, overrides the config")
	flags.StringVar(&c.dsn, "dsn", "", "database DSN, overrides the config")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "log at debug level")

	root.AddGroup(
		&cobra.Group{ID: groupModel, Title: "Model:"},
		&cobra.Group{ID: groupDatabase, Title: "Database:"},
	)
	for _, cmd := range []*cobra.Command{c.modelCmd(), c.schemaCmd(), c.sqlCmd()} {
		cmd.GroupID = groupModel
		root.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{c.migrateCmd(), c.queryCmd(), c.watchCmd()} {
		cmd.GroupID = groupDatabase
		root.AddCommand(cmd)
	}
	return root
}

// load reads the configuration and applies the flags over it.
// Precedence: flag > environment > config file > default.
func (c *cli) load() error {
	cfg, err := config.Load(c.cfgFile)
	if err != nil {
		return err
	}
	if c.schema != "" {
		cfg.Schema = c.schema
	}
	if c.dsn != "" {
		cfg.Database.DSN = c.dsn
	}
	if c.verbose {
		cfg.Log.Level = "debug"
	}
	c.cfg = cfg
	c.log = cfg.Logger(c.errOut)
	return nil
}

// build reads and builds the configured model.
func (c *cli) build() (*gen.Schema, error) {
	model, err := c.cfg.ReadSchema()
	if err != nil {
		return nil, err
	}
	return gen.Build(model, c.cfg.BuildOptions(c.log)...)
}

// open opens a client of the configured model and database.
func (c *cli) open() (*client.Client, error) {
	if c.cfg.Database.DSN == "" {
		return nil, fmt.Errorf("no database configured: set database.dsn, %s or --dsn", config.EnvDSN)
	}
	model, err := c.cfg.ReadSchema()
	if err != nil {
		return nil, err
	}
	return client.Open(c.cfg.Database.Driver, c.cfg.Database.DSN, model, c.cfg.ClientOptions(c.log)...)
}

// printJSON writes v as indented JSON.
func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readVars reads a JSON object of variables from path. An empty path
// yields no variables.
func readVars(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var vars map[string]any
	if err := json.Unmarshal(b, &vars); err != nil {
		return nil, fmt.Errorf("parse variables %s: %w", path, err)
	}
	return vars, nil
}
