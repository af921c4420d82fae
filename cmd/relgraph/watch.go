package main

import (
	"bufio"
	"context"
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/syssam/relgraph/compiler/query"
	"github.com/syssam/relgraph/watch"
)

func (c *cli) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Serve operations from stdin, reloading the model on change",
		Long: `Read one operation per line from stdin and write its JSON result to stdout.
A line is either a JSON request {"query": ..., "variables": ...} or the
operation text itself. The model file is watched and reloaded when it
changes; a model that fails to build or migrate keeps the previous one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := c.open()
			if err != nil {
				return err
			}
			defer cl.Close()
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			if c.cfg.Migrate {
				if err := cl.Migrate(ctx); err != nil {
					return err
				}
			}
			w := watch.New(c.cfg.SchemaPath(), func(model string) error {
				return cl.Reload(ctx, model)
			}, watch.WithLogger(c.log))

			// Reading stdin cannot be interrupted, so serving is not
			// waited for once the context is done.
			served := make(chan error, 1)
			go func() {
				defer cancel()
				served <- c.serve(ctx, func(r query.Request) (json.RawMessage, error) {
					return cl.Query(ctx, r.Query, r.Variables)
				})
			}()
			if err := w.Run(ctx); err != nil {
				return err
			}
			select {
			case err := <-served:
				return err
			default:
				return nil
			}
		},
	}
}

// serve answers each stdin line until EOF or cancellation. Operation
// errors are reported as {"errors": [...]} and do not stop serving.
func (c *cli) serve(ctx context.Context, run func(query.Request) (json.RawMessage, error)) error {
	sc := bufio.NewScanner(c.in)
	sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
	enc := json.NewEncoder(c.out)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return nil
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var req query.Request
		if err := json.Unmarshal([]byte(line), &req); err != nil || req.Query == "" {
			req = query.Request{Query: line}
		}
		data, err := run(req)
		if err != nil {
			c.log.DebugContext(ctx, "operation failed", "error", err)
			if err := enc.Encode(map[string]any{"errors": []map[string]string{{"message": err.Error()}}}); err != nil {
				return err
			}
			continue
		}
		if err := enc.Encode(map[string]json.RawMessage{"data": data}); err != nil {
			return err
		}
	}
	return sc.Err()
}
