package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jl-grey-man/smbintel"
)

// Run executes the queries command. The batch is recorded as used as soon
// as it is printed.
func (c *QueriesCmd) Run(deps *Dependencies) error {
	cycleID := c.Cycle
	if cycleID == "" {
		cycleID = uuid.NewString()
	}

	queries, err := deps.Keywords.BuildBatch(deps.Ctx, cycleID)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", smbintel.ErrorMessage(err))
		return err
	}
	if err := deps.Keywords.RecordBatch(deps.Ctx, queries, deps.Now()); err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", smbintel.ErrorMessage(err))
		return err
	}

	if c.JSON {
		enc := json.NewEncoder(deps.Stdout)
		for _, q := range queries {
			if err := enc.Encode(q); err != nil {
				return err
			}
		}
		return nil
	}

	fmt.Fprintf(deps.Stdout, "cycle %s\n", cycleID)
	for _, q := range queries {
		fmt.Fprintf(deps.Stdout, "%s\t%s\n", q.Pool, q.Text)
	}
	return nil
}
