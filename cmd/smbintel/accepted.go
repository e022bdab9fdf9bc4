package main

import (
	"encoding/json"
	"fmt"

	"github.com/jl-grey-man/smbintel"
)

// Run executes the accepted command.
func (c *AcceptedCmd) Run(deps *Dependencies) error {
	filter := smbintel.AcceptedFilter{ExcludeDuplicates: c.NoDuplicates}
	if c.Person != "" {
		filter.Person = &c.Person
	}
	if c.Company != "" {
		filter.Company = &c.Company
	}
	if c.Since > 0 {
		since := deps.Now().Add(-c.Since).UTC()
		filter.Since = &since
	}

	accepted, err := deps.Results.FindAccepted(deps.Ctx, filter)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", smbintel.ErrorMessage(err))
		return err
	}

	if c.JSON {
		enc := json.NewEncoder(deps.Stdout)
		for _, a := range accepted {
			if err := enc.Encode(a); err != nil {
				return err
			}
		}
		return nil
	}

	if len(accepted) == 0 {
		fmt.Fprintln(deps.Stdout, "No accepted claims.")
		return nil
	}
	for _, a := range accepted {
		company := a.Claim.Company()
		if company == "" {
			company = "-"
		}
		fmt.Fprintf(deps.Stdout, "%s\t%s\t%q\t%s\n", a.Result.Status, company, a.Claim.Quote, a.SourceURL)
	}
	return nil
}
