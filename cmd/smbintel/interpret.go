package main

import (
	"fmt"

	"github.com/jl-grey-man/smbintel"
	"github.com/jl-grey-man/smbintel/verify"
)

// Run executes the interpret command.
func (c *InterpretCmd) Run(deps *Dependencies) error {
	res, err := verify.Interpret(deps.Ctx, deps.Ledger, deps.Interpreter, deps.Claims, deps.Logger)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", smbintel.ErrorMessage(err))
		return err
	}

	fmt.Fprintf(deps.Stdout, "Interpreted %d pages: %d claims, %d dropped, %d failed\n",
		res.Records, res.Claims, res.Dropped, res.Failed)
	return nil
}
