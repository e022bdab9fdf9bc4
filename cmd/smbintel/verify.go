package main

import (
	"fmt"

	"github.com/jl-grey-man/smbintel"
	"github.com/jl-grey-man/smbintel/verify"
)

// Run executes the verify command.
func (c *VerifyCmd) Run(deps *Dependencies) error {
	policy, err := verify.ParseTimeoutPolicy(c.TimeoutPolicy)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", smbintel.ErrorMessage(err))
		return err
	}
	if deps.Verifier.Config == (verify.Config{}) {
		deps.Verifier.Config = verify.DefaultConfig()
	}
	deps.Verifier.Config.Timeout = policy

	res, err := deps.Verifier.Run(deps.Ctx)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", smbintel.ErrorMessage(err))
		return err
	}

	fmt.Fprintf(deps.Stdout, "Verified %d, weak %d, rejected %d (retryable %d, failed %d)\n",
		res.Verified, res.Weak, res.Rejected, res.Retryable, res.Failed)
	return nil
}
