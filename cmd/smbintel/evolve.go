package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/jl-grey-man/smbintel"
	"gopkg.in/yaml.v3"
)

// Run executes the evolve command. Proposals come from a file or, with
// --suggest, from the keyword advisor.
func (c *EvolveCmd) Run(deps *Dependencies) error {
	if (c.Proposals == "") == !c.Suggest {
		err := smbintel.Errorf(smbintel.EINVALID, "use exactly one of --proposals or --suggest")
		fmt.Fprintf(deps.Stderr, "error: %s\n", smbintel.ErrorMessage(err))
		return err
	}

	var proposals *smbintel.Proposals
	var err error
	if c.Suggest {
		proposals, err = c.suggest(deps)
	} else {
		proposals, err = readProposals(c.Proposals)
	}
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", smbintel.ErrorMessage(err))
		return err
	}

	report, err := deps.Keywords.Apply(deps.Ctx, proposals, deps.Now())
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", smbintel.ErrorMessage(err))
		return err
	}

	fmt.Fprintf(deps.Stdout, "Version %d\n", report.Version)
	for _, line := range []struct {
		label string
		terms []string
	}{
		{"Admitted", report.Admitted},
		{"Rejected", report.Rejected},
		{"Duplicates", report.Duplicates},
		{"Evicted", report.Evicted},
		{"Retired", report.Retired},
	} {
		if len(line.terms) > 0 {
			fmt.Fprintf(deps.Stdout, "%s: %s\n", line.label, strings.Join(line.terms, ", "))
		}
	}
	return nil
}

func (c *EvolveCmd) suggest(deps *Dependencies) (*smbintel.Proposals, error) {
	since := deps.Now().Add(-c.Since).UTC()
	accepted, err := deps.Results.FindAccepted(deps.Ctx, smbintel.AcceptedFilter{
		Since:             &since,
		ExcludeDuplicates: true,
	})
	if err != nil {
		return nil, err
	}
	cfg, err := deps.Keywords.Store.Current(deps.Ctx)
	if err != nil {
		return nil, err
	}
	return deps.Advisor.Propose(deps.Ctx, accepted, cfg)
}

func readProposals(path string) (*smbintel.Proposals, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p smbintel.Proposals
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, smbintel.Errorf(smbintel.EINVALID, "invalid proposals file: %v", err)
	}
	return &p, nil
}
