package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/jl-grey-man/smbintel"
	"gopkg.in/yaml.v3"
)

// seedFile is the format read by "seed".
type seedFile struct {
	Exploit []string `yaml:"exploit"`
	Explore []string `yaml:"explore"`
}

// Run executes the seed command.
func (c *SeedCmd) Run(deps *Dependencies) error {
	data, err := os.ReadFile(c.File)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %v\n", err)
		return err
	}
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		err = smbintel.Errorf(smbintel.EINVALID, "invalid seed file: %v", err)
		fmt.Fprintf(deps.Stderr, "error: %s\n", smbintel.ErrorMessage(err))
		return err
	}
	if len(seed.Exploit)+len(seed.Explore) == 0 {
		err := smbintel.Errorf(smbintel.EINVALID, "seed file has no terms")
		fmt.Fprintf(deps.Stderr, "error: %s\n", smbintel.ErrorMessage(err))
		return err
	}

	cfg, err := deps.Keywords.Seed(deps.Ctx, seed.Exploit, seed.Explore, deps.Now())
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", smbintel.ErrorMessage(err))
		return err
	}

	fmt.Fprintf(deps.Stdout, "Seeded version %d: %d exploit, %d explore\n",
		cfg.Version, len(cfg.Active(smbintel.PoolExploit)), len(cfg.Active(smbintel.PoolExplore)))
	return nil
}

// Run executes the pass command.
func (c *PassCmd) Run(deps *Dependencies) error {
	report, err := deps.Keywords.Pass(deps.Ctx, deps.Now())
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", smbintel.ErrorMessage(err))
		return err
	}

	if !report.Changed {
		fmt.Fprintf(deps.Stdout, "No changes; version %d is current\n", report.Version)
		return nil
	}
	fmt.Fprintf(deps.Stdout, "Wrote version %d\n", report.Version)
	if len(report.Retired) > 0 {
		fmt.Fprintf(deps.Stdout, "Retired: %s\n", strings.Join(report.Retired, ", "))
	}
	return nil
}

// Run executes the rollback command.
func (c *RollbackCmd) Run(deps *Dependencies) error {
	cfg, err := deps.Keywords.Rollback(deps.Ctx, deps.Now())
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", smbintel.ErrorMessage(err))
		return err
	}

	fmt.Fprintf(deps.Stdout, "Wrote version %d (%s)\n", cfg.Version, cfg.Reason)
	return nil
}
