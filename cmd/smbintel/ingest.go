package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/jl-grey-man/smbintel"
)

// Run executes the ingest command.
func (c *IngestCmd) Run(deps *Dependencies) error {
	urls := c.URLs
	if len(urls) == 0 {
		var err error
		if urls, err = readLines(deps); err != nil {
			return err
		}
	}
	if len(urls) == 0 {
		err := smbintel.Errorf(smbintel.EINVALID, "no URLs to ingest")
		fmt.Fprintf(deps.Stderr, "error: %s\n", smbintel.ErrorMessage(err))
		return err
	}

	prov := smbintel.Provenance{
		Term:    c.Term,
		Pool:    smbintel.Pool(c.Pool),
		CycleID: c.Cycle,
	}
	res, err := deps.Crawler.Ingest(deps.Ctx, prov, urls)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", smbintel.ErrorMessage(err))
		return err
	}

	fmt.Fprintf(deps.Stdout, "Stored %d, duplicates %d, skipped %d, failed %d\n",
		res.Stored, res.Duplicates, res.Skipped, res.Failed)
	return nil
}

// readLines returns the non-blank lines of stdin, skipping # comments.
func readLines(deps *Dependencies) ([]string, error) {
	if deps.Stdin == nil {
		return nil, nil
	}
	var out []string
	sc := bufio.NewScanner(deps.Stdin)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}
