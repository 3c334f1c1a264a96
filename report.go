package main

import (
	"os"

	yml "gopkg.in/yaml.v3"

	"github.com/svn-tools/svn2git/export"
)

// writeReport describes the converted repositories to a file as yaml: every
// branch with the revision it was created at, how many commits it received
// and the mark of its tip.
func writeReport(filename string, converter *Converter) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	report := make(map[string][]export.BranchStat, len(converter.order))
	for _, name := range converter.order {
		report[name] = converter.repositories[name].BranchStats()
	}

	ymlenc := yml.NewEncoder(f)
	ymlenc.SetIndent(2)
	if err := ymlenc.Encode(report); err != nil {
		return err
	}
	return ymlenc.Close()
}
