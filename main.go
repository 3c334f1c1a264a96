package main

// svn2git converts a Subversion repository into one or more Git repositories
// by streaming commands to git fast-import.
//
// The conversion is driven by a yaml rules file that maps SVN paths onto
// (repository, branch, prefix) triples:
//
//	repositories:
//	  - name: project
//	    branches: [master, stable]
//	matches:
//	  - match: trunk/
//	    repository: project
//	    branch: master
//	  - match: branches/([^/]+)/
//	    repository: project
//	    branch: $1
//	  - match: tags/([^/]+)/
//	    repository: project
//	    branch: refs/tags/$1
//	    annotated: true
//
// Input is one or more svnadmin dump files (created without --deltas),
// presented in revision order. With --incremental, a previous run's progress
// log and marks files are used to resume where it stopped.

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/svn-tools/svn2git/export"
)

var rootCmd = &cobra.Command{
	Use:           "svn2git [flags] DUMPFILE...",
	Short:         "Convert a Subversion repository to Git",
	Args:          cobra.MinimumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(args)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	logger, err := buildLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()
	log := logger.Sugar()
	export.SetLogger(log)

	// Determine what files we're going to read.
	filenames := make([]string, 0, len(args))
	for _, arg := range args {
		matches, err := filepath.Glob(arg)
		if err != nil {
			return fmt.Errorf("invalid dump file/glob: %s: %w", arg, err)
		}
		if len(matches) == 0 {
			return fmt.Errorf("no matching dump files found: %s", arg)
		}
		filenames = append(filenames, matches...)
	}

	rules, err := NewRuleset(*rulesFile)
	if err != nil {
		return err
	}

	identities, err := loadIdentityMap(*identityMap)
	if err != nil {
		return err
	}

	converter, err := NewConverter(rules, buildOptions(), identities, *incremental, log)
	if err != nil {
		return err
	}
	defer converter.Close()

	if err := converter.Run(filenames, *resumeFrom, *maxRev); err != nil {
		return err
	}

	if *reportFile != "" {
		if err := writeReport(*reportFile, converter); err != nil {
			return err
		}
	}

	log.Infof("finished")
	return nil
}
