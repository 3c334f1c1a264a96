package main

import (
	"errors"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/svn-tools/svn2git/export"
)

func stringFlag(name, value, usage string) *string {
	s := value
	rootCmd.PersistentFlags().StringVar(&s, name, value, usage)
	return &s
}

func boolFlag(name string, value bool, usage string) *bool {
	b := value
	rootCmd.PersistentFlags().BoolVar(&b, name, value, usage)
	return &b
}

func intFlag(name string, value int, usage string) *int {
	i := value
	rootCmd.PersistentFlags().IntVar(&i, name, value, usage)
	return &i
}

// --rules: required, the yaml path-mapping rules.
var rulesFile *string

// --identity-map: optional, maps svn usernames to git identities.
var identityMap *string

// --incremental: resume a previous conversion from its progress logs.
var incremental *bool

// --resume-from: with --incremental, force the revision to resume at.
var resumeFrom *int

// --max-rev: stop after converting this revision.
var maxRev *int

// --dry-run: run the whole conversion without spawning git.
var dryRun *bool

// --add-metadata: append svn provenance to every commit message.
var addMetadata *bool

// --add-metadata-notes: record svn provenance as git notes instead/as well.
var addMetadataNotes *bool

// --commit-interval: transactions between automatic checkpoints.
var commitInterval *int

// --debug-rules: mirror the fast-import command stream to gitlog-<repo> files.
var debugRules *bool

// --git-executable: override the git command.
var gitExecutable *string

// --report: write a yaml summary of converted branches.
var reportFile *string

// -v / --quiet control log verbosity.
var verbose *bool
var quiet *bool

func init() {
	rulesFile = stringFlag("rules", "rules.yml", "path to the yaml rules file")
	identityMap = stringFlag("identity-map", "", "path to a 'svnuser Name <email>' map file")
	incremental = boolFlag("incremental", false, "resume a previous conversion")
	resumeFrom = intFlag("resume-from", 0, "revision to resume at (0 = detect)")
	maxRev = intFlag("max-rev", 0, "last revision to convert (0 = all)")
	dryRun = boolFlag("dry-run", false, "do not create repositories or spawn git fast-import")
	addMetadata = boolFlag("add-metadata", false, "append 'svn path=...; revision=...' to commit messages")
	addMetadataNotes = boolFlag("add-metadata-notes", false, "record svn provenance as notes under refs/notes/commits")
	commitInterval = intFlag("commit-interval", 10000, "transactions between fast-import checkpoints")
	debugRules = boolFlag("debug-rules", false, "mirror fast-import commands to gitlog files")
	gitExecutable = stringFlag("git-executable", "git", "git command to run")
	reportFile = stringFlag("report", "", "write a yaml branch report to this file")
	verbose = new(bool)
	rootCmd.PersistentFlags().BoolVarP(verbose, "verbose", "v", false, "enable debug output")
	quiet = boolFlag("quiet", false, "suppress all but warnings")
}

func buildLogger() (*zap.Logger, error) {
	if *verbose && *quiet {
		return nil, errors.New("--quiet and --verbose are mutually exclusive")
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	switch {
	case *verbose:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case *quiet:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	return cfg.Build()
}

func buildOptions() *export.Options {
	return &export.Options{
		DryRun:           *dryRun,
		AddMetadata:      *addMetadata,
		AddMetadataNotes: *addMetadataNotes,
		DebugRules:       *debugRules,
		CommitInterval:   *commitInterval,
		GitExecutable:    *gitExecutable,
	}
}
