package export

// Options configures every Repository built for one conversion run. The
// driver fills one of these from the command line and shares it, read-only,
// across all targets.
type Options struct {
	// DryRun routes the fast-import stream to a discard sink and skips
	// creating repository directories and emitting blob payloads.
	DryRun bool

	// AddMetadata appends an "svn path=...; revision=..." footer to every
	// commit and tag message.
	AddMetadata bool

	// AddMetadataNotes additionally records the same footer as a Git note
	// under refs/notes/commits.
	AddMetadataNotes bool

	// DebugRules mirrors every logged byte written to a fast-import child
	// into a per-repository gitlog-<name> file.
	DebugRules bool

	// CommitInterval is the number of transactions between automatic
	// checkpoint commands. Zero means the default of 10000.
	CommitInterval int

	// GitExecutable overrides the git command used to init repositories and
	// run fast-import. Empty means "git" from PATH.
	GitExecutable string
}

func (o *Options) gitExecutable() string {
	if o.GitExecutable != "" {
		return o.GitExecutable
	}
	return "git"
}

func (o *Options) commitInterval() int {
	if o.CommitInterval > 0 {
		return o.CommitInterval
	}
	return 10000
}
