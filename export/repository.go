package export

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// RepositoryRule is the slice of the ruleset a Repository is built from: its
// name, the branches the rules declare for it, a path prefix applied to every
// file inside it, and an optional submodule relation to a parent repository.
type RepositoryRule struct {
	Name            string
	Branches        []string
	Prefix          string
	SubmoduleInRepo string
	SubmodulePath   string
}

// Repository owns one target Git repository: its fast-import child, its mark
// counters, its branch registry and its pending branch resets. All methods
// must be called from a single goroutine, in ascending SVN revision order.
type Repository struct {
	name   string
	prefix string
	opts   *Options

	submoduleInRepo *Repository
	submodulePath   string

	fastImport        *fastImport
	processHasStarted bool
	incremental       bool

	commitCount             int
	outstandingTransactions int
	lastCommitMark          int
	nextFileMark            int

	branches      map[string]*Branch
	annotatedTags map[string]*annotatedTag

	// Pending reset output keyed by ref, so a create-then-delete within one
	// revision can collapse to nothing.
	resetBranches   map[string]string
	deletedBranches map[string]string
}

type annotatedTag struct {
	supportingRef string
	svnprefix     string
	revnum        int
	author        string
	datetime      int64
	log           string
}

// QualifyRef turns a bare branch name into a fully-qualified ref; names
// already under refs/ pass through unchanged.
func QualifyRef(name string) string {
	if strings.HasPrefix(name, "refs/") {
		return name
	}
	return "refs/heads/" + name
}

// NewRepository builds the repository described by rule. Unless dry-run is
// set, the bare Git repository and its marks file are created on first use of
// a name. index resolves the submodule parent, when the rule names one.
func NewRepository(rule RepositoryRule, opts *Options, incremental bool, index map[string]*Repository) (*Repository, error) {
	r := &Repository{
		name:            rule.Name,
		prefix:          rule.Prefix,
		opts:            opts,
		incremental:     incremental,
		nextFileMark:    maxMark,
		branches:        make(map[string]*Branch),
		annotatedTags:   make(map[string]*annotatedTag),
		resetBranches:   make(map[string]string),
		deletedBranches: make(map[string]string),
	}

	if rule.SubmoduleInRepo != "" {
		parent, ok := index[rule.SubmoduleInRepo]
		if !ok {
			return nil, fmt.Errorf("repository %s is a submodule of unknown repository %s",
				rule.Name, rule.SubmoduleInRepo)
		}
		r.submoduleInRepo = parent
		r.submodulePath = rule.SubmodulePath
	}

	for _, name := range rule.Branches {
		r.branch(QualifyRef(name)).created = 0
	}
	// The default branch always exists from revision 1.
	r.branch("refs/heads/master").created = 1

	if !opts.DryRun {
		if _, err := os.Stat(rule.Name); os.IsNotExist(err) {
			logger.Infof("creating new repository %s", rule.Name)
			if err := initBareRepository(rule.Name, opts); err != nil {
				return nil, err
			}
		}
	}

	return r, nil
}

// Name returns the repository's directory name.
func (r *Repository) Name() string {
	return r.name
}

// Close flushes and reaps the fast-import child. Closing with transactions
// still open is a programmer error.
func (r *Repository) Close() error {
	if r.outstandingTransactions != 0 {
		panic(fmt.Sprintf("repository %s closed with %d outstanding transactions",
			r.name, r.outstandingTransactions))
	}
	return r.closeFastImport()
}

func (r *Repository) closeFastImport() error {
	var err error
	if r.fastImport != nil {
		err = r.fastImport.close()
		r.fastImport = nil
	}
	r.processHasStarted = false
	procCache.remove(r)
	return err
}

// startFastImport refreshes the process cache and lazily spawns the child.
// Every spawn replays the known branch tips into the stream so fast-import
// can resolve them.
func (r *Repository) startFastImport() error {
	if err := procCache.touch(r); err != nil {
		return err
	}

	if r.fastImport != nil && r.fastImport.running {
		return nil
	}
	if r.processHasStarted {
		return fmt.Errorf("git fast-import for repository %s has been started once and crashed?", r.name)
	}
	r.processHasStarted = true

	p, err := startProcess(r.name, r.opts)
	if err != nil {
		return err
	}
	r.fastImport = p

	return r.reloadBranches()
}

// reloadBranches tells a fresh fast-import child where every live branch tip
// is, by mark. Also pins the notes ref to its reserved mark when metadata
// notes are on.
func (r *Repository) reloadBranches() error {
	resetNotes := false

	refs := make([]string, 0, len(r.branches))
	for ref := range r.branches {
		refs = append(refs, ref)
	}
	sort.Strings(refs)

	for _, ref := range refs {
		mustBeQualified(ref)
		br := r.branches[ref]
		if br.tipMark() == 0 {
			continue
		}
		resetNotes = true

		cmd := "reset " + ref + "\nfrom :" + strconv.Itoa(br.tipMark()) + "\n\n" +
			"progress Branch " + ref + " reloaded\n"
		if err := r.fastImport.writeString(cmd); err != nil {
			return err
		}
	}

	if resetNotes && r.opts.AddMetadataNotes {
		cmd := "reset refs/notes/commits\nfrom :" + strconv.Itoa(noteMark) + "\n"
		if err := r.fastImport.writeString(cmd); err != nil {
			return err
		}
	}
	return nil
}

// CreateBranch establishes branch at revnum from branchFrom as it stood at
// branchRevNum. Branching from a ref that never existed is an error; from one
// with no commits yet, an empty branch is created against the symbolic ref.
func (r *Repository) CreateBranch(branch string, revnum int, branchFrom string, branchRevNum int) error {
	mustBeQualified(branch)
	mustBeQualified(branchFrom)

	desc := "from branch " + branchFrom
	mark := r.markFrom(branchFrom, branchRevNum, &desc)
	if mark == -1 {
		return fmt.Errorf("%s in repository %s is branching from branch %s but the latter doesn't exist",
			branch, r.name, branchFrom)
	}

	resetTo := ":" + strconv.Itoa(mark)
	if mark == 0 {
		logger.Warnf("%s in repository %s is branching but no exported commits exist in repository, creating an empty branch",
			branch, r.name)
		resetTo = branchFrom
		desc += ", deleted/unknown"
	}
	logger.Debugf("creating branch %s from %s (r%d %s) in repository %s",
		branch, branchFrom, branchRevNum, desc, r.name)

	// The new branch inherits the source branch's note.
	r.branch(branch).note = r.branch(branchFrom).note

	return r.resetBranch(branch, revnum, mark, resetTo, desc)
}

// DeleteBranch tombstones branch at revnum. Deleting the default branch is a
// no-op.
func (r *Repository) DeleteBranch(branch string, revnum int) error {
	mustBeQualified(branch)
	if branch == "refs/heads/master" {
		return nil
	}
	return r.resetBranch(branch, revnum, 0, strings.Repeat("0", 40), "delete")
}

func (r *Repository) resetBranch(branch string, revnum, mark int, resetTo, comment string) error {
	if r.submoduleInRepo != nil {
		r.submoduleInRepo.submoduleChanged(r, branch)
	}

	mustBeQualified(branch)
	br := r.branch(branch)

	var backupCmd string
	if br.created != 0 && br.created != revnum && br.tipMark() != 0 {
		var backupBranch string
		if comment == "delete" && strings.HasPrefix(branch, "refs/heads/") {
			backupBranch = "refs/tags/backups/" + branch[len("refs/heads/"):] + "@" + strconv.Itoa(revnum)
		} else {
			backupBranch = "refs/backups/r" + strconv.Itoa(revnum) + branch[len("refs"):]
		}
		logger.Debugf("backing up branch %s to %s in repository %s", branch, backupBranch, r.name)
		backupCmd = "reset " + backupBranch + "\nfrom " + branch + "\n\n"
	}

	br.created = revnum
	br.commits = append(br.commits, revnum)
	br.marks = append(br.marks, mark)

	cmd := "reset " + branch + "\nfrom " + resetTo + "\n\n" +
		"progress SVN r" + strconv.Itoa(revnum) +
		" branch " + branch + " = :" + strconv.Itoa(mark) +
		" # " + comment + "\n\n"

	if comment == "delete" {
		// In a single revision a branch can be created after being deleted,
		// but not vice-versa. A creation followed by a deletion in the same
		// revision collapses to nothing.
		if _, ok := r.resetBranches[branch]; ok {
			delete(r.resetBranches, branch)
		} else {
			r.deletedBranches[branch] += backupCmd + cmd
		}
	} else {
		r.resetBranches[branch] += backupCmd + cmd
	}

	return nil
}

// Commit flushes the pending branch deletions and resets accumulated during
// the current revision. Deletions go first so fast-import forgets a ref
// before any re-creation of it.
func (r *Repository) Commit() error {
	if len(r.deletedBranches) == 0 && len(r.resetBranches) == 0 {
		return nil
	}
	if err := r.startFastImport(); err != nil {
		return err
	}

	for _, ref := range sortedKeys(r.deletedBranches) {
		if err := r.fastImport.writeString(r.deletedBranches[ref]); err != nil {
			return err
		}
	}
	for _, ref := range sortedKeys(r.resetBranches) {
		if err := r.fastImport.writeString(r.resetBranches[ref]); err != nil {
			return err
		}
	}
	r.deletedBranches = make(map[string]string)
	r.resetBranches = make(map[string]string)

	return r.fastImport.flush()
}

// NewTransaction opens a staging buffer for one commit on branch at revnum.
// svnprefix is the SVN source path recorded for provenance. The caller must
// Close the transaction when done with it, whether or not it commits.
func (r *Repository) NewTransaction(branch, svnprefix string, revnum int) (*Transaction, error) {
	mustBeQualified(branch)
	if _, ok := r.branches[branch]; !ok {
		logger.Debugf("creating branch '%s' in repository '%s'", branch, r.name)
	}

	txn := &Transaction{
		repository: r,
		branch:     branch,
		svnprefix:  svnprefix,
		revnum:     revnum,
	}

	r.commitCount++
	if r.commitCount%r.opts.commitInterval() == 0 {
		if err := r.startFastImport(); err != nil {
			return nil, err
		}
		// Persist everything accumulated so far.
		if err := r.fastImport.checkpoint(); err != nil {
			return nil, err
		}
		logger.Debugf("repository %s: checkpoint after %d commits", r.name, r.commitCount)
	}
	r.outstandingTransactions++

	return txn, nil
}

// CreateAnnotatedTag records an annotated tag to be emitted by FinalizeTags.
// Re-declaring a tag within a run overwrites the earlier declaration.
func (r *Repository) CreateAnnotatedTag(ref, svnprefix string, revnum int, author string, datetime int64, log string) {
	mustBeQualified(ref)
	tagName := strings.TrimPrefix(ref, "refs/tags/")

	if _, ok := r.annotatedTags[tagName]; !ok {
		logger.Debugf("creating annotated tag %s (%s) in repository %s", tagName, ref, r.name)
	} else {
		logger.Debugf("re-creating annotated tag %s in repository %s", tagName, r.name)
	}

	r.annotatedTags[tagName] = &annotatedTag{
		supportingRef: ref,
		svnprefix:     svnprefix,
		revnum:        revnum,
		author:        author,
		datetime:      datetime,
		log:           log,
	}
}

// FinalizeTags emits every buffered annotated tag. With metadata notes on,
// each tag also gets its footer recorded as a note on the supporting ref's
// tip, since fast-import cannot attach notes to tag objects.
func (r *Repository) FinalizeTags() error {
	if len(r.annotatedTags) == 0 {
		return nil
	}
	logger.Debugf("finalising tags for %s", r.name)
	if err := r.startFastImport(); err != nil {
		return err
	}

	for _, tagName := range sortedTagNames(r.annotatedTags) {
		tag := r.annotatedTags[tagName]
		mustBeQualified(tag.supportingRef)

		message := tag.log
		if !strings.HasSuffix(message, "\n") {
			message += "\n"
		}
		if r.opts.AddMetadata {
			message += "\n" + formatMetadataMessage(tag.svnprefix, tag.revnum, tagName)
		}

		s := "progress Creating annotated tag " + tagName + " from ref " + tag.supportingRef + "\n" +
			"tag " + tagName + "\n" +
			"from " + tag.supportingRef + "\n" +
			"tagger " + tag.author + " " + strconv.FormatInt(tag.datetime, 10) + " +0000\n" +
			"data " + strconv.Itoa(len(message)) + "\n" +
			message + "\n"
		if err := r.fastImport.writeString(s); err != nil {
			return err
		}
		if err := r.fastImport.flush(); err != nil {
			return err
		}

		if r.opts.AddMetadataNotes {
			txn, err := r.NewTransaction(tag.supportingRef, tag.svnprefix, tag.revnum)
			if err != nil {
				return err
			}
			txn.SetAuthor(tag.author)
			txn.SetDateTime(tag.datetime)
			err = txn.CommitNote(formatMetadataMessage(tag.svnprefix, tag.revnum, tagName), true)
			txn.Close()
			if err != nil {
				return err
			}
			if err := r.fastImport.flush(); err != nil {
				return err
			}
		}
	}

	return r.fastImport.flush()
}

// submoduleChanged is invoked on a parent repository whenever a branch of one
// of its submodule children is created, reset or deleted. The default
// behavior is empty; it is a hook for higher-level rewriting.
func (r *Repository) submoduleChanged(child *Repository, branch string) {
}

// formatMetadataMessage renders the SVN provenance footer appended to commit
// and tag messages.
func formatMetadataMessage(svnprefix string, revnum int, tag string) string {
	msg := "svn path=" + svnprefix + "; revision=" + strconv.Itoa(revnum)
	if tag != "" {
		msg += "; tag=" + tag
	}
	return msg + "\n"
}

func (r *Repository) branchExists(branch string) bool {
	_, ok := r.branches[branch]
	return ok
}

func (r *Repository) branchNote(branch string) string {
	if br, ok := r.branches[branch]; ok {
		return br.note
	}
	return ""
}

func (r *Repository) setBranchNote(branch, note string) {
	if br, ok := r.branches[branch]; ok {
		br.note = note
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedTagNames(m map[string]*annotatedTag) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
