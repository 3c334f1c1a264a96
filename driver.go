package main

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/svn-tools/svn2git/export"
	svn "github.com/svn-tools/svn2git/lib"
)

// Converter drives the conversion: it walks dump revisions in ascending
// order, routes every node through the ruleset and issues branch topology
// changes and transactions against the target repositories.
type Converter struct {
	rules       *Ruleset
	opts        *export.Options
	identities  map[string]string
	incremental bool
	log         *zap.SugaredLogger

	repositories map[string]*export.Repository
	order        []string

	repos *svn.Repos
	files *catalog
}

func NewConverter(rules *Ruleset, opts *export.Options, identities map[string]string, incremental bool, log *zap.SugaredLogger) (*Converter, error) {
	c := &Converter{
		rules:       rules,
		opts:        opts,
		identities:  identities,
		incremental: incremental,
		log:         log,
		repos:       svn.NewRepos(),
		files:       newCatalog(),
	}
	if err := c.buildRepositories(); err != nil {
		return nil, err
	}
	return c, nil
}

// buildRepositories creates the target repositories in declaration order, so
// submodule parents (which must be declared first) are available to their
// children.
func (c *Converter) buildRepositories() error {
	c.repositories = make(map[string]*export.Repository, len(c.rules.Repositories))
	c.order = c.order[:0]

	for _, decl := range c.rules.Repositories {
		repo, err := export.NewRepository(export.RepositoryRule{
			Name:            decl.Name,
			Branches:        decl.Branches,
			Prefix:          decl.Prefix,
			SubmoduleInRepo: decl.SubmoduleInRepo,
			SubmodulePath:   decl.SubmodulePath,
		}, c.opts, c.incremental, c.repositories)
		if err != nil {
			return err
		}
		c.repositories[decl.Name] = repo
		c.order = append(c.order, decl.Name)
	}
	return nil
}

// Close shuts down every target repository and its fast-import child.
func (c *Converter) Close() {
	for _, name := range c.order {
		if err := c.repositories[name].Close(); err != nil {
			c.log.Warnf("closing %s: %v", name, err)
		}
	}
	c.repos.Close()
}

// Run loads the dump files and converts every revision from the resume point
// up to maxRev (0 meaning head), then finalizes annotated tags.
func (c *Converter) Run(filenames []string, resumeFrom, maxRev int) error {
	c.log.Infof("loading %d dump files", len(filenames))
	for _, filename := range filenames {
		c.log.Debugf("loading dump file: %s", filename)
		dump, err := svn.NewDumpFile(filename)
		if err != nil {
			return err
		}
		if err := c.repos.AddDumpFile(dump); err != nil {
			return err
		}
	}

	head := c.repos.GetHead()
	if head < 0 {
		return fmt.Errorf("no revisions in input")
	}
	if maxRev == 0 || maxRev > head {
		maxRev = head
	}

	start := 1
	if c.incremental {
		cutoff := resumeFrom
		if cutoff == 0 {
			cutoff = math.MaxInt32
		}
		var err error
		if start, err = c.setupIncremental(cutoff); err != nil {
			return err
		}
		c.log.Infof("resuming conversion at r%d", start)
	}

	// The content catalog has to see every revision, even those the export
	// skips on resume, so copies reaching back before the resume point still
	// expand.
	for revnum := 1; revnum <= maxRev; revnum++ {
		rev := c.repos.Revisions[revnum]
		if revnum < start {
			c.recordRevision(rev)
			continue
		}
		if err := c.convertRevision(rev); err != nil {
			return fmt.Errorf("r%d: %w", revnum, err)
		}
	}

	for _, name := range c.order {
		if err := c.repositories[name].FinalizeTags(); err != nil {
			return err
		}
	}

	return nil
}

// setupIncremental reconciles every repository's progress log with its marks
// file and finds the common revision to resume at. When repositories
// disagree (or a log turned out to be ahead of its marks file), everything
// is rewound to the lowest safe point: logs are restored, registries are
// rebuilt and the scan repeats with the lower cutoff.
func (c *Converter) setupIncremental(cutoff int) (int, error) {
	for attempt := 0; ; attempt++ {
		if attempt > len(c.order)+1 {
			return 0, fmt.Errorf("incremental recovery did not converge")
		}

		target := cutoff
		for _, name := range c.order {
			resume, newCutoff, err := c.repositories[name].SetupIncremental(cutoff)
			if err != nil {
				return 0, err
			}
			if newCutoff < target {
				target = newCutoff
			}
			if resume < target {
				target = resume
			}
		}

		if target == cutoff {
			return cutoff, nil
		}

		// Some repository stopped short of the others; rewind them all to
		// the common point and scan again.
		c.log.Debugf("rewinding incremental cutoff to r%d", target)
		for _, name := range c.order {
			c.repositories[name].RestoreLog()
		}
		if err := c.buildRepositories(); err != nil {
			return 0, err
		}
		cutoff = target
	}
}

// recordRevision feeds a revision into the content catalog without exporting
// anything.
func (c *Converter) recordRevision(rev *svn.Revision) {
	for _, node := range rev.Nodes {
		switch node.Action {
		case svn.NodeActionDelete:
			c.files.remove(node.Path, rev.Number)
		case svn.NodeActionAdd, svn.NodeActionReplace, svn.NodeActionChange:
			if node.Kind == svn.NodeKindFile {
				c.recordFile(rev, node)
			} else if node.FromPath != "" {
				for _, cp := range c.files.copyDir(node.FromPath, node.FromRev, node.Path) {
					c.files.put(cp.path, rev.Number, cp.version.content, cp.version.props)
				}
			}
		}
	}
}

// recordFile puts a file node's state into the catalog, resolving copy
// history when the dump carries no text.
func (c *Converter) recordFile(rev *svn.Revision, node *svn.Node) (content []byte, props *svn.Properties, ok bool) {
	content, props = node.Content(), node.Properties
	if !node.HasText && node.FromPath != "" {
		v := c.files.get(node.FromPath, node.FromRev)
		if v == nil {
			c.log.Warnf("r%d: %s is copied from %s@%d, which the dump never showed; skipping",
				rev.Number, node.Path, node.FromPath, node.FromRev)
			return nil, nil, false
		}
		content = v.content
		if props == nil || props.Len() == 0 {
			props = v.props
		}
	}
	if node.Action == svn.NodeActionChange && !node.HasText && node.FromPath == "" {
		// Property-only change; the content stays what it was.
		return nil, nil, false
	}
	c.files.put(node.Path, rev.Number, content, props)
	return content, props, true
}

// revTransactions tracks the transactions a single revision opens, in
// creation order, so commits come out deterministically.
type revTransactions struct {
	byKey map[string]*export.Transaction
	order []*export.Transaction
}

func (t *revTransactions) get(repo *export.Repository, branch, svnprefix string, revnum int) (*export.Transaction, error) {
	key := repo.Name() + "\x00" + branch
	if txn, ok := t.byKey[key]; ok {
		return txn, nil
	}
	txn, err := repo.NewTransaction(branch, svnprefix, revnum)
	if err != nil {
		return nil, err
	}
	t.byKey[key] = txn
	t.order = append(t.order, txn)
	return txn, nil
}

func (c *Converter) convertRevision(rev *svn.Revision) error {
	txns := &revTransactions{byKey: make(map[string]*export.Transaction)}
	defer func() {
		for _, txn := range txns.order {
			txn.Close()
		}
	}()

	for _, node := range rev.Nodes {
		if err := c.convertNode(rev, node, txns); err != nil {
			return err
		}
	}

	// Flush pending branch deletions and resets before any commit of this
	// revision references the new branch shape.
	for _, name := range c.order {
		if err := c.repositories[name].Commit(); err != nil {
			return err
		}
	}

	if len(txns.order) == 0 {
		return nil
	}

	author := c.identity(rev.Author())
	when, err := rev.Time()
	if err != nil {
		return err
	}
	log := rev.Log()

	for _, txn := range txns.order {
		txn.SetAuthor(author)
		txn.SetDateTime(when.Unix())
		txn.SetLog(log)
		if err := txn.Commit(); err != nil {
			return err
		}
	}

	return nil
}

// dirMatchPath appends the trailing slash the rules match directories with.
// Deletions carry no kind, so they are matched dir-style too; DeleteFile
// strips the slash again for plain files.
func dirMatchPath(node *svn.Node) string {
	path := node.Path
	if (node.Kind == svn.NodeKindDir || node.Action == svn.NodeActionDelete) &&
		!strings.HasSuffix(path, "/") {
		path += "/"
	}
	return path
}

func (c *Converter) convertNode(rev *svn.Revision, node *svn.Node, txns *revTransactions) error {
	res, ok := c.rules.MatchPath(dirMatchPath(node), rev.Number)
	if !ok {
		c.log.Debugf("r%d: no rule matches %s; ignoring", rev.Number, node.Path)
		return nil
	}
	if res.Repository == "" {
		return nil
	}

	repo, ok := c.repositories[res.Repository]
	if !ok {
		return fmt.Errorf("rule %q routes %s to undeclared repository %s",
			res.Rule.Match, node.Path, res.Repository)
	}

	// A node at the branch root is branch topology, not content.
	if res.InBranchPath == "" && res.Prefix == "" && node.Kind != svn.NodeKindFile {
		return c.convertBranchNode(rev, node, repo, res)
	}

	switch node.Action {
	case svn.NodeActionDelete:
		c.files.remove(node.Path, rev.Number)
		txn, err := txns.get(repo, res.Branch, res.SvnPrefix, rev.Number)
		if err != nil {
			return err
		}
		txn.DeleteFile(res.Prefix + res.InBranchPath)
		return nil

	case svn.NodeActionAdd, svn.NodeActionReplace, svn.NodeActionChange:
		if node.Kind == svn.NodeKindDir {
			return c.convertDirCopy(rev, node, txns)
		}
		return c.convertFileNode(rev, node, repo, res, txns)
	}

	return nil
}

// convertBranchNode turns branch-root operations into branch topology calls:
// creations (with or without copy history), deletions, and annotated tags.
func (c *Converter) convertBranchNode(rev *svn.Revision, node *svn.Node, repo *export.Repository, res MatchResult) error {
	switch node.Action {
	case svn.NodeActionDelete:
		c.files.remove(node.Path, rev.Number)
		return repo.DeleteBranch(res.Branch, rev.Number)

	case svn.NodeActionAdd, svn.NodeActionReplace:
		if node.FromPath == "" {
			// Plain mkdir of a branch root; the branch springs into being
			// with its first commit.
			return nil
		}

		// The new branch's files become copies of the source's.
		for _, cp := range c.files.copyDir(node.FromPath, node.FromRev, node.Path) {
			c.files.put(cp.path, rev.Number, cp.version.content, cp.version.props)
		}

		from, ok := c.rules.MatchPath(node.FromPath+"/", node.FromRev)
		if !ok || from.Repository != res.Repository {
			c.log.Warnf("r%d: %s is copied from %s, which maps outside repository %s; creating an unrelated branch",
				rev.Number, node.Path, node.FromPath, res.Repository)
			return nil
		}

		if err := repo.CreateBranch(res.Branch, rev.Number, from.Branch, node.FromRev); err != nil {
			return err
		}

		if res.Rule.Annotated && strings.HasPrefix(res.Branch, "refs/tags/") {
			author := c.identity(rev.Author())
			when, err := rev.Time()
			if err != nil {
				return err
			}
			repo.CreateAnnotatedTag(res.Branch, res.SvnPrefix, rev.Number, author, when.Unix(), rev.Log())
		}
		return nil
	}

	return nil
}

// convertDirCopy expands a directory copy below a branch root into explicit
// file additions, routing every copied file through the rules on its own.
func (c *Converter) convertDirCopy(rev *svn.Revision, node *svn.Node, txns *revTransactions) error {
	if node.FromPath == "" {
		return nil
	}

	expanded := c.files.copyDir(node.FromPath, node.FromRev, node.Path)
	for _, cp := range expanded {
		c.files.put(cp.path, rev.Number, cp.version.content, cp.version.props)

		res, ok := c.rules.MatchPath(cp.path, rev.Number)
		if !ok || res.Repository == "" {
			continue
		}
		repo, ok := c.repositories[res.Repository]
		if !ok {
			continue
		}
		txn, err := txns.get(repo, res.Branch, res.SvnPrefix, rev.Number)
		if err != nil {
			return err
		}
		if err := c.emitFile(txn, res, cp.version.content, cp.version.props, rev, cp.path); err != nil {
			return err
		}
	}

	// Merge provenance: the copy source may be another branch of the same
	// repository.
	if res, ok := c.rules.MatchPath(dirMatchPath(node), rev.Number); ok && res.Repository != "" {
		if from, ok := c.rules.MatchPath(node.FromPath+"/", node.FromRev); ok &&
			from.Repository == res.Repository && from.Branch != res.Branch {
			if repo, ok := c.repositories[res.Repository]; ok {
				txn, err := txns.get(repo, res.Branch, res.SvnPrefix, rev.Number)
				if err != nil {
					return err
				}
				txn.NoteCopyFromBranch(from.Branch, node.FromRev)
			}
		}
	}

	return nil
}

func (c *Converter) convertFileNode(rev *svn.Revision, node *svn.Node, repo *export.Repository, res MatchResult, txns *revTransactions) error {
	content, props, ok := c.recordFile(rev, node)
	if !ok {
		if node.Action == svn.NodeActionChange {
			c.log.Debugf("r%d: %s changes only properties; skipping", rev.Number, node.Path)
		}
		return nil
	}

	txn, err := txns.get(repo, res.Branch, res.SvnPrefix, rev.Number)
	if err != nil {
		return err
	}
	if node.Action == svn.NodeActionReplace {
		txn.DeleteFile(res.Prefix + res.InBranchPath)
	}
	return c.emitFile(txn, res, content, props, rev, node.Path)
}

// emitFile stages one blob: mode from the svn properties, content adjusted
// for symlinks.
func (c *Converter) emitFile(txn *export.Transaction, res MatchResult, content []byte, props *svn.Properties, rev *svn.Revision, path string) error {
	mode := 0o644
	if props.Has(svn.PropExecutable) {
		mode = 0o755
	}
	if props.Has(svn.PropSpecial) {
		// svn stores symlinks as "link <target>"; git blobs hold the bare
		// target.
		if bytes.HasPrefix(content, []byte("link ")) {
			mode = 0o120000
			content = content[len("link "):]
		} else {
			c.log.Warnf("r%d: %s has svn:special but is not a symlink; exporting as a regular file",
				rev.Number, path)
		}
	}

	w, err := txn.AddFile(res.Prefix+res.InBranchPath, mode, int64(len(content)))
	if err != nil {
		return err
	}
	if len(content) > 0 {
		if _, err := w.Write(content); err != nil {
			return err
		}
	}
	return nil
}

// identity maps an svn username to a git "Name <email>" identity: the
// identity map first, then a synthetic identity from the repository UUID.
func (c *Converter) identity(user string) string {
	if user == "" {
		return "nobody <nobody@localhost>"
	}
	if ident, ok := c.identities[user]; ok {
		return ident
	}
	domain := c.repos.UUID
	if domain == "" {
		domain = "localhost"
	}
	return fmt.Sprintf("%s <%s@%s>", user, user, domain)
}
