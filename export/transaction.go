package export

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// cvs2svnMarker flags commits fabricated by cvs2svn, whose merge lists need
// the workaround in Commit.
const cvs2svnMarker = "This commit was manufactured by cvs2svn"

// fast-import refuses commits with more than 16 parents.
const maxParents = 16

// Transaction stages one commit on one branch at one SVN revision: file
// additions and deletions, merge parents, author, time and log message.
// Nothing reaches the branch registry until Commit. Close must be called
// exactly once, after Commit or instead of it.
type Transaction struct {
	repository *Repository
	branch     string
	svnprefix  string
	revnum     int

	author   string
	datetime int64
	log      string

	deletedFiles  []string
	modifiedFiles bytes.Buffer
	merges        []int

	closed bool
}

func (t *Transaction) SetAuthor(author string) {
	t.author = author
}

func (t *Transaction) SetDateTime(dt int64) {
	t.datetime = dt
}

func (t *Transaction) SetLog(log string) {
	t.log = log
}

// Close releases the transaction; once no transaction is open on the
// repository, the blob-mark counter is recycled.
func (t *Transaction) Close() {
	if t.closed {
		return
	}
	t.closed = true
	t.repository.forgetTransaction()
}

// DeleteFile stages a deletion. The empty path means "delete everything on
// the branch" and turns into deleteall at commit time.
func (t *Transaction) DeleteFile(path string) {
	pathNoSlash := strings.TrimSuffix(t.repository.prefix+path, "/")
	t.deletedFiles = append(t.deletedFiles, pathNoSlash)
}

// AddFile stages a file modification and returns the sink the caller must
// write exactly length bytes of blob content to. The blob stream must not be
// interleaved with another transaction's blobs on the same repository.
func (t *Transaction) AddFile(path string, mode int, length int64) (io.Writer, error) {
	r := t.repository
	mark := r.allocBlobMark()

	full := r.prefix + path
	if full == "" {
		panic("file modification with empty path")
	}

	fmt.Fprintf(&t.modifiedFiles, "M %o :%d %s\n", mode, mark, full)

	if r.opts.DryRun {
		return io.Discard, nil
	}

	if err := r.startFastImport(); err != nil {
		return nil, err
	}
	header := "blob\nmark :" + strconv.Itoa(mark) + "\ndata " + strconv.FormatInt(length, 10) + "\n"
	if err := r.fastImport.writeNoLog([]byte(header)); err != nil {
		return nil, err
	}
	return blobSink{r.fastImport}, nil
}

// NoteCopyFromBranch records that this commit copies files from branchFrom as
// of branchRevNum, turning resolvable copies into merge parents. Unresolvable
// sources are tolerated with a warning, assuming the files exist.
func (t *Transaction) NoteCopyFromBranch(branchFrom string, branchRevNum int) {
	mustBeQualified(branchFrom)
	r := t.repository

	if t.branch == branchFrom {
		logger.Warnf("cannot merge inside a branch in repository %s", r.name)
		return
	}

	mark := r.markFrom(branchFrom, branchRevNum, nil)
	switch {
	case mark == -1:
		logger.Warnf("%s is copying from branch %s but the latter doesn't exist; continuing, assuming the files exist in repository %s",
			t.branch, branchFrom, r.name)
	case mark == 0:
		logger.Warnf("unknown revision r%d; continuing, assuming the files exist in repository %s",
			branchRevNum, r.name)
	default:
		logger.Debugf("repository %s branch %s has some files copied from %s@%d",
			r.name, t.branch, branchFrom, branchRevNum)
		if !containsInt(t.merges, mark) {
			t.merges = append(t.merges, mark)
			logger.Debugf("adding %s@%d : %d as a merge point in repository %s",
				branchFrom, branchRevNum, mark, r.name)
		} else {
			logger.Debugf("merge point already recorded in repository %s", r.name)
		}
	}
}

// CommitNote emits a commit on refs/notes/commits attaching text as a note on
// this transaction's branch tip. With appendNote set, any note already on the
// branch is prepended and the combined text becomes the branch's note.
func (t *Transaction) CommitNote(text string, appendNote bool) error {
	return t.commitNote(text, appendNote, "")
}

func (t *Transaction) commitNote(text string, appendNote bool, commit string) error {
	mustBeQualified(t.branch)
	r := t.repository

	commitRef := commit
	if commitRef == "" {
		commitRef = t.branch
	}

	message := "Adding Git note for current " + commitRef + "\n"
	if appendNote && commit == "" && r.branchExists(t.branch) && r.branchNote(t.branch) != "" {
		text = r.branchNote(t.branch) + text
		message = "Appending Git note for current " + commitRef + "\n"
	}

	s := "commit refs/notes/commits\n" +
		"mark :" + strconv.Itoa(noteMark) + "\n" +
		"committer " + t.author + " " + strconv.FormatInt(t.datetime, 10) + " +0000\n" +
		"data " + strconv.Itoa(len(message)) + "\n" +
		message + "\n" +
		"N inline " + commitRef + "\n" +
		"data " + strconv.Itoa(len(text)) + "\n" +
		text + "\n"
	if err := r.fastImport.writeString(s); err != nil {
		return err
	}

	if commit == "" {
		r.setBranchNote(t.branch, text)
	}
	return nil
}

// Commit emits the staged commit as one fast-import command block and records
// it on the branch, then blocks until the child has drained the bytes.
func (t *Transaction) Commit() error {
	r := t.repository
	if err := r.startFastImport(); err != nil {
		return err
	}

	// The SVN revision number cannot serve as the commit mark: a single
	// revision can touch several branches of one repository and thus produce
	// several commits there.
	mark := r.allocCommitMark()

	message := t.log
	if !strings.HasSuffix(message, "\n") {
		message += "\n"
	}
	if r.opts.AddMetadata {
		message += "\n" + formatMetadataMessage(t.svnprefix, t.revnum, "")
	}

	parentmark := 0
	br := r.branch(t.branch)
	if br.created != 0 && br.tipMark() != 0 {
		parentmark = br.tipMark()
	} else {
		if r.incremental {
			logger.Warnf("branch %s in repository %s doesn't exist at revision %d -- did you resume from the wrong revision?",
				t.branch, r.name, t.revnum)
		}
		br.created = t.revnum
	}
	br.commits = append(br.commits, t.revnum)
	br.marks = append(br.marks, mark)

	mustBeQualified(t.branch)
	s := "commit " + t.branch + "\n" +
		"mark :" + strconv.Itoa(mark) + "\n" +
		"committer " + t.author + " " + strconv.FormatInt(t.datetime, 10) + " +0000\n" +
		"data " + strconv.Itoa(len(message)) + "\n" +
		message + "\n"
	if err := r.fastImport.writeString(s); err != nil {
		return err
	}

	desc := ""
	parents := 0
	if parentmark != 0 {
		parents = 1
	}

	if strings.Contains(t.log, cvs2svnMarker) && len(t.merges) > 1 {
		// cvs2svn fabricates merges from every branch it ever saw; keeping
		// only the highest merge point matches what the commit actually
		// contains.
		sort.Ints(t.merges)
		last := t.merges[len(t.merges)-1]
		t.merges = t.merges[:len(t.merges)-1]
		if err := r.fastImport.writeString("merge :" + strconv.Itoa(last) + "\n"); err != nil {
			return err
		}
		logger.Debugf("discarding all but the highest merge point as a workaround for cvs2svn created branch/tag; discarded marks: %v",
			t.merges)
	} else {
		for _, merge := range t.merges {
			if merge == parentmark {
				logger.Debugf("skipping marking %d as a merge point as it matches the parent in repository %s",
					merge, r.name)
				continue
			}
			parents++
			if parents > maxParents {
				// Only artificial cvs2svn commits ever hit the fast-import
				// parent limit; dropping the excess beats refusing the commit.
				logger.Warnf("too many merge parents in repository %s", r.name)
				break
			}
			m := " :" + strconv.Itoa(merge)
			desc += m
			if err := r.fastImport.writeString("merge" + m + "\n"); err != nil {
				return err
			}
		}
	}

	if containsString(t.deletedFiles, "") {
		if err := r.fastImport.writeString("deleteall\n"); err != nil {
			return err
		}
	} else {
		for _, df := range t.deletedFiles {
			if err := r.fastImport.writeString("D " + df + "\n"); err != nil {
				return err
			}
		}
	}

	if err := r.fastImport.write(t.modifiedFiles.Bytes()); err != nil {
		return err
	}

	suffix := ""
	if desc != "" {
		suffix = " # merge from" + desc
	}
	progress := "\nprogress SVN r" + strconv.Itoa(t.revnum) +
		" branch " + t.branch + " = :" + strconv.Itoa(mark) +
		suffix + "\n\n"
	if err := r.fastImport.writeString(progress); err != nil {
		return err
	}

	logger.Debugf("%d modifications from SVN %s to %s/%s",
		len(t.deletedFiles)+bytes.Count(t.modifiedFiles.Bytes(), []byte{'\n'}),
		t.svnprefix, r.name, t.branch)

	if r.opts.AddMetadataNotes {
		if err := t.commitNote(formatMetadataMessage(t.svnprefix, t.revnum, ""), false, ""); err != nil {
			return err
		}
	}

	return r.fastImport.flush()
}

func containsInt(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func containsString(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
