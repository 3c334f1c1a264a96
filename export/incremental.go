package export

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// The durable record of "revision R produced mark M on branch B"; commit and
// reset emission write these lines, recovery scans for them.
var progressLine = regexp.MustCompile(`^progress SVN r(\d+) branch (.*) = :(\d+)$`)

// lastValidMark reads the marks file fast-import maintained and returns the
// highest mark that is part of the contiguous ascending run from the start of
// the file. A gap means fast-import died before flushing everything behind
// it; anything past the gap is unusable. Duplicates, disorder and malformed
// lines mean the file cannot be trusted at all.
func lastValidMark(name string) (int, error) {
	path := filepath.Join(name, marksFileName(name))
	f, err := os.Open(path)
	if err != nil {
		return 0, nil
	}
	defer f.Close()

	prev := 0
	lineno := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lineno++
		line := scanner.Text()
		if line == "" {
			continue
		}

		mark := 0
		if line[0] == ':' {
			if sp := strings.IndexByte(line, ' '); sp != -1 {
				mark, _ = strconv.Atoi(line[1:sp])
			}
		}

		if mark == 0 {
			return 0, fmt.Errorf("%s line %d: marks file corrupt?", path, lineno)
		}
		if mark == prev {
			return 0, fmt.Errorf("%s line %d: marks file has duplicates", path, lineno)
		}
		if mark < prev {
			return 0, fmt.Errorf("%s line %d: marks file not sorted", path, lineno)
		}
		if mark > prev+1 {
			break
		}
		prev = mark
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}

	return prev, nil
}

// SetupIncremental replays the progress log into the branch registry so a new
// run can resume where the previous one stopped. cutoff is the revision the
// caller intends to resume at; if the log turns out to be ahead of the marks
// file (interrupted run), the cutoff is rewound to the first unusable
// revision. The log is truncated at the first line at or past the cutoff,
// with the original preserved as <log>.old.
//
// Returns the revision to resume at and the (possibly rewound) cutoff.
func (r *Repository) SetupIncremental(cutoff int) (int, int, error) {
	logname := logFileName(r.name)
	f, err := os.Open(logname)
	if os.IsNotExist(err) {
		return 1, cutoff, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %w", logname, err)
	}
	defer f.Close()

	lastValid, err := lastValidMark(r.name)
	if err != nil {
		return 0, 0, err
	}

	bkup := logname + ".old"
	lastRevnum := 0
	var pos, lineStart int64
	truncate := false

	reader := bufio.NewReader(f)
	for {
		lineStart = pos
		line, readErr := reader.ReadString('\n')
		if line == "" && readErr != nil {
			break
		}
		pos += int64(len(line))

		text := line
		if hash := strings.IndexByte(text, '#'); hash != -1 {
			text = text[:hash]
		}
		text = strings.TrimSpace(text)

		if m := progressLine.FindStringSubmatch(text); m != nil {
			revnum, _ := strconv.Atoi(m[1])
			branch := m[2]
			mark, _ := strconv.Atoi(m[3])

			if revnum >= cutoff {
				truncate = true
				break
			}

			if revnum < lastRevnum {
				logger.Warnf("%s revision numbers are not monotonic: got %d and then %d",
					r.name, lastRevnum, revnum)
			}

			if mark > lastValid {
				logger.Warnf("%s unknown commit mark found: rewinding -- did you hit Ctrl-C?", r.name)
				cutoff = revnum
				truncate = true
				break
			}

			lastRevnum = revnum
			if r.lastCommitMark < mark {
				r.lastCommitMark = mark
			}

			br := r.branch(branch)
			if br.created == 0 || mark == 0 || br.tipMark() == 0 {
				br.created = revnum
			}
			br.commits = append(br.commits, revnum)
			br.marks = append(br.marks, mark)
		}

		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return 0, 0, fmt.Errorf("%s: %w", logname, readErr)
		}
	}

	if !truncate {
		retval := lastRevnum + 1
		if retval == cutoff {
			// Remove any stale backup so restoreLog cannot resurrect it.
			os.Remove(bkup)
		}
		return retval, cutoff, nil
	}

	// Back up before truncating, so an aborted resume can be undone.
	os.Remove(bkup)
	if err := copyFile(logname, bkup); err != nil {
		return 0, 0, err
	}
	logger.Debugf("%s truncating history to revision %d", r.name, cutoff)
	if err := os.Truncate(logname, lineStart); err != nil {
		return 0, 0, fmt.Errorf("truncating %s: %w", logname, err)
	}
	return cutoff, cutoff, nil
}

// RestoreLog undoes the truncation SetupIncremental performed, by renaming
// the .old backup over the log. A no-op when no backup exists.
func (r *Repository) RestoreLog() {
	logname := logFileName(r.name)
	bkup := logname + ".old"
	if _, err := os.Stat(bkup); err != nil {
		return
	}
	if err := os.Rename(bkup, logname); err != nil {
		logger.Warnf("restoring %s: %v", logname, err)
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("backing up %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("backing up %s: %w", src, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("backing up %s: %w", src, err)
	}
	return out.Close()
}
