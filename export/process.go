package export

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/kballard/go-shellquote"
)

// How long to wait for a closing fast-import child before escalating, and how
// long after SIGTERM before giving up with a warning.
const (
	closeWait  = 30 * time.Second
	closeGrace = 200 * time.Millisecond
)

func marksFileName(name string) string {
	return "marks-" + strings.ReplaceAll(name, "/", "_")
}

func logFileName(name string) string {
	return "log-" + strings.ReplaceAll(name, "/", "_")
}

func gitlogFileName(name string) string {
	return "gitlog-" + strings.ReplaceAll(name, "/", "_")
}

// fastImport wraps one git fast-import child. All command bytes pass through
// a single buffered writer, so within a repository they reach the child in
// program order; flush blocks until the child has accepted them.
type fastImport struct {
	repoName string
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	out      *bufio.Writer
	logfile  *os.File // child stdout+stderr
	gitlog   *os.File // mirror of logged writes, debug-rules only
	running  bool
}

// startProcess spawns git fast-import for the named repository, or wires up a
// discard sink in dry-run mode.
func startProcess(name string, opts *Options) (*fastImport, error) {
	p := &fastImport{repoName: name}

	if opts.DebugRules {
		gl, err := os.Create(gitlogFileName(name))
		if err != nil {
			return nil, fmt.Errorf("%s: opening gitlog: %w", name, err)
		}
		p.gitlog = gl
	}

	if opts.DryRun {
		p.out = bufio.NewWriter(io.Discard)
		p.running = true
		return p, nil
	}

	logfile, err := os.OpenFile(logFileName(name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%s: opening log: %w", name, err)
	}

	marksFile := marksFileName(name)
	args := []string{
		"fast-import",
		"--import-marks=" + marksFile,
		"--export-marks=" + marksFile,
		"--force",
	}
	cmd := exec.Command(opts.gitExecutable(), args...)
	cmd.Dir = name
	cmd.Stdout = logfile
	cmd.Stderr = logfile

	stdin, err := cmd.StdinPipe()
	if err != nil {
		logfile.Close()
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	logger.Debugf("repository %s: starting %s", name,
		shellquote.Join(append([]string{opts.gitExecutable()}, args...)...))

	if err := cmd.Start(); err != nil {
		logfile.Close()
		return nil, fmt.Errorf("%s: starting git fast-import: %w", name, err)
	}

	p.cmd = cmd
	p.stdin = stdin
	p.out = bufio.NewWriter(stdin)
	p.logfile = logfile
	p.running = true
	return p, nil
}

// write sends command bytes to the child and mirrors them to the gitlog.
func (p *fastImport) write(data []byte) error {
	if p.gitlog != nil {
		p.gitlog.Write(data)
	}
	if _, err := p.out.Write(data); err != nil {
		return fmt.Errorf("repository %s: writing to git fast-import: %w", p.repoName, err)
	}
	return nil
}

func (p *fastImport) writeString(s string) error {
	return p.write([]byte(s))
}

// writeNoLog sends bytes without mirroring them; used for blob payloads so
// binary data does not pollute the gitlog.
func (p *fastImport) writeNoLog(data []byte) error {
	if _, err := p.out.Write(data); err != nil {
		return fmt.Errorf("repository %s: writing to git fast-import: %w", p.repoName, err)
	}
	return nil
}

// flush blocks until the child has accepted all buffered bytes.
func (p *fastImport) flush() error {
	if err := p.out.Flush(); err != nil {
		return fmt.Errorf("repository %s: writing to git fast-import: %w", p.repoName, err)
	}
	return nil
}

func (p *fastImport) checkpoint() error {
	if err := p.writeString("checkpoint\n"); err != nil {
		return err
	}
	return p.flush()
}

// blobSink is the writer handed to callers streaming blob content; it
// bypasses the gitlog mirror.
type blobSink struct{ p *fastImport }

func (s blobSink) Write(data []byte) (int, error) {
	if err := s.p.writeNoLog(data); err != nil {
		return 0, err
	}
	return len(data), nil
}

// close checkpoints, closes stdin and reaps the child. After closeWait it
// sends SIGTERM; a child still alive closeGrace later is abandoned with a
// warning. Safe to call more than once.
func (p *fastImport) close() error {
	if !p.running {
		return nil
	}
	p.running = false

	err := p.checkpoint()
	if p.stdin != nil {
		p.stdin.Close()
	}

	if p.cmd != nil {
		done := make(chan error, 1)
		go func() { done <- p.cmd.Wait() }()
		select {
		case <-done:
		case <-time.After(closeWait):
			p.cmd.Process.Signal(syscall.SIGTERM)
			select {
			case <-done:
			case <-time.After(closeGrace):
				logger.Warnf("git fast-import for repository %s did not die", p.repoName)
			}
		}
	}

	if p.logfile != nil {
		p.logfile.Close()
	}
	if p.gitlog != nil {
		p.gitlog.Close()
	}
	return err
}

// initBareRepository runs git --bare init in dir and creates the (initially
// empty) marks file fast-import will maintain.
func initBareRepository(name string, opts *Options) error {
	if err := os.MkdirAll(name, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", name, err)
	}
	cmd := exec.Command(opts.gitExecutable(), "--bare", "init")
	cmd.Dir = name
	logger.Debugf("repository %s: running %s", name,
		shellquote.Join(opts.gitExecutable(), "--bare", "init"))
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git --bare init in %s: %w: %s", name, err, out)
	}

	marks, err := os.Create(filepath.Join(name, marksFileName(name)))
	if err != nil {
		return fmt.Errorf("creating marks file for %s: %w", name, err)
	}
	return marks.Close()
}
