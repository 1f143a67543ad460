package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"

	"playground-go/internal/playground"
)

// LocalRuntime runs a project in a directory on the host.
// Mount writes the tree to disk and Spawn runs commands in that directory.
// A server counts as ready once its output prints a local URL.
type LocalRuntime struct {
	dir    string
	ignore *IgnoreMatcher
	logger playground.Logger
	ready  chan playground.ServerReady

	mu    sync.Mutex
	procs map[*localProcess]struct{}
}

var _ playground.Runtime = (*LocalRuntime)(nil)

// NewLocalRuntime creates a runtime rooted at dir, creating it if needed.
// Paths matching ignore survive a Mount untouched.
func NewLocalRuntime(dir string, ignore []string, logger playground.Logger) (*LocalRuntime, error) {
	if logger == nil {
		logger = playground.NewNopLogger()
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving sandbox dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("creating sandbox dir: %w", err)
	}
	return &LocalRuntime{
		dir:    abs,
		ignore: NewIgnoreMatcher(append(slices.Clone(DefaultIgnorePatterns), ignore...)),
		logger: logger,
		ready:  make(chan playground.ServerReady, 1),
		procs:  make(map[*localProcess]struct{}),
	}, nil
}

// Dir returns the directory the project is mounted in.
func (r *LocalRuntime) Dir() string {
	return r.dir
}

// Mount writes tree into the sandbox directory and removes files and
// folders the tree no longer has. Ignored paths such as node_modules are
// left alone so installs are reused.
func (r *LocalRuntime) Mount(ctx context.Context, tree playground.MountTree) error {
	if err := r.mountDir(ctx, r.dir, "", tree); err != nil {
		return err
	}
	r.logger.Debug("sandbox mounted", "dir", r.dir)
	return nil
}

func (r *LocalRuntime) mountDir(ctx context.Context, dir, rel string, tree playground.MountTree) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", rel, err)
	}

	for name, entry := range tree {
		if err := checkSegment(name); err != nil {
			return err
		}
		childRel := playground.JoinPath(rel, name)
		childPath := filepath.Join(dir, name)

		if entry.File != nil {
			if info, err := os.Lstat(childPath); err == nil && info.IsDir() {
				if err := os.RemoveAll(childPath); err != nil {
					return fmt.Errorf("replacing %s: %w", childRel, err)
				}
			}
			if err := writeFileIfChanged(childPath, entry.File.Contents); err != nil {
				return fmt.Errorf("writing %s: %w", childRel, err)
			}
			continue
		}

		if info, err := os.Lstat(childPath); err == nil && !info.IsDir() {
			if err := os.Remove(childPath); err != nil {
				return fmt.Errorf("replacing %s: %w", childRel, err)
			}
		}
		if err := r.mountDir(ctx, childPath, childRel, entry.Directory); err != nil {
			return err
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("listing %s: %w", rel, err)
	}
	for _, e := range entries {
		childRel := playground.JoinPath(rel, e.Name())
		if _, keep := tree[e.Name()]; keep || r.ignore.Match(childRel) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("removing stale %s: %w", childRel, err)
		}
	}
	return nil
}

// WriteFile writes one file, creating parent directories as needed.
func (r *LocalRuntime) WriteFile(ctx context.Context, path, content string) error {
	full, err := r.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("creating parent of %s: %w", path, err)
	}
	return writeFileIfChanged(full, content)
}

// Spawn starts name with args in the sandbox directory. ctx only bounds the
// start; the process runs until it exits or is killed.
func (r *LocalRuntime) Spawn(ctx context.Context, name string, args ...string) (playground.Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := exec.Command(name, args...)
	cmd.Dir = r.dir
	cmd.Env = append(os.Environ(), "BROWSER=none", "FORCE_COLOR=0")
	setProcessGroup(cmd)

	pr, pw := io.Pipe()
	out := &lineWatcher{dst: pw, onLine: r.detectReady}
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Start(); err != nil {
		pw.Close()
		return nil, fmt.Errorf("starting %s: %w", name, err)
	}

	p := &localProcess{cmd: cmd, output: pr, done: make(chan struct{})}
	r.mu.Lock()
	r.procs[p] = struct{}{}
	r.mu.Unlock()

	go func() {
		err := cmd.Wait()
		out.flush()
		p.code, p.err = exitStatus(err)
		pw.Close()
		close(p.done)

		r.mu.Lock()
		delete(r.procs, p)
		r.mu.Unlock()
		r.logger.Debug("sandbox process exited", "command", name, "code", p.code)
	}()

	r.logger.Debug("sandbox process started", "command", name, "args", strings.Join(args, " "), "pid", cmd.Process.Pid)
	return p, nil
}

// ServerReady delivers ready events detected in process output.
func (r *LocalRuntime) ServerReady() <-chan playground.ServerReady {
	return r.ready
}

// Close kills every process still running.
func (r *LocalRuntime) Close() error {
	r.mu.Lock()
	procs := make([]*localProcess, 0, len(r.procs))
	for p := range r.procs {
		procs = append(procs, p)
	}
	r.mu.Unlock()

	var errs []error
	for _, p := range procs {
		if err := p.Kill(); err != nil && !errors.Is(err, playground.ErrProcessDone) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	ansiEscape = regexp.MustCompile(`\x1b\[[0-9;?]*[A-Za-z]`)
	localURL   = regexp.MustCompile(`https?://(?:localhost|127\.0\.0\.1|0\.0\.0\.0|\[::\]|\[::1\]):(\d{2,5})`)
)

// ParseServerURL finds a local server URL in one line of output.
func ParseServerURL(line string) (playground.ServerReady, bool) {
	m := localURL.FindStringSubmatch(ansiEscape.ReplaceAllString(line, ""))
	if m == nil {
		return playground.ServerReady{}, false
	}
	port, err := strconv.Atoi(m[1])
	if err != nil || port <= 0 || port > 65535 {
		return playground.ServerReady{}, false
	}
	scheme := "http"
	if strings.HasPrefix(m[0], "https") {
		scheme = "https"
	}
	return playground.ServerReady{Port: port, URL: fmt.Sprintf("%s://localhost:%d", scheme, port)}, true
}

func (r *LocalRuntime) detectReady(line string) {
	ready, ok := ParseServerURL(line)
	if !ok {
		return
	}
	select {
	case r.ready <- ready:
		r.logger.Debug("sandbox server detected", "url", ready.URL)
	default:
	}
}

func (r *LocalRuntime) resolve(path string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(path))
	if path == "" || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the sandbox", path)
	}
	return filepath.Join(r.dir, clean), nil
}

func checkSegment(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid name %q in mount tree", name)
	}
	return nil
}

func writeFileIfChanged(path, content string) error {
	if existing, err := os.ReadFile(path); err == nil && string(existing) == content {
		return nil
	}
	return os.WriteFile(path, []byte(content), 0644)
}

func exitStatus(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}

type localProcess struct {
	cmd    *exec.Cmd
	output io.Reader
	done   chan struct{}
	code   int
	err    error
}

func (p *localProcess) Output() io.Reader {
	return p.output
}

func (p *localProcess) Wait() (int, error) {
	<-p.done
	return p.code, p.err
}

func (p *localProcess) Kill() error {
	select {
	case <-p.done:
		return playground.ErrProcessDone
	default:
	}
	if err := killProcessTree(p.cmd); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return playground.ErrProcessDone
		}
		return fmt.Errorf("killing process: %w", err)
	}
	return nil
}

// lineWatcher passes output through to dst and hands each complete line to
// onLine. exec serializes writes when stdout and stderr share it.
type lineWatcher struct {
	dst    io.Writer
	onLine func(string)
	buf    bytes.Buffer
}

func (w *lineWatcher) Write(b []byte) (int, error) {
	w.buf.Write(b)
	for {
		i := bytes.IndexAny(w.buf.Bytes(), "\r\n")
		if i < 0 {
			break
		}
		n := i + 1
		if b := w.buf.Bytes(); b[i] == '\r' && n < len(b) && b[n] == '\n' {
			n++
		}
		line := string(w.buf.Next(n))
		w.onLine(strings.TrimRight(line, "\r\n"))
	}
	if _, err := w.dst.Write(b); err != nil {
		// The reader went away; keep the process running.
		return len(b), nil
	}
	return len(b), nil
}

func (w *lineWatcher) flush() {
	if w.buf.Len() > 0 {
		w.onLine(w.buf.String())
		w.buf.Reset()
	}
}
