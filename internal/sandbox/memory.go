package sandbox

import (
	"context"
	"io"
	"slices"
	"strings"
	"sync"

	"playground-go/internal/playground"
)

// ScriptedProcess describes how a MemoryRuntime process behaves.
type ScriptedProcess struct {
	Output   string
	ExitCode int

	// Ready, when set, is announced once the output has been written.
	Ready *playground.ServerReady

	// LongRunning processes stay alive after writing their output until
	// killed, like a dev server.
	LongRunning bool
}

// MemoryRuntime keeps mounted files in a map and replays scripted processes.
// It backs the "memory" sandbox type and tests.
type MemoryRuntime struct {
	mu      sync.Mutex
	files   map[string]string
	spawned []string
	mounts  int
	closed  bool

	// Script maps a full command line, such as "npm install", to its
	// behaviour. Commands not listed use Fallback.
	Script   map[string]ScriptedProcess
	Fallback ScriptedProcess

	ready chan playground.ServerReady
}

var _ playground.Runtime = (*MemoryRuntime)(nil)

func NewMemoryRuntime() *MemoryRuntime {
	return &MemoryRuntime{
		files:  make(map[string]string),
		Script: make(map[string]ScriptedProcess),
		ready:  make(chan playground.ServerReady, 1),
	}
}

func (r *MemoryRuntime) Mount(ctx context.Context, tree playground.MountTree) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	files := make(map[string]string)
	flattenMount(tree, "", files)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.files = files
	r.mounts++
	return nil
}

func flattenMount(tree playground.MountTree, prefix string, out map[string]string) {
	for name, entry := range tree {
		p := playground.JoinPath(prefix, name)
		if entry.File != nil {
			out[p] = entry.File.Contents
			continue
		}
		flattenMount(entry.Directory, p, out)
	}
}

func (r *MemoryRuntime) WriteFile(ctx context.Context, path, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files[path] = content
	return nil
}

// File returns the content of a mounted file.
func (r *MemoryRuntime) File(path string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	content, ok := r.files[path]
	return content, ok
}

// Paths lists mounted file paths in sorted order.
func (r *MemoryRuntime) Paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	paths := make([]string, 0, len(r.files))
	for p := range r.files {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

// Spawned returns every command line started so far.
func (r *MemoryRuntime) Spawned() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.spawned)
}

// Mounts counts calls to Mount.
func (r *MemoryRuntime) Mounts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mounts
}

func (r *MemoryRuntime) Spawn(ctx context.Context, name string, args ...string) (playground.Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	line := strings.Join(append([]string{name}, args...), " ")

	r.mu.Lock()
	r.spawned = append(r.spawned, line)
	script, ok := r.Script[line]
	if !ok {
		script = r.Fallback
	}
	r.mu.Unlock()

	pr, pw := io.Pipe()
	p := &memoryProcess{
		output: pr,
		done:   make(chan struct{}),
		killed: make(chan struct{}),
		code:   script.ExitCode,
	}
	go func() {
		_, _ = io.WriteString(pw, script.Output)
		if script.Ready != nil {
			select {
			case r.ready <- *script.Ready:
			default:
			}
		}
		if script.LongRunning {
			<-p.killed
			p.code = -1
		}
		pw.Close()
		close(p.done)
	}()
	return p, nil
}

func (r *MemoryRuntime) ServerReady() <-chan playground.ServerReady {
	return r.ready
}

func (r *MemoryRuntime) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

type memoryProcess struct {
	output   io.Reader
	done     chan struct{}
	killed   chan struct{}
	killOnce sync.Once
	code     int
}

func (p *memoryProcess) Output() io.Reader {
	return p.output
}

func (p *memoryProcess) Wait() (int, error) {
	<-p.done
	return p.code, nil
}

func (p *memoryProcess) Kill() error {
	select {
	case <-p.done:
		return playground.ErrProcessDone
	default:
	}
	p.killOnce.Do(func() { close(p.killed) })
	return nil
}
