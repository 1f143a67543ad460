package playground_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"playground-go/internal/playground"
	"playground-go/internal/sandbox"
	"playground-go/internal/testutil"
)

// syncBuffer is a console that tests can read while processes write to it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

var serverReady = playground.ServerReady{Port: 5173, URL: "http://localhost:5173"}

func newPipelineFixture(t *testing.T, start sandbox.ScriptedProcess, timeout time.Duration) (*playground.Pipeline, *sandbox.MemoryRuntime) {
	t.Helper()
	rt := sandbox.NewMemoryRuntime()
	rt.Script["npm install"] = sandbox.ScriptedProcess{Output: "added 12 packages\n"}
	rt.Script["npm run dev"] = start
	cfg := playground.PipelineConfig{
		InstallCommand: []string{"npm", "install"},
		StartCommand:   []string{"npm", "run", "dev"},
		ReadyTimeout:   timeout,
	}
	p := playground.NewPipeline(rt, nil, cfg, testutil.NewRecordingLogger())
	t.Cleanup(p.Reset)
	return p, rt
}

func devServer() sandbox.ScriptedProcess {
	return sandbox.ScriptedProcess{Output: "VITE ready\n", Ready: &serverReady, LongRunning: true}
}

func TestPipeline_Run(t *testing.T) {
	ctx := context.Background()

	t.Run("runs every step in order", func(t *testing.T) {
		p, rt := newPipelineFixture(t, devServer(), 5*time.Second)
		var console syncBuffer

		ready, err := p.Run(ctx, testutil.SampleTree(), &console)
		if err != nil {
			t.Fatalf("Run() error = %v\n%s", err, console.String())
		}
		if ready != serverReady {
			t.Errorf("Run() = %+v, want %+v", ready, serverReady)
		}
		if p.Step() != playground.StepReady {
			t.Errorf("Step() = %v, want ready", p.Step())
		}
		if diff := cmp.Diff([]string{"npm install", "npm run dev"}, rt.Spawned()); diff != "" {
			t.Errorf("Spawned() mismatch (-want +got):\n%s", diff)
		}
		if _, ok := rt.File("src/components/Button.jsx"); !ok {
			t.Errorf("mounted paths = %v", rt.Paths())
		}

		out := console.String()
		steps := []string{
			"Transforming project files...",
			"Mounting files...",
			"Files mounted",
			"Installing dependencies...",
			"added 12 packages",
			"Dependencies installed",
			"Starting server...",
			"Server ready at http://localhost:5173",
		}
		last := -1
		for _, s := range steps {
			i := strings.Index(out, s)
			if i < 0 {
				t.Errorf("console missing %q:\n%s", s, out)
				continue
			}
			if i < last {
				t.Errorf("%q printed out of order:\n%s", s, out)
			}
			last = i
		}
	})

	t.Run("reconnects to a live server", func(t *testing.T) {
		p, rt := newPipelineFixture(t, devServer(), 5*time.Second)
		var first, second syncBuffer
		if _, err := p.Run(ctx, testutil.SampleTree(), &first); err != nil {
			t.Fatal(err)
		}
		ready, err := p.Run(ctx, testutil.SampleTree(), &second)
		if err != nil {
			t.Fatalf("second Run() error = %v", err)
		}
		if ready != serverReady {
			t.Errorf("second Run() = %+v", ready)
		}
		if rt.Mounts() != 1 {
			t.Errorf("Mounts() = %d, want 1", rt.Mounts())
		}
		if !strings.Contains(second.String(), "Reconnected to server at http://localhost:5173") {
			t.Errorf("console = %q", second.String())
		}
	})

	t.Run("reset starts over", func(t *testing.T) {
		p, rt := newPipelineFixture(t, devServer(), 5*time.Second)
		if _, err := p.Run(ctx, testutil.SampleTree(), &syncBuffer{}); err != nil {
			t.Fatal(err)
		}
		p.Reset()
		if p.Step() != playground.StepIdle {
			t.Errorf("Step() after Reset = %v", p.Step())
		}
		if _, err := p.Run(ctx, testutil.SampleTree(), &syncBuffer{}); err != nil {
			t.Fatal(err)
		}
		if rt.Mounts() != 2 {
			t.Errorf("Mounts() = %d, want 2", rt.Mounts())
		}
	})

	t.Run("install failure aborts", func(t *testing.T) {
		p, rt := newPipelineFixture(t, devServer(), 5*time.Second)
		rt.Script["npm install"] = sandbox.ScriptedProcess{Output: "npm ERR!\n", ExitCode: 1}
		var console syncBuffer

		_, err := p.Run(ctx, testutil.SampleTree(), &console)
		if err == nil || !strings.Contains(err.Error(), "failed to install dependencies, exit code 1") {
			t.Fatalf("Run() error = %v", err)
		}
		if p.Step() != playground.StepIdle {
			t.Errorf("Step() = %v, want idle", p.Step())
		}
		if !strings.Contains(console.String(), "Error: failed to install dependencies") {
			t.Errorf("console = %q", console.String())
		}
		if diff := cmp.Diff([]string{"npm install"}, rt.Spawned()); diff != "" {
			t.Errorf("start should not run (-want +got):\n%s", diff)
		}
	})

	t.Run("server exits before ready", func(t *testing.T) {
		p, _ := newPipelineFixture(t, sandbox.ScriptedProcess{Output: "crash\n", ExitCode: 2}, 5*time.Second)
		_, err := p.Run(ctx, testutil.SampleTree(), &syncBuffer{})
		if err == nil || !strings.Contains(err.Error(), "exited with code 2") {
			t.Errorf("Run() error = %v", err)
		}
	})

	t.Run("server never ready", func(t *testing.T) {
		p, _ := newPipelineFixture(t, sandbox.ScriptedProcess{LongRunning: true}, 50*time.Millisecond)
		_, err := p.Run(ctx, testutil.SampleTree(), &syncBuffer{})
		if err == nil || !strings.Contains(err.Error(), "not ready") {
			t.Errorf("Run() error = %v", err)
		}
	})

	t.Run("mount failure", func(t *testing.T) {
		p, rt := newPipelineFixture(t, devServer(), 5*time.Second)
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := p.Run(cancelled, testutil.SampleTree(), &syncBuffer{}); !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
		if len(rt.Spawned()) != 0 {
			t.Errorf("nothing should be spawned, got %v", rt.Spawned())
		}
	})

	t.Run("no start command", func(t *testing.T) {
		rt := sandbox.NewMemoryRuntime()
		p := playground.NewPipeline(rt, nil, playground.PipelineConfig{}, nil)
		if _, err := p.Run(ctx, testutil.SampleTree(), &syncBuffer{}); err == nil {
			t.Error("Run() without a start command should fail")
		}
	})

	t.Run("overlapping runs are rejected", func(t *testing.T) {
		p, _ := newPipelineFixture(t, sandbox.ScriptedProcess{LongRunning: true}, 2*time.Second)
		done := make(chan error, 1)
		go func() {
			_, err := p.Run(ctx, testutil.SampleTree(), &syncBuffer{})
			done <- err
		}()

		deadline := time.Now().Add(2 * time.Second)
		for p.Step() != playground.StepStarting && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		if _, err := p.Run(ctx, testutil.SampleTree(), &syncBuffer{}); !errors.Is(err, playground.ErrSetupInProgress) {
			t.Errorf("overlapping Run() error = %v, want ErrSetupInProgress", err)
		}
		<-done
	})
}

func TestPipeline_WriteFile(t *testing.T) {
	ctx := context.Background()
	p, rt := newPipelineFixture(t, devServer(), 5*time.Second)

	if err := p.WriteFile(ctx, "index.js", "early"); err != nil {
		t.Fatalf("WriteFile() before mount error = %v", err)
	}
	if _, ok := rt.File("index.js"); ok {
		t.Error("WriteFile() before mount should do nothing")
	}

	if _, err := p.Run(ctx, testutil.SampleTree(), &syncBuffer{}); err != nil {
		t.Fatal(err)
	}
	if err := p.WriteFile(ctx, "index.js", "late"); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if got, _ := rt.File("index.js"); got != "late" {
		t.Errorf("index.js = %q, want late", got)
	}
}

func TestStepString(t *testing.T) {
	if playground.StepInstalling.String() != "installing" || playground.Step(99).String() != "unknown" {
		t.Error("unexpected Step names")
	}
}
