package liveplot

import (
	"fmt"
	"io"
	"os"
	"os/exec"
)

// Process is a running renderer. Stdout must be read to EOF before Wait.
type Process interface {
	// Stdin is the command stream. Closing it asks the renderer to exit.
	Stdin() io.WriteCloser
	// Stdout is the event stream.
	Stdout() io.Reader
	// Wait blocks until the process has exited and releases it.
	Wait() error
	// Kill stops the process immediately.
	Kill() error
}

// Spawner starts renderer processes with the given command-line flags.
type Spawner interface {
	Spawn(args []string) (Process, error)
}

// ExecSpawner runs the renderer as a child process. Its stderr is shared with
// the host so renderer log lines reach the host's log.
type ExecSpawner struct {
	// Path is the renderer binary. A bare name is looked up on PATH.
	Path string
	// Prefix is inserted before the renderer flags.
	Prefix []string
	// Stderr receives renderer logs. Nil means os.Stderr.
	Stderr io.Writer
}

// Spawn starts the binary.
func (e ExecSpawner) Spawn(args []string) (Process, error) {
	path, err := exec.LookPath(e.Path)
	if err != nil {
		return nil, fmt.Errorf("renderer binary: %w", err)
	}
	cmd := exec.Command(path, append(append([]string(nil), e.Prefix...), args...)...)
	cmd.Stderr = e.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", path, err)
	}
	return &execProcess{cmd: cmd, stdin: stdin, stdout: stdout}, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.Reader
}

func (p *execProcess) Stdin() io.WriteCloser { return p.stdin }
func (p *execProcess) Stdout() io.Reader     { return p.stdout }
func (p *execProcess) Wait() error           { return p.cmd.Wait() }
func (p *execProcess) Kill() error           { return p.cmd.Process.Kill() }
