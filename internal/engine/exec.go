package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/mattn/go-shellwords"

	"github.com/asr-api/backend/internal/transcript"
)

// commandLine is a parsed external command ready to receive extra arguments
type commandLine []string

func parseCommand(command string) (commandLine, error) {
	args, err := shellwords.NewParser().Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse engine command: %w", err)
	}
	if len(args) == 0 {
		return nil, errors.New("engine command is empty")
	}
	return args, nil
}

// run executes the command with extra args and returns stdout.
// The process is killed when ctx ends.
func (c commandLine) run(ctx context.Context, extra ...string) ([]byte, error) {
	args := append(append([]string{}, c[1:]...), extra...)
	cmd := exec.CommandContext(ctx, c[0], args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("command failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// ExecRecognizer runs a local program per request:
//
//	<command> --audio <wav> [--language <lang>] [--hotwords <file>]
//
// and reads the recognition JSON from its stdout
type ExecRecognizer struct {
	cmd commandLine
}

func NewExecRecognizer(command string) (*ExecRecognizer, error) {
	cmd, err := parseCommand(command)
	if err != nil {
		return nil, err
	}
	return &ExecRecognizer{cmd: cmd}, nil
}

func (r *ExecRecognizer) Name() string {
	return "exec:" + filepath.Base(r.cmd[0])
}

func (r *ExecRecognizer) Transcribe(ctx context.Context, audioPath, language string, hotwords Hotwords) ([]transcript.Span, error) {
	args := []string{"--audio", audioPath}
	if language != "" {
		args = append(args, "--language", language)
	}
	if len(hotwords) > 0 {
		// Written next to the audio so the request's scratch scope owns it
		f, err := os.CreateTemp(filepath.Dir(audioPath), "hotwords-*.txt")
		if err != nil {
			return nil, failure(ctx, r.Name(), err)
		}
		defer os.Remove(f.Name())
		_, werr := f.WriteString(hotwords.EngineString())
		if cerr := f.Close(); werr == nil {
			werr = cerr
		}
		if werr != nil {
			return nil, failure(ctx, r.Name(), werr)
		}
		args = append(args, "--hotwords", f.Name())
	}

	out, err := r.cmd.run(ctx, args...)
	if err != nil {
		return nil, failure(ctx, r.Name(), err)
	}
	spans, err := decodeSpans(out)
	if err != nil {
		return nil, failure(ctx, r.Name(), err)
	}
	return spans, nil
}

// ExecDiarizer runs `<command> --audio <wav>` and reads speaker turns from stdout
type ExecDiarizer struct {
	cmd commandLine
}

func NewExecDiarizer(command string) (*ExecDiarizer, error) {
	cmd, err := parseCommand(command)
	if err != nil {
		return nil, err
	}
	return &ExecDiarizer{cmd: cmd}, nil
}

func (d *ExecDiarizer) Name() string {
	return "exec:" + filepath.Base(d.cmd[0])
}

func (d *ExecDiarizer) Diarize(ctx context.Context, audioPath string) ([]transcript.Interval, error) {
	out, err := d.cmd.run(ctx, "--audio", audioPath)
	if err != nil {
		return nil, failure(ctx, d.Name(), err)
	}
	intervals, err := decodeIntervals(out)
	if err != nil {
		return nil, failure(ctx, d.Name(), err)
	}
	return intervals, nil
}
