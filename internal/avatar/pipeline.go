package avatar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const defaultPipelineTimeout = 30 * time.Second

// Pipeline adapts a retrieval sidecar command into a Responder. The command
// is run per prompt with the prompt appended as the final argument, and must
// print a single JSON line on stdout: {"success": true, "answer": ...} on
// success or {"error": ...} with a non-zero exit on failure.
type Pipeline struct {
	command []string
	timeout time.Duration
}

// NewPipeline builds a subprocess-backed responder from an argv slice.
func NewPipeline(command []string, timeout time.Duration) (*Pipeline, error) {
	if len(command) == 0 {
		return nil, errors.New("empty pipeline command")
	}
	if timeout <= 0 {
		timeout = defaultPipelineTimeout
	}
	return &Pipeline{
		command: append([]string(nil), command...),
		timeout: timeout,
	}, nil
}

// Reply runs the sidecar once and returns its answer.
func (p *Pipeline) Reply(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	args := append(append([]string(nil), p.command[1:]...), prompt)
	cmd := exec.CommandContext(ctx, p.command[0], args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	runErr := cmd.Run()

	// The sidecar reports its own failures as JSON on stdout, so parse that
	// even when the process exited non-zero.
	var result struct {
		Success bool   `json:"success"`
		Answer  string `json:"answer"`
		Error   string `json:"error"`
	}
	line := lastLine(stdout.String())
	if err := json.Unmarshal([]byte(line), &result); err != nil {
		if runErr != nil {
			return "", fmt.Errorf("pipeline: %w: %s", runErr, strings.TrimSpace(stderr.String()))
		}
		return "", fmt.Errorf("parse pipeline output: %w", err)
	}
	if result.Error != "" {
		return "", fmt.Errorf("pipeline: %s", result.Error)
	}
	if !result.Success || result.Answer == "" {
		return "", errors.New("pipeline returned no answer")
	}
	return result.Answer, nil
}

// lastLine returns the final non-empty stdout line, tolerating sidecars that
// print banners before their JSON result.
func lastLine(out string) string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
