// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package container

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/fulltext/internal/failure"
)

// mockExecutor records calls and returns configured responses.
type mockExecutor struct {
	availableBins map[string]bool // binary -> whether LookPath succeeds
	runnableCmds  map[string]bool // "bin arg1 arg2" -> whether RunSilent succeeds
	runPipedFunc  func(ctx context.Context, name string, args []string, stdin io.Reader, stdout io.Writer) error
}

func (m *mockExecutor) LookPath(file string) (string, error) {
	if m.availableBins[file] {
		return "/usr/bin/" + file, nil
	}
	return "", errors.New("not found: " + file)
}

func (m *mockExecutor) RunSilent(_ context.Context, name string, args ...string) error {
	key := name + " " + strings.Join(args, " ")
	if m.runnableCmds[key] {
		return nil
	}
	return errors.New("command failed: " + key)
}

func (m *mockExecutor) RunPiped(ctx context.Context, name string, args []string, stdin io.Reader, stdout io.Writer) error {
	if m.runPipedFunc != nil {
		return m.runPipedFunc(ctx, name, args, stdin, stdout)
	}
	return nil
}

func TestDetectRuntime(t *testing.T) {
	tests := []struct {
		name     string
		exec     *mockExecutor
		wantName string
		wantErr  bool
	}{
		{
			name: "docker available",
			exec: &mockExecutor{
				availableBins: map[string]bool{"docker": true},
				runnableCmds:  map[string]bool{"docker info": true},
			},
			wantName: "docker",
		},
		{
			name: "podman fallback when docker missing",
			exec: &mockExecutor{
				availableBins: map[string]bool{"podman": true},
				runnableCmds:  map[string]bool{"podman info": true},
			},
			wantName: "podman",
		},
		{
			name:    "neither available",
			exec:    &mockExecutor{},
			wantErr: true,
		},
		{
			name: "docker on PATH but info fails",
			exec: &mockExecutor{
				availableBins: map[string]bool{"docker": true, "podman": true},
				runnableCmds:  map[string]bool{"podman info": true},
			},
			wantName: "podman",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt, err := detectRuntime(context.Background(), tt.exec)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, failure.Is(err, failure.Configuration))
				assert.Contains(t, err.Error(), "no container runtime available")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, rt.Name())
		})
	}
}

func TestImageExists(t *testing.T) {
	ctx := context.Background()

	docker := newDockerRuntime(&mockExecutor{runnableCmds: map[string]bool{"docker image inspect markitdown:latest": true}})
	assert.NoError(t, docker.ImageExists(ctx, "markitdown:latest"))

	podman := newPodmanRuntime(&mockExecutor{runnableCmds: map[string]bool{"podman image exists markitdown:latest": true}})
	assert.NoError(t, podman.ImageExists(ctx, "markitdown:latest"))

	err := newDockerRuntime(&mockExecutor{}).ImageExists(ctx, "markitdown:latest")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "markitdown:latest")
	assert.True(t, failure.Is(err, failure.Configuration))
}

func TestRun(t *testing.T) {
	var gotArgs []string
	exec := &mockExecutor{runPipedFunc: func(_ context.Context, name string, args []string, stdin io.Reader, stdout io.Writer) error {
		gotArgs = append([]string{name}, args...)
		data, _ := io.ReadAll(stdin)
		_, _ = stdout.Write([]byte("converted: " + string(data)))
		return nil
	}}

	var out bytes.Buffer
	err := newPodmanRuntime(exec).Run(context.Background(), "markitdown:latest", strings.NewReader("pdf"), &out, "--flag")
	require.NoError(t, err)
	assert.Equal(t, "converted: pdf", out.String())
	assert.Equal(t, []string{"podman", "run", "--rm", "-i", "--network", "none", "markitdown:latest", "--flag"}, gotArgs)
}

func TestRun_Failure(t *testing.T) {
	exec := &mockExecutor{runPipedFunc: func(context.Context, string, []string, io.Reader, io.Writer) error {
		return errors.New("container exited with code 1")
	}}
	err := newDockerRuntime(exec).Run(context.Background(), "markitdown:latest", strings.NewReader(""), io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exited with code 1")
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	exec := &mockExecutor{runPipedFunc: func(ctx context.Context, _ string, _ []string, _ io.Reader, _ io.Writer) error {
		return ctx.Err()
	}}
	err := newDockerRuntime(exec).Run(ctx, "markitdown:latest", strings.NewReader(""), io.Discard)
	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.Transient))
}
