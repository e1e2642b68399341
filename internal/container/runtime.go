// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package container runs one-shot converter images under docker or podman,
// piping a document through stdin and collecting stdout.
package container

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/pdiddy/fulltext/internal/failure"
)

const (
	binDocker = "docker"
	binPodman = "podman"
)

// Runtime is a container engine able to run a converter image.
type Runtime interface {
	// Name returns "docker" or "podman".
	Name() string

	// Available reports whether the binary is on PATH and the engine answers.
	Available(ctx context.Context) bool

	// ImageExists returns nil when image is present locally.
	ImageExists(ctx context.Context, image string) error

	// Run executes image with networking disabled, piping stdin to the
	// container and its stdout to stdout. Extra args go after the image.
	Run(ctx context.Context, image string, stdin io.Reader, stdout io.Writer, args ...string) error
}

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	RunSilent(ctx context.Context, name string, args ...string) error
	RunPiped(ctx context.Context, name string, args []string, stdin io.Reader, stdout io.Writer) error
}

type osExecutor struct{}

func (osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (osExecutor) RunSilent(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

func (osExecutor) RunPiped(ctx context.Context, name string, args []string, stdin io.Reader, stdout io.Writer) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return errors.Wrap(err, msg)
		}
		return err
	}
	return nil
}

// runtime implements Runtime. Docker and podman differ only in binary name
// and the image-check subcommand.
type runtime struct {
	bin           string
	imageCheckCmd []string
	exec          executor
}

func (r *runtime) Name() string { return r.bin }

func (r *runtime) Available(ctx context.Context) bool {
	if _, err := r.exec.LookPath(r.bin); err != nil {
		return false
	}
	return r.exec.RunSilent(ctx, r.bin, "info") == nil
}

func (r *runtime) ImageExists(ctx context.Context, image string) error {
	args := make([]string, 0, len(r.imageCheckCmd)+1)
	args = append(args, r.imageCheckCmd...)
	args = append(args, image)

	if err := r.exec.RunSilent(ctx, r.bin, args...); err != nil {
		return failure.Mark(errors.Wrapf(err, "image %s not found in %s", image, r.bin), failure.Configuration)
	}
	return nil
}

func (r *runtime) Run(ctx context.Context, image string, stdin io.Reader, stdout io.Writer, extra ...string) error {
	args := append([]string{"run", "--rm", "-i", "--network", "none", image}, extra...)
	if err := r.exec.RunPiped(ctx, r.bin, args, stdin, stdout); err != nil {
		if ctx.Err() != nil {
			return failure.Mark(errors.Wrapf(ctx.Err(), "running %s container %s", r.bin, image), failure.Transient)
		}
		return errors.Wrapf(err, "running %s container %s", r.bin, image)
	}
	return nil
}

func newDockerRuntime(exec executor) *runtime {
	return &runtime{bin: binDocker, imageCheckCmd: []string{"image", "inspect"}, exec: exec}
}

func newPodmanRuntime(exec executor) *runtime {
	return &runtime{bin: binPodman, imageCheckCmd: []string{"image", "exists"}, exec: exec}
}

var defaultExec executor = osExecutor{}

// DetectRuntime tries docker first, then podman.
func DetectRuntime(ctx context.Context) (Runtime, error) {
	return detectRuntime(ctx, defaultExec)
}

func detectRuntime(ctx context.Context, exec executor) (Runtime, error) {
	if docker := newDockerRuntime(exec); docker.Available(ctx) {
		return docker, nil
	}
	if podman := newPodmanRuntime(exec); podman.Available(ctx) {
		return podman, nil
	}
	return nil, failure.Newf(failure.Configuration,
		"no container runtime available: neither %s nor %s found or operational", binDocker, binPodman)
}
