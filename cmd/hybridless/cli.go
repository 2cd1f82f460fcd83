// Where: cmd/hybridless/cli.go
// What: CLI dependency wiring helpers.
// Why: Centralize construction for testability.
package main

import (
	"io"
	"os"

	"github.com/docker/docker/client"

	"github.com/hybridless/hybridless/internal/app"
	"github.com/hybridless/hybridless/internal/builder"
	"github.com/hybridless/hybridless/internal/constants"
	"github.com/hybridless/hybridless/internal/image"
	"github.com/hybridless/hybridless/internal/interaction"
	"github.com/hybridless/hybridless/internal/logger"
	"github.com/hybridless/hybridless/internal/runner"
)

var (
	getwd           = os.Getwd
	newDockerClient = func() (builder.DockerAPI, error) {
		return client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	}
)

// buildDependencies constructs the runtime dependencies of the CLI. The
// docker client is created per command and does not connect until used.
func buildDependencies() (app.Dependencies, error) {
	workDir, err := getwd()
	if err != nil {
		return app.Dependencies{}, err
	}
	log := logger.FromEnv()
	return app.Dependencies{
		WorkDir:  workDir,
		Out:      os.Stdout,
		ErrOut:   os.Stderr,
		In:       os.Stdin,
		Log:      log,
		Prompter: interaction.HuhPrompter{},
		Runner:   runner.ExecRunner{Limit: constants.DefaultCommandOutputLimitBytes},
		NewBuilder: func() (image.Builder, io.Closer, error) {
			docker, err := newDockerClient()
			if err != nil {
				return nil, nil, err
			}
			return builder.New(docker, log), asCloser(docker), nil
		},
	}, nil
}

// asCloser returns nil when the client cannot be closed.
func asCloser(docker builder.DockerAPI) io.Closer {
	if closer, ok := docker.(io.Closer); ok {
		return closer
	}
	return nil
}
