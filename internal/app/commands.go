// Where: internal/app/commands.go
// What: Command handlers.
// Why: Each handler opens a session, spawns lifecycles and prints a summary.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/hybridless/hybridless/internal/domain/value"
	"github.com/hybridless/hybridless/internal/host"
	"github.com/hybridless/hybridless/internal/interaction"
	"github.com/hybridless/hybridless/internal/meta"
	"github.com/hybridless/hybridless/internal/plugin"
	"github.com/hybridless/hybridless/internal/ports"
	"github.com/hybridless/hybridless/internal/version"
)

func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func newUI(deps Dependencies) ports.UserInterface {
	file, ok := deps.Out.(*os.File)
	return ports.NewConsoleUI(deps.Out, ok && interaction.IsTerminal(file))
}

func runPackage(cli CLI, deps Dependencies) int {
	ctx, cancel := commandContext()
	defer cancel()
	cmd := cli.Package

	s, err := openSession(ctx, cli, deps, sessionOptions{pruneLocal: cmd.PruneLocal})
	if err != nil {
		return exitWithError(deps.ErrOut, err)
	}
	defer s.Close()

	path, err := s.host.Package(ctx, host.PackageOptions{Out: cmd.Out, Format: cmd.Format, Cleanup: cmd.Cleanup})
	if err != nil {
		deps.Log.Exception(err, "Package failed.")
		return exitWithError(deps.ErrOut, err)
	}

	svc := s.host.Service()
	rows := []ports.KeyValue{
		{Key: "Service", Value: svc.Name()},
		{Key: "Stage", Value: svc.Stage()},
		{Key: "Region", Value: svc.Region()},
		{Key: "Functions", Value: len(value.AsMap(svc.Section("functions")))},
		{Key: "Template", Value: path},
	}
	if cli.ArtifactBucket != "" {
		uri, err := uploadTemplate(ctx, s, cli.ArtifactBucket, path, cmd.Format)
		if err != nil {
			return exitWithError(deps.ErrOut, err)
		}
		rows = append(rows, ports.KeyValue{Key: "Artifact", Value: uri})
	}
	ui := newUI(deps)
	ui.Block("📦", "Package", rows)
	ui.Success("Package complete")
	return 0
}

func uploadTemplate(ctx context.Context, s *session, bucket, path, format string) (string, error) {
	aws := s.host.AWS()
	if aws == nil {
		return "", fmt.Errorf("artifact upload requires the aws provider")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read template: %w", err)
	}
	uploader, err := aws.Artifacts(ctx, bucket)
	if err != nil {
		return "", err
	}
	contentType := "application/json"
	if format == host.FormatYAML {
		contentType = "application/yaml"
	}
	svc := s.host.Service()
	return uploader.Upload(ctx, svc.Name(), svc.Stage(), filepath.Base(path), contentType, data)
}

func runRemove(cli CLI, deps Dependencies) int {
	return runDestructive(cli, deps, cli.Remove.Yes, func(ctx context.Context, s *session) error {
		return s.host.Remove(ctx)
	})
}

func runDelete(cli CLI, deps Dependencies) int {
	return runDestructive(cli, deps, cli.Delete.Yes, func(ctx context.Context, s *session) error {
		return s.host.PluginManager().Spawn(ctx, plugin.CommandDelete)
	})
}

func runDestructive(cli CLI, deps Dependencies, yes bool, run func(context.Context, *session) error) int {
	ctx, cancel := commandContext()
	defer cancel()
	s, err := openSession(ctx, cli, deps, sessionOptions{})
	if err != nil {
		return exitWithError(deps.ErrOut, err)
	}
	defer s.Close()

	svc := s.host.Service()
	title := fmt.Sprintf("Delete every image repository of %s (%s)?", svc.Name(), svc.Stage())
	ok, err := interaction.Confirm(deps.Prompter, deps.In, yes, title, "Images pushed to these repositories are removed with them.")
	if err != nil {
		return exitWithError(deps.ErrOut, err)
	}
	ui := newUI(deps)
	if !ok {
		ui.Warn("Aborted")
		return 1
	}
	if err := run(ctx, s); err != nil {
		deps.Log.Exception(err, "Delete failed.")
		return exitWithError(deps.ErrOut, err)
	}
	ui.Success("Repositories deleted")
	return 0
}

func runExec(cli CLI, deps Dependencies) int {
	ctx, cancel := commandContext()
	defer cancel()
	s, err := openSession(ctx, cli, deps, sessionOptions{})
	if err != nil {
		return exitWithError(deps.ErrOut, err)
	}
	defer s.Close()

	ui := newUI(deps)
	for _, name := range cli.Exec.Commands {
		command := qualify(name)
		ui.Info("Spawning " + command)
		if err := s.host.PluginManager().Spawn(ctx, command); err != nil {
			deps.Log.Exception(err, fmt.Sprintf("%s failed.", command))
			return exitWithError(deps.ErrOut, err)
		}
	}
	ui.Success(fmt.Sprintf("Ran %s", strings.Join(cli.Exec.Commands, ", ")))
	return 0
}

// qualify prefixes bare command names with the plugin namespace.
func qualify(name string) string {
	name = strings.TrimSpace(name)
	if strings.Contains(name, ":") {
		return name
	}
	return meta.AppName + ":" + name
}

func runBuildAll(cli CLI, deps Dependencies) int {
	ctx, cancel := commandContext()
	defer cancel()
	s, err := openSession(ctx, cli, deps, sessionOptions{})
	if err != nil {
		return exitWithError(deps.ErrOut, err)
	}
	defer s.Close()
	if err := s.host.PluginManager().Spawn(ctx, plugin.CommandBuildAll); err != nil {
		deps.Log.Exception(err, "Build failed.")
		return exitWithError(deps.ErrOut, err)
	}
	newUI(deps).Success("Build complete")
	return 0
}

func runCleanup(cli CLI, deps Dependencies) int {
	ctx, cancel := commandContext()
	defer cancel()
	keep := time.UnixMilli(cli.Cleanup.Keep)
	s, err := openSession(ctx, cli, deps, sessionOptions{
		pruneLocal: cli.Cleanup.PruneLocal,
		now:        func() time.Time { return keep },
	})
	if err != nil {
		return exitWithError(deps.ErrOut, err)
	}
	defer s.Close()
	if err := s.plugin.Setup(ctx); err != nil {
		return exitWithError(deps.ErrOut, err)
	}
	if err := s.host.PluginManager().Spawn(ctx, plugin.CommandCleanup); err != nil {
		deps.Log.Exception(err, "Cleanup failed.")
		return exitWithError(deps.ErrOut, err)
	}
	newUI(deps).Success(fmt.Sprintf("Kept tag %d", cli.Cleanup.Keep))
	return 0
}

func runResolve(cli CLI, deps Dependencies) int {
	ctx, cancel := commandContext()
	defer cancel()
	s, err := openSession(ctx, cli, deps, sessionOptions{})
	if err != nil {
		return exitWithError(deps.ErrOut, err)
	}
	defer s.Close()

	address := normalizeAddress(cli.Resolve.Address)
	if address == "" {
		address, err = selectAddress(ctx, s, deps)
		if err != nil {
			return exitWithError(deps.ErrOut, err)
		}
	}
	result, err := s.plugin.ResolveVariable(ctx, address)
	if err != nil {
		return exitWithError(deps.ErrOut, err)
	}
	if m := value.AsMap(result); m != nil {
		fmt.Fprintln(deps.Out, value.AsString(m["value"]))
		return 0
	}
	fmt.Fprintln(deps.ErrOut, value.AsString(result))
	return 1
}

// normalizeAddress accepts `${hybridless:...}`, `hybridless:...` and bare addresses.
func normalizeAddress(address string) string {
	address = strings.TrimSpace(address)
	address = strings.TrimSuffix(strings.TrimPrefix(address, "${"), "}")
	return strings.TrimPrefix(address, meta.VariableSource+":")
}

func selectAddress(ctx context.Context, s *session, deps Dependencies) (string, error) {
	if deps.Prompter == nil || !interaction.IsTerminal(deps.In) {
		return "", fmt.Errorf("address is required")
	}
	if err := s.plugin.Setup(ctx); err != nil {
		return "", err
	}
	var names []string
	if opts := s.plugin.Options(); opts != nil {
		names = opts.FunctionNames()
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no hybridless functions are configured")
	}
	name, err := deps.Prompter.Select("Function", names)
	if err != nil {
		return "", err
	}
	return meta.ResolveContainerAddressPrefix + ":" + name, nil
}

func runEntries(cli CLI, deps Dependencies) int {
	ctx, cancel := commandContext()
	defer cancel()
	s, err := openSession(ctx, cli, deps, sessionOptions{})
	if err != nil {
		return exitWithError(deps.ErrOut, err)
	}
	defer s.Close()
	if err := s.plugin.Setup(ctx); err != nil {
		return exitWithError(deps.ErrOut, err)
	}
	out, err := json.MarshalIndent(plugin.WebpackEntries(s.plugin), "", "  ")
	if err != nil {
		return exitWithError(deps.ErrOut, err)
	}
	fmt.Fprintln(deps.Out, string(out))
	return 0
}

func runVersion(_ CLI, deps Dependencies) int {
	fmt.Fprintln(deps.Out, version.GetVersion())
	return 0
}
