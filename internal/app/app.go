// Where: internal/app/app.go
// What: CLI entrypoint logic.
// Why: Provide a testable command dispatcher.
package app

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/hybridless/hybridless/internal/constants"
	"github.com/hybridless/hybridless/internal/image"
	"github.com/hybridless/hybridless/internal/interaction"
	"github.com/hybridless/hybridless/internal/logger"
	"github.com/hybridless/hybridless/internal/meta"
	"github.com/hybridless/hybridless/internal/ports"
	"github.com/hybridless/hybridless/internal/runner"
)

// Dependencies holds everything commands need from the process.
type Dependencies struct {
	WorkDir  string
	Out      io.Writer
	ErrOut   io.Writer
	In       *os.File
	Log      *logger.Logger
	Now      func() time.Time
	Prompter interaction.Prompter
	Runner   runner.CommandRunner
	// NewBuilder opens the docker-backed builder. Only commands that build
	// or prune images call it.
	NewBuilder func() (image.Builder, io.Closer, error)
	// Provider replaces the default AWS provider when set.
	Provider ports.Provider
}

// CLI defines the command-line interface parsed by Kong.
type CLI struct {
	Config         string `short:"c" default:"serverless.yml" help:"Path to the service file"`
	Stage          string `short:"s" help:"Stage override (opt:stage)"`
	Region         string `short:"r" help:"Region override (opt:region)"`
	EnvFile        string `name:"env-file" help:"Path to .env file"`
	ArtifactBucket string `name:"artifact-bucket" help:"Upload the packaged template to this S3 bucket"`
	LedgerTable    string `name:"ledger-table" help:"Record pushed image tags in this DynamoDB table"`

	Package  PackageCmd  `cmd:"" help:"Synthesize, build, push and write the template"`
	Remove   RemoveCmd   `cmd:"" help:"Delete every image repository of the service"`
	Exec     ExecCmd     `cmd:"" help:"Spawn plugin commands in order"`
	BuildAll BuildAllCmd `cmd:"" name:"build-all" help:"Run every stage up to the image build"`
	Cleanup  CleanupCmd  `cmd:"" help:"Remove remote images except the given tag"`
	Delete   DeleteCmd   `cmd:"" help:"Delete image repositories"`
	Resolve  ResolveCmd  `cmd:"" help:"Resolve a hybridless variable address"`
	Entries  EntriesCmd  `cmd:"" help:"Print webpack entries for node handlers"`
	Version  VersionCmd  `cmd:"" help:"Show version information"`
}

type (
	PackageCmd struct {
		Out        string `short:"o" help:"Template output path"`
		Format     string `short:"f" enum:"json,yaml" default:"json" help:"Template format (json, yaml)"`
		Cleanup    bool   `help:"Remove stale remote images after packaging"`
		PruneLocal bool   `name:"prune-local" help:"Also remove local images during cleanup"`
	}
	RemoveCmd struct {
		Yes bool `short:"y" help:"Skip confirmation prompt"`
	}
	ExecCmd struct {
		Commands []string `arg:"" help:"Commands to spawn, e.g. create build (prefix hybridless: is optional)"`
	}
	CleanupCmd struct {
		Keep       int64 `required:"" help:"Run tag to keep (unix milliseconds)"`
		PruneLocal bool  `name:"prune-local" help:"Also remove local images"`
	}
	DeleteCmd struct {
		Yes bool `short:"y" help:"Skip confirmation prompt"`
	}
	ResolveCmd struct {
		Address string `arg:"" optional:"" help:"Address, e.g. resolveContainerAddress:api:0"`
	}
)

type (
	BuildAllCmd struct{}
	EntriesCmd  struct{}
	VersionCmd  struct{}
)

// Run parses args and dispatches. It returns the process exit code.
func Run(args []string, deps Dependencies) int {
	deps = withDefaults(deps)

	cli := CLI{}
	parser, err := kong.New(&cli,
		kong.Name(meta.AppName),
		kong.Description("Container-aware deployment synthesizer for serverless services"),
		kong.Writers(deps.Out, deps.ErrOut),
	)
	if err != nil {
		return exitWithError(deps.ErrOut, err)
	}
	if len(args) == 0 {
		return runNoArgs(parser, deps)
	}
	ctx, err := parser.Parse(args)
	if err != nil {
		return exitWithError(deps.ErrOut, err)
	}

	loadEnvFile(cli.EnvFile, deps)
	applyEnvDefaults(&cli)

	if code, handled := dispatchCommand(ctx.Command(), cli, deps); handled {
		return code
	}
	fmt.Fprintln(deps.ErrOut, "unknown command")
	return 1
}

type commandHandler func(CLI, Dependencies) int

func dispatchCommand(command string, cli CLI, deps Dependencies) (int, bool) {
	handlers := map[string]commandHandler{
		"package":           runPackage,
		"remove":            runRemove,
		"exec <commands>":   runExec,
		"build-all":         runBuildAll,
		"cleanup":           runCleanup,
		"delete":            runDelete,
		"resolve":           runResolve,
		"resolve <address>": runResolve,
		"entries":           runEntries,
		"version":           runVersion,
	}
	handler, ok := handlers[command]
	if !ok {
		return 1, false
	}
	return handler(cli, deps), true
}

// runNoArgs prints usage.
func runNoArgs(parser *kong.Kong, deps Dependencies) int {
	ctx, err := kong.Trace(parser, nil)
	if err != nil {
		return exitWithError(deps.ErrOut, err)
	}
	if err := ctx.PrintUsage(false); err != nil {
		return exitWithError(deps.ErrOut, err)
	}
	return 0
}

func withDefaults(deps Dependencies) Dependencies {
	if deps.Out == nil {
		deps.Out = os.Stdout
	}
	if deps.ErrOut == nil {
		deps.ErrOut = os.Stderr
	}
	if deps.In == nil {
		deps.In = os.Stdin
	}
	if deps.Log == nil {
		deps.Log = logger.FromEnv()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Runner == nil {
		deps.Runner = runner.ExecRunner{Limit: constants.DefaultCommandOutputLimitBytes}
	}
	if deps.WorkDir == "" {
		if wd, err := os.Getwd(); err == nil {
			deps.WorkDir = wd
		}
	}
	return deps
}

// loadEnvFile loads --env-file, or .env in the working directory when it exists.
func loadEnvFile(path string, deps Dependencies) {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			fmt.Fprintf(deps.ErrOut, "Warning: failed to load env file %s: %v\n", path, err)
		}
		return
	}
	if _, err := os.Stat(joinWorkDir(deps.WorkDir, ".env")); err == nil {
		if err := godotenv.Load(joinWorkDir(deps.WorkDir, ".env")); err != nil {
			fmt.Fprintf(deps.ErrOut, "Warning: failed to load .env: %v\n", err)
		}
	}
}

func applyEnvDefaults(cli *CLI) {
	if strings.TrimSpace(cli.ArtifactBucket) == "" {
		cli.ArtifactBucket = strings.TrimSpace(os.Getenv(constants.EnvArtifactBucket))
	}
	if strings.TrimSpace(cli.LedgerTable) == "" {
		cli.LedgerTable = strings.TrimSpace(os.Getenv(constants.EnvLedgerTable))
	}
}

func exitWithError(out io.Writer, err error) int {
	fmt.Fprintln(out, err)
	return 1
}
