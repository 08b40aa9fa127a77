package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/jarvis-ci/jarvis/internal"
	"github.com/jarvis-ci/jarvis/internal/buildlog"
	"github.com/jarvis-ci/jarvis/internal/fault"
	"github.com/jarvis-ci/jarvis/internal/paths"
	"golang.org/x/term"
)

// Represents the root command for jarvis.
type Root struct {
	Quiet    bool            `short:"q" help:"Suppress informational output." env:"JARVIS_QUIET"`
	Verbose  bool            `short:"v" help:"Prefix log records with timestamps." env:"JARVIS_VERBOSE"`
	Debug    bool            `short:"d" help:"Enable debug output." env:"JARVIS_DEBUG"`
	Config   kong.ConfigFlag `short:"c" help:"Load flag values from a YAML file." placeholder:"PATH"`
	Run      RunCmd          `cmd:"" default:"withargs" help:"Run the pipeline in a container."`
	Image    ImageCmd        `cmd:"" help:"Build the container image if needed and print its tag."`
	Tag      TagCmd          `cmd:"" help:"Print the image tag of the container recipe."`
	Validate ValidateCmd     `cmd:"" help:"Check the Jarvisfile and list its stages."`
	Version  VersionCmd      `cmd:"" help:"Show version information."`
}

// Parsed command line of the running process.
var RootCmd Root

// Parses arguments, configures logging, and runs the selected subcommand.
//
// SIGINT and SIGTERM cancel the context handed to the subcommand.
func Execute() error {

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	console := buildlog.NewConsole(os.Stdout, colorEnabled(os.Stdout))

	parser, err := newParser(&RootCmd,
		kong.Configuration(loadConfig, paths.ConfigFile()),
		kong.BindTo(ctx, (*context.Context)(nil)),
		kong.Bind(console),
		kong.BindTo(os.Stdout, (*io.Writer)(nil)),
	)
	if err != nil {
		return err
	}

	kongCtx, err := parser.Parse(os.Args[1:])
	if err != nil {
		return fault.Wrap(ErrConfig, err)
	}

	configureLogger(&RootCmd)

	return kongCtx.Run()
}

// Creates the command-line parser for root.
func newParser(root *Root, options ...kong.Option) (*kong.Kong, error) {
	options = append([]kong.Option{
		kong.Name(internal.Name),
		kong.Description("A minimal CI runner.\n\nBuilds a container from the project's Dockerfile and runs the stages of its Jarvisfile inside it."),
		kong.UsageOnError(),
		kong.Vars{
			"version": internal.VersionString(),
		},
	}, options...)
	return kong.New(root, options...)
}

// Configures the global logger based on CLI flags.
func configureLogger(root *Root) {
	handler, ok := slog.Default().Handler().(*buildlog.Handler)
	if !ok {
		return // Not a buildlog.Handler, nothing to configure
	}

	internal.SetDebug(root.Debug || internal.IsDebug())
	internal.SetQuiet(root.Quiet || internal.IsQuiet())
	internal.SetVerbose(root.Verbose || internal.IsVerbose())

	handler.SetOutput(os.Stderr)
	handler.SetLevel(internal.LogLevel())
	handler.SetVerbose(internal.IsVerbose())
	handler.SetColor(colorEnabled(os.Stderr))
}

// Whether output to f should be styled.
//
// Styling requires an interactive terminal and is disabled by NO_COLOR.
func colorEnabled(f *os.File) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
