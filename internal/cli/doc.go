// Parses flags and dispatches the jarvis subcommands.
//
// Global flags:
//
//	-q, --quiet     Suppress informational output.
//	-v, --verbose   Prefix log records with timestamps.
//	-d, --debug     Enable debug output.
//	-c, --config    Load flag values from a YAML file.
//
// Flags override build-time defaults set via linker flags. After parsing, the
// global logger is reconfigured to reflect the final level, colour and
// verbosity before the subcommand runs.
//
// Every flag can also be set through a JARVIS_* environment variable or in
// the YAML configuration file, which is read from the user's configuration
// directory when present. Keys are flag names with dashes replaced by
// underscores:
//
//	runtime: containerd
//	containerd_namespace: ci
//	stop_timeout: 30s
//
// Command-line flags take precedence over both.
package cli
