// Command synapticai runs the SynapticAI edge server.
package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/alecthomas/kong"

	"github.com/jacobxo0/synapticai-sub001/internal/config"
)

// CLI is the command tree.
type CLI struct {
	Serve       ServeCmd       `cmd:"" default:"withargs" help:"Start the HTTP and gRPC servers."`
	CheckConfig CheckConfigCmd `cmd:"" help:"Validate configuration and print the effective settings."`
	Version     VersionCmd     `cmd:"" help:"Show version information."`

	EnvFile string `name:"env-file" type:"path" help:"Path to a .env file (default ./.env)."`
}

// VersionCmd prints the module version.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("synapticai %s\n", version)
	return nil
}

func main() {
	// .env must be loaded before kong resolves env-backed defaults.
	if err := config.LoadDotEnv(envFileArg(os.Args[1:])); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("synapticai"),
		kong.Description("SynapticAI edge server: cached AI chat behind a sliding-window rate limiter."),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run(&cli))
}

// envFileArg finds --env-file ahead of kong so the file can feed env-backed
// flags.
func envFileArg(args []string) string {
	for i, a := range args {
		switch {
		case a == "--env-file" && i+1 < len(args):
			return args[i+1]
		case len(a) > len("--env-file=") && a[:len("--env-file=")] == "--env-file=":
			return a[len("--env-file="):]
		}
	}
	return ""
}
