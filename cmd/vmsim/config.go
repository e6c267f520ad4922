package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	util "github.com/bietkhonhungvandi212/pagevm/internal/utils"
	"github.com/google/subcommands"
)

// ConfigCommand prints the effective configuration.
type ConfigCommand struct {
	path string
}

// Name implements subcommands.Command.Name.
func (*ConfigCommand) Name() string {
	return "config"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*ConfigCommand) Synopsis() string {
	return "print the effective memory manager configuration as YAML"
}

// Usage implements subcommands.Command.Usage.
func (*ConfigCommand) Usage() string {
	return "config [-config <file>]\n"
}

// SetFlags implements subcommands.Command.SetFlags.
func (c *ConfigCommand) SetFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.path, "config", "", "YAML file overriding the defaults")
}

// Execute implements subcommands.Command.Execute.
func (c *ConfigCommand) Execute(context.Context, *flag.FlagSet, ...any) subcommands.ExitStatus {
	opts, err := loadOptions(c.path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	out, err := opts.Marshal()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	os.Stdout.Write(out)
	return subcommands.ExitSuccess
}

func loadOptions(path string) (util.Options, error) {
	if path == "" {
		return util.DefaultOptions(), nil
	}
	return util.LoadOptions(path)
}
