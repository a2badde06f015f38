// Command dunitrust is the node's command-line shell: subcommand
// dispatch and flag parsing only, per spec.md §1's explicit non-goal
// ("the command-line argument parser and subcommand dispatch... are
// straightforward and contribute no interesting design"). Every
// subcommand below delegates immediately into a library package;
// nothing here holds protocol logic.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "dunitrust",
		Usage: "an alternative node implementation of the Duniter protocol",
		Commands: []*cli.Command{
			commandKeygen,
			commandInspect,
			commandRun,
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
