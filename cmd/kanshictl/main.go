// Command kanshictl is the control CLI for a running kanshi daemon: reload
// its config, or force a named profile, over the RPC socket (C7).
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/integrii/flaggy"

	"github.com/emersion/go-kanshi/pkg/ipc"
)

func main() {
	var profileName string

	flaggy.SetName("kanshictl")
	flaggy.SetDescription("Control a running kanshi daemon over its RPC socket")

	reloadCmd := flaggy.NewSubcommand("reload")
	reloadCmd.Description = "Reload the config file"
	flaggy.AttachSubcommand(reloadCmd, 1)

	setProfileCmd := flaggy.NewSubcommand("set-profile")
	setProfileCmd.Description = "Try to apply a named profile"
	setProfileCmd.AddPositionalValue(&profileName, "name", 1, true, "Profile name")
	flaggy.AttachSubcommand(setProfileCmd, 1)

	flaggy.Parse()

	var err error
	switch {
	case reloadCmd.Used:
		err = callReload()
	case setProfileCmd.Used:
		err = callSetProfile(profileName)
	default:
		flaggy.ShowHelpAndExit("expected a command")
	}

	if err != nil {
		reportError(err)
		os.Exit(1)
	}

	fmt.Println(color.GreenString("ok"))
}

// reportError prints the RPC-reported kind alongside the message, per
// spec §6's control CLI and the Kind the daemon now attaches to every
// RPC error reply.
func reportError(err error) {
	if kind, ok := ipc.KindOf(err); ok {
		fmt.Fprintln(os.Stderr, color.RedString("kanshictl: [%s] %s", kind, err.Error()))
		return
	}
	fmt.Fprintln(os.Stderr, color.RedString("kanshictl: %s", err.Error()))
}

func callReload() error {
	client, err := ipc.Dial()
	if err != nil {
		return err
	}
	defer client.Close()
	return client.Reload()
}

func callSetProfile(name string) error {
	client, err := ipc.Dial()
	if err != nil {
		return err
	}
	defer client.Close()
	return client.SetProfile(name)
}
