package main

import (
	"fmt"
	"os"

	"github.com/integrii/flaggy"

	"github.com/emersion/go-kanshi/pkg/app"
	"github.com/emersion/go-kanshi/pkg/log"
)

const defaultVersion = "unversioned"

var (
	commit  string
	version = defaultVersion
)

func main() {
	var forcedProfile string
	var oneShot bool
	var debug bool

	flaggy.SetName("kanshi")
	flaggy.SetDescription("Dynamic output configuration for Wayland compositors")
	flaggy.DefaultParser.AdditionalHelpPrepend = "https://wayland.emersion.fr/kanshi/"

	flaggy.String(&forcedProfile, "p", "profile", "Force a profile name, as if applying it via kanshictl set-profile")
	flaggy.Bool(&oneShot, "1", "oneshot", "Only apply the current profile once and exit")
	flaggy.Bool(&debug, "d", "debug", "Enable debug logging")
	flaggy.SetVersion(version)

	flaggy.Parse()

	logger := log.New(log.Options{
		Debug:   debug,
		Version: version,
		Commit:  commit,
	})

	a, err := app.New(logger, app.Options{
		ForcedProfile: forcedProfile,
		OneShot:       oneShot,
		Debug:         debug,
		Version:       version,
		Commit:        commit,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer a.Close()

	os.Exit(a.Run())
}
