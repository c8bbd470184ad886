package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/fx"

	"github.com/matheus3301/zapbox/internal/app"
	"github.com/matheus3301/zapbox/internal/profile"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	flag.Parse()

	name := profile.Resolve(*profileFlag)
	if err := profile.ValidateName(name); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// No dispatcher: the daemon keeps the cache healthy (queue cleanup,
	// schema checks) while the host UI that owns the transport is closed.
	fxApp := fx.New(
		app.Module(app.Params{Profile: name}),
	)

	fxApp.Run()
}
