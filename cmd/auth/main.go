package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/pflag"

	"github.com/aussiebroadwan/rollcall/internal/auth/app"
)

func main() {
	flags := pflag.NewFlagSet("auth", pflag.ExitOnError)
	configFile := flags.String("config", "", "path to a YAML or .env config file")
	flags.Int("port", 8080, "HTTP listen port (overrides PORT)")
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n\nFlags:\n", os.Args[0])
		flags.PrintDefaults()
	}
	_ = flags.Parse(os.Args[1:])

	cfg, err := app.LoadConfig(*configFile, flags)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	application, err := app.New(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}
