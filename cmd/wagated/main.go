package main

import (
	"flag"

	"go.uber.org/fx"

	"github.com/wagate/wagate/internal/daemon"
)

func main() {
	dataDir := flag.String("data-dir", "", "data directory (default ~/.wagate)")
	configPath := flag.String("config", "", "config file path (default <data-dir>/config.toml)")
	phone := flag.String("phone", "", "phone number for pairing-code login; empty uses QR")
	flag.Parse()

	app := fx.New(
		daemon.Module(daemon.Params{
			ConfigPath:   *configPath,
			DataDir:      *dataDir,
			PairingPhone: *phone,
		}),
	)

	app.Run()
}
