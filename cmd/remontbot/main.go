package main

import (
	"fmt"
	"log"

	"github.com/nusakov/remontbot/core/cmd"
	"github.com/nusakov/remontbot/internal/app"
)

func main() {
	err := cmd.Run(cmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "configs/config.yaml",
		LoadConfig: func(path string) (cmd.ConfigCarrier, error) {
			return app.LoadConfig(path)
		},
		Bootstrap: func(carrier cmd.ConfigCarrier) (cmd.TelegramApp, error) {
			cfg, ok := carrier.(*app.Config)
			if !ok {
				return nil, fmt.Errorf("unexpected config type %T", carrier)
			}
			return app.New(cfg)
		},
	})
	if err != nil {
		log.Fatalf("remontbot: %v", err)
	}
}
