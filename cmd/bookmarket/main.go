package main

import (
	"fmt"
	"log"

	"github.com/m3rciful/bookmarket/core/cmd"
	"github.com/m3rciful/bookmarket/internal/bot"
	"github.com/m3rciful/bookmarket/internal/config"
)

func main() {
	err := cmd.Run(cmd.Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (cmd.ConfigCarrier, error) {
			cfg, err := config.Load(path)
			if err != nil {
				return nil, err
			}
			return cfg, nil
		},
		Bootstrap: func(c cmd.ConfigCarrier) (cmd.TelegramApp, error) {
			cfg, ok := c.(*config.Config)
			if !ok {
				return nil, fmt.Errorf("unexpected config type %T", c)
			}
			return bot.Bootstrap(cfg)
		},
	})
	if err != nil {
		log.Fatal(err)
	}
}
