// Command adboard runs the classified-ad Telegram bot.
package main

import (
	"log"

	"github.com/m3rciful/adboard/bot/app"
	corecmd "github.com/m3rciful/adboard/core/cmd"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return app.Load(path)
		},
		Bootstrap: func(cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			return app.Bootstrap(cfg.(*app.Config))
		},
	})
	if err != nil {
		log.Fatal(err)
	}
}
