package main

import (
	"log"

	corecmd "github.com/botfactory/chainbot/core/cmd"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
	})
	if err != nil {
		log.Fatalf("chainbot: %v", err)
	}
}
