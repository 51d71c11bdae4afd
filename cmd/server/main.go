package main

import (
	"flag"
	"log"

	approuters "github.com/Unknownlegend09/Chathub/internal/app_routers"
	"github.com/Unknownlegend09/Chathub/internal/configuration"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the config file")
	flag.Parse()

	container, err := configuration.BuildContainer(*configPath)
	if err != nil {
		log.Fatalf("Failed to build container: %v", err)
	}

	defer container.Close()

	approuters.StartServer(container)
}
