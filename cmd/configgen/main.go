package main

import (
	"flag"
	"log"

	"github.com/danmuck/sockctl/internal/config"
)

func main() {
	kind := flag.String("kind", "client", "config kind: client")
	output := flag.String("output", "client.toml", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "client.toml", "config path for validation")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate {
		switch *kind {
		case "client":
			if _, err := config.LoadClientConfig(*input); err != nil {
				log.Fatal(err)
			}
		default:
			log.Fatalf("unknown kind: %s", *kind)
		}
		log.Printf("Validated %s config at %s", *kind, *input)
		return
	}

	if err := config.WriteTemplate(*output, *kind, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s config template to %s", *kind, *output)
}
