package main

import (
	"log"

	"imagevault/cmd/iv/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		log.Fatal(err)
	}
}
