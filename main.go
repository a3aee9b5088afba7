package main

import (
	"log"

	"github.com/nofone/solmatch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
