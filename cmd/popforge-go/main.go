package main

import (
	"log"

	"github.com/popforge/popforge-go/internal/application/startup"
)

func main() {
	if err := startup.Run(); err != nil {
		log.Fatalf("popforge-go: %v", err)
	}
}
