package main

import (
	"github.com/joho/godotenv"

	"helpdesk/internal/cli"
)

func main() {
	_ = godotenv.Load()
	cli.Execute()
}
