package main

import "github.com/seuros/leadtrack/internal/cli"

func main() {
	cli.Execute()
}
