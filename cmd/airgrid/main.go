package main

import "github.com/airgrid-tv/airgrid/internal/cli"

func main() {
	cli.Execute()
}
