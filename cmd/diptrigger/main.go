package main

import "dip-trigger/internal/cli"

func main() {
	cli.Execute()
}
