package main

import "github.com/prepfox/prepfox-ops/internal/cli"

func main() {
	cli.Execute()
}
