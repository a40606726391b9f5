package main

import "github.com/mcoot/kidfeed/internal/cli"

func main() {
	cli.Execute()
}
