package main

import "github.com/famomatic/ytfetch/internal/cli"

func main() {
	cli.Execute()
}
