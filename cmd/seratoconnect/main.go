package main

import "github.com/chrisle/serato-connect/internal/cli"

func main() {
	cli.Execute()
}
