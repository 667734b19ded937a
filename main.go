package main

import "collabboard/internal/cli"

func main() {
	cli.Execute()
}
