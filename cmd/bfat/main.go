package main

import "github.com/byuccl/bfat/cmd/bfat/cmd"

func main() {
	cmd.Execute()
}
