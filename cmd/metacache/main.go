package main

import "github.com/objectfs/metacache/cmd/metacache/cmd"

func main() {
	cmd.Execute()
}
