package main

import "github.com/ringdb/ringdb/cmd/ringdb/cmd"

func main() {
	cmd.Execute()
}
