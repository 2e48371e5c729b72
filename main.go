package main

import "github.com/esilv-labs/assistant-go/cmd"

func main() {
	cmd.Execute()
}
