package main

import "github.com/hprofdecode/cmd/hprofcli/cmd"

func main() {
	cmd.Execute()
}
