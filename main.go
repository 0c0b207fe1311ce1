package main

import "github.com/odaacabeef/stems/cmd"

func main() {
	cmd.Execute()
}
