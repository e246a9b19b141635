package main

import "github.com/metal-toolbox/goldencfg/cmd"

func main() {
	cmd.Execute()
}
