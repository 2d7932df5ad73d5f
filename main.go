package main

import "github.com/butyi/dzdl/cmd"

func main() {
	cmd.Execute()
}
