package main

import "github.com/saschahauer/barebox-bringup/cmd"

func main() {
	cmd.Execute()
}
