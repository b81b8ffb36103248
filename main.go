package main

import "github.com/kychandar/hammer/cmd"

func main() {
	cmd.Execute()
}
