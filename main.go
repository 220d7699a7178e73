package main

import (
	"github.com/dd86k/aliceserver/cmd"
)

func main() {
	cmd.Execute()
}
