package main

import (
	"github.com/ThreeDotsLabs/watermill-autoconfig/tools/autoconfig/cmd"
)

func main() {
	cmd.Execute()
}
