package main

import (
	"github.com/Arbin-com/mits11-release/cmd/mits11-bootstrap/cmd"
)

func main() {
	cmd.Execute()
}
