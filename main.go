// main.go
//
// Entry point for market-sim; CLI handling lives in cmd/root.go

package main

import (
	"github.com/inference-sim/market-sim/cmd"
)

func main() {
	cmd.Execute()
}
