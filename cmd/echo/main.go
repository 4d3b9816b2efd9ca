// Command echo runs the echo node program: it replies to every `echo`
// request with the same text, per original_source/src/bin/echo.
package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/melgorithm/gossip-broadcast/internal/bootstrap"
	"github.com/melgorithm/gossip-broadcast/internal/echoapp"
)

func main() {
	bootstrap.Run("echo", echoapp.New)
}
