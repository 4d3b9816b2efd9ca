// Command uniqueid runs the unique-id node program: it hands out a fresh
// cluster-unique id for every `generate` request, per
// original_source/src/bin/unique_id.
package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/melgorithm/gossip-broadcast/internal/bootstrap"
	"github.com/melgorithm/gossip-broadcast/internal/uniqueid"
)

func main() {
	bootstrap.Run("unique-id", uniqueid.New)
}
