// Command broadcast runs the broadcast node program: reliable, batched
// gossip dissemination of integers over a deterministic ring overlay, per
// the base spec's component F.
package main

import (
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/melgorithm/gossip-broadcast/internal/bootstrap"
	"github.com/melgorithm/gossip-broadcast/internal/broadcast"
)

func main() {
	env := bootstrap.Init("broadcast")

	batchDelay, err := time.ParseDuration(env.Config.BroadcastBatchDelay)
	if err != nil {
		env.Logger.Fatal().Err(err).Str("value", env.Config.BroadcastBatchDelay).Msg("invalid BROADCAST_BATCH_DELAY")
	}
	ackDelay, err := time.ParseDuration(env.Config.BroadcastAckDelay)
	if err != nil {
		env.Logger.Fatal().Err(err).Str("value", env.Config.BroadcastAckDelay).Msg("invalid BROADCAST_ACK_DELAY")
	}

	factory := broadcast.NewFactory(broadcast.Options{
		Fanout:                env.Config.BroadcastFanout,
		TargetOpsPerBroadcast: env.Config.BroadcastTargetOps,
		SingleMessageDelay:    batchDelay,
		MaxAckDelay:           ackDelay,
		MaxBroadcastRate:      env.Config.BroadcastMaxRate,
		Logger:                env.Logger,
		Metrics:               env.Metrics,
	})

	bootstrap.Drive(env, factory)
}
