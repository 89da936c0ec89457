package main

import (
	"github.com/flare-foundation/go-flare-common/pkg/logger"

	"github.com/flare-foundation/evm-address-indexer/internal/framework"
)

var log = logger.GetLogger()

func main() {
	if err := framework.Run(); err != nil {
		log.Fatal(err)
	}
}
