package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"pokebattle"
)

func trap(node *pokebattle.PeerNode, logger *pokebattle.Logger) {
	go func() {
		signalChan := make(chan os.Signal, 1)
		signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
		<-signalChan

		log.Print("caught SIGINT or SIGTERM, shutting down")

		node.Close()
		logger.Close()
		os.Exit(0)
	}()
}
