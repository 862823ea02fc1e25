package main

import (
	"flag"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"redgram/internal/agent"
	"redgram/internal/protocol"
)

var (
	relayURL = flag.String("url", "ws://localhost:8080/ws", "relay websocket URL")
	pairs    = flag.Int("pairs", 50, "number of chatting pairs")
	msgs     = flag.Int("msgs", 20, "messages each side sends")
)

func main() {
	flag.Parse()
	log.Printf("🔥 STARTING STRESS TEST: %d users, %d messages each...", *pairs*2, *msgs)

	var received atomic.Int64
	var wg sync.WaitGroup

	start := time.Now()
	for i := 0; i < *pairs; i++ {
		wg.Add(1)
		go func(pairID int) {
			defer wg.Done()
			runPair(pairID, &received)
		}(i)
	}
	wg.Wait()

	sent := int64(*pairs) * 2 * int64(*msgs)
	log.Printf("✅ LOAD TEST COMPLETE: sent %d, received %d in %s",
		sent, received.Load(), time.Since(start).Round(time.Millisecond))
}

func runPair(pairID int, received *atomic.Int64) {
	a := spawn(fmt.Sprintf("u_%d_a", pairID), received)
	defer a.Close()
	b := spawn(fmt.Sprintf("u_%d_b", pairID), received)
	defer b.Close()

	// Give both sides a moment to register before spamming.
	time.Sleep(200 * time.Millisecond)

	var wsWg sync.WaitGroup
	wsWg.Add(2)
	go spam(&wsWg, a, fmt.Sprintf("u_%d_b", pairID))
	go spam(&wsWg, b, fmt.Sprintf("u_%d_a", pairID))
	wsWg.Wait()

	// Let the tail of the fan-out land before tearing down.
	time.Sleep(500 * time.Millisecond)
}

func spawn(username string, received *atomic.Int64) *agent.Agent {
	a := agent.New(*relayURL)
	a.Subscribe(func(e agent.Event) {
		if e.Type == agent.EventNewMessage && e.Message.Sender == protocol.SenderThem {
			received.Add(1)
		}
	})
	a.Register(protocol.Profile{
		ID:          username,
		Name:        username,
		Username:    username,
		AvatarColor: "bg-red-500",
	})
	return a
}

func spam(wg *sync.WaitGroup, a *agent.Agent, peerID string) {
	defer wg.Done()
	for i := 0; i < *msgs; i++ {
		a.SendMessage(peerID, fmt.Sprintf("LoadTest msg %d", i), peerID, false)
		// Small sleep to prevent an instant localhost bottleneck.
		time.Sleep(10 * time.Millisecond)
	}
}
