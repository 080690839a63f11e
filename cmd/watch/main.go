// Command watch connects to a running backend's websocket endpoint and
// prints operation lifecycle events as they arrive. The connection is
// re-dialed after a fixed delay, forever, so it can be left running across
// backend restarts.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vrewcraft/backend/internal/config"
)

type message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func main() {
	url := flag.String("url", fmt.Sprintf("ws://127.0.0.1:%d/ws", config.DefaultPort), "websocket endpoint")
	reconnect := flag.Duration("reconnect", config.DefaultReconnectDelaySeconds*time.Second, "delay between reconnect attempts")
	flag.Parse()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		os.Exit(0)
	}()

	for {
		if err := watch(*url); err != nil {
			log.Printf("connection lost: %v; reconnecting in %s", err, *reconnect)
		}
		time.Sleep(*reconnect)
	}
}

func watch(url string) error {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	log.Printf("connected to %s", url)

	for {
		var msg message
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}

		switch msg.Type {
		case "ping":
			if err := conn.WriteJSON(message{Type: "pong"}); err != nil {
				return err
			}
		case "pong":
			// Reply to our own heartbeat; nothing to print.
		default:
			fmt.Printf("%s %s %s\n", time.Now().Format(time.RFC3339), msg.Type, string(msg.Data))
		}
	}
}
