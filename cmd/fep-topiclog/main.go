// SPDX-License-Identifier: MIT

// Command fep-topiclog subscribes to an MQTT topic pattern and
// pretty-prints every message, for debugging broker wiring.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	feplog "github.com/rgregg/frigate-event-processor/internal/log"
	"github.com/rgregg/frigate-event-processor/internal/mqtt"
)

func main() {
	broker := flag.String("broker", "tcp://localhost:1883", "broker URL")
	topic := flag.String("topic", "frigate/#", "topic filter to watch")
	username := flag.String("username", "", "broker username")
	password := flag.String("password", "", "broker password")
	raw := flag.Bool("raw", false, "print payloads without JSON indentation")
	flag.Parse()

	feplog.Configure(feplog.Config{Level: "warn", Service: "fep-topiclog"})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := mqtt.New(mqtt.Config{
		BrokerURL: *broker,
		ClientID:  mqtt.NewClientID(),
		Username:  *username,
		Password:  *password,
	})
	if err := client.Connect(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	err := client.Subscribe(*topic, func(topic string, payload []byte) {
		fmt.Printf("--- %s\n", topic)
		if *raw {
			fmt.Printf("%s\n", payload)
			return
		}
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, payload, "", "  "); err != nil {
			fmt.Printf("%s\n", payload)
			return
		}
		fmt.Println(pretty.String())
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "subscribe: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "watching %s on %s\n", *topic, *broker)
	<-ctx.Done()
}
