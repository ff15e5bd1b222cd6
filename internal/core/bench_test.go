package core

import (
	"context"
	"fmt"
	"testing"
)

func benchmarkBoardBroadcast(b *testing.B, recipients int) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(nil, DefaultOptions(), nil)
	go hub.Run(ctx)

	sender := NewClient("sender", Identity{})
	hub.RegisterClient(sender)
	sender.Commands <- &Command{Kind: CommandJoinBoard, Board: "bench"}

	clients := make([]*Client, 0, recipients)
	for i := range recipients {
		c := NewClient(fmt.Sprintf("c%d", i), Identity{})
		hub.RegisterClient(c)
		c.Commands <- &Command{Kind: CommandJoinBoard, Board: "bench"}
		clients = append(clients, c)
	}

	// Drain events for all but the first recipient to avoid channel backpressure.
	target := clients[0]
	for _, c := range clients[1:] {
		go func(cl *Client) {
			for range cl.Events {
			}
		}(c)
	}
	go func() {
		for range sender.Events {
		}
	}()

	elements := []Element{el("e1", "pen"), el("e2", "text")}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		sender.Commands <- &Command{
			Kind:     CommandSubmitState,
			Board:    "bench",
			Elements: elements,
		}
		for {
			ev := <-target.Events
			if ev.Kind == EventState && ev.From == "sender" {
				break
			}
		}
	}
}

func BenchmarkBoardBroadcast_10(b *testing.B)  { benchmarkBoardBroadcast(b, 10) }
func BenchmarkBoardBroadcast_100(b *testing.B) { benchmarkBoardBroadcast(b, 100) }
func BenchmarkBoardBroadcast_500(b *testing.B) { benchmarkBoardBroadcast(b, 500) }
