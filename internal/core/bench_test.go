package core

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"

	"github.com/yemishi/chatteroo-server/internal/proto"
)

func benchmarkRoomBroadcast(b *testing.B, recipients int) {
	hub := NewHub(nil, nil, Deps{}, nil)

	sender := NewSession("sender", "sender", DefaultSendBuffer)
	if err := hub.Attach(sender); err != nil {
		b.Fatal(err)
	}
	go func() {
		for range sender.Events() {
		}
	}()

	sessions := make([]*Session, 0, recipients)
	for i := 0; i < recipients; i++ {
		sess := NewSession("c"+strconv.Itoa(i), "u"+strconv.Itoa(i), 1024)
		if err := hub.Attach(sess); err != nil {
			b.Fatal(err)
		}
		hub.Rooms().Join(sess.ID, "bench")
		sessions = append(sessions, sess)
	}

	// Drain events for all but the first recipient to avoid queue saturation.
	target := sessions[0]
	for _, sess := range sessions[1:] {
		go func(s *Session) {
			for range s.Events() {
			}
		}(sess)
	}
	drain(target)

	payload, _ := json.Marshal(proto.EditMessageData{
		Message:  json.RawMessage(`{"id":"1","content":"payload"}`),
		ChatRoom: "bench",
	})
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if err := hub.Dispatch(ctx, sender, proto.InboundEditMessage, payload); err != nil {
			b.Fatal(err)
		}
		<-target.Events()
	}
	b.StopTimer()

	for _, sess := range append(sessions, sender) {
		hub.Detach(sess)
	}
}

func BenchmarkRoomBroadcast_10(b *testing.B)  { benchmarkRoomBroadcast(b, 10) }
func BenchmarkRoomBroadcast_100(b *testing.B) { benchmarkRoomBroadcast(b, 100) }
func BenchmarkRoomBroadcast_500(b *testing.B) { benchmarkRoomBroadcast(b, 500) }
