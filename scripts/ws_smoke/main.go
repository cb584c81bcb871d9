package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/spf13/cobra"

	"github.com/yemishi/chatteroo-server/internal/proto"
)

type options struct {
	addr     string
	sender   string
	receiver string
	room     string
	text     string
	timeout  time.Duration
}

func main() {
	var opts options

	cmd := &cobra.Command{
		Use:          "ws_smoke",
		Short:        "Two-connection smoke check: one user sends, the other must receive",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.addr, "addr", "ws://localhost:8080/ws", "WebSocket address")
	flags.StringVar(&opts.sender, "sender", "smoke-a", "sending user id")
	flags.StringVar(&opts.receiver, "receiver", "smoke-b", "receiving user id")
	flags.StringVar(&opts.room, "room", "smoke", "room id")
	flags.StringVar(&opts.text, "text", "hello from smoke test", "message text to send")
	flags.DurationVar(&opts.timeout, "timeout", 5*time.Second, "total timeout for the run")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run(parent context.Context, opts options) error {
	ctx, cancel := context.WithTimeout(parent, opts.timeout)
	defer cancel()

	receiver, err := dial(ctx, opts.addr, opts.receiver)
	if err != nil {
		return err
	}
	defer receiver.Close(websocket.StatusNormalClosure, "bye")

	sender, err := dial(ctx, opts.addr, opts.sender)
	if err != nil {
		return err
	}
	defer sender.Close(websocket.StatusNormalClosure, "bye")

	if err := send(ctx, receiver, proto.InboundSubscribe, opts.room); err != nil {
		return err
	}
	// A reply on the same connection means the subscribe was processed.
	if err := send(ctx, receiver, proto.InboundGetOnlineUsers, nil); err != nil {
		return err
	}
	if _, err := await(ctx, receiver, proto.EventOnlineUsers); err != nil {
		return err
	}

	if err := send(ctx, sender, proto.InboundSendMessage, proto.SendMessageData{
		Message:   proto.ChatMessage{Room: opts.room, SenderID: opts.sender, Content: opts.text},
		MembersID: []string{opts.receiver},
	}); err != nil {
		return err
	}

	data, err := await(ctx, receiver, proto.EventMessage)
	if err != nil {
		return err
	}
	var evt proto.MessagePayload
	if err := json.Unmarshal(data, &evt); err != nil {
		return fmt.Errorf("unmarshal message: %w", err)
	}
	fmt.Printf("EventMessage: id=%s room=%s sender=%s content=%q ts=%s\n", evt.ID, evt.Room, evt.SenderID, evt.Content, evt.Timestamp)

	if _, err := await(ctx, receiver, proto.EventChatUpdated); err != nil {
		return err
	}
	fmt.Println("EventChatUpdated received")
	return nil
}

func dial(ctx context.Context, addr, userID string) (*websocket.Conn, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("parse addr: %w", err)
	}
	q := u.Query()
	q.Set(proto.HandshakeUserParam, userID)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", userID, err)
	}
	return conn, nil
}

func send(ctx context.Context, conn *websocket.Conn, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Frame{Event: event, Data: payload}); err != nil {
		return fmt.Errorf("send %s: %w", event, err)
	}
	return nil
}

// await reads until event arrives; error events abort the run.
func await(ctx context.Context, conn *websocket.Conn, event string) (json.RawMessage, error) {
	for {
		var frame proto.Frame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			return nil, fmt.Errorf("read waiting for %s: %w", event, err)
		}
		fmt.Printf("Received event=%s\n", frame.Event)

		switch frame.Event {
		case event:
			return frame.Data, nil
		case proto.EventError:
			var protoErr proto.Error
			_ = json.Unmarshal(frame.Data, &protoErr)
			return nil, fmt.Errorf("server error %s: %s", protoErr.Code, protoErr.Msg)
		}
	}
}
