package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/spf13/cobra"

	"github.com/yemishi/chatteroo-server/internal/proto"
)

type options struct {
	addr    string
	user    string
	room    string
	members []string
}

func main() {
	var opts options

	cmd := &cobra.Command{
		Use:   "ws_chat",
		Short: "Interactive websocket client for the chatteroo relay",
		Long: `Connects as --user, subscribes to --room and prints every event.
Each stdin line is sent as a message. Commands:
  /join <room>    subscribe to another room and make it current
  /leave <room>   unsubscribe
  /online         ask for the online users snapshot
  /quit           send disconnect and exit`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", "ws://localhost:8080/ws", "WebSocket address")
	cmd.Flags().StringVar(&opts.user, "user", "cli-user", "user id sent in the handshake")
	cmd.Flags().StringVar(&opts.room, "room", "general", "room to join")
	cmd.Flags().StringSliceVar(&opts.members, "members", nil, "user ids notified about new messages and typing")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

func run(parent context.Context, opts options) error {
	baseCtx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	u, err := url.Parse(opts.addr)
	if err != nil {
		return fmt.Errorf("parse addr: %w", err)
	}
	q := u.Query()
	q.Set(proto.HandshakeUserParam, opts.user)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	c := &client{conn: conn, user: opts.user, room: opts.room, members: opts.members}
	if err := c.send(ctx, proto.InboundSubscribe, opts.room); err != nil {
		return err
	}

	fmt.Printf("Connected to %s as %s in room %s\n", opts.addr, opts.user, opts.room)
	fmt.Println("Type messages and press Enter to send. Ctrl+C to exit.")

	go func() {
		defer cancel()
		readLoop(ctx, conn)
	}()

	c.writeLoop(ctx)

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

type client struct {
	conn    *websocket.Conn
	user    string
	room    string
	members []string
}

func (c *client) send(ctx context.Context, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event, err)
	}
	if err := wsjson.Write(ctx, c.conn, proto.Frame{Event: event, Data: payload}); err != nil {
		return fmt.Errorf("send %s: %w", event, err)
	}
	return nil
}

func readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var frame proto.Frame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			log.Printf("read error: %v", err)
			return
		}
		printFrame(frame)
	}
}

func printFrame(frame proto.Frame) {
	switch frame.Event {
	case proto.EventMessage:
		var evt proto.MessagePayload
		if err := json.Unmarshal(frame.Data, &evt); err != nil {
			log.Printf("unmarshal message: %v", err)
			return
		}
		name := evt.SenderName
		if name == "" {
			name = evt.SenderID
		}
		fmt.Printf("[%s] %s: %s\n", evt.Room, name, evt.Content)
	case proto.EventToast:
		var evt proto.ToastPayload
		if err := json.Unmarshal(frame.Data, &evt); err != nil {
			log.Printf("unmarshal toast: %v", err)
			return
		}
		fmt.Printf("(new in %s from %s) %s\n", evt.ChatID, evt.SenderID, evt.Content)
	case proto.EventUserTyping, proto.EventUserStopTyping:
		var evt proto.EventTyping
		if err := json.Unmarshal(frame.Data, &evt); err != nil {
			log.Printf("unmarshal typing: %v", err)
			return
		}
		verb := "is typing"
		if frame.Event == proto.EventUserStopTyping {
			verb = "stopped typing"
		}
		fmt.Printf("[%s] %s %s\n", evt.RoomID, evt.UserID, verb)
	case proto.EventOnlineUsers:
		var users []string
		if err := json.Unmarshal(frame.Data, &users); err != nil {
			log.Printf("unmarshal online-users: %v", err)
			return
		}
		fmt.Printf("online: %s\n", strings.Join(users, ", "))
	case proto.EventError:
		var evt proto.Error
		if err := json.Unmarshal(frame.Data, &evt); err != nil {
			log.Printf("unmarshal error: %v", err)
			return
		}
		fmt.Printf("error %s: %s\n", evt.Code, evt.Msg)
	default:
		fmt.Printf("event=%s data=%s\n", frame.Event, frame.Data)
	}
}

func (c *client) writeLoop(ctx context.Context) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}
			quit, err := c.handleLine(ctx, text)
			if err != nil {
				log.Printf("%v", err)
				return
			}
			if quit {
				return
			}
		}
	}
}

func (c *client) handleLine(ctx context.Context, text string) (bool, error) {
	cmd, arg, _ := strings.Cut(text, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/join":
		if arg == "" {
			fmt.Println("usage: /join <room>")
			return false, nil
		}
		c.room = arg
		return false, c.send(ctx, proto.InboundSubscribe, arg)
	case "/leave":
		if arg == "" {
			arg = c.room
		}
		return false, c.send(ctx, proto.InboundUnsubscribe, proto.RoomData{RoomID: arg})
	case "/online":
		return false, c.send(ctx, proto.InboundGetOnlineUsers, nil)
	case "/quit":
		return true, c.send(ctx, proto.InboundDisconnect, nil)
	}

	typing := proto.TypingData{RoomID: c.room, UserID: c.user, RecipientIDs: c.members}
	if err := c.send(ctx, proto.InboundTyping, typing); err != nil {
		return false, err
	}
	if err := c.send(ctx, proto.InboundSendMessage, proto.SendMessageData{
		Message:   proto.ChatMessage{Room: c.room, SenderID: c.user, Content: text},
		MembersID: c.members,
	}); err != nil {
		return false, err
	}
	return false, c.send(ctx, proto.InboundStopTyping, typing)
}
