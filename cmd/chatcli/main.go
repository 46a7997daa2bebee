package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-rooms/internal/client"
	"github.com/vovakirdan/wirechat-rooms/internal/proto"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

type options struct {
	addr    string
	user    string
	create  string
	join    string
	timeout time.Duration
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "chatcli",
		Short: "Interactive terminal client for the wirechat server",
		Long: `Connects to a wirechat server and reads commands from stdin:
  /create <name>   create a room and switch to it
  /join <id>       join a room and switch to it
  /leave           leave the current room
  /members         list members of the current room
  /quit            exit
Any other line is sent to the current room.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.addr, "addr", "ws://localhost:8080/ws", "WebSocket address")
	flags.StringVar(&opts.user, "user", "cli-user", "username")
	flags.StringVar(&opts.create, "create", "", "create a room with this name on start")
	flags.StringVar(&opts.join, "join", "", "join the room with this id on start")
	flags.DurationVar(&opts.timeout, "timeout", client.DefaultTimeout, "per-request timeout")

	return cmd
}

type session struct {
	conn *client.Conn
	out  io.Writer
	room string
}

func run(ctx context.Context, opts options, in io.Reader, out io.Writer) error {
	dialCtx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	conn, err := client.Dial(dialCtx, opts.addr, opts.user,
		client.WithTimeout(opts.timeout),
		client.WithEventHandler(func(f proto.Frame) { printFrame(out, f) }),
	)
	if err != nil {
		return err
	}
	defer conn.Close()

	s := &session{conn: conn, out: out}
	fmt.Fprintf(out, "Connected to %s as %s\n", opts.addr, opts.user)

	switch {
	case opts.create != "":
		s.exec(ctx, "/create "+opts.create)
	case opts.join != "":
		s.exec(ctx, "/join "+opts.join)
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-conn.Done():
			return fmt.Errorf("connection lost: %w", conn.Err())
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if !s.exec(ctx, strings.TrimSpace(line)) {
				return nil
			}
		}
	}
}

// exec runs one input line. It reports false when the user asked to quit.
func (s *session) exec(ctx context.Context, line string) bool {
	if line == "" {
		return true
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	var err error
	switch cmd {
	case "/quit":
		return false
	case "/create":
		var details *proto.RoomDetails
		if details, err = s.conn.CreateRoom(ctx, arg); err == nil {
			s.room = details.ID
			fmt.Fprintf(s.out, "created %q (%s)\n", details.RoomName, details.ID)
		}
	case "/join":
		var res *client.JoinResult
		if res, err = s.conn.JoinRoom(ctx, arg); err == nil {
			s.room = arg
			fmt.Fprintf(s.out, "joined %s (%d messages)\n", arg, len(res.History))
			for i := range res.History {
				printFrame(s.out, &res.History[i])
			}
		}
	case "/leave":
		var text string
		if text, err = s.conn.LeaveRoom(ctx, s.room); err == nil {
			fmt.Fprintln(s.out, text)
			s.room = ""
		}
	case "/members":
		var members []string
		if members, err = s.conn.QueryRoomMembers(ctx, s.room); err == nil {
			fmt.Fprintf(s.out, "members: %s\n", strings.Join(members, ", "))
		}
	default:
		err = s.conn.SendMessage(ctx, s.room, line)
	}

	if err != nil {
		var remote *client.RemoteError
		if errors.As(err, &remote) {
			fmt.Fprintf(s.out, "server: %s\n", remote.Message)
		} else {
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
	}
	return true
}

func printFrame(out io.Writer, f proto.Frame) {
	switch ev := f.(type) {
	case *proto.ChatMessage:
		fmt.Fprintf(out, "[%s %s] %s: %s\n", ev.ChatroomID, ev.Timestamp.Local().Format(time.Kitchen), ev.Username, ev.Content)
	case *proto.MemberJoined:
		fmt.Fprintf(out, "[%s] %s joined\n", ev.ChatroomID, ev.Username)
	case *proto.MemberLeft:
		fmt.Fprintf(out, "[%s] a member left\n", ev.ChatroomID)
	case *proto.RoomClosed:
		fmt.Fprintf(out, "[%s] room closed (%s)\n", ev.ChatroomID, ev.Reason)
	case *proto.Reply:
		if ev.Error != nil {
			fmt.Fprintf(out, "server error: %s\n", ev.Error.Msg)
		}
	}
}
