package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/pior/sfs"
	"github.com/spf13/cobra"
)

const chatHelp = `Commands:
  /users              list the users of the room
  /rooms              list the rooms
  /join <room>        move to another room
  /pm <user> <text>   send a private message
  /quit               leave
Anything else is sent to the room.`

func chatCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "chat <room>",
		Short: "Join a room and chat from the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer cancel()

			s, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			return runChat(ctx, s, args[0])
		},
	}
}

func senderName(u *sfs.User) string {
	if u == nil {
		return "?"
	}
	return u.Name()
}

func runChat(ctx context.Context, s *session, roomName string) error {
	c := s.client

	joined := make(chan error, 1)
	lost := make(chan struct{}, 1)

	sfs.On(c, func(e *sfs.JoinRoomEvent) {
		fmt.Printf("* joined %s (%d users)\n", e.Room.Name(), e.Room.UserCount())
		notify(joined, nil)
	})
	sfs.On(c, func(e *sfs.JoinRoomErrorEvent) {
		notify(joined, fmt.Errorf("cannot join: %s", e.Error))
	})
	sfs.On(c, func(e *sfs.PublicMessageEvent) {
		fmt.Printf("<%s> %s\n", senderName(e.Sender), e.Message)
	})
	sfs.On(c, func(e *sfs.PrivateMessageEvent) {
		fmt.Printf("[pm from %s] %s\n", senderName(e.Sender), e.Message)
	})
	sfs.On(c, func(e *sfs.ModeratorMessageEvent) {
		fmt.Printf("[moderator %s] %s\n", senderName(e.Sender), e.Message)
	})
	sfs.On(c, func(e *sfs.AdminMessageEvent) {
		fmt.Printf("[admin] %s\n", e.Message)
	})
	sfs.On(c, func(e *sfs.UserEnterRoomEvent) {
		fmt.Printf("* %s entered\n", e.User.Name())
	})
	sfs.On(c, func(e *sfs.UserLeaveRoomEvent) {
		fmt.Printf("* %s left\n", e.UserName)
	})
	sfs.On(c, func(*sfs.ConnectionLostEvent) { notify(lost, struct{}{}) })

	if err := c.JoinRoomByName(roomName); err != nil {
		return err
	}
	select {
	case err := <-joined:
		if err != nil {
			return err
		}
	case <-lost:
		return fmt.Errorf("connection lost")
	case <-ctx.Done():
		return ctx.Err()
	}

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
			return nil
		case <-lost:
			return fmt.Errorf("connection lost")
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := chatLine(c, strings.TrimSpace(line))
			if err != nil {
				fmt.Fprintf(os.Stderr, "! %s\n", err)
			}
			if quit {
				return nil
			}
		}
	}
}

func chatLine(c *sfs.Client, line string) (quit bool, err error) {
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		return false, c.SendPublicMessage(line, sfs.ActiveRoom)
	}

	cmd, rest, _ := strings.Cut(line, " ")
	switch cmd {
	case "/quit":
		return true, nil

	case "/users":
		room := c.GetActiveRoom()
		if room == nil {
			return false, sfs.ErrNoActiveRoom
		}
		for _, u := range room.Users() {
			fmt.Printf("  %d %s\n", u.ID(), u.Name())
		}

	case "/rooms":
		for _, r := range c.Rooms() {
			fmt.Printf("  %s (%d/%d)\n", r.Name(), r.UserCount(), r.MaxUsers())
		}

	case "/join":
		if rest == "" {
			return false, fmt.Errorf("usage: /join <room>")
		}
		return false, c.JoinRoomByName(rest)

	case "/pm":
		name, text, ok := strings.Cut(rest, " ")
		if !ok || text == "" {
			return false, fmt.Errorf("usage: /pm <user> <text>")
		}
		room := c.GetActiveRoom()
		if room == nil {
			return false, sfs.ErrNoActiveRoom
		}
		u := room.UserByName(name)
		if u == nil {
			return false, fmt.Errorf("no user %q in the room", name)
		}
		return false, c.SendPrivateMessage(text, u.ID(), sfs.ActiveRoom)

	case "/help":
		fmt.Println(chatHelp)

	default:
		return false, fmt.Errorf("unknown command %s, try /help", cmd)
	}
	return false, nil
}
