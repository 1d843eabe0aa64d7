package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.design/x/clipboard"

	"chatstream/internal/auth"
	"chatstream/internal/client"
)

var (
	userColor      = color.New(color.FgWhite, color.Bold)
	assistantColor = color.New(color.FgCyan)
	infoColor      = color.New(color.FgHiBlack)
	errorColor     = color.New(color.FgRed)
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		errorColor.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts struct {
		ServerURL string
		Token     string
		ChatID    uint
		New       bool
	}
	cmd := &cobra.Command{
		Use:   "chatcli",
		Short: "Interactive terminal client for the chat service",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			token, err := resolveToken(opts.Token)
			if err != nil {
				return err
			}
			c := client.New(opts.ServerURL, token)

			chatID := opts.ChatID
			if opts.New || chatID == 0 {
				chat, err := c.CreateChat(ctx)
				if err != nil {
					return err
				}
				chatID = chat.ID
				infoColor.Printf("started chat #%d\n", chatID)
			}

			clipboardReady := clipboard.Init() == nil

			consumer := client.NewConsumer(c, chatID)
			runLoop(ctx, c, consumer, clipboardReady)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.ServerURL, "server", envOr("CHATSTREAM_SERVER", "http://localhost:8080"), "chat service base URL")
	cmd.Flags().StringVar(&opts.Token, "token", "", "bearer token (defaults to CHATSTREAM_TOKEN)")
	cmd.Flags().UintVar(&opts.ChatID, "chat", 0, "resume an existing chat by id")
	cmd.Flags().BoolVar(&opts.New, "new", false, "force a fresh chat")
	return cmd
}

// resolveToken prefers an explicit token, then the environment, then mints a
// local development token when a user id and secret are available.
func resolveToken(flagToken string) (string, error) {
	if flagToken != "" {
		return flagToken, nil
	}
	if t := os.Getenv("CHATSTREAM_TOKEN"); t != "" {
		return t, nil
	}
	userID := os.Getenv("CHATSTREAM_USER_ID")
	secret := os.Getenv("JWT_SECRET_KEY")
	if userID != "" && secret != "" {
		id, err := strconv.ParseUint(userID, 10, 32)
		if err != nil {
			return "", fmt.Errorf("invalid CHATSTREAM_USER_ID: %w", err)
		}
		return auth.GenerateToken(uint(id), []byte(secret))
	}
	return "", fmt.Errorf("no token: set --token, CHATSTREAM_TOKEN, or CHATSTREAM_USER_ID + JWT_SECRET_KEY")
}

func runLoop(ctx context.Context, c *client.Client, consumer *client.Consumer, clipboardReady bool) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	infoColor.Println("type a message, /chats to list, /copy to copy the last reply, /quit to exit")
	infoColor.Println("ctrl-c stops the current response")

	for {
		userColor.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "/quit" || line == "/exit":
			return
		case line == "/chats":
			listChats(ctx, c)
			continue
		case line == "/copy":
			copyLastReply(consumer, clipboardReady)
			continue
		}

		streamOne(ctx, consumer, line)
	}
}

// streamOne sends one message and prints the response as it arrives. An
// interrupt while streaming aborts the response but keeps the session alive.
func streamOne(ctx context.Context, consumer *client.Consumer, message string) {
	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)

	done := make(chan error, 1)
	go func() {
		done <- consumer.Send(ctx, message, func(chunk string) {
			assistantColor.Print(chunk)
		})
	}()

	for {
		select {
		case <-interrupts:
			consumer.Abort()
		case err := <-done:
			fmt.Println()
			switch {
			case err == nil:
			case client.IsAborted(err):
				infoColor.Println("[stopped]")
			case client.IsRateLimited(err):
				errorColor.Println(err.Error())
			default:
				errorColor.Printf("error: %v\n", err)
			}
			return
		}
	}
}

func listChats(ctx context.Context, c *client.Client) {
	chats, err := c.ListChats(ctx)
	if err != nil {
		errorColor.Printf("error: %v\n", err)
		return
	}
	if len(chats) == 0 {
		infoColor.Println("no chats yet")
		return
	}
	for _, chat := range chats {
		title := chat.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Printf("#%d  %s\n", chat.ID, title)
	}
}

func copyLastReply(consumer *client.Consumer, clipboardReady bool) {
	if !clipboardReady {
		errorColor.Println("clipboard unavailable on this system")
		return
	}
	session := consumer.Session()
	for i := len(session.Messages) - 1; i >= 0; i-- {
		if session.Messages[i].Role == "assistant" {
			clipboard.Write(clipboard.FmtText, []byte(session.Messages[i].Content))
			infoColor.Println("copied to clipboard")
			return
		}
	}
	infoColor.Println("nothing to copy yet")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
