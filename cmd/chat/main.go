package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/tanpawarit/chative-gateway/pkg/chatclient"
	configx "github.com/tanpawarit/chative-gateway/pkg/config"
)

type Config struct {
	URL     string        `envconfig:"URL" default:"http://localhost:8080"`
	UserID  string        `split_words:"true" default:"terminal"`
	Timeout time.Duration `split_words:"true" default:"60s"`
}

var (
	promptColor = color.New(color.FgGreen, color.Bold)
	replyColor  = color.New(color.FgCyan)
	failColor   = color.New(color.FgRed)
	infoColor   = color.New(color.FgHiBlack)
)

func main() {
	cfg := configx.MustNew[Config]("CHAT")
	conv := chatclient.NewConversation(chatclient.New(cfg.URL, nil), cfg.UserID)

	infoColor.Printf("Connected to %s. Type \"exit\" to quit.\n", cfg.URL)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		promptColor.Print("you> ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			return
		}

		send(conv, line, cfg.Timeout)
	}
}

// send renders nothing until the first chunk arrives. Ctrl+C aborts the
// reply in flight without leaving the client.
func send(conv *chatclient.Conversation, line string, timeout time.Duration) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := false
	_, result, err := conv.Send(ctx, line, func(chunk string) {
		if !started {
			started = true
			replyColor.Print("bot> ")
		}
		replyColor.Print(chunk)
	})
	if started {
		fmt.Println()
	}

	switch {
	case errors.Is(err, chatclient.ErrIncomplete):
		failColor.Println("[reply interrupted; partial output discarded]")
	case err != nil:
		failColor.Printf("[request failed: %v]\n", err)
	case result.ActionPerformed != "":
		infoColor.Printf("  (%s, success=%t, %d products)\n", result.ActionPerformed, result.Success, len(result.Products))
	}
}
