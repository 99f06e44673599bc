package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/padworld/padtour/paddy"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat [MESSAGE]",
	Short: "Text chat with Paddy",
	Long: paragraph(fmt.Sprintf("\nChat with %s, the PadWorld assistant. With a message argument a single reply is printed; otherwise an interactive session starts. Type /reset to forget the conversation and /quit to leave.", keyword("Paddy"))),
	Example: paragraph("padtour chat\npadtour chat \"How does the auto referee work?\""),
	Args:    cobra.ArbitraryArgs,
	RunE:    runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	client, err := newClient(cfg, nil, nil)
	if err != nil {
		return err
	}
	chat := paddy.NewChat(client, paddy.WithLogger(log.Default().WithPrefix("paddy")))
	ctx := cmd.Context()

	if len(args) > 0 {
		reply, err := chat.Send(ctx, strings.Join(args, " "))
		if errors.Is(err, paddy.ErrEmptyMessage) {
			return err //nolint:wrapcheck
		}
		fmt.Println(reply)
		return nil
	}

	return chatLoop(ctx, chat, os.Stdin, cmd.OutOrStdout())
}

// chatLoop reads one message per line until EOF or /quit.
func chatLoop(ctx context.Context, chat *paddy.Chat, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, keyword("Paddy: ")+paddy.Greeting)

	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, subtle("> "))
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err() //nolint:wrapcheck
		}
		line := strings.TrimSpace(sc.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/reset":
			chat.Reset()
			fmt.Fprintln(out, subtle("Conversation cleared."))
			continue
		}

		reply, err := chat.Send(ctx, line)
		if err != nil {
			fmt.Fprintln(out, failure("Paddy: "+reply))
			continue
		}
		fmt.Fprintln(out, keyword("Paddy: ")+reply)
	}
}
