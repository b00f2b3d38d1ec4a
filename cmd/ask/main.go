// Command ask sends one question to the chat service and prints the answer.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/aigoflow/edubot/internal/ui"
	"github.com/aigoflow/edubot/pkg/client"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("ask", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		transport = fs.String("transport", "http", "http or nats")
		backend   = fs.String("backend", "http://127.0.0.1:8000", "Chat service URL")
		natsURL   = fs.String("nats", "nats://127.0.0.1:4222", "NATS server URL")
		model     = fs.String("model", "distilgpt2-finetuned", "Model name (NATS subject suffix)")
		timeout   = fs.Duration("timeout", 60*time.Second, "Request timeout")
		health    = fs.Bool("health", false, "Print the service health (NATS only)")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	question := strings.Join(fs.Args(), " ")
	if question == "" && !*health {
		fmt.Fprintln(stderr, "usage: ask [flags] <question>")
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var asker client.Asker
	switch *transport {
	case "http":
		asker = client.NewHTTPClient(*backend)
	case "nats":
		nc, err := client.NewNATSClient(*natsURL, *model, "ask-cli")
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		defer nc.Close()
		nc.SetTimeout(*timeout)

		if *health {
			st, err := nc.CheckHealth(ctx)
			if err != nil {
				fmt.Fprintln(stderr, err)
				return 1
			}
			fmt.Fprintf(stdout, "%s (%s) is %s, up %s, version %s\n", st.ModelName, st.ModelType, st.Status, st.Uptime, st.Version)
			return 0
		}
		asker = nc
	default:
		fmt.Fprintf(stderr, "unknown transport %q\n", *transport)
		return 2
	}

	if question == "" {
		fmt.Fprintln(stderr, "usage: ask [flags] <question>")
		return 2
	}
	fmt.Fprintln(stdout, ui.AskBot(ctx, asker, question))
	return 0
}
