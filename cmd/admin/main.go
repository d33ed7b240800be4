package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"santabot/backend/internal/api/handler"
	"santabot/backend/internal/bootstrap"
	"santabot/backend/internal/config"
	"santabot/backend/internal/logging"
	"santabot/backend/internal/santa"
	"santabot/backend/internal/storage"
)

const usage = `Usage: admin <command> [args]

Commands:
  events                    list registered chats
  show <chat_id>            show the counters of an event
  set-count <chat_id> <n>   overwrite the expected participant count
  reset <chat_id>           delete an event and its registrations
  draw <chat_id>            print a dry-run draw without notifying anyone
  token [ttl]               mint an admin API token (default ttl 24h)

set-count and reset are sent to the running bot at ADMIN_API_URL.
`

var errUsage = errors.New("invalid usage")

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel)

	if err := run(context.Background(), cfg, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
		} else {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	if args[0] == "token" {
		ttl := 24 * time.Hour
		if len(args) > 1 {
			var err error
			if ttl, err = time.ParseDuration(args[1]); err != nil {
				return fmt.Errorf("invalid ttl: %w", err)
			}
		}
		token, err := handler.GenerateJWT([]byte(cfg.AdminJWTSecret), ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, token)
		return nil
	}

	if args[0] == "set-count" || args[0] == "reset" {
		api, err := newAPIClient(cfg.AdminAPIURL, cfg.AdminJWTSecret)
		if err != nil {
			return err
		}
		return mutate(ctx, api, args, out)
	}

	store, err := bootstrap.OpenStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	return dispatch(ctx, store, args, out)
}

// mutate applies an event change through the admin API.
func mutate(ctx context.Context, api *apiClient, args []string, out io.Writer) error {
	switch args[0] {
	case "set-count":
		chatID, err := chatArg(args, 3)
		if err != nil {
			return err
		}
		n, err := strconv.Atoi(args[2])
		if err != nil || n < 0 {
			return fmt.Errorf("invalid count %q", args[2])
		}
		drawn, err := api.SetExpected(ctx, chatID, n)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Expected count of %d set to %d.\n", chatID, n)
		if drawn {
			fmt.Fprintln(out, "The event is complete; participants were notified.")
		}
		return nil

	case "reset":
		chatID, err := chatArg(args, 2)
		if err != nil {
			return err
		}
		if err := api.ResetEvent(ctx, chatID); err != nil {
			return err
		}
		fmt.Fprintf(out, "Event %d has been reset.\n", chatID)
		return nil

	default:
		return errUsage
	}
}

func dispatch(ctx context.Context, s storage.Store, args []string, out io.Writer) error {
	switch args[0] {
	case "events":
		chats, err := storage.Chats(ctx, s)
		if err != nil {
			return err
		}
		for _, c := range chats {
			fmt.Fprintf(out, "%d\t%s\n", c.ID, c.Title)
		}
		return nil

	case "show":
		repo, err := repoArg(s, args, 2)
		if err != nil {
			return err
		}
		summary, err := handler.Summarize(ctx, repo)
		if err != nil {
			return err
		}
		return printJSON(out, summary)

	case "draw":
		repo, err := repoArg(s, args, 2)
		if err != nil {
			return err
		}
		profiles, err := repo.Registrations(ctx)
		if err != nil {
			return err
		}
		res, err := santa.NewEngine(nil).Draw(profiles)
		if err != nil {
			return err
		}
		for _, a := range res.Assignments {
			marker := ""
			if a.Kind == santa.KindRest {
				marker = " (rest)"
			}
			fmt.Fprintf(out, "%s -> %s%s\n", a.Giver.FullName, a.Recipient.FullName, marker)
		}
		return nil

	default:
		return errUsage
	}
}

func chatArg(args []string, want int) (int64, error) {
	if len(args) != want {
		return 0, errUsage
	}
	chatID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chat id %q", args[1])
	}
	return chatID, nil
}

func repoArg(s storage.Store, args []string, want int) (*storage.EventRepository, error) {
	chatID, err := chatArg(args, want)
	if err != nil {
		return nil, err
	}
	return storage.NewEventRepository(s, chatID), nil
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
