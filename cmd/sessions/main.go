package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"furnishAi/internal/config"
	"furnishAi/internal/media"
	"furnishAi/internal/storage"
	"furnishAi/internal/studio"
)

func main() {
	var (
		list      = flag.Bool("list", false, "List sessions")
		show      = flag.String("show", "", "Print one session as JSON")
		deleteID  = flag.String("delete", "", "Delete a session and its images")
		olderThan = flag.Duration("prune", 0, "Delete sessions not updated within this duration (e.g. 72h)")
	)
	flag.Parse()

	cfg, err := config.FromEnv()
	if err != nil {
		fatal("load config", err)
	}
	slog.SetDefault(config.NewLogger(os.Stderr, cfg.Log))

	ctx := context.Background()
	store, err := storage.NewStore(ctx, storage.Options{
		DatabaseURL: cfg.DatabaseURL,
		RedisURL:    cfg.RedisURL,
		TTL:         cfg.SessionTTL,
	})
	if err != nil {
		fatal("connect store", err)
	}
	defer store.Close()

	mediaStore, _, err := media.Open(ctx, media.Config{
		Bucket:          cfg.Media.Bucket,
		Region:          cfg.Media.Region,
		Endpoint:        cfg.Media.Endpoint,
		PublicURL:       cfg.Media.PublicURL,
		KeyPrefix:       cfg.Media.KeyPrefix,
		ForcePathStyle:  cfg.Media.ForcePathStyle,
		AccessKeyID:     cfg.Media.AccessKeyID,
		SecretAccessKey: cfg.Media.SecretAccessKey,
	}, cfg.MediaDir)
	if err != nil {
		fatal("open media storage", err)
	}
	svc := studio.New(studio.Deps{Store: store, Media: mediaStore})

	switch {
	case *list:
		err = listSessions(ctx, os.Stdout, svc)
	case *show != "":
		err = showSession(ctx, os.Stdout, svc, *show)
	case *deleteID != "":
		if err = svc.Delete(ctx, *deleteID); err == nil {
			fmt.Printf("Session %s deleted\n", *deleteID)
		}
	case *olderThan > 0:
		var n int
		n, err = prune(ctx, svc, time.Now().Add(-*olderThan))
		if err == nil {
			fmt.Printf("Pruned %d session(s)\n", n)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fatal("sessions", err)
	}
}

func listSessions(ctx context.Context, w io.Writer, svc *studio.Service) error {
	sessions, err := svc.List(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%-38s %-24s %-6s %-5s %-11s %s\n", "ID", "STYLE", "ROOM?", "AREAS", "SUGGESTIONS", "UPDATED")
	for _, s := range sessions {
		fmt.Fprintf(w, "%-38s %-24.24s %-6v %-5d %-11s %s\n",
			s.ID, s.Style, s.Room != nil, len(s.Suggestions), s.Status.Suggestions, s.UpdatedAt.Format(time.RFC3339))
	}
	return nil
}

func showSession(ctx context.Context, w io.Writer, svc *studio.Service, id string) error {
	session, err := svc.Get(ctx, id)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(session)
}

// prune deletes sessions last updated before cutoff.
func prune(ctx context.Context, svc *studio.Service, cutoff time.Time) (int, error) {
	sessions, err := svc.List(ctx)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, s := range sessions {
		if !s.UpdatedAt.Before(cutoff) {
			continue
		}
		if err := svc.Delete(ctx, s.ID); err != nil {
			return deleted, fmt.Errorf("delete %s: %w", s.ID, err)
		}
		deleted++
	}
	return deleted, nil
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
