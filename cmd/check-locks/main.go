package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/joho/godotenv"

	"hostelgate/internal/config"
	"hostelgate/internal/external"
	"hostelgate/internal/logger"
)

// check-locks compares the configured room lock map with the locks the
// provider account can see, so typos in aliases show up before a guest
// arrives.
func main() {
	var roomID string
	flag.StringVar(&roomID, "room", "", "Check only this room id")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env", "error", err)
	}
	cfg := config.Load()
	logger.Init(cfg.LogLevel, "text")

	if len(cfg.Rooms) == 0 {
		logger.Fatal("No room lock map configured (ROOM_LOCKS or ROOM_LOCKS_FILE)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client := external.NewTTLockClient(cfg.TTLock)
	start := time.Now()
	keys, err := client.ListKeys(ctx)
	if err != nil {
		logger.Fatal("Failed to list provider locks", "error", err)
	}
	slog.Info("Fetched provider locks", "count", len(keys), "duration", time.Since(start).String())

	audits := auditRooms(cfg.Rooms, keys, roomID)
	if len(audits) == 0 {
		logger.Fatal("Room not found in lock map", "room", roomID)
	}

	broken := 0
	for _, a := range audits {
		if len(a.Missing) > 0 {
			broken++
			slog.Error("Room has unknown lock aliases",
				"room", a.RoomID, "name", a.Name, "matched", len(a.Matched), "missing", a.Missing)
			continue
		}
		slog.Info("Room OK", "room", a.RoomID, "name", a.Name, "locks", len(a.Matched))
	}

	if broken > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d rooms reference aliases the provider does not know\n", broken, len(audits))
		os.Exit(1)
	}
	slog.Info("Lock map check completed", "rooms", len(audits))
}

type roomAudit struct {
	RoomID  string
	Name    string
	Matched []external.LockKey
	Missing []string
}

// auditRooms matches every configured alias exactly against the provider's
// lock aliases. only limits the audit to one room when non-empty.
func auditRooms(rooms config.RoomMap, keys []external.LockKey, only string) []roomAudit {
	byAlias := make(map[string][]external.LockKey, len(keys))
	for _, k := range keys {
		byAlias[k.LockAlias] = append(byAlias[k.LockAlias], k)
	}

	ids := make([]string, 0, len(rooms))
	for id := range rooms {
		if only == "" || id == only {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	audits := make([]roomAudit, 0, len(ids))
	for _, id := range ids {
		room, ok := rooms.Lookup(id)
		if !ok {
			audits = append(audits, roomAudit{RoomID: id, Name: rooms[id].Name, Missing: []string{"(no aliases configured)"}})
			continue
		}
		a := roomAudit{RoomID: id, Name: room.Name}
		for _, alias := range room.Aliases {
			matched, found := byAlias[alias]
			if !found {
				a.Missing = append(a.Missing, alias)
				continue
			}
			a.Matched = append(a.Matched, matched...)
		}
		audits = append(audits, a)
	}
	return audits
}
