package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

// RoomLocks lists the provider lock aliases that open one room.
// Aliases are matched exactly against the provider's lockAlias.
type RoomLocks struct {
	Name    string   `json:"name"`
	Aliases []string `json:"aliases"`
}

// RoomMap maps a room identifier to its locks.
type RoomMap map[string]RoomLocks

// Lookup returns the locks configured for roomID.
func (m RoomMap) Lookup(roomID string) (RoomLocks, bool) {
	r, ok := m[roomID]
	if !ok || len(r.Aliases) == 0 {
		return RoomLocks{}, false
	}
	if r.Name == "" {
		r.Name = "Room " + roomID
	}
	return r, true
}

// ParseRoomMap decodes {"12": {"name": "Room 12", "aliases": ["Door 1"]}}.
func ParseRoomMap(data []byte) (RoomMap, error) {
	var m RoomMap
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid room lock map: %w", err)
	}
	return m, nil
}

// LoadRoomMap reads ROOM_LOCKS (inline JSON) or ROOM_LOCKS_FILE.
// An invalid map is logged and treated as empty so every room is unmapped.
func LoadRoomMap() RoomMap {
	var data []byte
	if inline := os.Getenv("ROOM_LOCKS"); inline != "" {
		data = []byte(inline)
	} else if path := os.Getenv("ROOM_LOCKS_FILE"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			slog.Error("Failed to read room lock map", "path", path, "error", err)
			return RoomMap{}
		}
		data = b
	} else {
		return RoomMap{}
	}

	m, err := ParseRoomMap(data)
	if err != nil {
		slog.Error("Failed to parse room lock map", "error", err)
		return RoomMap{}
	}
	return m
}
