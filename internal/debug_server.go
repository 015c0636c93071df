package internal

import (
	"fitpulse-chat/observability"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gofiber/fiber/v2"
)

const (
	defaultInspectPrefix = "conv:"
	maxInspectRows       = 500
)

// InspectRow is one store entry as shown by /debug/inspect.
type InspectRow struct {
	Key       string `json:"key"`
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	EntityID  string `json:"entityId"`
	Namespace string `json:"namespace"`
	Detail    string `json:"detail"`
}

type InspectPage struct {
	Prefix string       `json:"prefix"`
	Items  []InspectRow `json:"items"`
}

// RegisterDebugRoutes exposes the live counters and, when inspect is set, a raw store dump.
func RegisterDebugRoutes(router fiber.Router, db *badger.DB, monitoring *observability.MonitoringManager, inspect bool) {
	router.Get("/debug/stats", func(c *fiber.Ctx) error {
		return c.JSON(monitoring.GetLatest())
	})
	if !inspect {
		return
	}
	router.Get("/debug/inspect", func(c *fiber.Ctx) error {
		page, err := Inspect(db, c.Query("prefix", defaultInspectPrefix), maxInspectRows)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(page)
	})
}

// Inspect lists at most limit entries whose key starts with prefix.
func Inspect(db *badger.DB, prefix string, limit int) (InspectPage, error) {
	page := InspectPage{Prefix: prefix, Items: []InspectRow{}}
	err := db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)) && len(page.Items) < limit; it.Next() {
			item := it.Item()
			page.Items = append(page.Items, DefaultMapper(string(item.Key()), item.ValueSize()))
		}
		return nil
	})
	return page, err
}

// DefaultMapper splits "<type>:<namespace>:<unix nano>:<id>" keys and "<type>:<id>" keys.
func DefaultMapper(key string, size int64) InspectRow {
	parts := strings.Split(key, ":")
	row := InspectRow{
		Key:       key,
		Type:      parts[0],
		Timestamp: "--:--:--",
		EntityID:  "--------",
		Namespace: "default",
		Detail:    "Size: " + strconv.FormatInt(size, 10) + " bytes",
	}
	n := len(parts)
	switch {
	case n >= 4:
		// The namespace may itself contain colons ("group:<id>")
		row.Namespace = strings.Join(parts[1:n-2], ":")
		if tsNano, err := strconv.ParseInt(parts[n-2], 10, 64); err == nil {
			row.Timestamp = time.Unix(0, tsNano).UTC().Format("15:04:05")
		}
		row.EntityID = parts[n-1]
		if len(row.EntityID) > 8 {
			row.EntityID = row.EntityID[:8]
		}
	case n > 1:
		row.EntityID = strings.Join(parts[1:], ":")
	}
	return row
}
