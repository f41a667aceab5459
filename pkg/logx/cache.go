package logx

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultCacheLines bounds the in-memory log cache. Old lines are
// dropped once the ring is full.
const DefaultCacheLines = 512

// Cache is a fixed-size ring of rendered log lines. Every logger feeds
// it regardless of console/file settings; the TUI reads it via Recent.
type Cache struct {
	mu    sync.Mutex
	lines []string
	next  int
	full  bool
}

func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheLines
	}
	return &Cache{lines: make([]string, capacity)}
}

func (c *Cache) add(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines[c.next] = line
	c.next++
	if c.next == len(c.lines) {
		c.next = 0
		c.full = true
	}
}

// Len reports how many lines are currently held.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full {
		return len(c.lines)
	}
	return c.next
}

// Recent returns up to n of the newest lines, oldest first.
func (c *Cache) Recent(n int) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	size := c.next
	if c.full {
		size = len(c.lines)
	}
	if n > size {
		n = size
	}
	if n <= 0 {
		return nil
	}

	out := make([]string, 0, n)
	start := c.next - n
	if start < 0 {
		start += len(c.lines)
	}
	for i := 0; i < n; i++ {
		out = append(out, c.lines[(start+i)%len(c.lines)])
	}
	return out
}

// cacheWriter renders each zerolog JSON event into a compact plain-text
// line and appends it to the ring.
type cacheWriter struct {
	cache *Cache
}

func (w *cacheWriter) Write(p []byte) (int, error) {
	w.cache.add(formatCacheLine(p))
	return len(p), nil
}

func formatCacheLine(p []byte) string {
	var ev map[string]any
	if err := json.Unmarshal(p, &ev); err != nil {
		return strings.TrimRight(string(p), "\n")
	}

	var b strings.Builder

	if ts, ok := ev[zerolog.TimestampFieldName].(string); ok {
		if t, err := time.Parse(consoleTimeFormat, ts); err == nil {
			b.WriteString(t.Format("15:04:05"))
		} else {
			b.WriteString(ts)
		}
		b.WriteByte(' ')
	}
	if lvl, ok := ev[zerolog.LevelFieldName].(string); ok {
		b.WriteString(strings.ToUpper(lvl))
		b.WriteByte(' ')
	}
	if msg, ok := ev[zerolog.MessageFieldName].(string); ok {
		b.WriteString(msg)
	}

	skip := map[string]bool{
		zerolog.TimestampFieldName: true,
		zerolog.LevelFieldName:     true,
		zerolog.MessageFieldName:   true,
		zerolog.CallerFieldName:    true,
	}
	keys := make([]string, 0, len(ev))
	for k := range ev {
		if !skip[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, ev[k])
	}

	return b.String()
}
