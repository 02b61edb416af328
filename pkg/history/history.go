// Package history provides communication history management functionality
package history

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"uart-terminal/pkg/tx"
)

// DefaultMaxSize is the byte budget used when none is given
const DefaultMaxSize = 10 * 1024 * 1024

// Direction represents the direction of data flow
type Direction int

const (
	DirectionRX Direction = iota
	DirectionTX
)

// String returns the string representation of Direction
func (d Direction) String() string {
	switch d {
	case DirectionRX:
		return "RX"
	case DirectionTX:
		return "TX"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the direction by name
func (d Direction) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// FileFormat represents different file export formats
type FileFormat int

const (
	FormatPlainText FileFormat = iota
	FormatTimestamped
	FormatJSON
	FormatHex
)

// String returns the string representation of FileFormat
func (f FileFormat) String() string {
	switch f {
	case FormatPlainText:
		return "plain"
	case FormatTimestamped:
		return "timestamped"
	case FormatJSON:
		return "json"
	case FormatHex:
		return "hex"
	default:
		return "unknown"
	}
}

// ParseFileFormat converts a format name to a FileFormat
func ParseFileFormat(name string) (FileFormat, error) {
	switch strings.ToLower(name) {
	case "plain", "plain_text", "text":
		return FormatPlainText, nil
	case "timestamped":
		return FormatTimestamped, nil
	case "json":
		return FormatJSON, nil
	case "hex":
		return FormatHex, nil
	default:
		return FormatPlainText, fmt.Errorf("unsupported format: %s", name)
	}
}

// HistoryEntry represents a single transfer in the communication history
type HistoryEntry struct {
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Direction Direction `json:"direction"`
	Data      []byte    `json:"data"`
	// Break marks a transmitted break signal. Data is empty.
	Break bool `json:"break,omitempty"`
}

// Validate checks if the history entry is valid
func (h HistoryEntry) Validate() error {
	if h.Timestamp.IsZero() {
		return fmt.Errorf("timestamp cannot be zero")
	}

	if h.Direction != DirectionRX && h.Direction != DirectionTX {
		return fmt.Errorf("invalid direction: %d", h.Direction)
	}

	if h.Data == nil && !h.Break {
		return fmt.Errorf("data cannot be nil")
	}

	return nil
}

// NewHistoryEntry creates a new history entry with current timestamp
func NewHistoryEntry(seq uint64, data []byte, direction Direction) HistoryEntry {
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)
	return HistoryEntry{
		Seq:       seq,
		Timestamp: time.Now(),
		Direction: direction,
		Data:      dataCopy,
	}
}

// HistoryStats provides statistics about the history buffer
type HistoryStats struct {
	TotalEntries int        `json:"total_entries"`
	TotalBytes   int        `json:"total_bytes"`
	RXEntries    int        `json:"rx_entries"`
	TXEntries    int        `json:"tx_entries"`
	RXBytes      int        `json:"rx_bytes"`
	TXBytes      int        `json:"tx_bytes"`
	MaxSize      int        `json:"max_size"`
	OldestEntry  *time.Time `json:"oldest_entry,omitempty"`
	NewestEntry  *time.Time `json:"newest_entry,omitempty"`
}

// MemoryHistoryManager keeps entries in memory, dropping the oldest once
// the byte budget is exceeded. It is safe for concurrent use.
type MemoryHistoryManager struct {
	mu      sync.RWMutex
	entries []HistoryEntry
	size    int
	maxSize int
	now     func() time.Time
}

// NewMemoryHistoryManager creates a new memory-based history manager
func NewMemoryHistoryManager(maxSize int) *MemoryHistoryManager {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	return &MemoryHistoryManager{
		entries: make([]HistoryEntry, 0),
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Write records data transferred in the given direction
func (mhm *MemoryHistoryManager) Write(seq uint64, data []byte, direction Direction) error {
	if data == nil {
		return fmt.Errorf("data cannot be nil")
	}

	if direction != DirectionRX && direction != DirectionTX {
		return fmt.Errorf("invalid direction: %d", direction)
	}

	entry := NewHistoryEntry(seq, data, direction)
	entry.Timestamp = mhm.now()

	mhm.mu.Lock()
	defer mhm.mu.Unlock()

	mhm.append(entry)
	return nil
}

// WriteBreak records a transmitted break signal
func (mhm *MemoryHistoryManager) WriteBreak(seq uint64) {
	mhm.mu.Lock()
	defer mhm.mu.Unlock()

	mhm.append(HistoryEntry{
		Seq:       seq,
		Timestamp: mhm.now(),
		Direction: DirectionTX,
		Data:      []byte{},
		Break:     true,
	})
}

func (mhm *MemoryHistoryManager) append(entry HistoryEntry) {
	mhm.entries = append(mhm.entries, entry)
	mhm.size += len(entry.Data)
	mhm.evict()
}

// evict removes the oldest entries until the size fits, keeping at least
// the newest one
func (mhm *MemoryHistoryManager) evict() {
	drop := 0
	for mhm.size > mhm.maxSize && drop < len(mhm.entries)-1 {
		mhm.size -= len(mhm.entries[drop].Data)
		drop++
	}
	if drop > 0 {
		mhm.entries = append([]HistoryEntry(nil), mhm.entries[drop:]...)
	}
}

// Entries returns a copy of all entries in sequence order
func (mhm *MemoryHistoryManager) Entries() []HistoryEntry {
	mhm.mu.RLock()
	defer mhm.mu.RUnlock()

	result := make([]HistoryEntry, len(mhm.entries))
	copy(result, mhm.entries)
	return result
}

// Clear clears all entries
func (mhm *MemoryHistoryManager) Clear() {
	mhm.mu.Lock()
	defer mhm.mu.Unlock()

	mhm.entries = mhm.entries[:0]
	mhm.size = 0
}

// GetStats returns statistics about the recorded traffic
func (mhm *MemoryHistoryManager) GetStats() HistoryStats {
	mhm.mu.RLock()
	defer mhm.mu.RUnlock()

	stats := HistoryStats{
		TotalEntries: len(mhm.entries),
		TotalBytes:   mhm.size,
		MaxSize:      mhm.maxSize,
	}

	for _, e := range mhm.entries {
		if e.Direction == DirectionTX {
			stats.TXEntries++
			stats.TXBytes += len(e.Data)
		} else {
			stats.RXEntries++
			stats.RXBytes += len(e.Data)
		}
	}

	if len(mhm.entries) > 0 {
		oldest := mhm.entries[0].Timestamp
		newest := mhm.entries[len(mhm.entries)-1].Timestamp
		stats.OldestEntry = &oldest
		stats.NewestEntry = &newest
	}

	return stats
}

// SaveToFile saves the history to a file
func (mhm *MemoryHistoryManager) SaveToFile(filename string, format FileFormat) error {
	if filename == "" {
		return fmt.Errorf("filename cannot be empty")
	}

	return saveEntriesToFile(mhm.Entries(), filename, format)
}

// Export writes the history to w in the given format
func (mhm *MemoryHistoryManager) Export(w io.Writer, format FileFormat) error {
	return writeEntries(w, mhm.Entries(), format)
}

// saveEntriesToFile saves history entries to a file in the specified format
func saveEntriesToFile(entries []HistoryEntry, filename string, format FileFormat) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if err := writeEntries(file, entries, format); err != nil {
		return err
	}
	return file.Close()
}

func writeEntries(w io.Writer, entries []HistoryEntry, format FileFormat) error {
	bw := bufio.NewWriter(w)

	var err error
	switch format {
	case FormatPlainText:
		err = saveAsPlainText(bw, entries)
	case FormatTimestamped:
		err = saveAsTimestamped(bw, entries)
	case FormatJSON:
		err = saveAsJSON(bw, entries)
	case FormatHex:
		err = saveAsHex(bw, entries)
	default:
		return fmt.Errorf("unsupported format: %v", format)
	}
	if err != nil {
		return err
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to flush history: %w", err)
	}
	return nil
}

// saveAsPlainText saves the raw bytes of every entry
func saveAsPlainText(w io.Writer, entries []HistoryEntry) error {
	for _, entry := range entries {
		if _, err := w.Write(entry.Data); err != nil {
			return fmt.Errorf("failed to write data: %w", err)
		}
	}
	return nil
}

// saveAsTimestamped saves one line per entry with timestamps
func saveAsTimestamped(w io.Writer, entries []HistoryEntry) error {
	for _, entry := range entries {
		direction := "<<"
		if entry.Direction == DirectionTX {
			direction = ">>"
		}

		text := escapeData(entry.Data)
		if entry.Break {
			text = "<BREAK>"
		}

		line := fmt.Sprintf("[%s] %s %s\n",
			entry.Timestamp.Format("2006-01-02 15:04:05.000"),
			direction,
			text)

		if _, err := io.WriteString(w, line); err != nil {
			return fmt.Errorf("failed to write timestamped data: %w", err)
		}
	}
	return nil
}

// saveAsJSON saves entries as JSON
func saveAsJSON(w io.Writer, entries []HistoryEntry) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	data := struct {
		Entries []HistoryEntry `json:"entries"`
		Count   int            `json:"count"`
	}{
		Entries: entries,
		Count:   len(entries),
	}

	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}

// saveAsHex saves one "[TX] 48 69" line per entry
func saveAsHex(w io.Writer, entries []HistoryEntry) error {
	for _, entry := range entries {
		text := tx.FormatHex(entry.Data)
		if entry.Break {
			text = "BREAK"
		}

		if _, err := fmt.Fprintf(w, "[%s] %s\n", entry.Direction, text); err != nil {
			return fmt.Errorf("failed to write hex data: %w", err)
		}
	}
	return nil
}

// escapeData makes control bytes visible on a single line
func escapeData(data []byte) string {
	var sb strings.Builder
	for _, b := range data {
		switch {
		case b == '\n':
			sb.WriteString(`\n`)
		case b == '\r':
			sb.WriteString(`\r`)
		case b == '\t':
			sb.WriteString(`\t`)
		case b < 0x20 || b >= 0x7F:
			fmt.Fprintf(&sb, `\x%02X`, b)
		default:
			sb.WriteByte(b)
		}
	}
	return sb.String()
}
