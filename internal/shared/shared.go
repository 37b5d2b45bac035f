// package shared defines shared helpers
package shared

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/xrash/smetrics"
	"golang.org/x/text/cases"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger creates a new [log.Logger] instance with the specified [io.Writer], with timestamps and caller reporting enabled.
//
// The writer defaults to [os.Stderr]
func NewLogger(w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}

	opts := log.Options{ReportTimestamp: true, ReportCaller: true}
	return log.NewWithOptions(w, opts)
}

// NewFileLogger creates a [log.Logger] writing to a size-rotated file.
//
// Used while the TUI owns the terminal.
func NewFileLogger(conf LogConfig) (*log.Logger, error) {
	if conf.File == "" {
		return nil, fmt.Errorf("%w: log file path is empty", ErrInvalidConfig)
	}

	w := &lumberjack.Logger{
		Filename:   conf.File,
		MaxSize:    conf.MaxSizeMB,
		MaxBackups: conf.MaxBackups,
		MaxAge:     conf.MaxAgeDays,
	}

	logger := log.NewWithOptions(w, log.Options{ReportTimestamp: true, ReportCaller: true, Formatter: log.LogfmtFormatter})
	SetLogLevel(logger, ParseLevel(conf.Level))
	return logger, nil
}

// WithLogger creates a child [log.Logger] with the specified key-value pairs added to all log entries.
func WithLogger(l *log.Logger, kv ...any) *log.Logger {
	return l.With(kv...)
}

// SetLogLevel sets the [log.Level] for the given [log.Logger].
func SetLogLevel(l *log.Logger, ll log.Level) {
	l.SetLevel(ll)
}

// ParseLevel converts a config string to a [log.Level], defaulting to info.
func ParseLevel(s string) log.Level {
	lvl, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// GenerateID generates a new v4 [uuid.UUID] as a string
func GenerateID() string {
	return uuid.New().String()
}

// GenerateState returns a random URL-safe token for the OAuth state parameter.
func GenerateState() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// MarshalJSON marshals data, indenting when pretty is set.
func MarshalJSON(data any, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(data, "", "  ")
	}
	return json.Marshal(data)
}

var folder = cases.Fold()

// NormalizeTrackKey builds a case-folded, whitespace-collapsed "title|artist" key.
func NormalizeTrackKey(title, artist string) string {
	return normalize(title) + "|" + normalize(artist)
}

func normalize(s string) string {
	return strings.Join(strings.Fields(folder.String(s)), " ")
}

// Similarity scores two strings from 0 to 100 using edit distance over their normalized forms.
func Similarity(a, b string) int {
	a, b = normalize(a), normalize(b)
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 100
	}

	distance := smetrics.WagnerFischer(a, b, 1, 1, 2)
	score := 100 - (distance * 100 / maxLen)
	if score < 0 {
		return 0
	}
	return score
}

// Percentage returns part/total*100 rounded to two decimals, or 0 when total is 0.
func Percentage(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	pct := float64(part) / float64(total) * 100
	return float64(int(pct*100+0.5)) / 100
}
