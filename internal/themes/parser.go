package themes

import (
	"regexp"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/djwaifu/internal/models"
)

var (
	ordinalPattern = regexp.MustCompile(`^\s*#\d+:\s*`)
	quotedByArtist = regexp.MustCompile(`"([^"]+)",?\s+(?i:by)\s+([^(]*)`)
	quotedByGlued  = regexp.MustCompile(`"([^"]+)",?\s*(?i:by)\s+([^(]*)`)
	plainByArtist  = regexp.MustCompile(`^\s*(.+?)\s+(?i:by)\s+([^(]*)`)
	quotedOnly     = regexp.MustCompile(`"([^"]+)",?\s*([^(]*)`)
)

// Rule is one annotation format. Match sees the ordinal-stripped raw text and a
// lower-cased copy; Extract works on the raw text so casing is preserved.
type Rule struct {
	Name    string
	Match   func(raw, lower string) bool
	Extract func(raw string) (models.Song, bool)
}

// DefaultRules lists the known annotation formats in precedence order.
var DefaultRules = []Rule{
	{
		Name: "quoted title by artist",
		Match: func(raw, lower string) bool {
			return strings.Contains(raw, `"`) && strings.Contains(lower, " by ")
		},
		Extract: regexpExtractor(quotedByArtist),
	},
	{
		Name:    "quoted title glued to by",
		Match:   func(_, lower string) bool { return strings.Contains(lower, `"by`) },
		Extract: regexpExtractor(quotedByGlued),
	},
	{
		Name: "unquoted title by artist",
		Match: func(raw, lower string) bool {
			return !strings.Contains(raw, `"`) && strings.Contains(lower, " by ")
		},
		Extract: regexpExtractor(plainByArtist),
	},
	{
		Name:    "quoted title only",
		Match:   func(raw, _ string) bool { return strings.Contains(raw, `"`) },
		Extract: regexpExtractor(quotedOnly),
	},
}

// regexpExtractor builds an extractor from a pattern whose first group is the
// title and second group, when present, the artist.
func regexpExtractor(re *regexp.Regexp) func(string) (models.Song, bool) {
	return func(raw string) (models.Song, bool) {
		m := re.FindStringSubmatch(raw)
		if m == nil {
			return models.Song{}, false
		}

		song := models.Song{Title: strings.TrimSpace(m[1])}
		if len(m) > 2 {
			song.Artist = strings.TrimSpace(m[2])
		}
		return song, song.Title != ""
	}
}

// Parser applies an ordered rule list to theme annotations.
type Parser struct {
	rules  []Rule
	logger *log.Logger
}

// NewParser creates a [Parser]. With no rules it uses [DefaultRules].
func NewParser(logger *log.Logger, rules ...Rule) *Parser {
	if logger == nil {
		logger = log.Default()
	}
	if len(rules) == 0 {
		rules = DefaultRules
	}
	return &Parser{rules: rules, logger: logger}
}

var defaultParser = NewParser(nil)

// Parse converts one annotation using the default rules.
func Parse(raw string) (models.Song, bool) {
	return defaultParser.Parse(raw)
}

// ParseAll converts annotations using the default rules.
func ParseAll(raw []string) []models.Song {
	return defaultParser.ParseAll(raw)
}

// Parse converts one annotation into a [models.Song]. The boolean is false when
// the entry should be skipped.
func (p *Parser) Parse(raw string) (models.Song, bool) {
	text := ordinalPattern.ReplaceAllString(raw, "")
	lower := strings.ToLower(text)

	for _, rule := range p.rules {
		if !rule.Match(text, lower) {
			continue
		}
		if song, ok := rule.Extract(text); ok {
			return song, true
		}
	}

	p.logger.Debug("skipping theme annotation", "raw", raw)
	return models.Song{}, false
}

// ParseAll parses every annotation, dropping skipped ones. It always returns a
// fresh non-nil slice.
func (p *Parser) ParseAll(raw []string) []models.Song {
	songs := make([]models.Song, 0, len(raw))
	for _, r := range raw {
		if song, ok := p.Parse(r); ok {
			songs = append(songs, song)
		}
	}
	return songs
}

// FromThemeSet parses the groups of set chosen by sel, openings first.
func (p *Parser) FromThemeSet(set *models.ThemeSet, sel models.ThemeSelection) []models.Song {
	if set == nil {
		return []models.Song{}
	}

	var raw []string
	if sel.Openings {
		raw = append(raw, set.Openings...)
	}
	if sel.Endings {
		raw = append(raw, set.Endings...)
	}
	return p.ParseAll(raw)
}
