package themes

import (
	"bytes"
	"regexp"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/djwaifu/internal/models"
)

func TestParse(t *testing.T) {
	tc := []struct {
		name   string
		raw    string
		want   models.Song
		wantOK bool
	}{
		{
			name:   "quoted title by artist with episodes",
			raw:    `"Title" by Artist (ep 1-12)`,
			want:   models.Song{Title: "Title", Artist: "Artist"},
			wantOK: true,
		},
		{
			name:   "ordinal prefix",
			raw:    `#1: "Guren no Yumiya" by Linked Horizon (eps 1-13)`,
			want:   models.Song{Title: "Guren no Yumiya", Artist: "Linked Horizon"},
			wantOK: true,
		},
		{
			name:   "no space before by",
			raw:    `"Title"by Artist (ep 1-12)`,
			want:   models.Song{Title: "Title", Artist: "Artist"},
			wantOK: true,
		},
		{
			name:   "uppercase separator",
			raw:    `"Title" BY Artist`,
			want:   models.Song{Title: "Title", Artist: "Artist"},
			wantOK: true,
		},
		{
			name:   "comma before by",
			raw:    `"Title", by Artist`,
			want:   models.Song{Title: "Title", Artist: "Artist"},
			wantOK: true,
		},
		{
			name:   "quoted title without separator",
			raw:    `"Title" Artist Name`,
			want:   models.Song{Title: "Title", Artist: "Artist Name"},
			wantOK: true,
		},
		{
			name:   "quoted title only",
			raw:    `#2: "Title"`,
			want:   models.Song{Title: "Title"},
			wantOK: true,
		},
		{
			name:   "unquoted title by artist",
			raw:    `Unravel by TK from Ling Tosite Sigure (eps 1-12)`,
			want:   models.Song{Title: "Unravel", Artist: "TK from Ling Tosite Sigure"},
			wantOK: true,
		},
		{
			name:   "quoted title containing by",
			raw:    `"Stand by Me" by Ben E. King`,
			want:   models.Song{Title: "Stand by Me", Artist: "Ben E. King"},
			wantOK: true,
		},
		{
			name:   "quoted title containing by without separator falls through",
			raw:    `"Stand by Me" Ben E. King`,
			want:   models.Song{Title: "Stand by Me", Artist: "Ben E. King"},
			wantOK: true,
		},
		{
			name:   "unquoted title containing by splits at first separator",
			raw:    `Stand by Me by Ben E. King`,
			want:   models.Song{Title: "Stand", Artist: "Me by Ben E. King"},
			wantOK: true,
		},
		{
			name:   "artist containing by",
			raw:    `"Title" by Band by Night (ep 3)`,
			want:   models.Song{Title: "Title", Artist: "Band by Night"},
			wantOK: true,
		},
		{
			name:   "parentheses inside quoted title",
			raw:    `"Sobakasu (TV size)" by Judy and Mary (eps 1-43)`,
			want:   models.Song{Title: "Sobakasu (TV size)", Artist: "Judy and Mary"},
			wantOK: true,
		},
		{
			name:   "title starting with by is not glued",
			raw:    `"Bye Bye" Someone`,
			want:   models.Song{Title: "Bye Bye", Artist: "Someone"},
			wantOK: true,
		},
		{
			name:   "preserves casing",
			raw:    `"tOkYo" by YUI`,
			want:   models.Song{Title: "tOkYo", Artist: "YUI"},
			wantOK: true,
		},
		{name: "empty string", raw: ""},
		{name: "ordinal only", raw: "#3: "},
		{name: "empty quotes", raw: `"" by Someone`},
		{name: "blank quoted title", raw: `"   " by Someone`},
		{name: "no recognizable format", raw: "Just some text"},
		{name: "separator without title", raw: " by Someone"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Parse(tt.raw)
			if ok != tt.wantOK {
				t.Fatalf("Parse(%q) ok = %v, want %v (song %+v)", tt.raw, ok, tt.wantOK, got)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseAll(t *testing.T) {
	t.Run("nil input", func(t *testing.T) {
		got := ParseAll(nil)
		if got == nil || len(got) != 0 {
			t.Errorf("expected empty non-nil slice, got %#v", got)
		}
	})

	t.Run("skips malformed entries", func(t *testing.T) {
		got := ParseAll([]string{`#1: "A" by X`, "garbage", `#2: "B"by Y`, `""`})
		want := []models.Song{{Title: "A", Artist: "X"}, {Title: "B", Artist: "Y"}}
		if len(got) != len(want) {
			t.Fatalf("expected %d songs, got %d: %+v", len(want), len(got), got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("index %d: expected %+v, got %+v", i, want[i], got[i])
			}
		}
	})

	t.Run("returns a fresh slice", func(t *testing.T) {
		in := []string{`"A" by X`}
		first := ParseAll(in)
		first[0].Title = "mutated"
		second := ParseAll(in)
		if second[0].Title != "A" {
			t.Errorf("expected independent results, got %+v", second[0])
		}
	})
}

func TestParserLogsSkippedEntries(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf)
	logger.SetLevel(log.DebugLevel)

	p := NewParser(logger)
	if _, ok := p.Parse("nothing to see"); ok {
		t.Fatal("expected skip")
	}

	if !strings.Contains(buf.String(), "skipping theme annotation") {
		t.Errorf("expected debug log, got %q", buf.String())
	}
}

func TestParserCustomRules(t *testing.T) {
	dash := regexp.MustCompile(`^(.+?)\s+-\s+(.+)$`)
	rules := append([]Rule{{
		Name:    "title dash artist",
		Match:   func(raw, _ string) bool { return strings.Contains(raw, " - ") },
		Extract: regexpExtractor(dash),
	}}, DefaultRules...)

	p := NewParser(nil, rules...)

	got, ok := p.Parse("Crossing Field - LiSA")
	if !ok || got != (models.Song{Title: "Crossing Field", Artist: "LiSA"}) {
		t.Errorf("custom rule not applied, got %+v ok=%v", got, ok)
	}

	got, ok = p.Parse(`"Title" by Artist`)
	if !ok || got.Artist != "Artist" {
		t.Errorf("default rules should still apply, got %+v", got)
	}
}

func TestFromThemeSet(t *testing.T) {
	set := &models.ThemeSet{
		Openings: []string{`#1: "Op" by A`},
		Endings:  []string{`#1: "Ed" by B`, "bad"},
	}
	p := NewParser(nil)

	tc := []struct {
		name string
		set  *models.ThemeSet
		sel  models.ThemeSelection
		want []string
	}{
		{name: "both", set: set, sel: models.ThemeSelection{Openings: true, Endings: true}, want: []string{"Op", "Ed"}},
		{name: "openings only", set: set, sel: models.ThemeSelection{Openings: true}, want: []string{"Op"}},
		{name: "endings only", set: set, sel: models.ThemeSelection{Endings: true}, want: []string{"Ed"}},
		{name: "nil set", set: nil, sel: models.ThemeSelection{Openings: true}, want: nil},
		{name: "absent groups", set: &models.ThemeSet{}, sel: models.ThemeSelection{Openings: true, Endings: true}, want: nil},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got := p.FromThemeSet(tt.set, tt.sel)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %+v", tt.want, got)
			}
			for i, title := range tt.want {
				if got[i].Title != title {
					t.Errorf("index %d: expected %s, got %s", i, title, got[i].Title)
				}
			}
		})
	}
}
