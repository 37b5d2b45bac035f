// package formatter provides functions to export collected theme songs and playlist results to various formats (CSV, Markdown, plain text, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/djwaifu/internal/models"
	"github.com/desertthunder/djwaifu/internal/shared"
	"github.com/desertthunder/djwaifu/internal/tasks"
)

// Format names an export format.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
	FormatJSON     Format = "json"
)

// ParseFormat accepts a format name or its usual file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "text", "txt", "":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
	}
}

// Export renders run in the given format.
func Export(run *tasks.ThemeRunResult, format Format) ([]byte, error) {
	switch format {
	case FormatCSV:
		return ExportToCSV(run)
	case FormatMarkdown:
		return ExportToMarkdown(run, nil, "")
	case FormatJSON:
		return ExportToJSON(run)
	case FormatText:
		return ExportToText(run)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}
}

// Write renders run in the given format to w.
func Write(w io.Writer, run *tasks.ThemeRunResult, format Format) error {
	data, err := Export(run, format)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write %s export: %w", format, err)
	}
	return nil
}

// ExportToCSV converts collected themes to CSV format with columns: AnimeID, Anime, Status, Title, Artist
func ExportToCSV(run *tasks.ThemeRunResult) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"AnimeID", "Anime", "Status", "Title", "Artist"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, entry := range run.Entries {
		for _, song := range entry.Songs {
			record := []string{
				strconv.Itoa(entry.Anime.ID),
				entry.Anime.Title,
				string(entry.Anime.Status),
				song.Title,
				song.Artist,
			}
			if err := writer.Write(record); err != nil {
				return nil, fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts collected themes to Markdown, grouped by anime.
//
// When result is set the playlist is linked at the top, with the optional cover image.
func ExportToMarkdown(run *tasks.ThemeRunResult, result *models.PlaylistResult, imageFilename string) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# Anime themes of %s\n\n", run.Username)

	if result != nil {
		if imageFilename != "" {
			fmt.Fprintf(&buf, "![Cover](%s)\n\n", imageFilename)
		}
		if result.Playlist.URL != "" {
			fmt.Fprintf(&buf, "**Playlist**: [%s](%s)\n", result.Playlist.Name, result.Playlist.URL)
		} else {
			fmt.Fprintf(&buf, "**Playlist**: %s\n", result.Playlist.Name)
		}
		fmt.Fprintf(&buf, "**Added**: %s\n", Summary(result))
		fmt.Fprintf(&buf, "**Visibility**: %s\n\n", visibility(result.Playlist))
	}

	fmt.Fprintf(&buf, "**Anime**: %d\n", len(run.Entries))
	fmt.Fprintf(&buf, "**Songs**: %d\n\n", len(run.Songs()))

	for _, entry := range run.Entries {
		fmt.Fprintf(&buf, "## %s\n\n", entry.Anime.Title)
		if len(entry.Songs) == 0 {
			buf.WriteString("_No themes found._\n\n")
			continue
		}
		for i, song := range entry.Songs {
			fmt.Fprintf(&buf, "%d. %s\n", i+1, songLine(song))
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// ExportToText converts collected themes to plain text format
func ExportToText(run *tasks.ThemeRunResult) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "User: %s\n", run.Username)
	fmt.Fprintf(&buf, "Songs: %d\n\n", len(run.Songs()))

	i := 0
	for _, entry := range run.Entries {
		for _, song := range entry.Songs {
			i++
			fmt.Fprintf(&buf, "%d. %s [%s]\n", i, songLine(song), entry.Anime.Title)
		}
	}

	return buf.Bytes(), nil
}

// ExportToJSON converts collected themes to indented JSON.
func ExportToJSON(run *tasks.ThemeRunResult) ([]byte, error) {
	type entry struct {
		Anime models.Anime  `json:"anime"`
		Songs []models.Song `json:"songs"`
	}
	out := struct {
		Username string  `json:"username"`
		Entries  []entry `json:"entries"`
	}{Username: run.Username, Entries: make([]entry, 0, len(run.Entries))}

	for _, e := range run.Entries {
		out.Entries = append(out.Entries, entry{Anime: e.Anime, Songs: e.Songs})
	}
	return shared.MarshalJSON(out, true)
}

// ToResultJSON generates a JSON representation of a playlist result
func ToResultJSON(result *models.PlaylistResult) ([]byte, error) {
	return shared.MarshalJSON(result, true)
}

// Summary describes how much of the watch list made it into the playlist.
func Summary(result *models.PlaylistResult) string {
	return fmt.Sprintf("%d of %d songs (%.2f%%)", result.TotalAppended, result.TotalDesired, result.Percentage)
}

func songLine(song models.Song) string {
	if song.Artist == "" {
		return song.Title
	}
	return song.Artist + " - " + song.Title
}

func visibility(p models.Playlist) string {
	switch {
	case p.Collaborative:
		return "Collaborative"
	case p.Public:
		return "Public"
	default:
		return "Private"
	}
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: empty URL provided", shared.ErrMissingArgument)
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	ThemesFile string
	ResultFile string
}

// WriteCSVExport exports collected themes to CSV with an accompanying result JSON file.
//
// Defaults to the username as the base filename & creates {base}_themes.csv and, when result is set, {base}_result.json
func WriteCSVExport(run *tasks.ThemeRunResult, result *models.PlaylistResult, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = run.Username
	}

	csvData, err := ExportToCSV(run)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	out := &CSVExportResult{ThemesFile: baseFilepath + "_themes.csv"}
	if err := os.WriteFile(out.ThemesFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	if result == nil {
		return out, nil
	}

	resultJSON, err := ToResultJSON(result)
	if err != nil {
		return nil, fmt.Errorf("failed to generate result JSON: %w", err)
	}

	out.ResultFile = baseFilepath + "_result.json"
	if err := os.WriteFile(out.ResultFile, resultJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write result file: %w", err)
	}

	return out, nil
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory  string
	Files      []string
	CoverImage string
}

// WriteMarkdownExport exports collected themes to Markdown in a dedicated directory.
//
// Directory name defaults to the username.
// When the result's playlist has an image it is downloaded next to the README; a failed download only drops the image.
// Creates a directory structure: {dir}/README.md and optionally {dir}/cover.jpg
func WriteMarkdownExport(run *tasks.ThemeRunResult, result *models.PlaylistResult, outputDir string) (*MarkdownExportResult, error) {
	if outputDir == "" {
		outputDir = run.Username
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	out := &MarkdownExportResult{
		Directory: outputDir,
		Files:     []string{},
	}

	var coverImageFilename string
	if result != nil && result.Playlist.ImageURL != "" {
		imageData, err := DownloadImage(result.Playlist.ImageURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to download cover image: %v\n", err)
		} else {
			coverImageFilename = "cover.jpg"
			coverImagePath := filepath.Join(outputDir, coverImageFilename)
			if err := os.WriteFile(coverImagePath, imageData, 0644); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to save cover image: %v\n", err)
				coverImageFilename = ""
			} else {
				out.CoverImage = coverImagePath
				out.Files = append(out.Files, coverImagePath)
			}
		}
	}

	mdData, err := ExportToMarkdown(run, result, coverImageFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}

	out.Files = append(out.Files, mdFile)

	return out, nil
}

// WriteExport writes run to path in the given format, defaulting to {username}_themes.{ext}.
func WriteExport(run *tasks.ThemeRunResult, format Format, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("%s_themes.%s", run.Username, extension(format))
	}

	data, err := Export(run, format)
	if err != nil {
		return "", fmt.Errorf("failed to generate %s: %w", format, err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s file: %w", format, err)
	}

	return path, nil
}

func extension(f Format) string {
	switch f {
	case FormatMarkdown:
		return "md"
	case FormatText:
		return "txt"
	default:
		return string(f)
	}
}
