// package formatter renders sync logs and synced playlists as tables, CSV, JSON, Markdown and plain text
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

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/desertthunder/respect/internal/models"
	"github.com/desertthunder/respect/internal/shared"
)

// Format names an output format accepted by the CLI.
type Format string

const (
	FormatTable    Format = "table"
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "md"
	FormatText     Format = "txt"
)

// ParseFormat validates s against allowed.
func ParseFormat(s string, allowed ...Format) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, a := range allowed {
		if f == a {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
}

var syncLogHeaders = []string{"Time", "Type", "Status", "Processed", "Failed", "Error"}

func syncLogRow(l *models.SyncLog) []string {
	return []string{
		l.CreatedAt.UTC().Format(time.RFC3339),
		string(l.SyncType),
		string(l.Status),
		strconv.Itoa(l.ItemsProcessed),
		strconv.Itoa(l.ItemsFailed),
		l.ErrorMessage,
	}
}

// SyncLogsToCSV converts sync logs to CSV with columns: Time, Type, Status, Processed, Failed, Error
func SyncLogsToCSV(logs []*models.SyncLog) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(syncLogHeaders); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, l := range logs {
		if err := writer.Write(syncLogRow(l)); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	failedStyle  = cellStyle.Foreground(lipgloss.Color("#ED567A"))
	partialStyle = cellStyle.Foreground(lipgloss.Color("#FFB86C"))
)

// SyncLogsToTable renders sync logs as a bordered terminal table.
func SyncLogsToTable(logs []*models.SyncLog) []byte {
	rows := make([][]string, 0, len(logs))
	for _, l := range logs {
		rows = append(rows, syncLogRow(l))
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(syncLogHeaders...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 2 && row >= 0 && row < len(logs) {
				switch logs[row].Status {
				case models.StatusFailed:
					return failedStyle
				case models.StatusPartial:
					return partialStyle
				}
			}
			return cellStyle
		})

	return []byte(t.String() + "\n")
}

type syncLogJSON struct {
	ID             string `json:"id"`
	SubjectID      string `json:"subject_id"`
	SyncType       string `json:"sync_type"`
	Status         string `json:"status"`
	ItemsProcessed int    `json:"items_processed"`
	ItemsFailed    int    `json:"items_failed"`
	ErrorMessage   string `json:"error_message,omitempty"`
	CreatedAt      string `json:"created_at"`
}

// SyncLogsToJSON converts sync logs to an indented JSON array.
func SyncLogsToJSON(logs []*models.SyncLog) ([]byte, error) {
	out := make([]syncLogJSON, 0, len(logs))
	for _, l := range logs {
		out = append(out, syncLogJSON{
			ID:             l.ID,
			SubjectID:      l.SubjectID,
			SyncType:       string(l.SyncType),
			Status:         string(l.Status),
			ItemsProcessed: l.ItemsProcessed,
			ItemsFailed:    l.ItemsFailed,
			ErrorMessage:   l.ErrorMessage,
			CreatedAt:      l.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return shared.MarshalJSON(out, true)
}

// FormatSyncLogs renders logs in format.
func FormatSyncLogs(logs []*models.SyncLog, format Format) ([]byte, error) {
	switch format {
	case FormatTable:
		return SyncLogsToTable(logs), nil
	case FormatCSV:
		return SyncLogsToCSV(logs)
	case FormatJSON:
		return SyncLogsToJSON(logs)
	default:
		return nil, fmt.Errorf("%w: sync logs cannot be rendered as %q", shared.ErrInvalidArgument, format)
	}
}

// PlaylistExport is a stored playlist together with its tracks in position order.
type PlaylistExport struct {
	Playlist *models.Playlist
	Tracks   []*models.Track
}

// FormatDuration renders milliseconds as m:ss.
func FormatDuration(ms int) string {
	total := ms / 1000
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func visibility(public bool) string {
	if public {
		return "Public"
	}
	return "Private"
}

// ExportToCSV converts a playlist export to CSV with columns: Position, ID, Title, Artist, Album, Duration
func ExportToCSV(export *PlaylistExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "ID", "Title", "Artist", "Album", "Duration"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range export.Tracks {
		record := []string{
			strconv.Itoa(track.Position),
			track.ExternalID,
			track.Name,
			track.ArtistName,
			track.AlbumName,
			FormatDuration(track.DurationMs),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a playlist export to Markdown with an optional cover image
func ExportToMarkdown(export *PlaylistExport, imageFilename string) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", export.Playlist.Name)

	if imageFilename != "" {
		fmt.Fprintf(&buf, "![Cover](%s)\n\n", imageFilename)
	}

	if export.Playlist.Description != "" {
		fmt.Fprintf(&buf, "**Description**: %s\n\n", export.Playlist.Description)
	}

	fmt.Fprintf(&buf, "**Tracks**: %d\n", len(export.Tracks))
	fmt.Fprintf(&buf, "**Visibility**: %s\n", visibility(export.Playlist.IsPublic))
	if export.Playlist.LastSyncedAt != nil {
		fmt.Fprintf(&buf, "**Last synced**: %s\n", export.Playlist.LastSyncedAt.UTC().Format(time.RFC3339))
	}

	buf.WriteString("\n## Tracks\n\n")
	for i, track := range export.Tracks {
		albumPart := ""
		if track.AlbumName != "" {
			albumPart = fmt.Sprintf(" (%s)", track.AlbumName)
		}
		fmt.Fprintf(&buf, "%d. %s - %s%s [%s]\n", i+1, track.ArtistName, track.Name, albumPart, FormatDuration(track.DurationMs))
	}

	return buf.Bytes(), nil
}

// ExportToText converts a playlist export to plain text
func ExportToText(export *PlaylistExport) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", export.Playlist.Name)
	if export.Playlist.Description != "" {
		fmt.Fprintf(&buf, "Description: %s\n", export.Playlist.Description)
	}
	fmt.Fprintf(&buf, "Tracks: %d\n\n", len(export.Tracks))

	for i, track := range export.Tracks {
		fmt.Fprintf(&buf, "%d. %s - %s\n", i+1, track.ArtistName, track.Name)
	}

	return buf.Bytes(), nil
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
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

// WritePlaylistExport writes export under dir in format and returns the files created.
//
// Markdown exports get their own directory named after the playlist's upstream id, holding README.md
// and, when the cover downloads, cover.jpg. CSV and text exports are single files.
func WritePlaylistExport(export *PlaylistExport, dir string, format Format) ([]string, error) {
	if dir == "" {
		dir = "."
	}
	base := filepath.Join(dir, export.Playlist.ExternalID)

	switch format {
	case FormatCSV:
		data, err := ExportToCSV(export)
		if err != nil {
			return nil, fmt.Errorf("failed to generate CSV: %w", err)
		}
		return writeFiles(map[string][]byte{base + "_tracks.csv": data})
	case FormatText:
		data, err := ExportToText(export)
		if err != nil {
			return nil, fmt.Errorf("failed to generate text: %w", err)
		}
		return writeFiles(map[string][]byte{base + "_tracks.txt": data})
	case FormatMarkdown:
		return writeMarkdownExport(export, base)
	default:
		return nil, fmt.Errorf("%w: playlists cannot be exported as %q", shared.ErrInvalidArgument, format)
	}
}

func writeMarkdownExport(export *PlaylistExport, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	var files []string
	coverFilename := ""
	if export.Playlist.CoverURL != "" {
		imageData, err := DownloadImage(export.Playlist.CoverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to download cover image: %v\n", err)
		} else {
			coverPath := filepath.Join(dir, "cover.jpg")
			if err := os.WriteFile(coverPath, imageData, 0644); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to save cover image: %v\n", err)
			} else {
				coverFilename = "cover.jpg"
				files = append(files, coverPath)
			}
		}
	}

	mdData, err := ExportToMarkdown(export, coverFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(dir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}
	return append(files, mdFile), nil
}

func writeFiles(files map[string][]byte) ([]string, error) {
	var written []string
	for path, data := range files {
		if err := os.WriteFile(path, data, 0644); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}
