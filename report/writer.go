package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/gocarina/gocsv"
	"github.com/rodaine/table"
)

const (
	FormatText  = "text"
	FormatTable = "table"
	FormatCSV   = "csv"
	FormatJSON  = "json"
)

// Formats lists every report format Write understands.
var Formats = []string{FormatText, FormatTable, FormatCSV, FormatJSON}

// Write renders s to w in the named format.
func Write(w io.Writer, format string, s *Snapshot) error {
	switch format {
	case "", FormatText:
		return WriteText(w, s)
	case FormatTable:
		return WriteTable(w, s)
	case FormatCSV:
		return WriteCSV(w, s)
	case FormatJSON:
		return WriteJSON(w, s)
	}
	return fmt.Errorf("unknown report format %q", format)
}

// WriteText renders the plain report: counters, then one block per broken link.
func WriteText(w io.Writer, s *Snapshot) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "Scan Completed")
	fmt.Fprintln(bw, "--------------")
	fmt.Fprintf(bw, "Number of scanned links: %d\n", s.Scanned)
	fmt.Fprintf(bw, "Number of successful links: %d\n", s.Successful)
	fmt.Fprintf(bw, "Number of broken links: %d\n", s.Erred)
	fmt.Fprintf(bw, "Number of files found: %d\n", s.FilesFound)
	fmt.Fprintln(bw, strings.Repeat("-", 38))

	if s.Erred > 0 {
		fmt.Fprintln(bw, "Broken Links:")
		fmt.Fprintln(bw, "-------------")
	}

	for _, link := range s.Broken {
		fmt.Fprintln(bw, link.URL)
		fmt.Fprintf(bw, "Status: %s\n", link.Status)
		fmt.Fprintf(bw, "Appeared in %d pages\n", link.Count)
		fmt.Fprintln(bw, "Can be found in the following pages:")
		for _, page := range link.FoundAt {
			fmt.Fprintln(bw, page)
		}
		fmt.Fprintln(bw, strings.Repeat("-", len(link.URL)))
	}

	fmt.Fprintln(bw, "END REPORT")
	return bw.Flush()
}

// WriteTable renders a summary followed by a table of broken links. Status cells are
// coloured when w is a terminal.
func WriteTable(w io.Writer, s *Snapshot) error {
	renderer := lipgloss.NewRenderer(w)
	header := renderer.NewStyle().Bold(true)

	fmt.Fprintln(w, header.Render("Scan Completed")+" "+s.RunID)
	fmt.Fprintf(w, "scanned %d, successful %d, broken %d, files %d\n\n", s.Scanned, s.Successful, s.Erred, s.FilesFound)

	tbl := table.New("URL", "Status", "Count", "Found At").
		WithWriter(w).
		WithHeaderFormatter(func(format string, vals ...interface{}) string {
			return header.Render(fmt.Sprintf(format, vals...))
		}).
		WithWidthFunc(lipgloss.Width)

	for _, link := range s.Broken {
		status := statusStyle(renderer, link.Status).Render(link.Status)
		if len(link.FoundAt) == 0 {
			tbl.AddRow(link.URL, status, link.Count, "")
			continue
		}
		for i, page := range link.FoundAt {
			if i == 0 {
				tbl.AddRow(link.URL, status, link.Count, page)
			} else {
				tbl.AddRow("", "", "", page)
			}
		}
	}
	tbl.Print()
	return nil
}

func statusStyle(r *lipgloss.Renderer, status string) lipgloss.Style {
	style := r.NewStyle()
	fields := strings.Fields(status)
	if len(fields) < 2 {
		return style.Foreground(lipgloss.Color("1"))
	}
	code, err := strconv.Atoi(fields[1])
	if err != nil {
		return style.Foreground(lipgloss.Color("1"))
	}
	switch {
	case code >= 200 && code < 300:
		return style.Foreground(lipgloss.Color("2"))
	case code >= 300 && code < 400:
		return style.Foreground(lipgloss.Color("3"))
	case code >= 400 && code < 500:
		return style.Foreground(lipgloss.Color("5"))
	default:
		return style.Foreground(lipgloss.Color("1"))
	}
}

type brokenRow struct {
	URL     string `csv:"url"`
	Status  string `csv:"status"`
	Count   int    `csv:"count"`
	FoundAt string `csv:"found_at"`
}

// WriteCSV writes one row per broken link with referrers joined by a space.
func WriteCSV(w io.Writer, s *Snapshot) error {
	rows := make([]brokenRow, 0, len(s.Broken))
	for _, link := range s.Broken {
		rows = append(rows, brokenRow{
			URL:     link.URL,
			Status:  link.Status,
			Count:   link.Count,
			FoundAt: strings.Join(link.FoundAt, " "),
		})
	}
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

func WriteJSON(w io.Writer, s *Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// WriteLines writes one entry per line.
func WriteLines(w io.Writer, lines []string) error {
	bw := bufio.NewWriter(w)
	for _, line := range lines {
		if _, err := fmt.Fprintln(bw, line); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// BrokenURLs returns the ledger URLs in order.
func (s *Snapshot) BrokenURLs() []string {
	urls := make([]string, len(s.Broken))
	for i, link := range s.Broken {
		urls[i] = link.URL
	}
	return urls
}
