package cli

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/famomatic/ytfetch/client"
	"github.com/famomatic/ytfetch/internal/history"
)

func printReport(w io.Writer, r *client.Report) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	v := r.Video
	bold.Fprintln(w, v.Title)
	cyan.Fprintf(w, "%s", v.ID)
	if v.Author != "" {
		fmt.Fprintf(w, "  %s", v.Author)
	}
	if v.DurationSec > 0 {
		fmt.Fprintf(w, "  %s", time.Duration(v.DurationSec)*time.Second)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w)

	if best := r.Selection.Best; best != nil {
		bold.Fprint(w, "Best: ")
		green.Fprintf(w, "%d %s %s\n", best.Itag, client.Container(best.MimeType), firstNonEmpty(best.QualityLabel, best.Quality))
	} else {
		yellow.Fprintln(w, "No combined audio+video format available")
	}

	if len(r.Rows) == 0 {
		return
	}
	fmt.Fprintln(w)
	bestItag := 0
	if r.Selection.Best != nil {
		bestItag = r.Selection.Best.Itag
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, " \tITAG\tQUALITY\tCONTAINER\tSIZE\tRESOLUTION\tFPS")
	for _, row := range r.Rows {
		mark := " "
		if row.Itag == bestItag {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
			mark, row.Itag, row.Quality, row.Container, row.Size, orDash(row.Resolution), orDash(fpsText(row.FPS)))
	}
	tw.Flush()
	fmt.Fprintf(w, "\nShowing %d of %d combined formats\n", len(r.Rows), r.Selection.TotalCombinedCount)
}

func printHistory(w io.Writer, entries []history.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No history yet.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tKIND\tVIDEO\tITAG\tSTATUS\tDETAIL")
	for _, e := range entries {
		itag := "-"
		if e.Itag > 0 {
			itag = strconv.Itoa(e.Itag)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.CreatedAt.Local().Format(time.DateTime), e.Kind, e.VideoID, itag, e.Status, orDash(firstNonEmpty(e.Error, e.Title)))
	}
	tw.Flush()
}

func fpsText(fps int) string {
	if fps <= 0 {
		return ""
	}
	return strconv.Itoa(fps)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
