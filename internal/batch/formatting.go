package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Report formats.
const (
	ReportText = "text"
	ReportJSON = "json"
	ReportCSV  = "csv"
)

type itemReport struct {
	File             string  `json:"file"`
	Mask             string  `json:"mask,omitempty"`
	Output           string  `json:"output,omitempty"`
	Status           string  `json:"status"`
	Error            string  `json:"error,omitempty"`
	Iterations       int     `json:"iterations,omitempty"`
	ForegroundPixels int     `json:"foreground_pixels,omitempty"`
	Coverage         float64 `json:"coverage,omitempty"`
	DurationMs       int64   `json:"duration_ms"`
}

func (it Item) report() itemReport {
	r := itemReport{
		File:       it.Path,
		Mask:       it.MaskPath,
		Output:     it.Output,
		Status:     "ok",
		DurationMs: it.Duration.Milliseconds(),
	}
	if it.Err != nil {
		r.Status = "error"
		r.Error = it.Err.Error()
	}
	if it.Summary != nil {
		r.Iterations = it.Summary.Iterations
		r.ForegroundPixels = it.Summary.ForegroundPixels
		r.Coverage = it.Summary.Coverage
	}
	return r
}

// FormatResults formats the batch processing results in the specified format.
func (r *Result) FormatResults(format string) (string, error) {
	switch format {
	case ReportJSON:
		return r.formatJSON()
	case ReportCSV:
		return r.formatCSV()
	case "", ReportText:
		return r.formatText(), nil
	default:
		return "", fmt.Errorf("unsupported report format: %s", format)
	}
}

// formatJSON formats results as JSON.
func (r *Result) formatJSON() (string, error) {
	out := struct {
		Images     []itemReport `json:"images"`
		Succeeded  int          `json:"succeeded"`
		Failed     int          `json:"failed"`
		DurationMs int64        `json:"duration_ms"`
	}{
		Images:     make([]itemReport, len(r.Items)),
		Succeeded:  r.Succeeded(),
		Failed:     r.Failed(),
		DurationMs: r.Duration.Milliseconds(),
	}
	for i, it := range r.Items {
		out.Images[i] = it.report()
	}
	bts, err := json.MarshalIndent(out, "", "  ")
	return string(bts), err
}

// formatCSV formats results as CSV.
func (r *Result) formatCSV() (string, error) {
	var output strings.Builder
	writer := csv.NewWriter(&output)
	if err := writer.Write([]string{
		"file", "mask", "output", "status", "iterations", "foreground_pixels", "coverage", "duration_ms", "error",
	}); err != nil {
		return "", err
	}
	for _, it := range r.Items {
		rep := it.report()
		if err := writer.Write([]string{
			rep.File,
			rep.Mask,
			rep.Output,
			rep.Status,
			strconv.Itoa(rep.Iterations),
			strconv.Itoa(rep.ForegroundPixels),
			fmt.Sprintf("%.4f", rep.Coverage),
			strconv.FormatInt(rep.DurationMs, 10),
			rep.Error,
		}); err != nil {
			return "", err
		}
	}
	writer.Flush()
	return output.String(), writer.Error()
}

// formatText formats results as one line per image.
func (r *Result) formatText() string {
	var output strings.Builder
	for _, it := range r.Items {
		if it.Err != nil {
			output.WriteString(fmt.Sprintf("FAIL %s: %v\n", it.Path, it.Err))
			continue
		}
		coverage := 0.0
		if it.Summary != nil {
			coverage = it.Summary.Coverage * 100
		}
		hint := "rect"
		if it.MaskPath != "" {
			hint = "mask"
		}
		output.WriteString(fmt.Sprintf("OK   %s -> %s (%s, %.1f%% foreground)\n", it.Path, it.Output, hint, coverage))
	}
	return output.String()
}

// SaveResults writes the formatted results to outputFile, or to w when
// outputFile is empty.
func (r *Result) SaveResults(w io.Writer, format, outputFile string) error {
	output, err := r.FormatResults(format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(output), 0o600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		return nil
	}
	_, err = fmt.Fprint(w, output)
	return err
}

// PrintStats prints processing statistics.
func (r *Result) PrintStats(w io.Writer) {
	_, _ = fmt.Fprintf(w, "\nProcessing Statistics:\n")
	_, _ = fmt.Fprintf(w, "  Total images: %d\n", len(r.Items))
	_, _ = fmt.Fprintf(w, "  Processed: %d\n", r.Succeeded())
	_, _ = fmt.Fprintf(w, "  Failed: %d\n", r.Failed())
	_, _ = fmt.Fprintf(w, "  Workers: %d\n", r.WorkerCount)
	_, _ = fmt.Fprintf(w, "  Duration: %v\n", r.Duration.Round(time.Millisecond))
	if n := len(r.Items); n > 0 {
		avg := r.Duration / time.Duration(n)
		_, _ = fmt.Fprintf(w, "  Avg per image: %v\n", avg.Round(time.Millisecond))
		if secs := r.Duration.Seconds(); secs > 0 {
			_, _ = fmt.Fprintf(w, "  Throughput: %.1f images/sec\n", float64(n)/secs)
		}
	}
}
