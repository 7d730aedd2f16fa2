// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/cv-ingest/internal/ingestion"
	"github.com/jonathan/cv-ingest/internal/pipeline"
	"github.com/jonathan/cv-ingest/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintExtraction outputs the text extraction decision.
func (p *Printer) PrintExtraction(res ingestion.ExtractionResult) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Source:     %s\n", res.Source))
	sb.WriteString(fmt.Sprintf("Characters: %d\n", res.Length))
	sb.WriteString(fmt.Sprintf("Pages:      %d\n", res.Pages))
	if res.Source == ingestion.SourceNative {
		sb.WriteString(fmt.Sprintf("Decision:   %s\n", ingestion.Classify(res.Length)))
	}
	if res.LowConfidence {
		sb.WriteString("Confidence: low\n")
	}

	if len(res.Warnings) > 0 {
		sb.WriteString("\nWarnings:\n")
		for _, w := range res.Warnings {
			sb.WriteString(fmt.Sprintf("  ⚠ %s\n", w))
		}
	}

	if preview := strings.TrimSpace(res.Text); preview != "" {
		sb.WriteString("\nPreview:\n")
		lines := strings.Split(preview, "\n")
		count := min(len(lines), maxItemsToShow)
		for _, line := range lines[:count] {
			sb.WriteString(fmt.Sprintf("  %s\n", strings.TrimSpace(line)))
		}
		if len(lines) > count {
			sb.WriteString(fmt.Sprintf("  ... and %d more lines\n", len(lines)-count))
		}
	}

	p.printBox("TEXT EXTRACTION", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintCVState outputs a human-readable summary of a normalized draft.
func (p *Printer) PrintCVState(state *types.CVState) {
	if state == nil {
		return
	}

	var sb strings.Builder
	info := state.PersonalInfo
	name := strings.TrimSpace(info.FirstName + " " + info.LastName)
	if name == "" {
		name = "(no name)"
	}
	sb.WriteString(fmt.Sprintf("Name:     %s\n", name))
	if info.Profession != "" {
		sb.WriteString(fmt.Sprintf("Headline: %s\n", info.Profession))
	}
	if info.Email != "" {
		sb.WriteString(fmt.Sprintf("Email:    %s\n", info.Email))
	}
	sb.WriteString("\n")

	if len(state.Experiences) > 0 {
		sb.WriteString(fmt.Sprintf("Experience (%d):\n", len(state.Experiences)))
		count := min(len(state.Experiences), maxItemsToShow)
		for _, exp := range state.Experiences[:count] {
			sb.WriteString(fmt.Sprintf("  • %s", orDash(exp.JobTitle)))
			if exp.Company != "" {
				sb.WriteString(fmt.Sprintf(" @ %s", exp.Company))
			}
			if span := dateSpan(exp.StartDate, exp.EndDate, exp.Current); span != "" {
				sb.WriteString(fmt.Sprintf(" (%s)", span))
			}
			sb.WriteString("\n")
		}
		if len(state.Experiences) > count {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(state.Experiences)-count))
		}
		sb.WriteString("\n")
	}

	if len(state.Education) > 0 {
		sb.WriteString(fmt.Sprintf("Education (%d):\n", len(state.Education)))
		count := min(len(state.Education), 3)
		for _, edu := range state.Education[:count] {
			sb.WriteString(fmt.Sprintf("  • %s", orDash(edu.School)))
			if edu.Degree != "" {
				sb.WriteString(fmt.Sprintf(", %s", edu.Degree))
			}
			sb.WriteString("\n")
		}
		if len(state.Education) > count {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(state.Education)-count))
		}
		sb.WriteString("\n")
	}

	if len(state.Skills) > 0 {
		sb.WriteString(fmt.Sprintf("Skills (%d): %s\n", len(state.Skills), strings.Join(state.Skills, ", ")))
	}
	if len(state.Languages) > 0 {
		langs := make([]string, 0, len(state.Languages))
		for _, l := range state.Languages {
			if l.Level != "" {
				langs = append(langs, fmt.Sprintf("%s (%s)", l.Language, l.Level))
			} else {
				langs = append(langs, l.Language)
			}
		}
		sb.WriteString(fmt.Sprintf("Languages: %s\n", strings.Join(langs, ", ")))
	}

	p.printBox("NORMALIZED CV DRAFT", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintProgress outputs one progress line
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintProgress(event pipeline.ProgressEvent) {
	switch {
	case event.State == pipeline.StateError:
		fmt.Fprintf(p.out, "✗ %s\n", event.Message)
	case event.Kind != "":
		fmt.Fprintf(p.out, "  ⚠ [%s] %s\n", event.Kind, event.Message)
	case event.Step == "":
		fmt.Fprintf(p.out, "→ %s\n", event.Message)
	default:
		fmt.Fprintf(p.out, "  %s\n", event.Message)
	}
}

// PrintFailure outputs the kind, phase and cause chain of a failed run.
func (p *Printer) PrintFailure(err error) {
	if err == nil {
		return
	}

	var sb strings.Builder
	var pe *pipeline.Error
	if errors.As(err, &pe) {
		sb.WriteString(fmt.Sprintf("Kind:  %s\n", pe.Kind))
		sb.WriteString(fmt.Sprintf("Phase: %s\n", pe.Phase))
		sb.WriteString(fmt.Sprintf("\n%s\n", pe.Message))
		for cause := pe.Cause; cause != nil; cause = errors.Unwrap(cause) {
			sb.WriteString(fmt.Sprintf("  caused by: %v\n", cause))
		}
	} else {
		sb.WriteString(err.Error())
	}

	p.printBox("INGESTION FAILED", strings.TrimSuffix(sb.String(), "\n"))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func dateSpan(start, end string, current bool) string {
	if current {
		end = "present"
	}
	switch {
	case start != "" && end != "":
		return start + " - " + end
	case start != "":
		return start
	default:
		return end
	}
}
