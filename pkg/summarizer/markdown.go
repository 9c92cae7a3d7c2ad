package summarizer

import (
	"fmt"
	"strings"
	"time"

	"github.com/ideamans/go-l10n"
)

// MarkdownFormatter formats a Summary as a Markdown document.
type MarkdownFormatter struct{}

// NewMarkdownFormatter creates a new MarkdownFormatter.
func NewMarkdownFormatter() *MarkdownFormatter {
	return &MarkdownFormatter{}
}

// Format implements Formatter.
func (f *MarkdownFormatter) Format(s *Summary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", l10n.T("Verification Summary"))
	fmt.Fprintf(&b, "- %s: %s\n", l10n.T("Generated"), s.GeneratedAt.Format(time.RFC3339))
	if s.Index != "" {
		fmt.Fprintf(&b, "- %s: `%s`\n", l10n.T("Index"), s.Index)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "## %s\n\n", l10n.T("Stream"))
	writeTable(&b, [][2]string{
		{l10n.T("Stream Type"), s.Stream.StreamType},
		{l10n.T("Codec"), s.Stream.Codec},
		{"IDCT", fmt.Sprintf("%d", s.Stream.IDCT)},
		{l10n.T("Backend"), s.Stream.Backend},
		{l10n.T("Frame Count"), fmt.Sprintf("%d", s.Stream.Frames)},
		{l10n.T("GOP Count"), fmt.Sprintf("%d (%s)", s.Stream.GOPs, l10n.F("%d closed", s.Stream.ClosedGOPs))},
		{l10n.T("Total Size"), FormatBytes(s.Stream.TotalSize())},
	})

	if len(s.Stream.Files) > 0 {
		fmt.Fprintf(&b, "## %s\n\n", l10n.T("Files"))
		fmt.Fprintf(&b, "| # | %s | %s |\n|---|---|---|\n", l10n.T("Path"), l10n.T("Size"))
		for i, file := range s.Stream.Files {
			fmt.Fprintf(&b, "| %d | `%s` | %s |\n", i, file.Path, FormatBytes(file.Size))
		}
		b.WriteString("\n")
	}

	if s.Picture.Width > 0 {
		fmt.Fprintf(&b, "## %s\n\n", l10n.T("Picture"))
		writeTable(&b, [][2]string{
			{l10n.T("Size"), fmt.Sprintf("%dx%d", s.Picture.Width, s.Picture.Height)},
			{"SAR", s.Picture.SAR},
			{l10n.T("Pixel Format"), s.Picture.Format},
		})
	}

	fmt.Fprintf(&b, "## %s\n\n", l10n.T("Results"))
	if s.Decode.Skipped {
		fmt.Fprintf(&b, "%s\n", l10n.T("Decoding was skipped."))
		return b.String()
	}
	writeTable(&b, [][2]string{
		{l10n.T("Step"), fmt.Sprintf("%d", s.Decode.Step)},
		{l10n.T("Decoded Frames"), fmt.Sprintf("%d", s.Decode.Decoded)},
		{l10n.T("Seeks"), fmt.Sprintf("%d", s.Decode.Reseeks)},
		{l10n.T("Total Duration"), s.Decode.Duration.Round(time.Millisecond).String()},
		{l10n.T("Decode Rate"), fmt.Sprintf("%.1f fps", s.Decode.FramesPerSecond())},
	})
	return b.String()
}

func writeTable(b *strings.Builder, rows [][2]string) {
	fmt.Fprintf(b, "| %s | %s |\n|---|---|\n", l10n.T("Item"), l10n.T("Value"))
	for _, r := range rows {
		fmt.Fprintf(b, "| %s | %s |\n", r[0], r[1])
	}
	b.WriteString("\n")
}

// FormatBytes formats a byte count with binary units.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
