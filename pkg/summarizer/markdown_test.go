package summarizer

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ideamans/go-l10n"

	"github.com/jsaowji/d2vsource/pkg/mocks"
)

func testSummary() *Summary {
	return &Summary{
		GeneratedAt: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		Index:       "movie.yaml",
		Stream: StreamInfo{
			StreamType: "program",
			Codec:      "mpeg2video",
			IDCT:       20,
			Backend:    "ffmpeg",
			Frames:     100,
			GOPs:       8,
			ClosedGOPs: 1,
			Files:      []FileInfo{{Path: "VTS_01_1.VOB", Size: 1024 * 1024}},
		},
		Picture: PictureInfo{Width: 720, Height: 576, SAR: "16:15", Format: "YUV420P8"},
		Decode:  DecodeInfo{Step: 1, Decoded: 100, Reseeks: 1, Duration: 4 * time.Second},
	}
}

func TestMarkdownFormatter_Format(t *testing.T) {
	result := NewMarkdownFormatter().Format(testSummary())

	checks := []string{
		"# " + l10n.T("Verification Summary"),
		"2024-01-15T10:30:00Z",
		"`movie.yaml`",
		"| program |",
		"| mpeg2video |",
		"| IDCT | 20 |",
		"| ffmpeg |",
		"| 100 |",
		"8 (" + l10n.F("%d closed", 1) + ")",
		"`VTS_01_1.VOB` | 1.00 MB",
		"720x576",
		"16:15",
		"25.0 fps",
	}
	for _, check := range checks {
		if !strings.Contains(result, check) {
			t.Errorf("expected output to contain %q\n%s", check, result)
		}
	}
}

func TestMarkdownFormatter_Format_Skipped(t *testing.T) {
	s := testSummary()
	s.Picture = PictureInfo{}
	s.Decode = DecodeInfo{Skipped: true}

	result := NewMarkdownFormatter().Format(s)
	if !strings.Contains(result, l10n.T("Decoding was skipped.")) {
		t.Errorf("expected skipped note in\n%s", result)
	}
	if strings.Contains(result, "fps") {
		t.Errorf("skipped summary should not report a decode rate\n%s", result)
	}
	if strings.Contains(result, "## "+l10n.T("Picture")) {
		t.Errorf("picture section without a decoded frame\n%s", result)
	}
}

func TestFormatFunc(t *testing.T) {
	f := FormatFunc(func(s *Summary) string { return s.Index })
	if got := f.Format(testSummary()); got != "movie.yaml" {
		t.Errorf("Format() = %q", got)
	}
}

func TestWriter_Write(t *testing.T) {
	fs := mocks.NewFileSystem()
	w := NewWriter(FormatFunc(func(s *Summary) string { return "report " + s.Index }), fs)

	if err := w.Write("reports/verify.md", testSummary()); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	data, ok := fs.GetFile("reports/verify.md")
	if !ok || string(data) != "report movie.yaml" {
		t.Errorf("written content = %q", data)
	}
	if ok, _ := fs.Exists("reports"); !ok {
		t.Error("expected parent directory to be created")
	}
}

func TestWriter_Write_Error(t *testing.T) {
	fs := mocks.NewFileSystem()
	fs.WriteFileFunc = func(path string, data []byte) error { return errors.New("disk full") }

	if err := NewWriter(NewMarkdownFormatter(), fs).Write("verify.md", testSummary()); err == nil {
		t.Error("expected error")
	}
}
