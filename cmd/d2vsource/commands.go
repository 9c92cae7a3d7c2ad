package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ideamans/go-l10n"
	"github.com/urfave/cli/v2"

	"github.com/jsaowji/d2vsource/pkg/adapters/codecdetect"
	"github.com/jsaowji/d2vsource/pkg/adapters/filesink"
	"github.com/jsaowji/d2vsource/pkg/adapters/ggrenderer"
	"github.com/jsaowji/d2vsource/pkg/adapters/imagesink"
	"github.com/jsaowji/d2vsource/pkg/adapters/nullsink"
	"github.com/jsaowji/d2vsource/pkg/config"
	"github.com/jsaowji/d2vsource/pkg/ports"
	"github.com/jsaowji/d2vsource/pkg/server"
	"github.com/jsaowji/d2vsource/pkg/session"
	"github.com/jsaowji/d2vsource/pkg/summarizer"
)

func infoCommand() *cli.Command {
	return &cli.Command{
		Name:      "info",
		Usage:     l10n.T("Show stream information"),
		ArgsUsage: "INDEX",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: l10n.T("Print as JSON")},
			&cli.BoolFlag{Name: "no-probe", Usage: l10n.T("Do not decode the first frame to find the picture size")},
		},
		Action: runInfo,
	}
}

func runInfo(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	sess, err := e.openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	if !c.Bool("no-probe") && e.idx.NumFrames() > 0 {
		if err := sess.DecodeFrame(0, nullsink.New()); err != nil {
			return err
		}
	}
	info := server.NewInfoResponse(sess.Info())

	w := c.App.Writer
	if c.Bool("json") {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	fmt.Fprintln(w, l10n.F("Frames: %d", info.Frames))
	fmt.Fprintln(w, l10n.F("GOPs: %d", info.GOPs))
	fmt.Fprintln(w, l10n.F("Stream type: %s", info.StreamType))
	fmt.Fprintln(w, l10n.F("Codec: %s (IDCT %d)", info.Codec, info.IDCT))
	fmt.Fprintln(w, l10n.F("Backend: %s", info.Backend))
	if info.Width > 0 {
		fmt.Fprintln(w, l10n.F("Size: %dx%d (SAR %s)", info.Width, info.Height, info.SAR))
		fmt.Fprintln(w, l10n.F("Format: %s", info.Format))
	}
	for i, f := range info.Files {
		fmt.Fprintf(w, "  [%d] %s\n", i, f)
	}
	return nil
}

func frameCommand() *cli.Command {
	return &cli.Command{
		Name:      "frame",
		Usage:     l10n.T("Export frames as images"),
		ArgsUsage: "INDEX FRAME",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: l10n.T("Output directory")},
			&cli.IntFlag{Name: "count", Aliases: []string{"n"}, Value: 1, Usage: l10n.T("Number of consecutive frames")},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: l10n.T("Image format (png, jpeg)")},
			&cli.IntFlag{Name: "quality", Usage: l10n.T("JPEG quality (1-100)")},
			&cli.BoolFlag{Name: "info-json", Usage: l10n.T("Also write info.json")},
		},
		Action: runFrame,
	}
}

func runFrame(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	first, err := frameArg(c, 1)
	if err != nil {
		return err
	}
	count := c.Int("count")
	if count <= 0 {
		return errors.New(l10n.T("count must be positive"))
	}

	export := e.cfg.Export
	if c.IsSet("output") {
		export.OutputDir = c.String("output")
	}
	if c.IsSet("format") {
		export.Format = c.String("format")
	}
	if c.IsSet("quality") {
		export.Quality = c.Int("quality")
	}

	sess, err := e.openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	sink := filesink.New(export.OutputDir, e.fs, ggrenderer.New(), ports.ParseImageFormat(export.Format), export.Quality)
	for n := first; n < first+count; n++ {
		if err := sess.DecodeFrame(n, sink); err != nil {
			return err
		}
	}

	if c.Bool("info-json") {
		data, err := json.MarshalIndent(server.NewInfoResponse(sess.Info()), "", "  ")
		if err != nil {
			return err
		}
		if err := sink.SaveInfoJSON(data); err != nil {
			return err
		}
	}

	for _, p := range sink.Saved() {
		e.log.Info("Saved %s", p)
	}
	return nil
}

func sheetCommand() *cli.Command {
	return &cli.Command{
		Name:      "sheet",
		Usage:     l10n.T("Render a contact sheet of evenly spaced frames"),
		ArgsUsage: "INDEX",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Required: true, Usage: l10n.T("Output image path (required)")},
			&cli.IntFlag{Name: "count", Aliases: []string{"n"}, Usage: l10n.T("Number of frames")},
			&cli.IntFlag{Name: "columns", Usage: l10n.T("Number of columns")},
			&cli.IntFlag{Name: "tile-width", Usage: l10n.T("Tile width in pixels")},
			&cli.StringFlag{Name: "background", Usage: l10n.T("Background color (hex, e.g., #1a1a2e)")},
			&cli.IntFlag{Name: "quality", Usage: l10n.T("JPEG quality (1-100)")},
		},
		Action: runSheet,
	}
}

// sheetFrames picks count frames spread evenly over total, starting at 0.
func sheetFrames(total, count int) []int {
	if total <= 0 || count <= 0 {
		return nil
	}
	if count > total {
		count = total
	}
	frames := make([]int, count)
	for i := range frames {
		frames[i] = i * total / count
	}
	return frames
}

func runSheet(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	sheet := e.cfg.Sheet
	if c.IsSet("count") {
		sheet.Count = c.Int("count")
	}
	if c.IsSet("columns") {
		sheet.Columns = c.Int("columns")
	}
	if c.IsSet("tile-width") {
		sheet.TileWidth = c.Int("tile-width")
	}
	if c.IsSet("background") {
		sheet.Background = c.String("background")
	}
	quality := e.cfg.Export.Quality
	if c.IsSet("quality") {
		quality = c.Int("quality")
	}

	frames := sheetFrames(e.idx.NumFrames(), sheet.Count)
	if len(frames) == 0 {
		return errors.New(l10n.T("nothing to render"))
	}

	sess, err := e.openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	e.log.Info("Rendering %d frames in %d columns", len(frames), sheet.Columns)
	tiles := make([]ports.Tile, 0, len(frames))
	sink := imagesink.New()
	sink.OnFrame = func(f imagesink.Frame) error {
		tiles = append(tiles, ports.Tile{Image: f.Image, Label: fmt.Sprintf("#%d", f.Meta.Frame)})
		return nil
	}
	for _, n := range frames {
		if err := sess.DecodeFrame(n, sink); err != nil {
			return err
		}
	}

	renderer := ggrenderer.New()
	img, err := renderer.ContactSheet(tiles, sheet.Columns, sheet.TileWidth, config.ParseColor(sheet.Background))
	if err != nil {
		return err
	}
	output := c.String("output")
	data, err := renderer.EncodeImage(img, ports.ParseImageFormat(filepath.Ext(output)), quality)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(output); dir != "." {
		if err := e.fs.MkdirAll(dir); err != nil {
			return err
		}
	}
	if err := e.fs.WriteFile(output, data); err != nil {
		return err
	}
	e.log.Info("Output saved to %s", output)
	return nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:      "serve",
		Usage:     l10n.T("Serve frames over HTTP"),
		ArgsUsage: "INDEX",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "listen", Usage: l10n.T("Listen address (e.g., 127.0.0.1:8080)")},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: l10n.T("Default image format (png, jpeg)")},
			&cli.IntFlag{Name: "max-stream-frames", Usage: l10n.T("Frame limit per websocket stream (0 = unlimited)")},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	srvCfg := e.cfg.Server
	if c.IsSet("listen") {
		srvCfg.Listen = c.String("listen")
	}
	if c.IsSet("format") {
		srvCfg.Format = c.String("format")
	}

	frames := server.New(e.idx, server.Deps{
		FS:       e.fs,
		Backends: e.backends,
		Renderer: ggrenderer.New(),
		Logger:   e.log,
	}, server.Options{
		Format:          ports.ParseImageFormat(srvCfg.Format),
		Quality:         srvCfg.Quality,
		MaxStreamFrames: c.Int("max-stream-frames"),
		Session:         e.cfg.ToSessionOptions(),
	})
	defer frames.Close()

	httpServer := &http.Server{
		Addr:              srvCfg.Listen,
		Handler:           frames.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		e.log.Info("Serving %d frames on http://%s", e.idx.NumFrames(), srvCfg.Listen)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		e.log.Warn("Interrupted, shutting down...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	frames.Close()
	return httpServer.Shutdown(shutdownCtx)
}

func verifyCommand() *cli.Command {
	return &cli.Command{
		Name:      "verify",
		Usage:     l10n.T("Check the index against the media files and decode every frame"),
		ArgsUsage: "INDEX",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "detect-only", Usage: l10n.T("Only compare the stream layout, do not decode")},
			&cli.IntFlag{Name: "step", Value: 1, Usage: l10n.T("Decode every n-th frame")},
			&cli.StringFlag{Name: "summary", Usage: l10n.T("Output verification summary to file (Markdown format)")},
		},
		Action: runVerify,
	}
}

// checkDetected compares the sniffed layout of the first file with the index.
func checkDetected(res codecdetect.Result, st ports.StreamType, codec ports.CodecVariant) error {
	if res.StreamType != st {
		return fmt.Errorf("%s: %s != %s", l10n.T("stream type mismatch"), res.StreamType, st)
	}
	if res.Codec != 0 && res.Codec != codec {
		return fmt.Errorf("%s: %s != %s", l10n.T("codec mismatch"), res.Codec, codec)
	}
	return nil
}

func runVerify(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	if len(e.idx.Files) == 0 {
		return errors.New(l10n.T("index lists no files"))
	}

	codec, err := e.idx.Codec()
	if err != nil {
		return err
	}
	res, err := codecdetect.DetectFromFile(e.idx.Files[0])
	if err != nil {
		return err
	}
	if err := checkDetected(res, e.idx.StreamType, codec); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, l10n.F("Layout matches: %s %s", e.idx.StreamType, codec))

	step := c.Int("step")
	if step <= 0 {
		return errors.New(l10n.T("step must be positive"))
	}

	sess, err := e.openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	decode := summarizer.DecodeInfo{Skipped: c.Bool("detect-only"), Step: step}
	if !decode.Skipped {
		sink := nullsink.New()
		start := time.Now()
		for n := 0; n < e.idx.NumFrames(); n += step {
			if err := sess.DecodeFrame(n, sink); err != nil {
				return err
			}
		}
		decode.Duration = time.Since(start)
		decode.Decoded = sink.Committed()
		decode.Reseeks = sess.Reseeks()
		fmt.Fprintln(c.App.Writer, l10n.F("Decoded %d frames with %d seeks in %s", decode.Decoded, decode.Reseeks, decode.Duration.Round(time.Millisecond)))
	}

	path := c.String("summary")
	if path == "" {
		return nil
	}
	summary := buildSummary(c.Args().First(), sess.Info(), e, decode)
	if err := summarizer.NewWriter(summarizer.NewMarkdownFormatter(), e.fs).Write(path, summary); err != nil {
		return err
	}
	e.log.Info("Summary saved to %s", path)
	return nil
}

// buildSummary collects the report of a verify run.
func buildSummary(indexPath string, info session.Info, e *env, decode summarizer.DecodeInfo) *summarizer.Summary {
	resp := server.NewInfoResponse(info)
	stream := summarizer.StreamInfo{
		StreamType: resp.StreamType,
		Codec:      resp.Codec,
		IDCT:       resp.IDCT,
		Backend:    resp.Backend,
		Frames:     resp.Frames,
		GOPs:       resp.GOPs,
	}
	for _, g := range e.idx.GOPs {
		if g.Closed {
			stream.ClosedGOPs++
		}
	}
	for _, f := range e.idx.Files {
		fi := summarizer.FileInfo{Path: f}
		if st, err := os.Stat(f); err == nil {
			fi.Size = st.Size()
		}
		stream.Files = append(stream.Files, fi)
	}

	if indexPath == "" {
		indexPath = e.cfg.Index
	}
	return summarizer.NewBuilder().
		WithIndex(indexPath).
		WithStream(stream).
		WithPicture(summarizer.PictureInfo{
			Width:  resp.Width,
			Height: resp.Height,
			SAR:    resp.SAR,
			Format: resp.Format,
		}).
		WithDecode(decode).
		Build()
}
