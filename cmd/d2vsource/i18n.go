// Package main provides localization for the d2vsource CLI.
package main

import (
	"github.com/ideamans/go-l10n"
)

func init() {
	// Register Japanese translations for CLI messages.
	l10n.Register("ja", l10n.LexiconMap{
		// Flag categories
		"Configuration": "設定",
		"Decoding":      "デコード",
		"Index cache":   "インデックスキャッシュ",
		"Logging":       "ログ",

		// Root command
		"Frame accurate access to indexed MPEG-1/2 streams": "インデックス付き MPEG-1/2 ストリームへのフレーム単位アクセス",
		"d2vsource decodes arbitrary frames of MPEG-1/2 streams split over several files, using an index of GOP positions.": "d2vsourceはGOP位置のインデックスを使い、複数ファイルに分割されたMPEG-1/2ストリームの任意のフレームをデコードします。",

		// Global flags
		"YAML configuration file":                 "YAML設定ファイル",
		"Decode backend (auto, mpeg, ffmpeg)":     "デコードバックエンド（auto, mpeg, ffmpeg）",
		"Path to ffmpeg executable (falls back to FFMPEG_PATH env, then PATH)": "ffmpeg実行ファイルのパス（未指定時はFFMPEG_PATH環境変数、次にPATH）",
		"Read buffer size in bytes between the files and the demuxer":          "ファイルとデマルチプレクサ間の読み込みバッファサイズ（バイト）",
		"Cache parsed indexes":                    "解析済みインデックスをキャッシュ",
		"Index cache database file":               "インデックスキャッシュのデータベースファイル",
		"Log level (debug, info, warn, error)":    "ログレベル（debug, info, warn, error）",
		"Suppress all log output":                 "全てのログ出力を抑制",

		// Info command
		"Show stream information":                                "ストリーム情報を表示",
		"Print as JSON":                                          "JSON形式で出力",
		"Do not decode the first frame to find the picture size": "画像サイズ取得のための先頭フレームのデコードを行わない",
		"Frames: %d":             "フレーム数: %d",
		"GOPs: %d":               "GOP数: %d",
		"Stream type: %s":        "ストリーム形式: %s",
		"Codec: %s (IDCT %d)":    "コーデック: %s (IDCT %d)",
		"Backend: %s":            "バックエンド: %s",
		"Size: %dx%d (SAR %s)":   "サイズ: %dx%d (SAR %s)",
		"Format: %s":             "ピクセル形式: %s",

		// Frame command
		"Export frames as images":      "フレームを画像として書き出し",
		"Output directory":             "出力ディレクトリ",
		"Number of consecutive frames": "連続するフレーム数",
		"Image format (png, jpeg)":     "画像形式（png, jpeg）",
		"JPEG quality (1-100)":         "JPEG品質（1-100）",
		"Also write info.json":         "info.jsonも書き出す",

		// Sheet command
		"Render a contact sheet of evenly spaced frames": "等間隔のフレームでコンタクトシートを作成",
		"Output image path (required)":                   "出力画像パス（必須）",
		"Number of frames":                               "フレーム数",
		"Number of columns":                              "カラム数",
		"Tile width in pixels":                           "タイルの幅（ピクセル）",
		"Background color (hex, e.g., #1a1a2e)":          "背景色（16進数、例: #1a1a2e）",

		// Serve command
		"Serve frames over HTTP":                           "HTTPでフレームを配信",
		"Listen address (e.g., 127.0.0.1:8080)":            "待ち受けアドレス（例: 127.0.0.1:8080）",
		"Default image format (png, jpeg)":                 "既定の画像形式（png, jpeg）",
		"Frame limit per websocket stream (0 = unlimited)": "WebSocketストリームごとのフレーム上限（0 = 無制限）",

		// Verify command
		"Check the index against the media files and decode every frame": "インデックスとメディアファイルを照合し全フレームをデコード",
		"Only compare the stream layout, do not decode":                  "ストリーム構成の比較のみ行いデコードしない",
		"Decode every n-th frame":                                        "nフレームごとにデコード",
		"Layout matches: %s %s":                                          "構成が一致しました: %s %s",
		"Decoded %d frames with %d seeks in %s":                          "%d フレームを %d 回のシークで %s でデコードしました",
		"Output verification summary to file (Markdown format)":          "検証サマリーをファイルに出力（Markdown形式）",

		// Summary content
		"Verification Summary":  "検証サマリー",
		"Generated":             "生成日時",
		"Index":                 "インデックス",
		"Stream":                "ストリーム",
		"Stream Type":           "ストリーム形式",
		"Codec":                 "コーデック",
		"Backend":               "バックエンド",
		"Frame Count":           "フレーム数",
		"GOP Count":             "GOP数",
		"%d closed":             "クローズド %d",
		"Total Size":            "合計サイズ",
		"Files":                 "ファイル",
		"Path":                  "パス",
		"Size":                  "サイズ",
		"Picture":               "ピクチャ",
		"Pixel Format":          "ピクセル形式",
		"Results":               "実行結果",
		"Decoding was skipped.": "デコードは省略されました。",
		"Step":                  "間隔",
		"Decoded Frames":        "デコードしたフレーム数",
		"Seeks":                 "シーク回数",
		"Total Duration":        "合計時間",
		"Decode Rate":           "デコード速度",
		"Item":                  "項目",
		"Value":                 "値",

		// Version command
		"Show version information": "バージョン情報を表示",
		"d2vsource version %s":     "d2vsource バージョン %s",

		// Error messages
		"Error: %s":                         "エラー: %s",
		"invalid log level":                 "不正なログレベル",
		"frame number argument is required": "フレーム番号の引数が必要です",
		"invalid frame number":              "不正なフレーム番号",
		"count must be positive":            "countは正の値である必要があります",
		"step must be positive":             "stepは正の値である必要があります",
		"nothing to render":                 "描画するフレームがありません",
		"index lists no files":              "インデックスにファイルがありません",
		"stream type mismatch":              "ストリーム形式が一致しません",
		"codec mismatch":                    "コーデックが一致しません",
	})
}
