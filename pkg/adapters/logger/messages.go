package logger

import "github.com/ideamans/go-l10n"

func init() {
	l10n.Register("ja", l10n.LexiconMap{
		// Command level messages (info)
		"Saved %s":                           "%s を保存しました",
		"Output saved to %s":                 "出力を %s に保存しました",
		"Rendering %d frames in %d columns":  "%d フレームを %d 列で描画中",
		"Serving %d frames on http://%s":     "%d フレームを http://%s で配信中",
		"Interrupted, shutting down...":      "中断されました。シャットダウン中...",
		"Using %s backend for %s":            "%s バックエンドで %s をデコードします",
		"Stream %s started at frame %d, %d frames": "ストリーム %s をフレーム %d から %d フレーム開始",
		"Stream %s ended after %d frames":    "ストリーム %s は %d フレームで終了しました",

		// File set
		"Opened %s (%d bytes)":       "%s を開きました (%d バイト)",
		"Repositioned to file %d at %d": "ファイル %d の %d へ移動しました",
		"Crossed into file %d":       "ファイル %d へ移りました",

		// Session
		"Opened %d files, %d frames, %s %s via %s":                 "%d ファイル, %d フレーム, %s %s を %s で開きました",
		"Seek to gop %d (file %d @ %d), %d pictures to skip":       "GOP %d (ファイル %d @ %d) へシーク, %d ピクチャをスキップ",
		"Resolved pixel format %s to %s":                           "ピクセル形式 %s を %s に対応付けました",
		"Frame %d failed: %v":                                      "フレーム %d の取得に失敗しました: %v",

		// Decoders
		"IDCT algorithm %d ignored by the pure Go decoder": "IDCT アルゴリズム %d は Go デコーダでは無視されます",
		"Starting %s %s":                   "%s %s を起動中",
		"Stream is %dx%d %s":               "ストリームは %dx%d %s です",
		"Input pipe closed: %v":            "入力パイプが閉じられました: %v",

		// Index cache
		"Index cache hit for %s":           "%s のインデックスをキャッシュから読み込みました",

		// Warnings
		"Unsupported seek mode %d":         "未対応のシークモード %d",
		"Closing demuxer failed: %v":       "デマルチプレクサを閉じられませんでした: %v",
		"Flush failed: %v":                 "フラッシュに失敗しました: %v",
		"Unknown IDCT algorithm %d, using auto": "不明な IDCT アルゴリズム %d のため auto を使用します",
		"Backend %s reports a pipeline delay of %d, open GOP correction uses it": "バックエンド %s のパイプライン遅延は %d です。オープン GOP の補正に使用します",
		"Ignoring cached index for %s: %v": "%s のキャッシュ済みインデックスを無視します: %v",
		"Caching index failed: %v":         "インデックスのキャッシュに失敗しました: %v",
		"Index cache unavailable: %v":      "インデックスキャッシュを利用できません: %v",
		"Upgrade failed: %v":               "WebSocket へのアップグレードに失敗しました: %v",
		"Stream %s: %v":                    "ストリーム %s: %v",
		"Summary saved to %s":              "サマリーを %s に保存しました",

		// Errors
		"Request failed: %v":               "リクエストに失敗しました: %v",
	})
}
