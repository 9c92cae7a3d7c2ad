package ffmpegdecoder

// idctNames maps the index IDCT selector to ffmpeg's -idct option values.
var idctNames = map[int]string{
	0:   "auto",
	1:   "int",
	2:   "simple",
	3:   "simplemmx",
	14:  "xvid",
	20:  "faan",
	128: "simpleauto",
}

func idctName(sel int) string {
	if name, ok := idctNames[sel]; ok {
		return name
	}
	return "auto"
}
