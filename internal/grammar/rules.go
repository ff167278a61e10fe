package grammar

import (
	"regexp"
	"strconv"
	"strings"
)

// WarningPrefix marks stderr lines forwarded to the UI.
const WarningPrefix = "⚠️ "

// SkippedLabel is the current-item label reported for already present files.
const SkippedLabel = "already downloaded"

// TranscodeCap bounds heuristic transcode progress until the worker exits.
const TranscodeCap = 95.0

var (
	discoveryPattern  = regexp.MustCompile(`총\s*(\d+)\s*개 영상을 발견했습니다`)
	completionPattern = regexp.MustCompile(`다운로드 완료:\s*(\d+)\s*개 성공`)
	downloadPattern   = regexp.MustCompile(`\[download\]\s+(\d+(?:\.\d+)?)%`)
	itemPattern       = regexp.MustCompile(`^\[youtube\]\s+([A-Za-z0-9_-]+):\s*(.+)$`)
	timePattern       = regexp.MustCompile(`time=(\d{2}):(\d{2}):(\d{2})\.(\d+)`)
	framePattern      = regexp.MustCompile(`frame=\s*(\d+)`)
	embedItemPattern  = regexp.MustCompile(`^\s*(?:✅ 처리됨|⏭️\s*스킵됨):\s*(.+?)(?:\s*\(이미 임베딩됨\))?\s*$`)
	embedDonePattern  = regexp.MustCompile(`완료:\s*(\d+)\s*개 새로 임베딩`)
	channelPattern    = regexp.MustCompile(`^\s*📺 채널:\s*(.+?)\s*$`)
)

// yt-dlp status lines share the "[youtube] ID:" shape with the title line.
var ytdlpChatter = []string{
	"Downloading ",
	"Extracting ",
	"Writing ",
	"Checking ",
}

var errorTokens = []string{"ERROR", "CRITICAL", "Failed", "Exception"}

// Discovery sets the number of items the worker found.
func Discovery() Rule {
	return Rule{Name: "discovery", Category: CategoryDiscovery, Match: captureInt(discoveryPattern, func(n int) Delta {
		return Delta{TotalSeen: intPtr(n)}
	})}
}

// Completion sets the number of items the worker finished.
func Completion() Rule {
	return Rule{Name: "completion", Category: CategoryCompletion, Match: captureInt(completionPattern, func(n int) Delta {
		return Delta{TotalCompleted: intPtr(n)}
	})}
}

// DownloadRate reads yt-dlp "[download] P%" lines.
func DownloadRate() Rule {
	return Rule{Name: "download-rate", Category: CategoryRate, Match: func(l Line) (Delta, bool) {
		m := downloadPattern.FindStringSubmatch(l.Text)
		if m == nil {
			return Delta{}, false
		}
		p, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return Delta{}, false
		}
		return Delta{ItemProgress: floatPtr(p)}, true
	}}
}

// CurrentVideo reads "[youtube] ID: TITLE" lines.
func CurrentVideo() Rule {
	return Rule{Name: "current-video", Category: CategoryItem, Match: func(l Line) (Delta, bool) {
		m := itemPattern.FindStringSubmatch(strings.TrimSpace(l.Text))
		if m == nil {
			return Delta{}, false
		}
		title := strings.TrimSpace(m[2])
		for _, prefix := range ytdlpChatter {
			if strings.HasPrefix(title, prefix) {
				return Delta{}, false
			}
		}
		return Delta{CurrentItem: stringPtr(title)}, true
	}}
}

// AlreadyDownloaded reports files yt-dlp skipped.
func AlreadyDownloaded() Rule {
	return Rule{Name: "already-downloaded", Category: CategorySkip, Match: func(l Line) (Delta, bool) {
		if !strings.Contains(l.Text, "has already been downloaded") {
			return Delta{}, false
		}
		return Delta{ItemProgress: floatPtr(100), CurrentItem: stringPtr(SkippedLabel)}, true
	}}
}

// TranscodeTime estimates progress from ffmpeg's elapsed time field.
func TranscodeTime() Rule {
	return Rule{Name: "transcode-time", Category: CategoryTranscode, Match: func(l Line) (Delta, bool) {
		m := timePattern.FindStringSubmatch(l.Text)
		if m == nil {
			return Delta{}, false
		}
		h, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		s, _ := strconv.Atoi(m[3])
		seconds := float64(h*3600 + mm*60 + s)
		return Delta{ItemProgress: floatPtr(min(TranscodeCap, seconds/10))}, true
	}}
}

// TranscodeFrame estimates progress from ffmpeg's frame counter.
func TranscodeFrame() Rule {
	return Rule{Name: "transcode-frame", Category: CategoryTranscode, Match: func(l Line) (Delta, bool) {
		m := framePattern.FindStringSubmatch(l.Text)
		if m == nil {
			return Delta{}, false
		}
		frames, err := strconv.Atoi(m[1])
		if err != nil {
			return Delta{}, false
		}
		return Delta{ItemProgress: floatPtr(min(TranscodeCap, float64(frames)/100))}, true
	}}
}

// StderrError flags stderr lines that look like failures. The job status
// only becomes failed when the process exits non-zero.
func StderrError() Rule {
	return Rule{Name: "stderr-error", Category: CategoryError, Match: func(l Line) (Delta, bool) {
		if l.Stream != Stderr {
			return Delta{}, false
		}
		for _, token := range errorTokens {
			if strings.Contains(l.Text, token) {
				return Delta{Warning: true}, true
			}
		}
		return Delta{}, false
	}}
}

// EmbeddedVideo reads the embedder's per-video processed/skipped lines.
func EmbeddedVideo() Rule {
	return Rule{Name: "embedded-video", Category: CategoryItem, Match: func(l Line) (Delta, bool) {
		m := embedItemPattern.FindStringSubmatch(l.Text)
		if m == nil {
			return Delta{}, false
		}
		return Delta{CurrentItem: stringPtr(m[1])}, true
	}}
}

// EmbeddingDone reads the embedder's summary line.
func EmbeddingDone() Rule {
	return Rule{Name: "embedding-done", Category: CategoryCompletion, Match: captureInt(embedDonePattern, func(n int) Delta {
		return Delta{TotalCompleted: intPtr(n)}
	})}
}

// CheckedChannel reads the integrity checker's channel headings.
func CheckedChannel() Rule {
	return Rule{Name: "checked-channel", Category: CategoryItem, Match: func(l Line) (Delta, bool) {
		m := channelPattern.FindStringSubmatch(l.Text)
		if m == nil {
			return Delta{}, false
		}
		return Delta{CurrentItem: stringPtr(m[1])}, true
	}}
}

func captureInt(re *regexp.Regexp, build func(int) Delta) func(Line) (Delta, bool) {
	return func(l Line) (Delta, bool) {
		m := re.FindStringSubmatch(l.Text)
		if m == nil {
			return Delta{}, false
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return Delta{}, false
		}
		return build(n), true
	}
}

// Download returns the rule table for the batch and ingest downloader.
func Download() *Grammar {
	return &Grammar{
		Name:         "download",
		StderrPrefix: WarningPrefix,
		Rules: []Rule{
			Discovery(),
			Completion(),
			DownloadRate(),
			CurrentVideo(),
			AlreadyDownloaded(),
			StderrError(),
		},
	}
}

// Embedding returns the rule table for embed.py.
func Embedding() *Grammar {
	return &Grammar{
		Name: "embedding",
		Rules: []Rule{
			EmbeddedVideo(),
			EmbeddingDone(),
			StderrError(),
		},
	}
}

// Integrity returns the rule table for integrity_check.py.
func Integrity() *Grammar {
	return &Grammar{
		Name:         "integrity",
		StderrPrefix: WarningPrefix,
		Rules: []Rule{
			CheckedChannel(),
			StderrError(),
		},
	}
}

// Convert returns the rule table for the transcoder.
func Convert() *Grammar {
	return &Grammar{
		Name: "convert",
		Rules: []Rule{
			TranscodeTime(),
			TranscodeFrame(),
			StderrError(),
		},
	}
}
