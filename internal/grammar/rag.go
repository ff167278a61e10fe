package grammar

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

const (
	progressSentinel = "PROGRESS:"
	answerSentinel   = "FINAL_ANSWER:"
)

var sentinelPattern = regexp.MustCompile(`^[A-Z][A-Z_]+:`)

// RAGStep is one PROGRESS: payload from the RAG worker.
type RAGStep struct {
	Step     string  `json:"step"`
	Message  string  `json:"message"`
	Progress float64 `json:"progress"`
	Details  any     `json:"details,omitempty"`
}

// RAGParser consumes the RAG worker's stdout line by line.
//
// Before FINAL_ANSWER: only PROGRESS: lines are interpreted and every other
// line is ignored. After it, every line is appended to the answer verbatim,
// including lines that look like sentinels.
type RAGParser struct {
	answering bool
	answer    []string
	sawFinal  bool
	plain     []string
}

// Feed processes one stdout line. It returns a step when the line carried a
// progress payload or switched the parser into answer mode.
func (p *RAGParser) Feed(line string) (RAGStep, bool) {
	line = strings.TrimRight(line, "\r\n")
	if p.answering {
		p.answer = append(p.answer, line)
		return RAGStep{}, false
	}
	switch {
	case strings.HasPrefix(line, progressSentinel):
		var step RAGStep
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, progressSentinel)), &step); err != nil {
			return RAGStep{}, false
		}
		step.Progress = clamp(step.Progress, 0, 100)
		return step, true
	case strings.HasPrefix(line, answerSentinel):
		p.answering = true
		p.sawFinal = true
		if rest := strings.TrimSpace(strings.TrimPrefix(line, answerSentinel)); rest != "" {
			p.answer = append(p.answer, rest)
		}
		return RAGStep{Step: "완료", Message: "✅ 답변 생성 완료", Progress: 100}, true
	case sentinelPattern.MatchString(line):
		return RAGStep{}, false
	default:
		p.plain = append(p.plain, line)
		return RAGStep{}, false
	}
}

// Answer returns the buffered answer. Without a FINAL_ANSWER: marker the
// worker ran without progress reporting and its plain output is the answer.
func (p *RAGParser) Answer() string {
	if p.sawFinal {
		return strings.Join(p.answer, "\n")
	}
	return strings.TrimSpace(strings.Join(p.plain, "\n"))
}

// Answered reports whether the FINAL_ANSWER: marker was seen.
func (p *RAGParser) Answered() bool {
	return p.sawFinal
}

// RAGChannel is one entry of "rag.py channels" output.
type RAGChannel struct {
	Name       string `json:"name"`
	VideoCount int    `json:"video_count"`
}

var ragChannelPattern = regexp.MustCompile(`^\s*\d+\.\s*(.+?)\s*\((\d+)개\s*영상\)`)

// ParseRAGChannels extracts "N. name (K개 영상)" lines, ignoring the rest.
func ParseRAGChannels(output string) []RAGChannel {
	var out []RAGChannel
	for _, line := range strings.Split(output, "\n") {
		m := ragChannelPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		count, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		out = append(out, RAGChannel{Name: strings.TrimSpace(m[1]), VideoCount: count})
	}
	return out
}
