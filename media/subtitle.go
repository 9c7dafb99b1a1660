package media

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Cue is one subtitle entry with its display window.
type Cue struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

var (
	srtTimeRe    = regexp.MustCompile(`(\d{2}):(\d{2}):(\d{2})[,.](\d{3})`)
	cueTimingRe  = regexp.MustCompile(`[\d:,.]+\s*-->\s*[\d:,.]+`)
	markupTagRe  = regexp.MustCompile(`<[^>]*>`)
	vttCueMetaRe = regexp.MustCompile(`^(NOTE|STYLE|REGION)\b`)
)

// ParseSRT reads SubRip text into cues. Cue numbering is ignored; it
// is regenerated on output.
func ParseSRT(content string) []Cue {
	return parseCues(content, false)
}

// ParseVTT reads WebVTT text into cues, skipping the header and any
// NOTE/STYLE/REGION blocks.
func ParseVTT(content string) []Cue {
	return parseCues(content, true)
}

func parseCues(content string, vtt bool) []Cue {
	var cues []Cue

	blocks := strings.Split(normalizeNewlines(content), "\n\n")
	for _, block := range blocks {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) == 0 {
			continue
		}
		if vtt && (strings.HasPrefix(lines[0], "WEBVTT") || vttCueMetaRe.MatchString(lines[0])) {
			continue
		}

		// Find the timing line; anything before it is a cue number or
		// identifier, anything after is text.
		timingIdx := -1
		for i, line := range lines {
			if cueTimingRe.MatchString(line) {
				timingIdx = i
				break
			}
		}
		if timingIdx < 0 || timingIdx == len(lines)-1 {
			continue
		}

		times := srtTimeRe.FindAllStringSubmatch(lines[timingIdx], 2)
		if len(times) < 2 {
			continue
		}

		text := strings.TrimSpace(strings.Join(lines[timingIdx+1:], "\n"))
		text = markupTagRe.ReplaceAllString(text, "")
		if text == "" {
			continue
		}

		cues = append(cues, Cue{
			Start: parseTimestamp(times[0]),
			End:   parseTimestamp(times[1]),
			Text:  text,
		})
	}

	return cues
}

func parseTimestamp(match []string) time.Duration {
	h, _ := strconv.Atoi(match[1])
	m, _ := strconv.Atoi(match[2])
	s, _ := strconv.Atoi(match[3])
	ms, _ := strconv.Atoi(match[4])
	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(ms)*time.Millisecond
}

// FormatSRT renders cues as SubRip with sequential numbering.
func FormatSRT(cues []Cue) string {
	var b strings.Builder
	for i, cue := range cues {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n",
			i+1,
			formatTimestamp(cue.Start, ","),
			formatTimestamp(cue.End, ","),
			cue.Text,
		)
	}
	return b.String()
}

// FormatVTT renders cues as WebVTT.
func FormatVTT(cues []Cue) string {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	for _, cue := range cues {
		fmt.Fprintf(&b, "%s --> %s\n%s\n\n",
			formatTimestamp(cue.Start, "."),
			formatTimestamp(cue.End, "."),
			cue.Text,
		)
	}
	return b.String()
}

func formatTimestamp(d time.Duration, msSep string) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	ms := int(d.Milliseconds()) % 1000
	return fmt.Sprintf("%02d:%02d:%02d%s%03d", h, m, s, msSep, ms)
}

// PlainText flattens cues to running text. Auto-generated tracks carry
// rolling-window repeats, so consecutive duplicate lines collapse.
func PlainText(cues []Cue) string {
	var lines []string
	var prev string

	for _, cue := range cues {
		for _, line := range strings.Split(cue.Text, "\n") {
			line = strings.TrimSpace(line)
			if line == "" || line == prev {
				continue
			}
			lines = append(lines, line)
			prev = line
		}
	}

	return strings.Join(lines, " ")
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}
