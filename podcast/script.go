package podcast

import (
	"strings"
	"unicode"
)

// Segment is one speaker turn of a generated script.
type Segment struct {
	Speaker string
	Text    string
}

// ParseScript splits a "Name: text" conversation into turns. Lines without a
// speaker prefix, or with nothing after the colon, continue the previous
// turn; text before the first speaker is kept with an empty speaker. Markdown emphasis around names is ignored.
func ParseScript(script string) []Segment {
	var segments []Segment
	for _, raw := range strings.Split(script, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if name, text, ok := splitSpeaker(line); ok {
			segments = append(segments, Segment{Speaker: name, Text: text})
			continue
		}
		if n := len(segments); n > 0 {
			segments[n-1].Text = strings.TrimSpace(segments[n-1].Text + " " + line)
			continue
		}
		segments = append(segments, Segment{Text: line})
	}
	return segments
}

func splitSpeaker(line string) (name, text string, ok bool) {
	i := strings.IndexByte(line, ':')
	if i <= 0 {
		return "", "", false
	}
	name = strings.Trim(line[:i], "*_ ")
	if name == "" || len(name) > 32 {
		return "", "", false
	}
	for _, r := range name {
		if !unicode.IsLetter(r) && r != ' ' && r != '.' && r != '-' && r != '\'' {
			return "", "", false
		}
	}
	text = strings.TrimSpace(strings.Trim(line[i+1:], "*_ "))
	if text == "" {
		return "", "", false
	}
	return name, text, true
}

// Speakers returns the distinct speaker names in order of appearance.
func Speakers(segments []Segment) []string {
	seen := make(map[string]bool)
	var names []string
	for _, s := range segments {
		if s.Speaker == "" || seen[s.Speaker] {
			continue
		}
		seen[s.Speaker] = true
		names = append(names, s.Speaker)
	}
	return names
}
