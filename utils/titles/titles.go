package titles

import (
	"regexp"
	"strings"
)

const maxTitleLen = 99

var (
	releaseTagRe = regexp.MustCompile(`(?i) *(\(dub\)|\(sub\)|\(uncensored\)|\(uncut\)|\(subbed\)|\(dubbed\))`)
	audioTagRe   = regexp.MustCompile(`(?i) *\([^)]+audio\)`)
	bdTokenRe    = regexp.MustCompile(`(?i) BD( |$)`)
	tvTagRe      = regexp.MustCompile(`\(TV\)`)
)

// Sanitize removes noise tokens scrapers commonly attach to titles so that
// provider results compare cleanly against canonical metadata: dub/sub/audio
// markers, a standalone trailing BD token and "(TV)" tags. The result is
// trimmed and truncated to 99 characters.
func Sanitize(title string) string {
	title = replaceFirst(releaseTagRe, title)
	title = replaceFirst(audioTagRe, title)
	title = replaceFirst(bdTokenRe, title)
	title = tvTagRe.ReplaceAllString(title, "")
	title = strings.TrimSpace(title)

	if runes := []rune(title); len(runes) > maxTitleLen {
		title = string(runes[:maxTitleLen])
	}
	return title
}

// replaceFirst drops only the first match, leaving later occurrences alone.
func replaceFirst(re *regexp.Regexp, s string) string {
	loc := re.FindStringIndex(s)
	if loc == nil {
		return s
	}
	return s[:loc[0]] + s[loc[1]:]
}
