package llm

import (
	"regexp"
	"strings"
)

var fenceRe = regexp.MustCompile("(?s)```([a-zA-Z0-9_+-]*)[ \t]*\n(.*?)```")

// ExtractFragment pulls the executable fragment out of a model reply.
// Preference order: a fenced block tagged with the wanted language, then any
// tagged block, then an untagged block, then the raw reply. The result is
// trimmed; an empty result means the reply contained nothing usable.
func ExtractFragment(reply, lang string) string {
	matches := fenceRe.FindAllStringSubmatch(reply, -1)
	if len(matches) == 0 {
		return strings.TrimSpace(reply)
	}

	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang != "" {
		for _, m := range matches {
			if strings.ToLower(m[1]) == lang {
				return strings.TrimSpace(m[2])
			}
		}
	}
	for _, m := range matches {
		if m[1] != "" {
			return strings.TrimSpace(m[2])
		}
	}
	return strings.TrimSpace(matches[0][2])
}
