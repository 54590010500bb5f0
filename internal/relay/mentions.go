package relay

import (
	"regexp"
	"strings"
)

var mentionPattern = regexp.MustCompile(`@([A-Za-z0-9_]+)`)

// RewriteMentions replaces @username tokens that resolve through the
// configured table with Discord mention tags. The matched tags are also
// returned joined as one string: mentions inside an embed body don't
// notify anyone, so the caller places the collected string in the plain
// message content next to the embed.
func RewriteMentions(text string, table map[string]string) (string, string) {
	var collected []string

	rewritten := mentionPattern.ReplaceAllStringFunc(text, func(match string) string {
		id, ok := table[strings.ToLower(strings.TrimPrefix(match, "@"))]
		if !ok {
			return match
		}
		tag := "<@" + id + ">"
		collected = append(collected, tag)
		return tag
	})

	return rewritten, strings.Join(collected, " ")
}
