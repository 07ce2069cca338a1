package quest

import (
	"regexp"
	"strconv"
)

// refPattern matches body placeholders of the form "{{ <label> <kind> }}"
// where kind is "issue" or "pr". Authors use these to cross-link artifacts
// whose numbers are only known once they exist on the learner's repository.
var refPattern = regexp.MustCompile(`\{\{ (\S+) (issue|pr) \}\}`)

// ArtifactLookup resolves a (label, kind) placeholder to an artifact number.
// ok is false when the artifact does not exist yet.
type ArtifactLookup func(label, kind string) (number int, ok bool)

// ExpandBodyRefs replaces every "{{ label kind }}" placeholder in body with
// a "#<number>" reference. Placeholders whose artifact cannot be resolved
// are left untouched so a later refresh can fill them in.
func ExpandBodyRefs(body string, lookup ArtifactLookup) string {
	return refPattern.ReplaceAllStringFunc(body, func(match string) string {
		sub := refPattern.FindStringSubmatch(match)
		number, ok := lookup(sub[1], sub[2])
		if !ok {
			return match
		}
		return "#" + strconv.Itoa(number)
	})
}
