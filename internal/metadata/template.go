package metadata

import "strings"

// RenderTemplate substitutes every "$artist" and "$title" token in format
// with the given values, in a single left-to-right pass: adjacent tokens
// must not cascade ("$artist$title" → "<a><t>" for any <a> not itself
// containing "$"). strings.NewReplacer performs
// exactly this: all matches are found against the original input before
// any replacement text is considered for further matching, so a title or
// artist value that itself contains "$artist" is never re-substituted.
func RenderTemplate(format, artist, title string) string {
	r := strings.NewReplacer("$artist", artist, "$title", title)
	return r.Replace(format)
}
