package serviceprobes

import (
	"bytes"
	"io"
	"regexp"
	"strconv"

	"github.com/dlclark/regexp2"
)

func newBytesReader(b []byte) io.Reader {
	return bytes.NewReader(b)
}

// versionInfoTagRegexp recognizes one `tag<delim>content<delim>` field of a
// match line's versioninfo template, e.g. `p/OpenSSH/ v/$1/`. The tag and
// delimiter are both consumed generically so every nmap version field
// (p, v, i, h, o, d, cpe:/.../) is handled the same way. The closing
// delimiter is a backreference to the opening one, which Go's RE2-based
// regexp cannot express, so this pattern is compiled with regexp2.
var versionInfoTagRegexp = regexp2.MustCompile(`(?:^|\s)([a-zA-Z:]+)(\S)(.*?)\2`, regexp2.None)

var backrefRegexp = regexp.MustCompile(`\$(\d)`)

// ApplyVersionInfo expands a match line's versioninfo template against
// the capture groups of the regex that matched, substituting $1-$9
// backreferences the way nmap's own engine renders version/product/info
// fields from a successful match.
func ApplyVersionInfo(template string, groups []string) string {
	if template == "" {
		return ""
	}
	out, err := versionInfoTagRegexp.ReplaceFunc(template, func(m regexp2.Match) string {
		tag, delim := m.GroupByNumber(1).String(), m.GroupByNumber(2).String()
		content := backrefRegexp.ReplaceAllStringFunc(m.GroupByNumber(3).String(), func(ref string) string {
			n, err := strconv.Atoi(ref[1:])
			if err != nil || n >= len(groups) {
				return ""
			}
			return groups[n]
		})
		return " " + tag + delim + content + delim
	}, -1, -1)
	if err != nil {
		return template
	}
	return out
}
