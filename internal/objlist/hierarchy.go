package objlist

import (
	"sort"
	"strings"

	"github.com/objectfs/metacache/pkg/utils"
)

// Hierarchize returns names plus every ancestor directory that is missing
// from it. Listings can return "a/b/c.txt" without ever returning "a/" or
// "a/b/"; the result is closed under taking the parent. Ancestors are
// appended once each, in sorted order, with a trailing slash when
// haveSlash is set. names itself is not modified.
//
// The walk stops at the root, so "/x/y" contributes "/x" but not "/".
func Hierarchize(names []string, haveSlash bool) []string {
	present := make(map[string]bool, len(names))
	missing := make(map[string]struct{})

	for _, name := range names {
		p := utils.TrimTrailingSlash(name)
		present[p] = true
		delete(missing, p)

		for {
			idx := strings.LastIndex(p, "/")
			if idx < 0 {
				break
			}
			p = p[:idx]
			if p == "" || p == "/" {
				break
			}
			if !present[p] {
				missing[p] = struct{}{}
			}
		}
	}

	added := make([]string, 0, len(missing))
	for dir := range missing {
		added = append(added, dir)
	}
	sort.Strings(added)

	out := make([]string, 0, len(names)+len(added))
	out = append(out, names...)
	for _, dir := range added {
		if haveSlash {
			dir += "/"
		}
		out = append(out, dir)
	}
	return out
}
