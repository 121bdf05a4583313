package formatter

import (
	"fmt"
	"strings"

	"github.com/samzong/gpush/internal/committype"
	"github.com/samzong/gpush/internal/staging"
	"github.com/samzong/gpush/internal/stringsutil"
)

// EmptyCommitMessage is returned for an empty batch.
const EmptyCommitMessage = "chore: empty commit"

// Synthesize builds the commit message for a publish batch. The output
// depends only on the order, paths, names, types and messages of files.
func Synthesize(files []staging.File) string {
	switch len(files) {
	case 0:
		return EmptyCommitMessage
	case 1:
		return Line(files[0])
	}

	types := make([]string, 0, len(files))
	for _, f := range files {
		types = append(types, f.CommitType)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s: update %d files across multiple scopes\n\n", committype.Primary(types), len(files))
	for i, f := range files {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("* ")
		b.WriteString(Line(f))
	}
	return b.String()
}

// Line renders one file as "type(scope): description".
func Line(f staging.File) string {
	return fmt.Sprintf("%s(%s): %s", f.CommitType, Scope(f.Path), Description(f))
}

// Description is the commit message, or "update <name>" when it is empty.
func Description(f staging.File) string {
	if f.CommitMessage != "" {
		return f.CommitMessage
	}
	return "update " + f.Name
}

// Scope is the deepest path segment without a dot. When every segment has
// one, it is the text of the path before its first dot.
func Scope(p string) string {
	var dirs []string
	for _, seg := range stringsutil.SplitNonEmpty(p, "/") {
		if !strings.Contains(seg, ".") {
			dirs = append(dirs, seg)
		}
	}
	if len(dirs) > 0 {
		return dirs[len(dirs)-1]
	}
	before, _, _ := strings.Cut(p, ".")
	return before
}
