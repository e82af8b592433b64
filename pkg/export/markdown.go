package export

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/vanderheijden86/flatree/pkg/model"
)

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"_", `\_`,
	"`", "\\`",
	"[", `\[`,
	"]", `\]`,
	"#", `\#`,
)

// GenerateMarkdown renders rows as a nested bullet outline under a summary
// header. Collapsed rows are marked so the reader knows more is hidden.
func GenerateMarkdown(rows []model.Row, title string) (string, error) {
	return generateMarkdown(rows, title, time.Now()), nil
}

func generateMarkdown(rows []model.Row, title string, now time.Time) string {
	var sb strings.Builder

	// Header
	sb.WriteString(fmt.Sprintf("# %s\n\n", title))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", now.Format(time.RFC1123)))

	s := Summarize(rows)
	sb.WriteString("## Summary\n\n")
	sb.WriteString(fmt.Sprintf("- **Rows**: %d\n", s.Rows))
	sb.WriteString(fmt.Sprintf("- **Expanded**: %d\n", s.Expanded))
	sb.WriteString(fmt.Sprintf("- **Collapsed**: %d\n", s.Collapsed))
	sb.WriteString(fmt.Sprintf("- **Depth**: %d\n\n", s.MaxDepth+1))

	sb.WriteString("## Outline\n\n")
	if len(rows) == 0 {
		sb.WriteString("_Nothing to display._\n")
		return sb.String()
	}
	for _, r := range rows {
		sb.WriteString(strings.Repeat("  ", r.Depth))
		sb.WriteString("- ")
		sb.WriteString(r.Kind.Icon())
		sb.WriteString(" ")
		sb.WriteString(markdownEscaper.Replace(r.Title))
		if r.HasChildren && !r.Expanded {
			sb.WriteString(" _(collapsed)_")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// SaveMarkdownToFile writes the generated markdown to a file
func SaveMarkdownToFile(rows []model.Row, title, filename string) error {
	content, err := GenerateMarkdown(rows, title)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, []byte(content), 0644)
}
