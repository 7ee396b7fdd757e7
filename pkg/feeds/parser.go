package feeds

import "strings"

// Item is a single entry extracted from a syndicated feed. PubDate carries
// the raw upstream string; callers normalize it with ParseDate.
type Item struct {
	Title       string
	Link        string
	Description string
	PubDate     string
	Creator     string
	Author      string
}

const maxDescriptionLen = 300

// Parse extracts items from RSS (<item>) or Atom (<entry>) markup. It is a
// deliberately minimal boundary-matching parser, not a DOM: malformed blocks
// yield fewer items, never an error.
func Parse(raw string) []Item {
	blocks := findBlocks(raw, "item")
	if len(blocks) == 0 {
		blocks = findBlocks(raw, "entry")
	}

	items := make([]Item, 0, len(blocks))
	for _, block := range blocks {
		title := decodeEntities(extractFirst(block, "title"))
		link := extractLink(block)
		if title == "" || link == "" {
			continue
		}

		item := Item{
			Title:   title,
			Link:    link,
			PubDate: extractFirst(block, "pubDate", "published", "updated", "dc:date", "date"),
			Creator: decodeEntities(extractFirst(block, "dc:creator")),
			Author:  extractAuthor(block),
		}

		if desc := extractFirst(block, "description", "summary", "content"); desc != "" {
			item.Description = cleanDescription(decodeEntities(desc))
		}

		items = append(items, item)
	}
	return items
}

// findBlocks returns the inner text of every <tag>...</tag> pair. Matching is
// case-insensitive and non-recursive.
func findBlocks(raw, tag string) []string {
	lower := strings.ToLower(raw)
	tag = strings.ToLower(tag)
	closeTag := "</" + tag + ">"

	var blocks []string
	for pos := 0; ; {
		start, bodyStart := findOpenTag(lower, tag, pos)
		if start < 0 {
			break
		}

		end := strings.Index(lower[bodyStart:], closeTag)
		if end < 0 {
			break
		}

		blocks = append(blocks, raw[bodyStart:bodyStart+end])
		pos = bodyStart + end + len(closeTag)
	}
	return blocks
}

// findOpenTag locates "<tag" followed by '>' or whitespace at or after pos in
// lowercased markup, returning the tag start and the index just past its '>'.
func findOpenTag(lower, tag string, pos int) (start, bodyStart int) {
	open := "<" + tag
	for {
		idx := strings.Index(lower[pos:], open)
		if idx < 0 {
			return -1, -1
		}
		idx += pos

		after := idx + len(open)
		if after >= len(lower) {
			return -1, -1
		}
		switch lower[after] {
		case '>', ' ', '\t', '\r', '\n', '/':
			gt := strings.IndexByte(lower[idx:], '>')
			if gt < 0 {
				return -1, -1
			}
			return idx, idx + gt + 1
		}
		pos = after
	}
}

// extractFirst returns the trimmed inner text of the first tag from the
// candidate list that is present and non-empty. CDATA sections are unwrapped.
func extractFirst(block string, tags ...string) string {
	lower := strings.ToLower(block)
	for _, tag := range tags {
		if v := extractTag(block, lower, strings.ToLower(tag)); v != "" {
			return v
		}
	}
	return ""
}

func extractTag(block, lower, tag string) string {
	_, bodyStart := findOpenTag(lower, tag, 0)
	if bodyStart < 0 {
		return ""
	}

	end := strings.Index(lower[bodyStart:], "</"+tag+">")
	if end < 0 {
		return ""
	}

	return unwrapCDATA(strings.TrimSpace(block[bodyStart : bodyStart+end]))
}

// extractLink tries the attribute form (<link href="..."/>, Atom) first and
// falls back to the element-text form (<link>url</link>, RSS).
func extractLink(block string) string {
	lower := strings.ToLower(block)

	for pos := 0; ; {
		idx := strings.Index(lower[pos:], "<link")
		if idx < 0 {
			break
		}
		idx += pos

		gt := strings.IndexByte(lower[idx:], '>')
		if gt < 0 {
			break
		}
		tagText := block[idx : idx+gt]
		if href := extractAttr(tagText, "href"); href != "" {
			return href
		}
		pos = idx + gt + 1
	}

	return strings.TrimSpace(extractFirst(block, "link"))
}

func extractAttr(tagText, attr string) string {
	lower := strings.ToLower(tagText)
	idx := strings.Index(lower, attr+"=\"")
	if idx < 0 {
		return ""
	}

	rest := tagText[idx+len(attr)+2:]
	end := strings.IndexByte(rest, '"')
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(rest[:end])
}

// extractAuthor handles both the flat RSS <author> form and the nested Atom
// <author><name>...</name></author> form.
func extractAuthor(block string) string {
	raw := extractFirst(block, "author")
	if raw == "" {
		return ""
	}
	if strings.Contains(strings.ToLower(raw), "<name") {
		if name := extractFirst(raw, "name"); name != "" {
			return decodeEntities(name)
		}
	}
	if strings.ContainsAny(raw, "<>") {
		return ""
	}
	return decodeEntities(raw)
}

func unwrapCDATA(s string) string {
	if strings.HasPrefix(s, "<![CDATA[") && strings.HasSuffix(s, "]]>") {
		return strings.TrimSpace(s[len("<![CDATA[") : len(s)-len("]]>")])
	}
	return s
}

var entityReplacer = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&apos;", "'",
	"&#x27;", "'",
	"&#x2F;", "/",
	"&nbsp;", " ",
)

func decodeEntities(s string) string {
	return entityReplacer.Replace(s)
}

// cleanDescription strips markup tags, collapses whitespace and truncates.
func cleanDescription(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}

	out := strings.Join(strings.Fields(b.String()), " ")
	if runes := []rune(out); len(runes) > maxDescriptionLen {
		out = string(runes[:maxDescriptionLen])
	}
	return out
}
