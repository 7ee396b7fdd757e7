package feeds

import (
	"strings"
	"testing"
)

func TestParseRSSItems(t *testing.T) {
	raw := `<?xml version="1.0"?>
<rss version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/">
<channel>
  <title>World Feed</title>
  <item>
    <title>Talks resume after ceasefire holds</title>
    <link>https://example.com/talks</link>
    <description><![CDATA[<p>Delegations met for a <b>second</b> round of talks.</p>]]></description>
    <pubDate>Mon, 02 Dec 2024 10:30:00 +0000</pubDate>
    <dc:creator>Jane Reporter</dc:creator>
  </item>
  <item>
    <title>Markets steady &amp; oil falls</title>
    <link>https://example.com/markets</link>
    <author>desk@example.com</author>
  </item>
</channel>
</rss>`

	items := Parse(raw)
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}

	first := items[0]
	if first.Title != "Talks resume after ceasefire holds" {
		t.Errorf("unexpected title %q", first.Title)
	}
	if first.Link != "https://example.com/talks" {
		t.Errorf("unexpected link %q", first.Link)
	}
	if first.Description != "Delegations met for a second round of talks." {
		t.Errorf("description not cleaned: %q", first.Description)
	}
	if first.PubDate != "Mon, 02 Dec 2024 10:30:00 +0000" {
		t.Errorf("unexpected pubDate %q", first.PubDate)
	}
	if first.Creator != "Jane Reporter" {
		t.Errorf("unexpected creator %q", first.Creator)
	}

	second := items[1]
	if second.Title != "Markets steady & oil falls" {
		t.Errorf("entities not decoded: %q", second.Title)
	}
	if second.Author != "desk@example.com" {
		t.Errorf("unexpected author %q", second.Author)
	}
}

func TestParseAtomEntries(t *testing.T) {
	raw := `<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <title type="text">Summit ends without agreement</title>
    <link rel="alternate" href="https://example.com/summit"/>
    <summary>Leaders failed to agree on a joint statement.</summary>
    <updated>2024-12-02T08:00:00Z</updated>
    <author><name>Wire Desk</name></author>
  </entry>
</feed>`

	items := Parse(raw)
	if len(items) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(items))
	}

	item := items[0]
	if item.Title != "Summit ends without agreement" {
		t.Errorf("unexpected title %q", item.Title)
	}
	if item.Link != "https://example.com/summit" {
		t.Errorf("href link not extracted: %q", item.Link)
	}
	if item.Description != "Leaders failed to agree on a joint statement." {
		t.Errorf("summary not extracted: %q", item.Description)
	}
	if item.PubDate != "2024-12-02T08:00:00Z" {
		t.Errorf("updated not used as date: %q", item.PubDate)
	}
	if item.Author != "Wire Desk" {
		t.Errorf("nested author name not extracted: %q", item.Author)
	}
}

func TestParseDropsItemsMissingTitleOrLink(t *testing.T) {
	raw := `<rss><channel>
  <item>
    <title>Complete item</title>
    <link>https://example.com/ok</link>
  </item>
  <item>
    <link>https://example.com/no-title</link>
  </item>
  <item>
    <title>No link here</title>
  </item>
</channel></rss>`

	items := Parse(raw)
	if len(items) != 1 {
		t.Fatalf("expected 1 parsed item, got %d", len(items))
	}
	if items[0].Link != "https://example.com/ok" {
		t.Errorf("kept wrong item: %q", items[0].Link)
	}
}

func TestParseMalformedInput(t *testing.T) {
	inputs := []string{
		"",
		"not xml at all",
		"<rss><channel><item><title>Unterminated",
		"<item><title>a</title><link>b</link>",
	}
	for _, raw := range inputs {
		if items := Parse(raw); len(items) != 0 {
			t.Errorf("Parse(%q) returned %d items, want 0", raw, len(items))
		}
	}
}

func TestCleanDescriptionTruncates(t *testing.T) {
	long := strings.Repeat("word ", 100)
	raw := "<rss><channel><item><title>t</title><link>u</link><description>" +
		long + "</description></item></channel></rss>"

	items := Parse(raw)
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if got := len([]rune(items[0].Description)); got > maxDescriptionLen {
		t.Errorf("description length %d exceeds %d", got, maxDescriptionLen)
	}
}

func TestDecodeEntities(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"A &amp; B", "A & B"},
		{"&lt;tag&gt;", "<tag>"},
		{"&quot;quoted&quot;", `"quoted"`},
		{"it&#39;s &apos;fine&apos;", "it's 'fine'"},
		{"&#x27;x&#x27; &#x2F; y", "'x' / y"},
		{"a&nbsp;b", "a b"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := decodeEntities(tt.in); got != tt.want {
			t.Errorf("decodeEntities(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
