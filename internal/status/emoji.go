package status

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/kyokomi/emoji/v2"
	"github.com/rivo/uniseg"
)

// ///////////////////////////////////////////////
// Emoji Reverse Map
// ///////////////////////////////////////////////

// variation selector 16, the "render as emoji" hint that some glyphs carry
// and some don't. Lookups must succeed either way.
const vs16 = "️"

var (
	revOnce sync.Once
	revMap  map[string]string
)

// reverseMap maps emoji glyphs to their :code: form, built once from the
// emoji package's code map. When several codes share a glyph the shortest
// wins, matching how Slack canonicalizes aliases.
func reverseMap() map[string]string {
	revOnce.Do(func() {
		revMap = make(map[string]string, len(emoji.CodeMap()))
		for code, glyph := range emoji.CodeMap() {
			for _, key := range []string{glyph, strings.TrimSuffix(glyph, vs16)} {
				if key == "" {
					continue
				}
				if existing, ok := revMap[key]; !ok || len(code) < len(existing) {
					revMap[key] = code
				}
			}
		}
	})
	return revMap
}

// codeForGlyph returns the :code: for an emoji glyph, trying the glyph as-is
// and with the variation selector stripped.
func codeForGlyph(glyph string) (string, bool) {
	m := reverseMap()
	if code, ok := m[glyph]; ok {
		return code, true
	}
	if code, ok := m[strings.TrimSuffix(glyph, vs16)]; ok {
		return code, true
	}
	return "", false
}

// ///////////////////////////////////////////////
// Title Parsing
// ///////////////////////////////////////////////

// ParseTitle trims the raw event title and, when the title opens with an
// emoji glyph, converts the glyph to its :code: form and removes it.
// Titles without a leading emoji get defaultEmoji. Annotation tokens are
// left untouched; stripping them is the composer's job because their effects
// are order-dependent.
func ParseTitle(rawTitle, defaultEmoji string) (cleanTitle, emojiCode string) {
	title := strings.TrimSpace(rawTitle)
	emojiCode = defaultEmoji
	if title == "" {
		return title, emojiCode
	}

	// A grapheme cluster, not a rune: flags, keycaps and skin-tone variants
	// span multiple code points.
	cluster, rest, _, _ := uniseg.FirstGraphemeClusterInString(title, -1)
	if !isPictograph(cluster) {
		return title, emojiCode
	}
	if code, ok := codeForGlyph(cluster); ok {
		emojiCode = code
		title = strings.TrimSpace(rest)
	}
	return title, emojiCode
}

// isPictograph reports whether the cluster could be an emoji glyph rather
// than ordinary text or punctuation. Everything below the general symbol
// planes is rejected before the map lookup so titles starting with plain
// letters or digits never match keycap-style entries.
func isPictograph(cluster string) bool {
	r, _ := utf8.DecodeRuneInString(cluster)
	return r >= 0x2190
}
