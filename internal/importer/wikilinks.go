// Package importer bulk-imports markdown journals (YAML frontmatter,
// [[wikilinks]], inline #tags) as captures with tags and entity linkages.
package importer

import (
	"regexp"
	"strings"

	"github.com/atticlabs/attic/pkg/types"
)

var (
	// wikilinkRe matches [[target]] and [[target|alias]] patterns.
	wikilinkRe = regexp.MustCompile(`\[\[([^\[\]|]+?)(?:\|([^\[\]]+?))?\]\]`)

	// inlineTagRe finds #hashtag patterns in body text.
	inlineTagRe = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)
)

// kindNamespaces maps journal folder namespaces to entity kinds, so
// [[people/Priya]] registers Priya as a person rather than a generic object.
// Links without a recognized namespace fall back to the object kind.
var kindNamespaces = map[string]types.EntityKind{
	"person": types.EntityPerson,
	"people": types.EntityPerson,
	"place":  types.EntityPlace,
	"places": types.EntityPlace,
	"event":  types.EntityEvent,
	"events": types.EntityEvent,
	"task":   types.EntityTask,
	"tasks":  types.EntityTask,
}

// WikiLink is a parsed [[wiki-link]] from journal content. Each link becomes
// an entity linkage on the imported capture.
type WikiLink struct {
	// Target is the entity name being linked to, with any recognized kind
	// namespace stripped.
	Target string

	// Alias is the display text when [[target|alias]] syntax is used.
	Alias string

	// Kind is the entity kind inferred from the link's namespace.
	Kind types.EntityKind

	// Raw is the full original [[...]] text.
	Raw string
}

// DisplayText is the text the link reads as in prose: the alias when one is
// given, the target name otherwise.
func (l WikiLink) DisplayText() string {
	if l.Alias != "" {
		return l.Alias
	}
	return l.Target
}

// parseWikiLink builds a WikiLink from a regex submatch, resolving the kind
// namespace. Returns false for a match with an empty target.
func parseWikiLink(m []string) (WikiLink, bool) {
	target := strings.TrimSpace(m[1])
	if target == "" {
		return WikiLink{}, false
	}

	link := WikiLink{
		Target: target,
		Alias:  strings.TrimSpace(m[2]),
		Kind:   types.EntityObject,
		Raw:    m[0],
	}

	if ns, rest, found := strings.Cut(target, "/"); found {
		if kind, ok := kindNamespaces[strings.ToLower(strings.TrimSpace(ns))]; ok {
			if rest = strings.TrimSpace(rest); rest != "" {
				link.Target = rest
				link.Kind = kind
			}
		}
	}

	return link, true
}

// ExtractWikiLinks finds all [[wiki-link]] patterns in the given content and
// returns them as a deduplicated slice ordered by first appearance. Links
// are deduplicated by target name, case-insensitively.
func ExtractWikiLinks(content string) []WikiLink {
	var links []WikiLink
	seen := make(map[string]bool)

	for _, m := range wikilinkRe.FindAllStringSubmatch(content, -1) {
		link, ok := parseWikiLink(m)
		if !ok {
			continue
		}
		key := strings.ToLower(link.Target)
		if seen[key] {
			continue
		}
		seen[key] = true
		links = append(links, link)
	}

	return links
}

// StripWikiLinks flattens [[wiki-links]] in content to their display text,
// leaving readable prose for the capture body.
func StripWikiLinks(content string) string {
	return wikilinkRe.ReplaceAllStringFunc(content, func(match string) string {
		link, ok := parseWikiLink(wikilinkRe.FindStringSubmatch(match))
		if !ok {
			return match
		}
		return link.DisplayText()
	})
}

// extractInlineTags finds deduplicated #hashtag names in body text.
func extractInlineTags(body string) []string {
	var tags []string
	seen := make(map[string]bool)
	for _, m := range inlineTagRe.FindAllStringSubmatch(body, -1) {
		tag := strings.TrimSpace(m[1])
		if lower := strings.ToLower(tag); !seen[lower] {
			seen[lower] = true
			tags = append(tags, tag)
		}
	}
	return tags
}
