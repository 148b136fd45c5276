package service

import (
	"regexp"

	"cinecircle/internal/microservices/http-api/models"
)

var mentionPattern = regexp.MustCompile(`@(\w+)`)

// ExtractMentions returns the distinct @names in text, in order of first use.
func ExtractMentions(text string) []string {
	matches := mentionPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		name := m[1]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// MentionDirectory maps display names to user ids. Matching is exact and
// case-sensitive; the first user registered under a name wins.
type MentionDirectory map[string]string

func NewMentionDirectory(groups ...[]models.User) MentionDirectory {
	dir := MentionDirectory{}
	for _, users := range groups {
		for _, u := range users {
			if u.Name == "" || u.ID == "" {
				continue
			}
			if _, ok := dir[u.Name]; !ok {
				dir[u.Name] = u.ID
			}
		}
	}
	return dir
}

// Resolve returns the distinct user ids behind names, skipping unknown names
// and any id listed in exclude.
func (d MentionDirectory) Resolve(names []string, exclude ...string) []string {
	skip := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}
	var ids []string
	for _, name := range names {
		id, ok := d[name]
		if !ok {
			continue
		}
		if _, dup := skip[id]; dup {
			continue
		}
		skip[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
