package prompt

import (
	"embed"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

//go:embed defaults/*.md
var embedDefaults embed.FS

// Prompts that are purely functional; persona is never prepended.
var noPersona = map[string]struct{}{
	"memory_extract": {},
	"memory_dedup":   {},
	"personality":    {},
}

// Loader serves prompt templates by name. Files on disk override the
// embedded defaults, and are re-read on every call so edits take effect
// immediately; the cache only covers files that disappear.
type Loader struct {
	dir string

	mu    sync.Mutex
	cache map[string]string
}

func NewLoader(dir string) *Loader {
	return &Loader{
		dir:   dir,
		cache: make(map[string]string),
	}
}

func (l *Loader) Get(name string) string {
	path := filepath.Join(l.dir, name+".md")
	if data, err := os.ReadFile(path); err == nil {
		content := strings.TrimSpace(string(data))
		l.mu.Lock()
		l.cache[name] = content
		l.mu.Unlock()
		return content
	}

	if data, err := embedDefaults.ReadFile("defaults/" + name + ".md"); err == nil {
		return strings.TrimSpace(string(data))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cache[name]
}

// GetWithPersona prepends the named personality.md section to the template.
func (l *Loader) GetWithPersona(name, persona string) string {
	task := l.Get(name)
	if _, skip := noPersona[name]; skip {
		return task
	}

	section := l.personaSection(persona)
	if section == "" {
		return task
	}
	if task == "" {
		return section
	}
	return section + "\n\n---\n\n" + task
}

func (l *Loader) personaSection(section string) string {
	full := l.Get("personality")
	if full == "" {
		return ""
	}
	return extractSection(full, section)
}

// extractSection returns the content between "## <heading>" and the next
// "## " heading (or EOF).
func extractSection(text, heading string) string {
	pattern := regexp.MustCompile(`(?ms)^## ` + regexp.QuoteMeta(heading) + `\s*\n(.*?)(?:^## |\z)`)
	m := pattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
