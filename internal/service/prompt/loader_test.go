package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetFallsBackToEmbeddedDefault(t *testing.T) {
	l := NewLoader(t.TempDir())

	got := l.Get("think_system")
	assert.NotEmpty(t, got)
}

func TestGetPrefersFileOnDisk(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "think_system.md"), []byte("custom think prompt\n"), 0644))

	l := NewLoader(dir)
	assert.Equal(t, "custom think prompt", l.Get("think_system"))
}

func TestGetServesCacheWhenFileDisappears(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "my_prompt.md")
	require.NoError(t, os.WriteFile(path, []byte("remembered"), 0644))

	l := NewLoader(dir)
	require.Equal(t, "remembered", l.Get("my_prompt"))

	require.NoError(t, os.Remove(path))
	assert.Equal(t, "remembered", l.Get("my_prompt"))
}

func TestGetUnknownPromptIsEmpty(t *testing.T) {
	l := NewLoader(t.TempDir())
	assert.Empty(t, l.Get("no_such_prompt"))
}

func TestGetWithPersonaPrependsSection(t *testing.T) {
	dir := t.TempDir()
	personality := "# Mochi\n\n## Chat\nBe warm.\n\n## Think\nBe quiet.\n\n## Report\nBe brief.\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "personality.md"), []byte(personality), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "think_system.md"), []byte("decide on an action"), 0644))

	l := NewLoader(dir)
	got := l.GetWithPersona("think_system", "Think")
	assert.Equal(t, "Be quiet.\n\n---\n\ndecide on an action", got)
}

func TestGetWithPersonaSkipsFunctionalPrompts(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "personality.md"), []byte("## Chat\nBe warm.\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "memory_extract.md"), []byte("extract facts"), 0644))

	l := NewLoader(dir)
	assert.Equal(t, "extract facts", l.GetWithPersona("memory_extract", "Chat"))
}

func TestGetWithPersonaMissingSection(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "personality.md"), []byte("## Chat\nBe warm.\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "report_morning.md"), []byte("morning report"), 0644))

	l := NewLoader(dir)
	assert.Equal(t, "morning report", l.GetWithPersona("report_morning", "Report"))
}

func TestExtractSection(t *testing.T) {
	text := "intro\n\n## Chat\nwarm\nfriendly\n\n## Think\nquiet\n"

	assert.Equal(t, "warm\nfriendly", extractSection(text, "Chat"))
	assert.Equal(t, "quiet", extractSection(text, "Think"))
	assert.Empty(t, extractSection(text, "Report"))
}

func TestEmbeddedPersonalityHasAllSections(t *testing.T) {
	l := NewLoader(t.TempDir())
	full := l.Get("personality")
	require.NotEmpty(t, full)

	for _, section := range []string{"Chat", "Think", "Report"} {
		assert.NotEmpty(t, extractSection(full, section), "section %s", section)
	}
}
