package commands

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/54b3r/prepai-go/internal/corpus"
	"github.com/54b3r/prepai-go/internal/logging"
	"github.com/54b3r/prepai-go/internal/provider"
	"github.com/54b3r/prepai-go/internal/recency"
	"github.com/54b3r/prepai-go/internal/server"
)

func TestRootCmd_RegistersSubcommands(t *testing.T) {
	root := NewRootCmd()
	for _, name := range []string{"serve", "ingest", "recommend", "feedback", "version"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestVersionCmd(t *testing.T) {
	var out bytes.Buffer
	cmd := NewVersionCmd()
	cmd.SetOut(&out)
	cmd.Run(cmd, nil)
	assert.True(t, strings.HasPrefix(out.String(), "prepai dev"), out.String())
}

func TestFormatMatch(t *testing.T) {
	t.Parallel()
	got := formatMatch(corpus.Match{
		Question: corpus.Question{ID: 3, Text: "What is a mutex?", Topic: "concurrency", Difficulty: "easy"},
		Distance: 0.25,
	})
	assert.Equal(t, "[#3] What is a mutex? (concurrency, easy)  distance=0.2500", got)

	got = formatMatch(corpus.Match{Question: corpus.Question{ID: 1, Text: "Q"}})
	assert.Equal(t, "[#1] Q  distance=0.0000", got)
}

func TestBuildCorpus(t *testing.T) {
	t.Setenv("CORPUS_BACKEND", "memory")
	store, err := buildCorpus(t.Context(), 4, logging.Discard())
	require.NoError(t, err)
	assert.IsType(t, &corpus.MemoryStore{}, store)
	require.NoError(t, store.Close())

	t.Setenv("CORPUS_BACKEND", "mongo")
	_, err = buildCorpus(t.Context(), 4, logging.Discard())
	assert.ErrorContains(t, err, "unknown CORPUS_BACKEND")
}

func TestBuildTracker(t *testing.T) {
	t.Setenv("SESSION_STORE", "sqlite")
	t.Setenv("SESSION_DB", t.TempDir()+"/sessions.db")
	tr, err := buildTracker(logging.Discard())
	require.NoError(t, err)
	assert.IsType(t, &recency.SQLiteTracker{}, tr)
	require.NoError(t, tr.Close())

	t.Setenv("SESSION_STORE", "redis")
	_, err = buildTracker(logging.Discard())
	assert.ErrorContains(t, err, "unknown SESSION_STORE")
}

func TestBuildPingers(t *testing.T) {
	t.Setenv("EMBEDDING_PROVIDER", "openai")

	c := &components{
		corpus:  corpus.NewMemoryStore(4),
		tracker: recency.NewMemoryTracker(0),
	}
	t.Cleanup(func() { _ = c.Close() })

	names := func(ps []server.Pinger) []string {
		var out []string
		for _, p := range ps {
			out = append(out, p.Name())
		}
		return out
	}

	assert.Equal(t, []string{"corpus"}, names(buildPingers(c, &provider.Config{Backend: provider.BackendOpenAI})))

	ollama := &provider.Config{Backend: provider.BackendOllama}
	ollama.Ollama.Host = "http://127.0.0.1:11434"
	assert.Equal(t, []string{"corpus", "ollama"}, names(buildPingers(c, ollama)))
}

func TestReadAnswer(t *testing.T) {
	cmd := NewFeedbackCmd()
	cmd.SetIn(strings.NewReader("from stdin"))

	got, err := readAnswer(cmd, []string{"use", "a", "map"}, "")
	require.NoError(t, err)
	assert.Equal(t, "use a map", got)

	got, err = readAnswer(cmd, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "from stdin", got)

	_, err = readAnswer(cmd, nil, "/nonexistent/answer.txt")
	assert.Error(t, err)
}
