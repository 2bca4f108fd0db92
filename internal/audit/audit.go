// Package audit writes one structured log record per CLI invocation: the
// command, the config file in effect and the environment that drives the
// model, embedding, corpus and session backends. Credentials appear only as
// "set" or "unset"; connection URLs are logged with their password removed.
package audit

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/54b3r/prepai-go/internal/version"
)

// kind selects how a value is rendered.
type kind int

const (
	plain  kind = iota
	secret      // presence only
	dsn         // URL with the password redacted
)

type envKey struct {
	name string
	kind kind
}

// envGroup is rendered as one nested slog group.
type envGroup struct {
	name string
	keys []envKey
}

// auditGroups is the ordered set of env vars recorded on every command start.
var auditGroups = []envGroup{
	{"model", []envKey{
		{"MODEL_PROVIDER", plain},
		{"OLLAMA_HOST", plain},
		{"OLLAMA_MODEL", plain},
		{"OPENAI_API_KEY", secret},
		{"OPENAI_MODEL", plain},
		{"AZURE_OPENAI_API_KEY", secret},
		{"AZURE_OPENAI_ENDPOINT", plain},
		{"AZURE_OPENAI_DEPLOYMENT", plain},
		{"ARK_API_KEY", secret},
		{"ARK_MODEL", plain},
		{"GOOGLE_API_KEY", secret},
		{"GEMINI_MODEL", plain},
	}},
	{"embedding", []envKey{
		{"EMBEDDING_PROVIDER", plain},
		{"EMBEDDING_MODEL", plain},
		{"EMBEDDING_DIMENSIONS", plain},
		{"EMBEDDING_API_KEY", secret},
	}},
	{"corpus", []envKey{
		{"CORPUS_BACKEND", plain},
		{"DATABASE_URL", dsn},
		{"PG_HOST", plain},
		{"PG_PORT", plain},
		{"PG_DATABASE", plain},
		{"PG_USER", plain},
		{"PG_PASSWORD", secret},
		{"QDRANT_HOST", plain},
		{"QDRANT_PORT", plain},
		{"QDRANT_COLLECTION", plain},
		{"QDRANT_API_KEY", secret},
	}},
	{"session", []envKey{
		{"SESSION_STORE", plain},
		{"SESSION_DB", plain},
		{"SESSION_TTL", plain},
		{"RECOMMEND_EXTRACT_SKILLS", plain},
	}},
	{"server", []envKey{
		{"PREPAI_HOST", plain},
		{"PREPAI_PORT", plain},
		{"PREPAI_API_KEY", secret},
		{"PREPAI_ALLOWED_ORIGINS", plain},
	}},
	{"tracing", []envKey{
		{"LANGFUSE_HOST", plain},
		{"LANGFUSE_PUBLIC_KEY", secret},
		{"LANGFUSE_SECRET_KEY", secret},
	}},
}

// kindOf maps each audited key to its rendering.
var kindOf = func() map[string]kind {
	m := make(map[string]kind)
	for _, g := range auditGroups {
		for _, k := range g.keys {
			m[k.name] = k.kind
		}
	}
	return m
}()

// LogCommandStart records the start of command. configPath is the YAML file
// that was applied, or "" when none was found.
func LogCommandStart(log *slog.Logger, command string, configPath string) {
	attrs := []slog.Attr{
		slog.String("command", command),
		slog.String("version", version.Version),
		slog.String("config_file", displayPath(configPath)),
	}
	for _, g := range auditGroups {
		vals := make([]any, 0, len(g.keys))
		for _, k := range g.keys {
			vals = append(vals, slog.String(k.name, render(k.kind, os.Getenv(k.name))))
		}
		attrs = append(attrs, slog.Group(g.name, vals...))
	}
	log.LogAttrs(context.Background(), slog.LevelInfo, "audit: command start", attrs...)
}

// SanitiseKey renders value the way the audit record would for key. Keys not
// in the audit set are treated as plain.
func SanitiseKey(key, value string) string {
	return render(kindOf[key], value)
}

func render(k kind, v string) string {
	if v == "" {
		return "unset"
	}
	switch k {
	case secret:
		return "set"
	case dsn:
		return redactDSN(v)
	default:
		return v
	}
}

// redactDSN strips the password from a postgres:// URL. Anything that does
// not parse as a URL with a host (e.g. a key=value DSN) is reduced to "set".
func redactDSN(v string) string {
	u, err := url.Parse(v)
	if err != nil || u.Host == "" {
		return "set"
	}
	if u.User != nil {
		u.User = url.User(u.User.Username())
	}
	return u.String()
}

// displayPath shortens the home directory to "~" and renders "" as "none".
func displayPath(p string) string {
	if p == "" {
		return "none"
	}
	if home, err := os.UserHomeDir(); err == nil && strings.HasPrefix(p, home) {
		return "~" + p[len(home):]
	}
	return p
}
