package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const minimalYAML = `
telegram:
  token: "123:token"
database:
  path: data/bot.db
bot:
  houses_path: data/houses.json
  works_path: data/works.json
  font_path: fonts/DejaVuSans.ttf
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Telegram.RunMode != "longpoll" {
		t.Fatalf("run mode = %q", cfg.Telegram.RunMode)
	}
	if cfg.Bot.ReportsRoot != "reports" {
		t.Fatalf("reports root = %q", cfg.Bot.ReportsRoot)
	}
	if cfg.Bot.ItemsPerPage != 30 {
		t.Fatalf("items per page = %d", cfg.Bot.ItemsPerPage)
	}
	if cfg.Bot.MessageLimit != 4096 {
		t.Fatalf("message limit = %d", cfg.Bot.MessageLimit)
	}
	if cfg.CoreConfig() == nil {
		t.Fatal("core config carrier is nil")
	}
}

func TestLoadConfigValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(string) string
	}{
		{"missing houses path", func(s string) string { return strings.Replace(s, "houses_path: data/houses.json", "houses_path: \"\"", 1) }},
		{"missing works path", func(s string) string { return strings.Replace(s, "works_path: data/works.json", "works_path: \"\"", 1) }},
		{"missing font path", func(s string) string { return strings.Replace(s, "font_path: fonts/DejaVuSans.ttf", "font_path: \"\"", 1) }},
		{"missing db path", func(s string) string { return strings.Replace(s, "path: data/bot.db", "path: \"\"", 1) }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, c.mutate(minimalYAML))); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
