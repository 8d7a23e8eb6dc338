package internal

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/starford/notegraph/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
}

func TestSourceConfig_UnknownKind(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Source.Kind = "postgres"
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown source kind should fail validation")
	}
}

func TestJoplinSource_RequiresToken(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Source.Kind = SourceJoplin
	if err := cfg.Validate(); err == nil {
		t.Fatal("joplin source without token should fail")
	}
	cfg.Joplin.Token = "tok"
	// The vault is not consulted for a joplin source.
	cfg.Vault.Path = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("joplin source with token should pass: %v", err)
	}
}

func TestGraphConfig_Validation(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Graph.NotebookPolarity = "sideways"
	if err := cfg.Validate(); err == nil {
		t.Error("bad notebook polarity should fail")
	}

	cfg = NewDefaultConfig()
	cfg.Graph.MaxDegree = -1
	if err := cfg.Validate(); err == nil {
		t.Error("negative degree should fail")
	}

	cfg = NewDefaultConfig()
	cfg.Graph.Concurrency = -3
	if err := cfg.Validate(); err == nil {
		t.Error("negative concurrency should fail")
	}
}

func TestLoadYAML(t *testing.T) {
	t.Setenv("NOTEGRAPH_TEST_TOKEN", "from-env")
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
app:
  log_level: debug
  http:
    port: 9090
source:
  kind: joplin
joplin:
  url: http://localhost:41184
  token: ${NOTEGRAPH_TEST_TOKEN}
  rate_limit: 10
  timeout: 5s
graph:
  max_degree: 2
  notebook_filter: Archive
  notebook_polarity: include
  show_link_direction: true
  node_distance: 150
  concurrency: 4
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.LogLevel != slog.LevelDebug || cfg.App.HTTP.Port != 9090 {
		t.Errorf("app = %+v", cfg.App)
	}
	if cfg.Joplin.Token != "from-env" || cfg.Joplin.Timeout != 5*time.Second || cfg.Joplin.RateLimit != 10 {
		t.Errorf("joplin = %+v", cfg.Joplin)
	}
	g := cfg.Graph
	if g.MaxDegree != 2 || g.NotebookFilter != "Archive" || g.NotebookPolarity != "include" || g.Concurrency != 4 {
		t.Errorf("graph = %+v", g)
	}
	if !g.ShowLinkDirection || g.NodeDistance != 150 || g.IncludeBacklinks {
		t.Errorf("graph rendering = %+v", g)
	}
	// Keys absent from the file keep their defaults.
	if g.MaxNotes != 700 || !g.FilterChildren || g.NodeFontSize != 20 {
		t.Errorf("graph defaults lost: %+v", g)
	}
}
