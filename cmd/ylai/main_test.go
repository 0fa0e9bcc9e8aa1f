package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/ylai/autoplatform/auth"
	"github.com/ylai/autoplatform/mockbackend"
	"github.com/ylai/autoplatform/pipeline"
	"github.com/ylai/autoplatform/storage/local"
)

// testEnv isolates a command run: HOME points at a temp dir and the config
// file stores the session there.
type testEnv struct {
	dir        string
	configFile string
	port       int
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, ".config"))

	env := &testEnv{dir: dir, configFile: filepath.Join(dir, "ylai.yml"), port: freePort(t)}
	cfg := fmt.Sprintf(`storage:
  provider: local
  path: %s
client:
  base_url: http://127.0.0.1:%d
  retry_times: 1
backend:
  port: %d
  bcrypt_cost: 4
  node_delay: 10ms
  log_interval: 20ms
`, filepath.Join(dir, "session.json"), env.port, env.port)
	if err := os.WriteFile(env.configFile, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return env
}

func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", e.configFile}, args...))
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

// startBackend serves the mock backend on the env's port until the test
// ends.
func (e *testEnv) startBackend(t *testing.T) {
	t.Helper()
	b, err := mockbackend.New(mockbackend.Config{
		Host:        "127.0.0.1",
		Port:        e.port,
		BcryptCost:  4,
		NodeDelay:   10 * time.Millisecond,
		LogInterval: 20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("mockbackend.New: %v", err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = b.Stop(context.Background()) })
}

// stored reads key from the session file the commands write.
func (e *testEnv) stored(t *testing.T, key string) string {
	t.Helper()
	s, err := local.Open(filepath.Join(e.dir, "session.json"))
	if err != nil {
		t.Fatalf("open session store: %v", err)
	}
	v, _, err := s.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("get %s: %v", key, err)
	}
	return v
}

func account(t *testing.T, role auth.Role) mockbackend.Account {
	t.Helper()
	for _, a := range mockbackend.DefaultAccounts {
		if a.Role == role {
			return a
		}
	}
	t.Fatalf("no default account with role %s", role)
	return mockbackend.Account{}
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestVersionCommand(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "ylai") {
		t.Errorf("unexpected version output %q", out)
	}

	out, err = env.run(t, "version", "--json")
	if err != nil {
		t.Fatalf("version --json: %v", err)
	}
	var info map[string]any
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("version --json is not JSON: %v\n%s", err, out)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	env := newTestEnv(t)
	t.Setenv("PORT", "6123")
	t.Setenv("API_PORT", "9100")
	t.Setenv("BACKEND_NODE_DELAY", "25ms")

	c := &cli{configFile: env.configFile}
	cfg, err := loadConfig(c, &cobra.Command{})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Gateway.Port != 6123 {
		t.Errorf("gateway port = %d, want 6123", cfg.Gateway.Port)
	}
	if cfg.Gateway.Target() != "http://127.0.0.1:9100" {
		t.Errorf("gateway target = %q", cfg.Gateway.Target())
	}
	if want := fmt.Sprintf("http://127.0.0.1:%d", env.port); cfg.Client.BaseURL != want {
		t.Errorf("client base url = %q, want %q from the config file", cfg.Client.BaseURL, want)
	}
	if cfg.Backend.NodeDelay != 25*time.Millisecond {
		t.Errorf("node delay = %v", cfg.Backend.NodeDelay)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("client commands should log at warn, got %q", cfg.Logging.Level)
	}
}

func TestLoadConfigFlags(t *testing.T) {
	env := newTestEnv(t)

	c := &cli{configFile: env.configFile, api: "http://backend.internal:9000", logLevel: "debug", dev: true}
	cmd := &cobra.Command{Annotations: map[string]string{annotationLogLevel: "info"}}
	cfg, err := loadConfig(c, cmd)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Client.BaseURL != "http://backend.internal:9000" {
		t.Errorf("--api not applied: %q", cfg.Client.BaseURL)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("--log-level not applied: %q", cfg.Logging.Level)
	}
	if cfg.Gateway.Port != 5173 {
		t.Errorf("dev mode should default to port 5173, got %d", cfg.Gateway.Port)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	env := newTestEnv(t)
	t.Setenv("ENVIRONMENT", "qa")

	if _, err := loadConfig(&cli{configFile: env.configFile}, &cobra.Command{}); err == nil {
		t.Fatal("expected error for unknown environment")
	}
}

func TestModulesCommands(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "modules", "list")
	if err != nil {
		t.Fatalf("modules list: %v", err)
	}
	for _, want := range []string{"NAME", "index", "visual_pipeline"} {
		if !strings.Contains(out, want) {
			t.Errorf("modules list missing %q:\n%s", want, out)
		}
	}

	out, err = env.run(t, "modules", "routes", "index")
	if err != nil {
		t.Fatalf("modules routes: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header and 3 routes, got:\n%s", out)
	}
	if f := strings.Fields(lines[1]); len(f) != 3 || f[0] != "features" || f[2] != "/api/dashboard/features" {
		t.Errorf("routes not in declaration order:\n%s", out)
	}

	if _, err := env.run(t, "modules", "routes", "missing"); err == nil {
		t.Error("expected error for unknown module")
	}
}

func TestModulesCall(t *testing.T) {
	env := newTestEnv(t)
	env.startBackend(t)

	out, err := env.run(t, "modules", "call", "index", "health")
	if err != nil {
		t.Fatalf("modules call: %v", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Errorf("expected JSON body, got:\n%s", out)
	}

	if _, err := env.run(t, "modules", "call", "index", "health", "broken"); err == nil {
		t.Error("expected error for a parameter without =")
	}
}

func TestPipelineValidate(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "pipeline", "validate", "testdata/graph.json")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	for _, want := range []string{"4 nodes, 4 edges, 3 levels", "0: crawl", "2: export"} {
		if !strings.Contains(out, want) {
			t.Errorf("validate output missing %q:\n%s", want, out)
		}
	}

	out, err = env.run(t, "pipeline", "validate", "testdata/graph.yaml")
	if err != nil {
		t.Fatalf("validate yaml: %v", err)
	}
	if !strings.Contains(out, "2 nodes, 1 edges, 2 levels") {
		t.Errorf("unexpected yaml summary:\n%s", out)
	}

	if _, err := env.run(t, "pipeline", "validate", "testdata/cycle.json"); err == nil {
		t.Error("expected error for a cyclic pipeline")
	}
	if _, err := env.run(t, "pipeline", "validate", "testdata/missing.json"); err == nil {
		t.Error("expected error for a missing file")
	}
}

func TestPipelinePayload(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "pipeline", "payload", "--max-concurrency", "2", "testdata/graph.json")
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	var p pipeline.Payload
	if err := json.Unmarshal([]byte(out), &p); err != nil {
		t.Fatalf("payload is not JSON: %v\n%s", err, out)
	}
	if len(p.Nodes) != 4 || p.MaxConcurrency != 2 {
		t.Errorf("unexpected payload: %d nodes, max_concurrency %d", len(p.Nodes), p.MaxConcurrency)
	}
	for _, n := range p.Nodes {
		if n.ID == "export" && len(n.DependsOn) != 2 {
			t.Errorf("export depends_on = %v", n.DependsOn)
		}
	}
}

func TestPipelineSVG(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "pipeline", "svg", "testdata/graph.json")
	if err != nil {
		t.Fatalf("svg: %v", err)
	}
	if !strings.Contains(out, `<svg id="wires"`) || strings.Count(out, "<path") != 4 {
		t.Errorf("expected 4 wires:\n%s", out)
	}
}

func TestLoginAndRun(t *testing.T) {
	env := newTestEnv(t)
	env.startBackend(t)
	admin := account(t, auth.RoleAdmin)

	if _, err := env.run(t, "login", "-u", admin.Username, "-p", "wrong"); err == nil {
		t.Fatal("expected login with a wrong password to fail")
	}

	out, err := env.run(t, "login", "-u", admin.Username, "-p", admin.Password)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !strings.Contains(out, "logged in as "+admin.Username) {
		t.Errorf("unexpected login output %q", out)
	}

	out, err = env.run(t, "pipeline", "run", "--watch", "testdata/graph.json")
	if err != nil {
		t.Fatalf("pipeline run: %v\n%s", err, out)
	}
	for _, want := range []string{"submitted (4 nodes, ws engine)", "export", "success", "finished in"} {
		if !strings.Contains(out, want) {
			t.Errorf("run output missing %q:\n%s", want, out)
		}
	}

	out, err = env.run(t, "pipeline", "run", "--watch", "--engine", "simple", "testdata/graph.yaml")
	if err == nil || !strings.Contains(err.Error(), "1 of 2 nodes failed") {
		t.Errorf("expected one failed node, got %v\n%s", err, out)
	}

	out, err = env.run(t, "pipeline", "run", "testdata/graph.json")
	if err != nil || !strings.Contains(out, "simple engine") {
		t.Errorf("expected the last engine to be reused, got %v\n%s", err, out)
	}

	if role := env.stored(t, auth.KeyRole); role != string(auth.RoleAdmin) {
		t.Errorf("stored role = %q before logout", role)
	}
	if _, err := env.run(t, "login", "--logout"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	for _, key := range []string{auth.KeyToken, auth.KeyRole} {
		if v := env.stored(t, key); v != "" {
			t.Errorf("%s = %q after logout", key, v)
		}
	}
	if _, err := env.run(t, "pipeline", "run", "testdata/graph.json"); err == nil {
		t.Error("expected run without a token to be rejected")
	}
}

func TestPipelineRunLocal(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "pipeline", "run", "--local", "--as", "superadmin", "testdata/graph.json")
	if err != nil {
		t.Fatalf("run --local: %v\n%s", err, out)
	}
	if !strings.Contains(out, "finished in") {
		t.Errorf("expected the run to be watched to completion:\n%s", out)
	}

	if _, err := env.run(t, "pipeline", "run", "--local", "--as", "nobody", "testdata/graph.json"); err == nil {
		t.Error("expected error for an unknown demo account")
	}
}

func TestHealthCommand(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "health")
	if err == nil {
		t.Fatalf("expected health to fail with no backend:\n%s", out)
	}

	env.startBackend(t)
	out, err = env.run(t, "health")
	if err != nil {
		t.Fatalf("health: %v\n%s", err, out)
	}
	if !strings.Contains(out, fmt.Sprintf("127.0.0.1:%d", env.port)) {
		t.Errorf("health output should name the backend:\n%s", out)
	}
}

func TestLogsTail(t *testing.T) {
	env := newTestEnv(t)
	env.startBackend(t)
	user := account(t, auth.RoleUser)

	if _, err := env.run(t, "login", "-u", user.Username, "-p", user.Password); err != nil {
		t.Fatalf("login: %v", err)
	}
	out, err := env.run(t, "logs", "tail", "--limit", "2")
	if err != nil {
		t.Fatalf("logs tail: %v", err)
	}
	if n := len(strings.Split(strings.TrimSpace(out), "\n")); n < 2 {
		t.Errorf("expected at least 2 lines, got %d:\n%s", n, out)
	}
}
