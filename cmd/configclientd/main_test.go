package main

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"config-client/internal/config"
	xerrors "config-client/internal/errors"
	"config-client/internal/property"
)

func testConfig(t *testing.T, props map[string]string) *config.Config {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Sources.Env.Prefix = "CONFIG_CLIENT_TEST"
	cfg.Properties = props
	return cfg
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config-client.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = io.Discard
	err := app.Run(context.Background(), append([]string{"configclientd"}, args...))
	return out.String(), err
}

func TestBuildSourcesFollowsOrder(t *testing.T) {
	cfg := testConfig(t, nil)
	cfg.Sources.Order = []string{config.SourceFile, config.SourceRedis, config.SourceEnv}

	sources, cleanup, err := buildSources(context.Background(), cfg)
	require.NoError(t, err)
	defer cleanup()

	names := make([]string, 0, len(sources))
	for _, src := range sources {
		names = append(names, src.Name())
	}
	assert.Equal(t, []string{"file", "env"}, names)
}

func TestBuildSourcesSkipsDisabledEnv(t *testing.T) {
	cfg := testConfig(t, nil)
	cfg.Sources.Env.Disabled = true

	sources, cleanup, err := buildSources(context.Background(), cfg)
	require.NoError(t, err)
	defer cleanup()

	require.Len(t, sources, 1)
	assert.Equal(t, "file", sources[0].Name())
}

func TestResolveOnce(t *testing.T) {
	cfg := testConfig(t, map[string]string{"example.property": "hello"})

	prop, err := resolveOnce(context.Background(), cfg, "example.property")
	require.NoError(t, err)
	assert.Equal(t, property.ConfiguredProperty{Key: "example.property", Value: "hello", Source: "file"}, prop)
}

func TestResolveOnceEnvBeatsFile(t *testing.T) {
	t.Setenv("CONFIG_CLIENT_TEST_EXAMPLE_PROPERTY", "from env")
	cfg := testConfig(t, map[string]string{"example.property": "from file"})

	prop, err := resolveOnce(context.Background(), cfg, "example.property")
	require.NoError(t, err)
	assert.Equal(t, "from env", prop.Value)
	assert.Equal(t, "env", prop.Source)
}

func TestResolveOnceMissingPolicies(t *testing.T) {
	cfg := testConfig(t, nil)

	_, err := resolveOnce(context.Background(), cfg, "example.property")
	assert.Equal(t, xerrors.CodePropertyUnresolved, xerrors.CodeOf(err))

	cfg.Property.OnMissing = config.MissingEmpty
	prop, err := resolveOnce(context.Background(), cfg, "example.property")
	require.NoError(t, err)
	assert.Equal(t, "", prop.Value)
	assert.Equal(t, property.SourceMissing, prop.Source)

	fallback := "fallback"
	cfg.Property.OnMissing = config.MissingFail
	cfg.Property.Default = &fallback
	prop, err = resolveOnce(context.Background(), cfg, "example.property")
	require.NoError(t, err)
	assert.Equal(t, "fallback", prop.Value)
	assert.Equal(t, property.SourceDefault, prop.Source)
}

func TestResolveOnceHonorsMaxDepth(t *testing.T) {
	cfg := testConfig(t, map[string]string{
		"a": "${b}",
		"b": "${c}",
		"c": "${d}",
		"d": "end",
	})

	prop, err := resolveOnce(context.Background(), cfg, "a")
	require.NoError(t, err)
	assert.Equal(t, "end", prop.Value)

	cfg.Property.MaxDepth = 2
	_, err = resolveOnce(context.Background(), cfg, "a")
	assert.Equal(t, xerrors.CodeInvalidPlaceholder, xerrors.CodeOf(err))
}

func TestServeFailsBeforeListeningWhenUnresolved(t *testing.T) {
	cfg := testConfig(t, nil)
	cfg.Server.Address = "127.0.0.1:0"

	err := serve(context.Background(), cfg)
	assert.Equal(t, xerrors.CodePropertyUnresolved, xerrors.CodeOf(err))
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func TestServeResolvesAndServes(t *testing.T) {
	cfg := testConfig(t, map[string]string{"example.property": "hello"})
	cfg.Server.Address = freeAddr(t)
	cfg.Metrics.Enabled = true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg) }()

	base := "http://" + cfg.Server.Address
	var body string
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/client/config")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		raw, err := io.ReadAll(resp.Body)
		if err != nil || resp.StatusCode != http.StatusOK {
			return false
		}
		body = string(raw)
		return true
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, "A propriedade configurada é: hello", body)

	resp, err := http.Get(base + cfg.Metrics.Path)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(raw), `config_client_property_info{key="example.property",source="file"} 1`)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop after cancellation")
	}
}

func TestLoadConfigExplicitPathMustExist(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Equal(t, xerrors.CodeConfigInvalid, xerrors.CodeOf(err))
}

func TestResolveCommand(t *testing.T) {
	path := writeConfig(t, `
logging:
  output_paths: [stderr]
sources:
  env:
    prefix: CONFIG_CLIENT_TEST
properties:
  example.property: hello
  greeting: "${example.property} world"
`)

	out, err := runApp(t, "--config", path, "resolve")
	require.NoError(t, err)
	assert.Equal(t, "example.property=hello (source: file)\n", out)

	out, err = runApp(t, "--config", path, "resolve", "greeting")
	require.NoError(t, err)
	assert.Equal(t, "greeting=hello world (source: file)\n", out)
}

func TestResolveCommandPlaceholderDefault(t *testing.T) {
	path := writeConfig(t, `
logging:
  output_paths: [stderr]
sources:
  env:
    prefix: CONFIG_CLIENT_TEST
properties:
  example.property: hello
`)

	out, err := runApp(t, "--config", path, "resolve", "${absent.key:fallback}")
	require.NoError(t, err)
	assert.Equal(t, "absent.key=fallback (source: default)\n", out)

	out, err = runApp(t, "--config", path, "resolve", "${example.property:fallback}")
	require.NoError(t, err)
	assert.Equal(t, "example.property=hello (source: file)\n", out)

	_, err = runApp(t, "--config", path, "resolve", "${absent.key")
	assert.Equal(t, xerrors.CodeInvalidPlaceholder, xerrors.CodeOf(err))
}

func TestResolveCommandFails(t *testing.T) {
	path := writeConfig(t, `
logging:
  output_paths: [stderr]
sources:
  env:
    disabled: true
`)

	_, err := runApp(t, "--config", path, "resolve")
	assert.Equal(t, xerrors.CodePropertyUnresolved, xerrors.CodeOf(err))
}

func TestGetCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "A propriedade configurada é: hello")
	}))
	defer srv.Close()

	out, err := runApp(t, "get", "--url", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out)

	out, err = runApp(t, "get", "--url", srv.URL, "--raw")
	require.NoError(t, err)
	assert.Equal(t, "A propriedade configurada é: hello\n", out)
}

func TestVersionCommand(t *testing.T) {
	out, err := runApp(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "configclientd version dev\n", out)
}
