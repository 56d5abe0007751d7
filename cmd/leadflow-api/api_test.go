package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukex/leadflow/pkg/cmd"
	"github.com/dukex/leadflow/pkg/web"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()

	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)

	engine, err := cmd.NewEngine(ctx, logger, cmd.EngineOptions{DatabaseURL: "file://" + t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close(ctx) })

	return NewAPI(logger, engine).App()
}

func get(t *testing.T, app *fiber.App, path string, builderID string) (int, string) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	if builderID != "" {
		req.Header.Set(web.BuilderHeader, builderID)
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, string(body)
}

func TestAPI_RootEndpoint(t *testing.T) {
	t.Parallel()

	status, body := get(t, setupTestApp(t), "/", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Leadflow API", body)
}

func TestAPI_Probes(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	for _, path := range []string{"/livez", "/readyz", "/health"} {
		status, _ := get(t, app, path, "")
		assert.Equal(t, http.StatusOK, status, path)
	}
}

func TestAPI_RoutesMounted(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	status, body := get(t, app, "/automations", "b1")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"automations":[],"total_count":0}`, body)

	status, _ = get(t, app, "/webhooks", "")
	assert.Equal(t, http.StatusUnauthorized, status)
}
