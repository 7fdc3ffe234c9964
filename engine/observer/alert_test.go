package observer_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wanderlyst/agentcore/engine/observer"
)

func TestAlerter_Dispatch(t *testing.T) {
	ctx := context.Background()

	t.Run("Should POST a compact payload when a webhook is configured", func(t *testing.T) {
		var received map[string]any
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		a := observer.NewAlerter(server.URL)
		a.Dispatch(ctx, observer.SeverityCritical, "threshold reached", map[string]any{"error_code": "X"})

		require.Equal(t, "critical", received["severity"])
		require.Equal(t, "threshold reached", received["message"])
	})

	t.Run("Should not error when no webhook is configured", func(t *testing.T) {
		a := observer.NewAlerter("")
		require.NotPanics(t, func() {
			a.Dispatch(ctx, observer.SeverityWarning, "latency anomaly", nil)
		})
	})
}
