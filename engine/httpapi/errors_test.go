package httpapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wanderlyst/agentcore/engine/core"
	"github.com/wanderlyst/agentcore/engine/httpapi"
)

func TestStatusAndCode(t *testing.T) {
	cases := []struct {
		name       string
		err        *core.Error
		wantStatus int
		wantCode   string
	}{
		{"empty input", core.NewKindError(core.KindUser, nil, core.CodeEmptyInput, nil), http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{"input too long", core.NewKindError(core.KindUser, nil, core.CodeInputTooLong, nil), http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{"prompt injection", core.NewKindError(core.KindUser, nil, core.CodePromptInjection, nil), http.StatusBadRequest, "INVALID_INPUT"},
		{"rate limited", core.NewKindError(core.KindQuota, nil, core.CodeRateLimited, nil), http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED"},
		{"circuit open", core.NewKindError(core.KindBusy, nil, core.CodeCircuitOpen, nil), http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{"lock timeout", core.NewKindError(core.KindBusy, nil, core.CodeLockTimeout, nil), http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{"store failure falls back to Kind", core.NewKindError(core.KindDependency, nil, core.CodeStoreFailure, nil), http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{"internal", core.NewKindError(core.KindInternal, nil, core.CodeInternal, nil), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, code := httpapi.StatusAndCode(tc.err)
			assert.Equal(t, tc.wantStatus, status)
			assert.Equal(t, tc.wantCode, code)
		})
	}
}
