/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suparena/eserp/datastore/mock"
	"github.com/suparena/eserp/executor"
	"github.com/suparena/eserp/registry"
	"github.com/suparena/eserp/storagemodels"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	types := mock.New[storagemodels.EntityType]()
	types.SetData(
		storagemodels.EntityType{Scope: storagemodels.SystemScope, ID: "workspace", Name: "Workspace",
			Fields: []storagemodels.FieldDefinition{{Key: "name", Label: "Name", Type: storagemodels.FieldTypeText}}},
		storagemodels.EntityType{Scope: storagemodels.SystemScope, ID: "asset", Name: "Asset", ParentID: "workspace",
			Fields: []storagemodels.FieldDefinition{{Key: "rate", Label: "Daily rate", Type: storagemodels.FieldTypeNumber}}},
	)
	entities := mock.New[storagemodels.Entity]()
	entities.SetData(
		storagemodels.Entity{ID: "ws-1", TenantID: "acme", EntityTypeID: "workspace",
			Attributes: map[string]storagemodels.Value{"name": storagemodels.Text("Acme")}},
		storagemodels.Entity{ID: "a-1", TenantID: "acme", EntityTypeID: "asset", ParentID: "ws-1",
			Attributes: map[string]storagemodels.Value{"rate": storagemodels.Number(250)}},
		storagemodels.Entity{ID: "a-9", TenantID: "globex", EntityTypeID: "asset",
			Attributes: map[string]storagemodels.Value{"rate": storagemodels.Number(1)}},
	)

	reg := registry.New(registry.NewTypeStore(types))
	srv := httptest.NewServer(NewRouter(executor.New(entities, reg), reg))
	t.Cleanup(srv.Close)
	return srv
}

type call struct {
	method, path, body string
	tenant, role       string
}

func (c call) do(t *testing.T, srv *httptest.Server) (*http.Response, []byte) {
	t.Helper()
	var body io.Reader
	if c.body != "" {
		body = strings.NewReader(c.body)
	}
	req, err := http.NewRequestWithContext(context.Background(), c.method, srv.URL+c.path, body)
	require.NoError(t, err)
	if c.tenant != "" {
		req.Header.Set(HeaderTenant, c.tenant)
	}
	req.Header.Set(HeaderActor, "dana")
	if c.role != "" {
		req.Header.Set(HeaderRole, c.role)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(data, &body), string(data))
	return body.Code
}

func TestEntityRoutes(t *testing.T) {
	srv := newTestServer(t)

	t.Run("List", func(t *testing.T) {
		resp, data := call{method: http.MethodGet, path: "/v1/tenants/acme/entities?filter.type=asset&options.limit=10", tenant: "acme"}.do(t, srv)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

		var res struct {
			Columns []struct{ Key, Label string }
			Rows    []struct {
				ID     string `json:"id"`
				TypeID string `json:"type_id"`
				Values []any  `json:"values"`
			}
			Limit int64
		}
		require.NoError(t, json.Unmarshal(data, &res))
		require.Len(t, res.Rows, 1)
		assert.Equal(t, "a-1", res.Rows[0].ID)
		assert.Equal(t, "asset", res.Rows[0].TypeID)
		assert.Equal(t, []any{nil, 250.0}, res.Rows[0].Values)
		assert.Equal(t, int64(10), res.Limit)
	})

	t.Run("InvalidSort", func(t *testing.T) {
		resp, data := call{method: http.MethodGet, path: "/v1/tenants/acme/entities?sort.rate=up", tenant: "acme"}.do(t, srv)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, CodeInvalidInput, errorCode(t, data))
	})

	t.Run("TenantMismatch", func(t *testing.T) {
		resp, data := call{method: http.MethodGet, path: "/v1/tenants/globex/entities", tenant: "acme"}.do(t, srv)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, CodeForbidden, errorCode(t, data))
	})

	t.Run("MissingIdentity", func(t *testing.T) {
		resp, data := call{method: http.MethodGet, path: "/v1/tenants/acme/entities"}.do(t, srv)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, CodeUnauthenticated, errorCode(t, data))
	})

	t.Run("CrossTenantReadIsNotFound", func(t *testing.T) {
		resp, data := call{method: http.MethodGet, path: "/v1/tenants/acme/entities/a-9", tenant: "acme"}.do(t, srv)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, CodeNotFound, errorCode(t, data))
	})

	t.Run("CreatePatchHideRestore", func(t *testing.T) {
		resp, data := call{method: http.MethodPost, path: "/v1/tenants/acme/entities", tenant: "acme",
			body: `{"type_id":"asset","parent_id":"ws-1","attributes":{"rate":"cheap","name":"Forklift"}}`}.do(t, srv)
		require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))

		var created entityResponse
		require.NoError(t, json.Unmarshal(data, &created))
		require.NotEmpty(t, created.Entity.ID)
		assert.Len(t, created.Issues, 1, "rate is not a number")
		path := "/v1/tenants/acme/entities/" + created.Entity.ID

		resp, data = call{method: http.MethodPatch, path: path, tenant: "acme", body: `{"attributes":{"rate":99,"name":null}}`}.do(t, srv)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
		var updated entityResponse
		require.NoError(t, json.Unmarshal(data, &updated))
		assert.Equal(t, storagemodels.Number(99), updated.Entity.Attributes["rate"])
		assert.NotContains(t, updated.Entity.Attributes, "name")
		assert.Empty(t, updated.Issues)

		resp, _ = call{method: http.MethodDelete, path: path, tenant: "acme"}.do(t, srv)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp, _ = call{method: http.MethodGet, path: path, tenant: "acme"}.do(t, srv)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		resp, _ = call{method: http.MethodPost, path: path + "/restore", tenant: "acme"}.do(t, srv)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		resp, _ = call{method: http.MethodPost, path: path + "/restore", tenant: "acme", role: RoleAdmin}.do(t, srv)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp, _ = call{method: http.MethodGet, path: path, tenant: "acme"}.do(t, srv)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("BadPayload", func(t *testing.T) {
		resp, _ := call{method: http.MethodPost, path: "/v1/tenants/acme/entities", tenant: "acme", body: `{`}.do(t, srv)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestEntityTypeRoutes(t *testing.T) {
	srv := newTestServer(t)

	t.Run("Describe", func(t *testing.T) {
		resp, data := call{method: http.MethodGet, path: "/v1/tenants/acme/entity-types/asset", tenant: "acme"}.do(t, srv)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

		var got typeResponse
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, 1, got.Depth)
		assert.Equal(t, []string{"workspace"}, got.Lineage)
		assert.Len(t, got.Fields, 2)
		assert.Equal(t, storagemodels.SystemScope, got.Scope)
	})

	t.Run("OverrideRequiresAdmin", func(t *testing.T) {
		body := `{"name":"Equipment","parentId":"workspace","fields":[{"key":"rate","label":"Rate","type":"number"}]}`
		resp, _ := call{method: http.MethodPut, path: "/v1/tenants/acme/entity-types/asset", tenant: "acme", body: body}.do(t, srv)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		resp, data := call{method: http.MethodPut, path: "/v1/tenants/acme/entity-types/asset", tenant: "acme", role: RoleAdmin, body: body}.do(t, srv)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
		var got putTypeResponse
		require.NoError(t, json.Unmarshal(data, &got))
		assert.True(t, got.Changed)
		assert.Equal(t, "acme", got.Type.Scope)
		assert.Equal(t, "Equipment", got.Type.Name)

		// Other tenants still see the SYSTEM definition.
		resp, data = call{method: http.MethodGet, path: "/v1/tenants/globex/entity-types/asset", tenant: "globex"}.do(t, srv)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var other typeResponse
		require.NoError(t, json.Unmarshal(data, &other))
		assert.Equal(t, "Asset", other.Name)
	})

	t.Run("Cycle", func(t *testing.T) {
		body := `{"name":"Workspace","parentId":"asset"}`
		resp, data := call{method: http.MethodPut, path: "/v1/tenants/globex/entity-types/workspace", tenant: "globex", role: RoleAdmin, body: body}.do(t, srv)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, CodeCycleDetected, errorCode(t, data))
	})

	t.Run("List", func(t *testing.T) {
		resp, data := call{method: http.MethodGet, path: "/v1/tenants/acme/entity-types", tenant: "acme"}.do(t, srv)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var got []storagemodels.EntityType
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Len(t, got, 2)
	})
}

func TestOperationalRoutes(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := call{method: http.MethodGet, path: "/healthz"}.do(t, srv)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	call{method: http.MethodGet, path: "/v1/tenants/acme/entities", tenant: "acme"}.do(t, srv)
	resp, data := call{method: http.MethodGet, path: "/metrics"}.do(t, srv)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), `eserp_http_requests_total{method="GET",route="/v1/tenants/{tenant}/entities",status="200"} 1`)
}

func TestStatusFor(t *testing.T) {
	status, code := statusFor(io.EOF)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, CodeInternal, code)
}
