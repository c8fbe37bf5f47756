package main

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/scimware/scim-server/pkg/log"
	"github.com/scimware/scim-server/pkg/patch"
	"github.com/scimware/scim-server/pkg/server"
	"github.com/scimware/scim-server/pkg/version"

	"github.com/golang/glog"
	"github.com/julienschmidt/httprouter"
)

// httpBinding is the reference HTTP transport for a server.Server: an
// httprouter route table wrapped in a status-capturing responseWriter,
// with an access-log line per request.
type httpBinding struct {
	http.Handler
	srv *server.Server
}

// newHTTPBinding builds the route table for every resource type the
// server was configured with, plus the SCIM discovery endpoints
// (/ServiceProviderConfig, /Schemas).
func newHTTPBinding(srv *server.Server, resourceTypes []string) http.Handler {
	router := httprouter.New()

	router.GET("/v2/ServiceProviderConfig", handleServerInfo(srv))
	router.GET("/v2/Schemas", handleSchemas(srv))

	for _, plural := range resourceTypes {
		resourceType := plural

		router.POST("/v2/"+plural, handleCreate(srv, resourceType))
		router.GET("/v2/"+plural, handleList(srv, resourceType))
		router.GET("/v2/"+plural+"/:id", handleGet(srv, resourceType))
		router.PUT("/v2/"+plural+"/:id", handleReplace(srv, resourceType))
		router.PATCH("/v2/"+plural+"/:id", handlePatch(srv, resourceType))
		router.DELETE("/v2/"+plural+"/:id", handleDelete(srv, resourceType))
	}

	return &httpBinding{Handler: router, srv: srv}
}

// responseWriter wraps the standard response writer so the access log can
// report the status code actually written.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// ServeHTTP logs every request/response pair, then delegates to the route
// table.
func (h *httpBinding) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	writer := &responseWriter{ResponseWriter: w}

	glog.Infof(`HTTP req: "%s %s %s" %s`, r.Method, r.URL, r.Proto, r.RemoteAddr)

	for name, values := range r.Header {
		for _, value := range values {
			glog.V(log.LevelDebug).Infof(`HTTP hdr: "%s: %s"`, name, value)
		}
	}

	defer func() {
		glog.Infof(`HTTP rsp: "%d %s" %v`, writer.status, http.StatusText(writer.status), time.Since(start))
	}()

	h.Handler.ServeHTTP(writer, r)
}

// jsonRequest reads and decodes a request body.
func jsonRequest(r *http.Request, data interface{}) error {
	body, err := ioutil.ReadAll(r.Body)
	if err != nil {
		return fmt.Errorf("unable to read body: %w", err)
	}

	if len(body) == 0 {
		return nil
	}

	return json.Unmarshal(body, data)
}

// jsonResponse writes status and data as a JSON body.
func jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		glog.Errorf("failed to marshal response: %v", err)
		w.WriteHeader(http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/scim+json")
	w.WriteHeader(status)

	if _, err := w.Write(body); err != nil {
		glog.Errorf("error writing response: %v", err)
	}
}

// scimError renders the SCIM error response body (RFC 7644 §3.12).
func scimError(w http.ResponseWriter, info *server.ErrorInfo) {
	body := map[string]interface{}{
		"schemas": []string{"urn:ietf:params:scim:api:messages:2.0:Error"},
		"status":  strconv.Itoa(info.HTTPStatus),
		"detail":  info.Detail,
	}

	if info.ScimType != "" {
		body["scimType"] = info.ScimType
	}

	jsonResponse(w, info.HTTPStatus, body)
}

// writeResult renders a successful server.Response, attaching an ETag and
// Location header when the payload is a single stamped resource.
func writeResult(w http.ResponseWriter, status int, resp *server.Response) {
	if resp.CurrentVersion != "" {
		w.Header().Set("ETag", version.EmitHTTP(version.Raw(resp.CurrentVersion)))
	}

	if loc, ok := resp.Data["meta"].(map[string]interface{}); ok {
		if l, ok := loc["location"].(string); ok {
			w.Header().Set("Location", l)
		}
	}

	jsonResponse(w, status, resp.Data)
}

// ifMatch extracts and parses an If-Match precondition header, returning
// "" (unconditional) when absent.
func ifMatch(r *http.Request) (string, error) {
	header := r.Header.Get("If-Match")
	if header == "" {
		return "", nil
	}

	raw, err := version.ParseHTTP(header)
	if err != nil {
		return "", err
	}

	return string(raw), nil
}

func handleCreate(srv *server.Server, resourceType string) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var data map[string]interface{}
		if err := jsonRequest(r, &data); err != nil {
			scimError(w, &server.ErrorInfo{HTTPStatus: http.StatusBadRequest, Detail: err.Error()})
			return
		}

		resp := srv.Dispatch(r.Context(), server.Request{
			Op:           server.OpCreate,
			ResourceType: resourceType,
			Data:         data,
			Tenant:       tenantFromRequest(r),
		})
		if !resp.Success {
			scimError(w, resp.Error)
			return
		}

		writeResult(w, http.StatusCreated, resp)
	}
}

func handleGet(srv *server.Server, resourceType string) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		resp := srv.Dispatch(r.Context(), server.Request{
			Op:           server.OpGet,
			ResourceType: resourceType,
			ResourceID:   params.ByName("id"),
			Tenant:       tenantFromRequest(r),
		})
		if !resp.Success {
			scimError(w, resp.Error)
			return
		}

		writeResult(w, http.StatusOK, resp)
	}
}

func handleReplace(srv *server.Server, resourceType string) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		var data map[string]interface{}
		if err := jsonRequest(r, &data); err != nil {
			scimError(w, &server.ErrorInfo{HTTPStatus: http.StatusBadRequest, Detail: err.Error()})
			return
		}

		expected, err := ifMatch(r)
		if err != nil {
			scimError(w, &server.ErrorInfo{HTTPStatus: http.StatusBadRequest, Detail: err.Error()})
			return
		}

		resp := srv.Dispatch(r.Context(), server.Request{
			Op:              server.OpReplace,
			ResourceType:    resourceType,
			ResourceID:      params.ByName("id"),
			Data:            data,
			ExpectedVersion: expected,
			Tenant:          tenantFromRequest(r),
		})
		if !resp.Success {
			scimError(w, resp.Error)
			return
		}

		writeResult(w, http.StatusOK, resp)
	}
}

func handlePatch(srv *server.Server, resourceType string) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		var doc patch.Document
		if err := jsonRequest(r, &doc); err != nil {
			scimError(w, &server.ErrorInfo{HTTPStatus: http.StatusBadRequest, Detail: err.Error()})
			return
		}

		expected, err := ifMatch(r)
		if err != nil {
			scimError(w, &server.ErrorInfo{HTTPStatus: http.StatusBadRequest, Detail: err.Error()})
			return
		}

		resp := srv.Dispatch(r.Context(), server.Request{
			Op:              server.OpPatch,
			ResourceType:    resourceType,
			ResourceID:      params.ByName("id"),
			Patch:           doc,
			ExpectedVersion: expected,
			Tenant:          tenantFromRequest(r),
		})
		if !resp.Success {
			scimError(w, resp.Error)
			return
		}

		writeResult(w, http.StatusOK, resp)
	}
}

func handleDelete(srv *server.Server, resourceType string) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		expected, err := ifMatch(r)
		if err != nil {
			scimError(w, &server.ErrorInfo{HTTPStatus: http.StatusBadRequest, Detail: err.Error()})
			return
		}

		resp := srv.Dispatch(r.Context(), server.Request{
			Op:              server.OpDelete,
			ResourceType:    resourceType,
			ResourceID:      params.ByName("id"),
			ExpectedVersion: expected,
			Tenant:          tenantFromRequest(r),
		})
		if !resp.Success {
			scimError(w, resp.Error)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func handleList(srv *server.Server, resourceType string) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		query := r.URL.Query()

		req := server.Request{
			Op:           server.OpList,
			ResourceType: resourceType,
			Query: server.Query{
				StartIndex: atoiDefault(query.Get("startIndex"), 0),
				Count:      atoiDefault(query.Get("count"), 0),
				Filter:     query.Get("filter"),
			},
			Tenant: tenantFromRequest(r),
		}

		if req.Query.Filter != "" {
			req.Op = server.OpSearch
		}

		resp := srv.Dispatch(r.Context(), req)
		if !resp.Success {
			scimError(w, resp.Error)
			return
		}

		writeResult(w, http.StatusOK, resp)
	}
}

func handleServerInfo(srv *server.Server) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		resp := srv.Dispatch(r.Context(), server.Request{Op: server.OpGetServerInfo})
		writeResult(w, http.StatusOK, resp)
	}
}

func handleSchemas(srv *server.Server) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		resp := srv.Dispatch(r.Context(), server.Request{Op: server.OpGetSchemas})
		writeResult(w, http.StatusOK, resp)
	}
}

// tenantFromRequest derives a server.TenantRef from the X-Tenant-Id and
// X-Client-Id headers this reference binding uses in place of a full
// authentication scheme; the engine only ever looks credentials up, it
// never authenticates them.
func tenantFromRequest(r *http.Request) server.TenantRef {
	return server.TenantRef{
		TenantID: r.Header.Get("X-Tenant-Id"),
		ClientID: r.Header.Get("X-Client-Id"),
	}
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}

	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}

	return n
}
