package httpapi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/routine/internal/ir"
	"github.com/roach88/routine/internal/routine"
)

type seen struct {
	method, path, body, contentType string
}

func newServer(t *testing.T, status int, contentType, body string) (*httptest.Server, *seen) {
	t.Helper()
	s := &seen{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		s.method = r.Method
		s.path = r.URL.EscapedPath()
		s.body = string(data)
		s.contentType = r.Header.Get("Content-Type")

		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, s
}

func TestCaller_SuccessDecodesJSON(t *testing.T) {
	srv, s := newServer(t, http.StatusOK, "application/json", `[{"id":1,"title":"a"}]`)
	c := NewClient(srv.URL, 0)

	call, err := c.Caller(ir.EndpointDef{Method: "get", URL: "/todos/{0}", BodyArg: -1})
	require.NoError(t, err)

	resp, err := call(context.Background(), ir.String("a b"))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, ir.Array{ir.Object{"id": ir.Int(1), "title": ir.String("a")}}, resp.Data)
	assert.Equal(t, "GET", s.method)
	assert.Equal(t, "/todos/a%20b", s.path)
	assert.Empty(t, s.body)
}

func TestCaller_SendsBodyArg(t *testing.T) {
	srv, s := newServer(t, http.StatusCreated, "application/json", `{"id":7}`)
	c := NewClient(srv.URL, 0)

	call, err := c.Caller(ir.EndpointDef{Method: "POST", URL: "/lists/{0}/todos", BodyArg: 1})
	require.NoError(t, err)

	resp, err := call(context.Background(), ir.Int(3), ir.Object{"title": ir.String("x"), "done": ir.Bool(false)})
	require.NoError(t, err)

	assert.Equal(t, ir.Object{"id": ir.Int(7)}, resp.Data)
	assert.Equal(t, "/lists/3/todos", s.path)
	assert.Equal(t, `{"done":false,"title":"x"}`, s.body)
	assert.Equal(t, "application/json", s.contentType)
}

func TestCaller_EmptyBodyIsNull(t *testing.T) {
	srv, _ := newServer(t, http.StatusNoContent, "", "")
	call, err := NewClient(srv.URL, 0).Caller(ir.EndpointDef{Method: "DELETE", URL: "/x", BodyArg: -1})
	require.NoError(t, err)

	resp, err := call(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ir.Null{}, resp.Data)
}

func TestCaller_ErrorStatusIsResponseError(t *testing.T) {
	srv, _ := newServer(t, http.StatusUnprocessableEntity, "application/json", `{"message":"invalid"}`)
	call, err := NewClient(srv.URL, 0).Caller(ir.EndpointDef{Method: "PUT", URL: "/x", BodyArg: -1})
	require.NoError(t, err)

	_, err = call(context.Background())
	re, ok := routine.AsResponseError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnprocessableEntity, re.Response.Status)
	assert.Equal(t, ir.Object{"message": ir.String("invalid")}, re.Response.Data)
}

func TestCaller_HTMLErrorPageIsString(t *testing.T) {
	page := "<!DOCTYPE html><html><body>Bad Gateway</body></html>"
	srv, _ := newServer(t, http.StatusBadGateway, "text/html", page)
	call, err := NewClient(srv.URL, 0).Caller(ir.EndpointDef{Method: "GET", URL: "/x", BodyArg: -1})
	require.NoError(t, err)

	_, err = call(context.Background())
	re, ok := routine.AsResponseError(err)
	require.True(t, ok)
	assert.Equal(t, ir.String(page), re.Response.Data)
}

func TestCaller_TransportErrorIsPlain(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, "", "")
	url := srv.URL
	srv.Close()

	call, err := NewClient(url, 0).Caller(ir.EndpointDef{Method: "GET", URL: "/x", BodyArg: -1})
	require.NoError(t, err)

	_, err = call(context.Background())
	require.Error(t, err)
	_, ok := routine.AsResponseError(err)
	assert.False(t, ok)
}

func TestCaller_MissingPlaceholderArg(t *testing.T) {
	call, err := NewClient("http://unused", 0).Caller(ir.EndpointDef{Method: "GET", URL: "/todos/{1}", BodyArg: -1})
	require.NoError(t, err)

	_, err = call(context.Background(), ir.Int(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "placeholder {1}")
}

func TestCaller_InvalidEndpoint(t *testing.T) {
	c := NewClient("", 0)

	_, err := c.Caller(ir.EndpointDef{Method: "TRACE", URL: "/x"})
	assert.Error(t, err)

	_, err = c.Caller(ir.EndpointDef{Method: "GET"})
	assert.Error(t, err)
}

func TestResolveURL(t *testing.T) {
	tests := []struct {
		base, pattern string
		payload       []ir.Value
		want          string
	}{
		{"http://api", "/a/{0}", []ir.Value{ir.Float(1.5)}, "http://api/a/1.5"},
		{"http://api/", "a", nil, "http://api/a"},
		{"http://api", "https://other/x/{0}", []ir.Value{ir.Bool(true)}, "https://other/x/true"},
		{"", "/a/{0}", []ir.Value{ir.String("q/r")}, "/a/q%2Fr"},
	}

	for _, tt := range tests {
		c := &Client{BaseURL: tt.base}
		got, err := c.resolveURL(tt.pattern, tt.payload)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}
