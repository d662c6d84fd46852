package uistatic

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
)

func TestHandlerServesEmbeddedIndex(t *testing.T) {
	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "QueryPilot") {
		t.Fatalf("index body = %s", rr.Body.String())
	}
	if rr.Header().Get("Cache-Control") != "no-cache" {
		t.Fatalf("Cache-Control = %q", rr.Header().Get("Cache-Control"))
	}
}

func TestHandlerServesAssetsAndFallsBackToIndex(t *testing.T) {
	files := fstest.MapFS{
		"index.html":    {Data: []byte("<html>index</html>")},
		"app.js":        {Data: []byte("console.log(1)")},
		"nested/a.html": {Data: []byte("nested")},
	}
	h := handlerFS(files)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/app.js", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "console.log(1)" {
		t.Fatalf("asset status = %d, body=%s", rr.Code, rr.Body.String())
	}

	for _, target := range []string{"/history/billing/3", "/nested", "/../index.html"} {
		rr = httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
		if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "index") {
			t.Fatalf("%s: status = %d, body=%s", target, rr.Code, rr.Body.String())
		}
	}
}
