package debugserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

type fakeInspector struct {
	snap Snapshot
}

func (f *fakeInspector) Snapshot() Snapshot { return f.snap }

func (f *fakeInspector) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event)
	close(ch)
	return ch, func() {}
}

func TestRegistriesReturnsSnapshot(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()

	insp := &fakeInspector{snap: Snapshot{RealKeys: []string{"/app/a.js"}, MockIDs: []string{"id-1"}}}
	StartStandalone(engine, insp)

	req := httptest.NewRequest(http.MethodGet, "/api/registries", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unexpected error decoding body: %v", err)
	}
	if len(got.RealKeys) != 1 || got.RealKeys[0] != "/app/a.js" {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
}
