package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	. "github.com/trezcool/ratiba/apps/api/echo"
	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/timetable"
	"github.com/trezcool/ratiba/services/logger"
	"github.com/trezcool/ratiba/services/metrics"
	"github.com/trezcool/ratiba/services/notify"
	"github.com/trezcool/ratiba/storage/database/inmem"
	"github.com/trezcool/ratiba/tests"
)

const (
	secretKey = "test-secret"
	basePath  = "/v1/schools/" + testutil.SchoolID
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type fixture struct {
	app     *Server
	repo    timetable.Repository
	engine  *timetable.Engine
	hub     *notifysvc.Hub
	metrics *metricsvc.Prometheus
}

func setup(t *testing.T) fixture {
	t.Helper()

	// set up DB & repos
	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed: %v", err)
	}
	repo := inmemdb.NewTimetableRepository(db)
	testutil.SeedSchool(t, repo)

	// set up services
	logger := logsvc.NewNopLogger()
	hub := notifysvc.NewHub(logger)
	t.Cleanup(hub.Close)
	prom := metricsvc.NewPrometheus()
	store := timetable.NewCatalogStore(repo, nil, logger)
	engine := timetable.NewEngine(repo, hub, prom, logger)
	validate, translator := testutil.NewValidator()

	// set up server
	app := NewServer(
		&Options{
			AppName:        "Ratiba",
			SecretKey:      secretKey,
			TestMode:       true,
			DisableReqLogs: true,
			Store:          store,
			Engine:         engine,
			Subscriber:     hub,
			Metrics:        prom.Handler(),
			Validate:       validate,
			Translator:     translator,
			Logger:         logger,
		},
	)
	return fixture{app: app, repo: repo, engine: engine, hub: hub, metrics: prom}
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, schoolID string, canEdit bool) string {
	id := core.Identity{ID: "usr-1", SchoolID: schoolID, Username: "jdoe", Email: "jdoe@test.cd"}
	token, err := GenerateToken(NewClaims(id, canEdit, "Ratiba", time.Hour), secretKey)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func editorToken(t *testing.T) string {
	return getToken(t, testutil.SchoolID, true)
}

func readerToken(t *testing.T) string {
	return getToken(t, testutil.SchoolID, false)
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func unmarshal(t *testing.T, data []byte, obj interface{}) {
	if err := json.Unmarshal(data, obj); err != nil {
		t.Fatalf("unmarshal() failed: %v; data %s", err, data)
	}
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, app http.Handler, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
