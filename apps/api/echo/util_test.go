package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	echoapi "github.com/youknow/checklist/apps/api/echo"
	"github.com/youknow/checklist/core"
	"github.com/youknow/checklist/core/checklist"
	"github.com/youknow/checklist/core/user"
	cachesvc "github.com/youknow/checklist/services/cache"
	emailsvc "github.com/youknow/checklist/services/email"
	logsvc "github.com/youknow/checklist/services/logger"
	inmemdb "github.com/youknow/checklist/storage/database/inmem"
	"github.com/youknow/checklist/testutil"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

// monday 10:00 UTC
var now = time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC)

type fixture struct {
	conf    *core.Config
	app     *echoapi.Server
	usrRepo user.Repository
	chkRepo checklist.Repository
	mailer  *emailsvc.ConsoleServiceMock
}

func setup(t *testing.T) *fixture {
	t.Helper()
	conf := testutil.NewConfig()
	logger := logsvc.NewTestLogger(conf)
	validate, translator := testutil.NewValidator()
	core.ParseEmailTemplates(logger)

	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	chkRepo := inmemdb.NewChecklistRepository(db)
	usrSvc := user.NewService(usrRepo)
	mailer := emailsvc.NewConsoleServiceMock(conf, logger)
	chkSvc := checklist.NewService(chkRepo, usrSvc, mailer, logger, validate, conf,
		checklist.WithClock(func() time.Time { return now }),
		checklist.WithCache(cachesvc.NewMemoryCache()),
	)

	app := echoapi.NewServer(echoapi.ServerDeps{
		Conf:         conf,
		Logger:       logger,
		UserSvc:      usrSvc,
		ChecklistSvc: chkSvc,
		Validate:     validate,
		Translator:   translator,
	})
	return &fixture{conf: conf, app: app, usrRepo: usrRepo, chkRepo: chkRepo, mailer: mailer}
}

func (f *fixture) do(req *http.Request, rec *httptest.ResponseRecorder) *httptest.ResponseRecorder {
	f.app.ServeHTTP(rec, req)
	return rec
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

func getToken(t *testing.T, conf *core.Config, usr user.User) string {
	t.Helper()
	token, err := echoapi.GenerateToken(conf, echoapi.GetUserClaims(conf, usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshalObj() failed: %v", err)
	}
	return data
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dest), rec.Body.String())
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, f *fixture, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, f.do(req, rec))
		})
	}
}
