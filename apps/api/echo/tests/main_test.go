package tests

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	echoapi "github.com/edvora/edvora/apps/api/echo"
	"github.com/edvora/edvora/core"
	"github.com/edvora/edvora/core/analytics"
	"github.com/edvora/edvora/core/catalog"
	"github.com/edvora/edvora/core/chat"
	"github.com/edvora/edvora/core/progress"
	"github.com/edvora/edvora/core/selection"
	"github.com/edvora/edvora/core/user"
	emailsvc "github.com/edvora/edvora/services/email"
	logsvc "github.com/edvora/edvora/services/logger"
	inmemdb "github.com/edvora/edvora/storage/database/inmem"
)

var (
	db          *inmemdb.DB
	app         *echoapi.Server
	conf        *core.Config
	mailSvc     *emailsvc.ConsoleServiceMock
	usrRepo     user.Repository
	catalogRepo catalog.Repository
	store       *memStore

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
)

func TestMain(m *testing.M) {
	conf = &core.Config{
		AppName:                   "Edvora",
		SecretKey:                 "test-secret",
		TestMode:                  true,
		FrontendBaseURL:           "http://localhost:5173",
		PasswordResetTimeoutDelta: 24 * time.Hour,
	}
	conf.Server.JWTExpirationDelta = time.Hour
	conf.Server.JWTRefreshExpirationDelta = 24 * time.Hour
	conf.Redis.AnalyticsTTL = time.Minute

	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	// set up DB & repos
	db = inmemdb.Open()
	usrRepo = inmemdb.NewUserRepository(db)
	catalogRepo = inmemdb.NewCatalogRepository(db)
	progressRepo := inmemdb.NewProgressRepository(db)

	// set up services
	mailSvc = emailsvc.NewConsoleServiceMock(conf, logger)
	store = &memStore{}
	usrSvc := user.NewService(usrRepo, mailSvc, nil, logger, conf)
	catalogSvc := catalog.NewService(catalogRepo, store, nil, logger)
	progressSvc := progress.NewService(progressRepo, catalogSvc, usrSvc, analytics.NewInvalidator(nil), nil, logger)
	deps := echoapi.Deps{
		Conf:         conf,
		Logger:       logger,
		Validate:     validate,
		Translator:   translator,
		UserSvc:      usrSvc,
		CatalogSvc:   catalogSvc,
		SelectionSvc: selection.NewService(inmemdb.NewSelectionRepository(db), catalogSvc, usrSvc, progressSvc),
		ProgressSvc:  progressSvc,
		AnalyticsSvc: analytics.NewService(inmemdb.NewAnalyticsRepository(db), progressSvc, usrSvc, nil, logger, conf),
		ChatSvc:      chat.NewService(inmemdb.NewChatRepository(db)),
	}

	// set up server
	app = echoapi.NewServer(deps)

	os.Exit(m.Run())
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
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

func (tt httpTest) run(t *testing.T) *httptest.ResponseRecorder {
	method := tt.method
	if method == "" {
		method = http.MethodGet
	}
	req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
	app.ServeHTTP(rec, req)
	return rec
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

func getToken(t *testing.T, usr user.User) string {
	token, err := app.Token(usr)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList(): %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("json.Unmarshal(%s): %v", rec.Body.String(), err)
	}
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

func checkCode(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	wantCode := tt.wantCode
	if wantCode == 0 {
		wantCode = http.StatusOK
	}
	if rec.Code != wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, wantCode, rec.Body.String())
	}
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	checkCode(t, tt, rec)
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
