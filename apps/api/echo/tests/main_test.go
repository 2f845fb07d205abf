package tests

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"

	. "github.com/trezcool/alama/apps/api/echo"
	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/auth"
	"github.com/trezcool/alama/core/otp"
	"github.com/trezcool/alama/core/prediction"
	"github.com/trezcool/alama/core/scoring"
	"github.com/trezcool/alama/core/user"
	emailsvc "github.com/trezcool/alama/services/email"
	logsvc "github.com/trezcool/alama/services/logger"
	dummydb "github.com/trezcool/alama/storage/database/dummy"
	testutil "github.com/trezcool/alama/tests"
)

const pwd = "Pr3dict!ons"

var (
	conf     *core.Config
	db       *dummydb.DB
	app      *Server
	usrRepo  user.Repository
	predRepo prediction.Repository
	tokens   *auth.TokenService

	otpRegex = regexp.MustCompile(`\b\d{6}\b`)

	errMissingToken = httpErr{Error: "authentication credentials were not provided"}
	errForbidden    = httpErr{Error: "permission denied"}
)

func TestMain(m *testing.M) {
	var err error
	conf = testutil.NewConfig()

	// set up DB & repos
	if db, err = dummydb.Open(); err != nil {
		log.Fatalf("dummydb.Open(): %v", err)
	}
	usrRepo = dummydb.NewUserRepository(db)
	predRepo = dummydb.NewPredictionRepository(db)
	otpRepo := dummydb.NewOTPRepository(db)

	// set up services
	validate, translator := testutil.NewValidator()
	if err = core.ParseEmailTemplates(); err != nil {
		log.Fatalf("core.ParseEmailTemplates(): %v", err)
	}
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	logger.Enable(false)
	mailSvc := emailsvc.NewConsoleServiceMock(conf)

	usrSvc := user.NewService(usrRepo)
	tokens = auth.NewTokenService(conf)
	models := scoring.NewCache(conf.ResolvePath(conf.Scoring.ModelPath), conf.ResolvePath(conf.Scoring.EncoderPath))

	// set up server
	app = NewServer(conf, nil /* shutdown */, &Deps{
		Logger:        logger,
		Validate:      validate,
		Translator:    translator,
		Tokens:        tokens,
		Guard:         auth.NewGuard(tokens, usrSvc),
		UserSvc:       usrSvc,
		OTPSvc:        otp.NewService(conf, otpRepo, usrSvc, mailSvc, logger),
		PredictionSvc: prediction.NewService(models, predRepo, usrSvc, logger),
	})

	os.Exit(m.Run())
}

func resetDB() {
	db.Flush()
	emailsvc.ResetSentMessages()
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

func serve(tt httpTest) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
	app.ServeHTTP(rec, req)
	return rec
}

func getToken(t *testing.T, usr user.User) string {
	t.Helper()
	pair, err := tokens.Issue(usr)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return pair.Access
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshalObj(): %v", err)
	}
	return data
}

func marshalList[T any](t *testing.T, objs ...T) []byte {
	t.Helper()
	if objs == nil {
		objs = []T{}
	}
	return marshalObj(t, objs)
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("json.Unmarshal(%s): %v", rec.Body.String(), err)
	}
}

// checkCodeAndData compares the status code, and the JSON body when wantData is set.
func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
	if tt.wantData != nil {
		assert.JSONEq(t, string(tt.wantData), rec.Body.String())
	}
}

func runTests(t *testing.T, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, serve(tt))
		})
	}
}

func TestHome(t *testing.T) {
	req, rec := newRequest(http.MethodGet, "/")
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Alama API!", rec.Body.String())
}
