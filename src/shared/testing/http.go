package testlib

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/labstack/echo/v4"
	. "github.com/onsi/gomega"
	"github.com/veedubyou/stem-splitter/src/server/api_error"
)

type RequestModifier func(r *http.Request)

type RequestModifiers []RequestModifier

func WithHeader(key string, value string) RequestModifier {
	return func(request *http.Request) {
		request.Header.Set(key, value)
	}
}

// RequestFactory describes one HTTP request. JSONObj is encoded as the body,
// RawBody is sent verbatim when JSONObj is nil.
type RequestFactory struct {
	Method  string
	Target  string
	JSONObj any
	RawBody string
	Mods    RequestModifiers
}

func (r RequestFactory) body() io.Reader {
	switch {
	case r.JSONObj != nil:
		buf := &bytes.Buffer{}
		ExpectWithOffset(3, json.NewEncoder(buf).Encode(r.JSONObj)).To(Succeed())
		return buf
	case r.RawBody != "":
		return strings.NewReader(r.RawBody)
	default:
		return nil
	}
}

func (r RequestFactory) decorate(request *http.Request, hasBody bool) *http.Request {
	if hasBody {
		request.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}

	for _, mod := range r.Mods {
		mod(request)
	}

	return request
}

// MakeFake builds a request for handlers called in-process.
func (r RequestFactory) MakeFake() *http.Request {
	body := r.body()
	return r.decorate(httptest.NewRequest(r.Method, r.Target, body), body != nil)
}

// Do sends the request to a live server, Target must be absolute.
func (r RequestFactory) Do() (*http.Response, error) {
	body := r.body()
	request := ExpectSuccess(http.NewRequest(r.Method, r.Target, body))
	return http.DefaultClient.Do(r.decorate(request, body != nil))
}

// Serve runs handler against the fake request and returns the recorded
// response. The handler itself must not fail, errors are rendered as JSON.
func (r RequestFactory) Serve(handler echo.HandlerFunc) *httptest.ResponseRecorder {
	response := httptest.NewRecorder()
	ExpectWithOffset(1, handler(PrepareEchoContext(r.MakeFake(), response))).To(Succeed())
	return response
}

func PrepareEchoContext(request *http.Request, response http.ResponseWriter) echo.Context {
	return echo.New().NewContext(request, response)
}

func DecodeJSON[T any](jsonBody io.Reader) T {
	var decoded T
	ExpectWithOffset(1, json.NewDecoder(jsonBody).Decode(&decoded)).To(Succeed())
	return decoded
}

func DecodeJSONError(jsonBody io.Reader) api_error.JSONAPIError {
	var decoded api_error.JSONAPIError
	ExpectWithOffset(1, json.NewDecoder(jsonBody).Decode(&decoded)).To(Succeed())
	return decoded
}
