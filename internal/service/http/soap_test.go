package httpsvc

import (
	"encoding/xml"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const soapRequest = `<?xml version="1.0"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body><GetOrder><id>%s</id></GetOrder></soap:Body>
</soap:Envelope>`

type parsedEnvelope struct {
	Body struct {
		Fault *struct {
			Code   string `xml:"faultcode"`
			String string `xml:"faultstring"`
		} `xml:"Fault"`
		Response *struct {
			Order struct {
				ID     string `xml:"id"`
				Status string `xml:"status"`
				Amount string `xml:"amount"`
			} `xml:"order"`
		} `xml:"GetOrderResponse"`
	} `xml:"Body"`
}

func parseEnvelope(t *testing.T, body string) parsedEnvelope {
	t.Helper()
	var env parsedEnvelope
	require.NoError(t, xml.Unmarshal([]byte(body), &env))
	return env
}

func TestSOAPGetOrder(t *testing.T) {
	env := newTestEnv()
	rec := env.do(http.MethodPost, "/soap/order", strings.Replace(soapRequest, "%s", "o-1", 1))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/xml; charset=utf-8", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Body.String(), `<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">`)

	parsed := parseEnvelope(t, rec.Body.String())
	require.Nil(t, parsed.Body.Fault)
	require.NotNil(t, parsed.Body.Response)
	require.Equal(t, "o-1", parsed.Body.Response.Order.ID)
	require.Equal(t, "PAID", parsed.Body.Response.Order.Status)
	require.Equal(t, "10", parsed.Body.Response.Order.Amount)
}

func TestSOAPFaults(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		readerErr  error
		panic      bool
		wantCode   int
		wantFault  string
		wantString string
	}{
		{
			name:       "missing id",
			body:       `<soap:Envelope><soap:Body><GetOrder/></soap:Body></soap:Envelope>`,
			wantCode:   http.StatusBadRequest,
			wantFault:  "Client",
			wantString: "Missing <id> in request",
		},
		{
			name:       "empty id",
			body:       `<GetOrder><id></id></GetOrder>`,
			wantCode:   http.StatusBadRequest,
			wantFault:  "Client",
			wantString: "Missing <id> in request",
		},
		{
			name:       "unknown order",
			body:       strings.Replace(soapRequest, "%s", "o-404", 1),
			wantCode:   http.StatusNotFound,
			wantFault:  "Client",
			wantString: "Order o-404 not found",
		},
		{
			name:       "storage failure",
			body:       strings.Replace(soapRequest, "%s", "o-1", 1),
			readerErr:  errors.New("db down"),
			wantCode:   http.StatusInternalServerError,
			wantFault:  "Server",
			wantString: "Internal server error",
		},
		{
			name:       "panic",
			body:       strings.Replace(soapRequest, "%s", "o-1", 1),
			panic:      true,
			wantCode:   http.StatusInternalServerError,
			wantFault:  "Server",
			wantString: "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			env.reader.err = tt.readerErr
			env.reader.panic = tt.panic

			rec := env.do(http.MethodPost, "/soap/order", tt.body)

			require.Equal(t, tt.wantCode, rec.Code)
			require.Equal(t, "text/xml; charset=utf-8", rec.Header().Get("Content-Type"))
			parsed := parseEnvelope(t, rec.Body.String())
			require.NotNil(t, parsed.Body.Fault)
			require.Equal(t, tt.wantFault, parsed.Body.Fault.Code)
			require.Equal(t, tt.wantString, parsed.Body.Fault.String)
		})
	}
}

func TestSOAPEscapesValues(t *testing.T) {
	env := newTestEnv()
	rec := env.do(http.MethodPost, "/soap/order", `<id>a&amp;b"</id>`)

	require.Equal(t, http.StatusNotFound, rec.Code)
	parsed := parseEnvelope(t, rec.Body.String())
	require.Equal(t, `Order a&amp;b" not found`, parsed.Body.Fault.String)
}

func TestExtractSOAPID(t *testing.T) {
	id, ok := extractSOAPID([]byte(`<x><id>first</id><id>second</id></x>`))
	require.True(t, ok)
	require.Equal(t, "first", id)

	_, ok = extractSOAPID([]byte(`<x><ID>upper</ID></x>`))
	require.False(t, ok)
}
