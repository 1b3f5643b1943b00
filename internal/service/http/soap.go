package httpsvc

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

const (
	soapEnvelopeNS = "http://schemas.xmlsoap.org/soap/envelope/"
	soapMediaType  = "text/xml; charset=utf-8"

	faultClient   = "Client"
	faultServer   = "Server"
	faultMissing  = "Missing <id> in request"
	faultInternal = "Internal server error"
)

var soapIDPattern = regexp.MustCompile(`<id>([^<]+)</id>`)

type soapEnvelope struct {
	XMLName xml.Name `xml:"soap:Envelope"`
	NS      string   `xml:"xmlns:soap,attr"`
	Body    soapBody `xml:"soap:Body"`
}

type soapBody struct {
	Fault    *soapFault           `xml:"soap:Fault,omitempty"`
	Response *getOrderResponseXML `xml:"GetOrderResponse,omitempty"`
}

type soapFault struct {
	Code   string `xml:"faultcode"`
	String string `xml:"faultstring"`
}

type getOrderResponseXML struct {
	Order orderXML `xml:"order"`
}

type orderXML struct {
	ID     string `xml:"id"`
	Status string `xml:"status"`
	Amount string `xml:"amount"`
}

// extractSOAPID достаёт значение первого элемента <id> из тела запроса.
func extractSOAPID(body []byte) (string, bool) {
	match := soapIDPattern.FindSubmatch(body)
	if match == nil {
		return "", false
	}
	return string(match[1]), true
}

func writeSOAP(w http.ResponseWriter, status int, body soapBody) {
	payload, err := xml.Marshal(soapEnvelope{NS: soapEnvelopeNS, Body: body})
	if err != nil {
		http.Error(w, faultInternal, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", soapMediaType)
	w.WriteHeader(status)
	_, _ = w.Write([]byte(xml.Header))
	_, _ = w.Write(payload)
}

func writeSOAPFault(w http.ResponseWriter, status int, code, message string) {
	writeSOAP(w, status, soapBody{Fault: &soapFault{Code: code, String: message}})
}

// soapGetOrder читает заказ по SOAP с тем же cache-aside, что и REST.
func (h *Handler) soapGetOrder(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeSOAPFault(w, http.StatusBadRequest, faultClient, faultMissing)
		return
	}

	id, ok := extractSOAPID(body)
	if !ok {
		writeSOAPFault(w, http.StatusBadRequest, faultClient, faultMissing)
		return
	}

	view, err := h.reader.GetOrder(r.Context(), id)
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		writeSOAPFault(w, http.StatusNotFound, faultClient, fmt.Sprintf("Order %s not found", id))
		return
	case err != nil:
		h.logger.WithError(err).WithField("order_id", id).Error("soap lookup failed")
		writeSOAPFault(w, http.StatusInternalServerError, faultServer, faultInternal)
		return
	}

	writeSOAP(w, http.StatusOK, soapBody{Response: &getOrderResponseXML{Order: orderXML{
		ID:     view.ID,
		Status: string(view.Status),
		Amount: view.Amount.String(),
	}}})
}
