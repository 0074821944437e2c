package rates

import (
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"

	"github.com/posv-labs/storefront/internal/domain/shipping"
)

// DefaultCorreiosURL is the public CalcPrecoPrazo calculator endpoint.
const DefaultCorreiosURL = "https://ws.correios.com.br/calculador/CalcPrecoPrazo.aspx"

// Correios service codes quoted on every request.
const (
	correiosServicePAC   = "04510"
	correiosServiceSEDEX = "04014"
)

// Correios quotes PAC and SEDEX via the CalcPrecoPrazo calculator.
type Correios struct {
	calcURL string
	http    *http.Client
	lg      *zap.Logger
}

// NewCorreios creates the provider. calcURL falls back to DefaultCorreiosURL.
func NewCorreios(calcURL string, timeout time.Duration, lg *zap.Logger) *Correios {
	if calcURL == "" {
		calcURL = DefaultCorreiosURL
	}
	return &Correios{
		calcURL: calcURL,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		lg: lg,
	}
}

// Name implements Provider.
func (c *Correios) Name() string { return "correios" }

// Quote implements Provider. The calculator prices one parcel at a time, so
// only the first valid package is quoted, for PAC and SEDEX.
func (c *Correios) Quote(ctx context.Context, originCEP, destCEP string, pkgs []shipping.Package) ([]shipping.Option, error) {
	origin := onlyDigits(originCEP)
	if origin == "" {
		return nil, errors.Wrap(ErrOriginRequired, "correios")
	}

	var pkg shipping.Package
	found := false
	for _, p := range pkgs {
		if p.Valid() {
			pkg = p
			found = true
			break
		}
	}
	if !found {
		return nil, ErrNoValidPackage
	}

	var options []shipping.Option
	var firstErr error
	for _, code := range []string{correiosServicePAC, correiosServiceSEDEX} {
		opt, err := c.quoteService(ctx, origin, onlyDigits(destCEP), pkg, code)
		if err != nil {
			c.lg.Warn("correios service quote failed", zap.String("service", code), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		options = append(options, opt)
	}

	if len(options) == 0 {
		if firstErr != nil {
			return nil, firstErr
		}
		return nil, &QuoteError{Provider: c.Name(), Message: "Não foi possível cotar pelos Correios."}
	}
	return options, nil
}

// calcServico is the per-service element of the CalcPrecoPrazo XML response.
type calcServico struct {
	Codigo       string `xml:"Codigo"`
	Valor        string `xml:"Valor"`
	PrazoEntrega string `xml:"PrazoEntrega"`
	Erro         string `xml:"Erro"`
	MsgErro      string `xml:"MsgErro"`
}

type calcResponse struct {
	Services []calcServico `xml:"cServico"`
}

func (c *Correios) quoteService(ctx context.Context, origin, dest string, pkg shipping.Package, serviceCode string) (shipping.Option, error) {
	q := url.Values{}
	q.Set("nCdEmpresa", "")
	q.Set("sDsSenha", "")
	q.Set("nCdServico", serviceCode)
	q.Set("sCepOrigem", origin)
	q.Set("sCepDestino", dest)
	q.Set("nVlPeso", formatNumber(pkg.WeightKg))
	q.Set("nCdFormato", "1")
	q.Set("nVlComprimento", formatNumber(pkg.LengthCm))
	q.Set("nVlAltura", formatNumber(pkg.HeightCm))
	q.Set("nVlLargura", formatNumber(pkg.WidthCm))
	q.Set("nVlDiametro", "0")
	q.Set("sCdMaoPropria", "N")
	// Declared value intentionally left at zero, matching the storefront's
	// established quoting rule.
	q.Set("nVlValorDeclarado", "0")
	q.Set("sCdAvisoRecebimento", "N")
	q.Set("StrRetorno", "xml")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.calcURL+"?"+q.Encode(), nil)
	if err != nil {
		return shipping.Option{}, errors.Wrap(err, "build request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return shipping.Option{}, &QuoteError{
			Provider: c.Name(),
			Message:  "Erro de comunicação com os Correios.",
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return shipping.Option{}, errors.Wrap(err, "read body")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return shipping.Option{}, &QuoteError{
			Provider: c.Name(),
			Message:  "Erro HTTP dos Correios: " + resp.Status,
		}
	}

	parsed, err := decodeCalcResponse(body)
	if err != nil || len(parsed.Services) == 0 {
		return shipping.Option{}, &QuoteError{
			Provider: c.Name(),
			Message:  "Resposta inválida dos Correios.",
		}
	}
	svc := parsed.Services[0]

	if code := strings.TrimSpace(svc.Erro); code != "" && code != "0" && code != "000" {
		msg := strings.TrimSpace(svc.MsgErro)
		if msg == "" {
			msg = "Erro dos Correios (código " + code + ")."
		}
		return shipping.Option{}, &QuoteError{Provider: c.Name(), Message: msg}
	}

	days, _ := strconv.Atoi(strings.TrimSpace(svc.PrazoEntrega))

	name := "SEDEX"
	if serviceCode == correiosServicePAC {
		name = "PAC"
	}

	return shipping.Option{
		Service:  name,
		Price:    parseBRMoney(svc.Valor),
		Delivery: []byte(strconv.Itoa(days)),
	}, nil
}

// decodeCalcResponse parses the calculator XML. The endpoint declares
// ISO-8859-1, which encoding/xml refuses without a CharsetReader.
func decodeCalcResponse(body []byte) (calcResponse, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		switch strings.ToLower(charset) {
		case "iso-8859-1", "latin1", "windows-1252":
			return charmap.ISO8859_1.NewDecoder().Reader(input), nil
		}
		return input, nil
	}

	var parsed calcResponse
	err := dec.Decode(&parsed)
	return parsed, err
}

// formatNumber renders a dimension or weight with a dot decimal separator,
// the format the calculator expects.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
