package rates

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/posv-labs/storefront/internal/domain/shipping"
)

func newTestCorreios(t *testing.T, handler http.HandlerFunc) *Correios {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewCorreios(srv.URL, 5*time.Second, zap.NewNop())
}

func correiosPackage() shipping.Package {
	return shipping.Package{WidthCm: 11, HeightCm: 17, LengthCm: 11, WeightKg: 0.5}
}

func correiosXML(valor, prazo, erro, msg string) string {
	return `<?xml version="1.0" encoding="ISO-8859-1"?>
<Servicos>
  <cServico>
    <Codigo>04510</Codigo>
    <Valor>` + valor + `</Valor>
    <PrazoEntrega>` + prazo + `</PrazoEntrega>
    <Erro>` + erro + `</Erro>
    <MsgErro>` + msg + `</MsgErro>
  </cServico>
</Servicos>`
}

func TestCorreios_QuotesPACAndSEDEX(t *testing.T) {
	var services []string
	c := newTestCorreios(t, func(w http.ResponseWriter, r *http.Request) {
		services = append(services, r.URL.Query().Get("nCdServico"))
		assert.Equal(t, "01001000", r.URL.Query().Get("sCepOrigem"))
		assert.Equal(t, "20040020", r.URL.Query().Get("sCepDestino"))
		assert.Equal(t, "0.5", r.URL.Query().Get("nVlPeso"))
		_, _ = w.Write([]byte(correiosXML("1.234,56", "8", "0", "")))
	})

	options, err := c.Quote(context.Background(), "01001-000", "20040-020", []shipping.Package{correiosPackage()})

	require.NoError(t, err)
	assert.Equal(t, []string{"04510", "04014"}, services)
	require.Len(t, options, 2)
	assert.Equal(t, "PAC", options[0].Service)
	assert.Equal(t, "SEDEX", options[1].Service)
	assert.True(t, options[0].Price.Equal(decimal.RequireFromString("1234.56")),
		"BR-formatted price parses, got %s", options[0].Price)
	assert.Equal(t, "8", string(options[0].Delivery))
}

func TestCorreios_ServiceErrorCarriesMessage(t *testing.T) {
	c := newTestCorreios(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(correiosXML("0,00", "0", "008", "CEP de destino inválido.")))
	})

	_, err := c.Quote(context.Background(), "01001000", "99999999", []shipping.Package{correiosPackage()})

	var qerr *QuoteError
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, "CEP de destino inválido.", qerr.UserMessage())
}

func TestCorreios_PartialFailureStillQuotes(t *testing.T) {
	c := newTestCorreios(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("nCdServico") == "04510" {
			_, _ = w.Write([]byte(correiosXML("0,00", "0", "008", "PAC indisponível.")))
			return
		}
		_, _ = w.Write([]byte(correiosXML("38,40", "3", "0", "")))
	})

	options, err := c.Quote(context.Background(), "01001000", "20040020", []shipping.Package{correiosPackage()})

	require.NoError(t, err)
	require.Len(t, options, 1)
	assert.Equal(t, "SEDEX", options[0].Service)
}

func TestCorreios_MissingOrigin(t *testing.T) {
	c := NewCorreios("http://unused", time.Second, zap.NewNop())

	_, err := c.Quote(context.Background(), "", "20040020", []shipping.Package{correiosPackage()})

	require.ErrorIs(t, err, ErrOriginRequired)
}

func TestCorreios_NoValidPackage(t *testing.T) {
	c := NewCorreios("http://unused", time.Second, zap.NewNop())

	_, err := c.Quote(context.Background(), "01001000", "20040020", []shipping.Package{{}})

	require.ErrorIs(t, err, ErrNoValidPackage)
}

func TestCorreios_InvalidXML(t *testing.T) {
	c := newTestCorreios(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not xml at all"))
	})

	_, err := c.Quote(context.Background(), "01001000", "20040020", []shipping.Package{correiosPackage()})

	var qerr *QuoteError
	require.ErrorAs(t, err, &qerr)
	assert.Contains(t, qerr.UserMessage(), "Resposta inválida")
}

func TestSet_ByName(t *testing.T) {
	me := NewMelhorEnvio("sandbox", "http://unused", "t", time.Second, zap.NewNop())
	correios := NewCorreios("http://unused", time.Second, zap.NewNop())
	set := NewSet(me, correios)

	assert.Equal(t, "melhorenvio", set.ByName("melhorenvio").Name())
	assert.Equal(t, "correios", set.ByName(" Correios ").Name())
	assert.Equal(t, "melhorenvio", set.ByName("").Name())
	assert.Equal(t, "melhorenvio", set.ByName("desconhecido").Name())
}

func TestParseBRMoney(t *testing.T) {
	cases := map[string]string{
		"1.234,56": "1234.56",
		"31,05":    "31.05",
		"21.90":    "21.90",
		"":         "0",
		"abc":      "0",
	}
	for in, want := range cases {
		assert.True(t, parseBRMoney(in).Equal(decimal.RequireFromString(want)),
			"parseBRMoney(%q) = %s, want %s", in, parseBRMoney(in), want)
	}
}
