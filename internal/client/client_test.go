package client

import (
	"context"
	"encoding/json"
	"io"
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

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, 5*time.Second, zap.NewNop())
}

func TestSearchProducts_Success(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/produtos", r.URL.Path)
		assert.Equal(t, "caneca", r.URL.Query().Get("busca"))
		assert.Equal(t, "0", r.URL.Query().Get("reload"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"produtos": [
				{"id": "123", "sku": "CN-01", "nome": "Caneca azul", "preco": 24.90, "peso": 0.3, "estoque": 12, "imagem_url": "https://cdn.example.com/cn01.jpg"},
				{"id": 456, "sku": 789, "nome": "Caneca branca", "preco": 19.90, "peso": null, "estoque": null, "imagem_url": null}
			],
			"total_ativos": 321
		}`))
	})

	res, err := c.SearchProducts(context.Background(), "  caneca ", false)

	require.NoError(t, err)
	assert.Equal(t, 321, res.ActiveCount)
	require.Len(t, res.Products, 2)

	first := res.Products[0]
	assert.Equal(t, "123", first.ID)
	assert.Equal(t, "CN-01", first.SKU)
	assert.True(t, first.Price.Equal(decimal.RequireFromString("24.90")))
	assert.True(t, first.HasWeight)
	assert.Equal(t, 0.3, first.WeightKg)
	require.NotNil(t, first.Stock)
	assert.Equal(t, 12, *first.Stock)

	second := res.Products[1]
	assert.Equal(t, "456", second.ID)
	assert.Equal(t, "789", second.SKU)
	assert.False(t, second.HasWeight)
	assert.Nil(t, second.Stock)
}

func TestSearchProducts_ForceRefreshFlag(t *testing.T) {
	var reload string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		reload = r.URL.Query().Get("reload")
		_, _ = w.Write([]byte(`{"produtos": [], "total_ativos": 0}`))
	})

	_, err := c.SearchProducts(context.Background(), "", true)

	require.NoError(t, err)
	assert.Equal(t, "1", reload)
}

func TestSearchProducts_ZeroResultsIsSuccess(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"produtos": [], "total_ativos": 50}`))
	})

	res, err := c.SearchProducts(context.Background(), "nada", false)

	require.NoError(t, err)
	assert.Empty(t, res.Products)
	assert.Equal(t, 50, res.ActiveCount)
}

func TestSearchProducts_BackendError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": "Erro ao buscar produtos no ERP."}`))
	})

	_, err := c.SearchProducts(context.Background(), "x", false)

	var berr *BackendError
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, http.StatusInternalServerError, berr.StatusCode)
	assert.Equal(t, "Erro ao buscar produtos no ERP.", berr.Message)
	assert.Equal(t, "Erro ao buscar produtos no ERP.", berr.UserMessage())
}

func TestSearchProducts_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // connection refused from here on
	c := New(srv.URL, time.Second, zap.NewNop())

	_, err := c.SearchProducts(context.Background(), "x", false)

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
}

func TestCalculateShipping_Success(t *testing.T) {
	var gotBody map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/calcular-frete", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &gotBody))

		_, _ = w.Write([]byte(`{"opcoes": [
			{"nome": "PAC", "preco": 21.90, "prazo": 8},
			{"nome": "SEDEX", "preco": 38.40, "prazo": {"min": 1, "max": 3}}
		]}`))
	})

	pkg := shipping.Package{
		WidthCm: 11, HeightCm: 17, LengthCm: 11,
		WeightKg:  0.5,
		Insurance: decimal.RequireFromString("24.90"),
	}
	options, err := c.CalculateShipping(context.Background(), "melhorenvio", "01310100", []shipping.Package{pkg})

	require.NoError(t, err)
	require.Len(t, options, 2)
	assert.Equal(t, "PAC", options[0].Service)
	assert.True(t, options[0].Price.Equal(decimal.RequireFromString("21.90")))
	assert.Equal(t, "8", string(options[0].Delivery))
	assert.JSONEq(t, `{"min": 1, "max": 3}`, string(options[1].Delivery))

	assert.Equal(t, "melhorenvio", gotBody["provider"])
	assert.Equal(t, "01310100", gotBody["cep_destino"])
	pkgs, ok := gotBody["packages"].([]any)
	require.True(t, ok)
	require.Len(t, pkgs, 1)
	p0 := pkgs[0].(map[string]any)
	assert.Equal(t, 11.0, p0["width"])
	assert.Equal(t, 0.5, p0["weight"])
	assert.Equal(t, 24.9, p0["insurance"])
}

func TestCalculateShipping_EmptyOptions(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"opcoes": []}`))
	})

	options, err := c.CalculateShipping(context.Background(), "melhorenvio", "01310100", nil)

	require.NoError(t, err)
	assert.Empty(t, options)
}

func TestCalculateShipping_BackendErrorMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": "Configure o token do Melhor Envio."}`))
	})

	_, err := c.CalculateShipping(context.Background(), "melhorenvio", "01310100", nil)

	var berr *BackendError
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, "Configure o token do Melhor Envio.", berr.Message)
}

func TestDo_UnstructuredErrorBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream exploded"))
	})

	_, err := c.SearchProducts(context.Background(), "x", false)

	var berr *BackendError
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, http.StatusText(http.StatusBadGateway), berr.Message)
}
