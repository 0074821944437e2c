package erp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestERP(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-token", 5*time.Second, zap.NewNop())
}

func TestFetchActiveProducts_SinglePage(t *testing.T) {
	c := newTestERP(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "2", r.URL.Query().Get("criterio"))
		assert.Equal(t, "100", r.URL.Query().Get("limite"))

		_, _ = w.Write([]byte(`{"data": [
			{"produto": {"id": 1, "codigo": "CN-01", "descricao": "Caneca azul", "preco": 24.90, "pesoLiquido": 0.3, "estoque": 12, "imagem": {"url": "https://cdn/x.jpg"}}},
			{"id": 2, "codigo": 559, "nome": "Prato", "precoVenda": "19,90", "saldo": "3"}
		]}`))
	})

	products, active, err := c.FetchActiveProducts(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, active)
	require.Len(t, products, 2)

	first := products[0]
	assert.Equal(t, "1", first.ID)
	assert.Equal(t, "CN-01", first.SKU)
	assert.Equal(t, "Caneca azul", first.Name)
	assert.True(t, first.Price.Equal(decimal.RequireFromString("24.90")))
	assert.True(t, first.HasWeight)
	assert.Equal(t, 0.3, first.WeightKg)
	require.NotNil(t, first.Stock)
	assert.Equal(t, 12, *first.Stock)
	assert.Equal(t, "https://cdn/x.jpg", first.ImageURL)

	second := products[1]
	assert.Equal(t, "559", second.SKU, "numeric SKU becomes a string")
	assert.Equal(t, "Prato", second.Name)
	assert.True(t, second.Price.Equal(decimal.RequireFromString("19.90")), "comma decimal accepted")
	assert.False(t, second.HasWeight)
	require.NotNil(t, second.Stock)
	assert.Equal(t, 3, *second.Stock)
}

func TestFetchActiveProducts_Paginates(t *testing.T) {
	pages := 0
	c := newTestERP(t, func(w http.ResponseWriter, r *http.Request) {
		pages++
		page := r.URL.Query().Get("pagina")
		if page == "1" {
			items := make([]map[string]any, 100)
			for i := range items {
				items[i] = map[string]any{"id": i, "descricao": fmt.Sprintf("P%d", i), "preco": 1}
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"data": items})
			return
		}
		_, _ = w.Write([]byte(`{"data": [{"id": 100, "descricao": "último", "preco": 1}]}`))
	})

	products, active, err := c.FetchActiveProducts(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, pages)
	assert.Equal(t, 101, active)
	assert.Len(t, products, 101)
}

func TestFetchActiveProducts_Unauthorized(t *testing.T) {
	c := newTestERP(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, _, err := c.FetchActiveProducts(context.Background())

	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestFetchActiveProducts_UpstreamError(t *testing.T) {
	c := newTestERP(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("oops"))
	})

	_, _, err := c.FetchActiveProducts(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestFetchActiveProducts_NamelessProductGetsPlaceholder(t *testing.T) {
	c := newTestERP(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data": [{"id": 42, "preco": 5}]}`))
	})

	products, _, err := c.FetchActiveProducts(context.Background())

	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Produto 42", products[0].Name)
}
