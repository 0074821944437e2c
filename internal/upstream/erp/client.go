// Package erp pulls the active-product catalog from the ERP's HTTP API and
// caches it for the proxy.
package erp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/posv-labs/storefront/internal/domain/catalog"
)

// ErrUnauthorized means the ERP rejected the access token; the integration
// has to be re-authorized before products can be listed again.
var ErrUnauthorized = errors.New("ERP retornou 401 (Unauthorized). Reconecte a integração.")

// pageSize is the ERP's page limit for product listings.
const pageSize = 100

// criterionActive asks the ERP for active products only.
const criterionActive = "2"

// Client fetches products from the ERP API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	lg      *zap.Logger
}

// NewClient creates an ERP client for baseURL authenticating with a Bearer
// token.
func NewClient(baseURL, token string, timeout time.Duration, lg *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		lg: lg,
	}
}

// FetchActiveProducts pages through the ERP product listing and returns every
// active product in simplified form plus the active count.
func (c *Client) FetchActiveProducts(ctx context.Context) ([]catalog.Product, int, error) {
	var all []catalog.Product

	for page := 1; ; page++ {
		items, err := c.fetchPage(ctx, page)
		if err != nil {
			return nil, 0, err
		}
		if len(items) == 0 {
			break
		}
		for _, raw := range items {
			all = append(all, simplifyProduct(raw))
		}
		if len(items) < pageSize {
			break
		}
	}

	c.lg.Debug("fetched ERP catalog", zap.Int("products", len(all)))
	return all, len(all), nil
}

func (c *Client) fetchPage(ctx context.Context, page int) ([]rawProduct, error) {
	q := url.Values{}
	q.Set("pagina", strconv.Itoa(page))
	q.Set("limite", strconv.Itoa(pageSize))
	q.Set("criterio", criterionActive)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/produtos?"+q.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "erp request")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Errorf("erp returned %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var envelope struct {
		Data     []json.RawMessage `json:"data"`
		Produtos []json.RawMessage `json:"produtos"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, errors.Wrap(err, "decode page")
	}

	items := envelope.Data
	if len(items) == 0 {
		items = envelope.Produtos
	}

	products := make([]rawProduct, 0, len(items))
	for _, item := range items {
		// Some listings wrap each entry as {"produto": {...}}.
		var wrapper struct {
			Produto json.RawMessage `json:"produto"`
		}
		if err := json.Unmarshal(item, &wrapper); err == nil && len(wrapper.Produto) > 0 {
			item = wrapper.Produto
		}
		var p rawProduct
		if err := json.Unmarshal(item, &p); err != nil {
			c.lg.Warn("skipping malformed product entry", zap.Error(err))
			continue
		}
		products = append(products, p)
	}
	return products, nil
}

// rawProduct mirrors the ERP's loosely-typed product payload. Several field
// name variants exist across ERP versions; simplifyProduct folds them.
type rawProduct struct {
	ID         json.Number     `json:"id"`
	IDProduto  json.Number     `json:"idProduto"`
	Codigo     json.RawMessage `json:"codigo"`
	CodigoItem json.RawMessage `json:"codigoItem"`
	Descricao  string          `json:"descricao"`
	Nome       string          `json:"nome"`
	Preco      json.RawMessage `json:"preco"`
	PrecoVenda json.RawMessage `json:"precoVenda"`
	PesoLiq    json.RawMessage `json:"pesoLiquido"`
	PesoBruto  json.RawMessage `json:"pesoBruto"`
	Estoque    json.RawMessage `json:"estoque"`
	Saldo      json.RawMessage `json:"saldo"`
	Imagem     json.RawMessage `json:"imagem"`
	ImagemURL  string          `json:"imagem_url"`
}

func simplifyProduct(r rawProduct) catalog.Product {
	sku := firstString(r.Codigo, r.CodigoItem)

	name := r.Descricao
	if name == "" {
		name = r.Nome
	}

	id := r.ID.String()
	if id == "" {
		id = r.IDProduto.String()
	}
	if id == "" {
		id = sku
	}
	if name == "" {
		name = fmt.Sprintf("Produto %s", id)
	}

	price := decimal.Zero
	if v, ok := parseNumber(r.Preco, r.PrecoVenda); ok {
		price = v
	}

	p := catalog.Product{
		ID:       id,
		SKU:      sku,
		Name:     name,
		Price:    price,
		ImageURL: imageURL(r),
	}

	if w, ok := parseNumber(r.PesoLiq, r.PesoBruto); ok {
		p.WeightKg, _ = w.Float64()
		p.HasWeight = true
	}
	if s, ok := parseNumber(r.Estoque, r.Saldo); ok {
		n := int(s.IntPart())
		p.Stock = &n
	}
	return p
}

// firstString returns the first non-empty value, accepting both string and
// numeric JSON representations.
func firstString(candidates ...json.RawMessage) string {
	for _, raw := range candidates {
		if len(raw) == 0 {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
			continue
		}
		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil && n.String() != "" {
			return n.String()
		}
	}
	return ""
}

// parseNumber reads the first usable numeric value, accepting bare numbers
// and strings with either comma or dot decimal separators.
func parseNumber(candidates ...json.RawMessage) (decimal.Decimal, bool) {
	for _, raw := range candidates {
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}
		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil {
			if v, err := decimal.NewFromString(n.String()); err == nil {
				return v, true
			}
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
			if v, err := decimal.NewFromString(s); err == nil {
				return v, true
			}
		}
	}
	return decimal.Zero, false
}

// imageURL extracts an image link from the ERP's several image shapes: a
// plain string, an object with one of the known URL keys, or a list of such
// objects.
func imageURL(r rawProduct) string {
	if r.ImagemURL != "" {
		return strings.TrimSpace(r.ImagemURL)
	}
	raw := r.Imagem
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) == 0 {
			return ""
		}
		raw = list[0]
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ""
	}
	for _, key := range []string{"url", "link", "href", "urlImagem", "urlImagemMiniatura"} {
		var v string
		if err := json.Unmarshal(obj[key], &v); err == nil && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
