// Package client is the storefront's HTTP client for the quote proxy: product
// search via GET /api/produtos and shipping quotes via POST /api/calcular-frete.
package client

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/posv-labs/storefront/internal/domain/catalog"
	"github.com/posv-labs/storefront/internal/domain/shipping"
)

// SearchResult is a successful /api/produtos response. Zero products with a
// nil error is a valid outcome, distinct from any failure.
type SearchResult struct {
	Products []catalog.Product
	// ActiveCount is the total number of active products in the catalog,
	// independent of the search filter.
	ActiveCount int
}

// Client talks to the quote proxy. Safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	lg      *zap.Logger
}

// New creates a Client for the proxy at baseURL.
func New(baseURL string, timeout time.Duration, lg *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		lg: lg,
	}
}

// SearchProducts queries the catalog. An empty term means "no filter";
// forceRefresh asks the backend to bypass its catalog cache.
func (c *Client) SearchProducts(ctx context.Context, term string, forceRefresh bool) (SearchResult, error) {
	q := url.Values{}
	q.Set("busca", strings.TrimSpace(term))
	if forceRefresh {
		q.Set("reload", "1")
	} else {
		q.Set("reload", "0")
	}

	body, err := c.do(ctx, http.MethodGet, "/api/produtos?"+q.Encode(), nil)
	if err != nil {
		return SearchResult{}, err
	}

	res, err := decodeSearchResult(body)
	if err != nil {
		return SearchResult{}, &TransportError{Err: errors.Wrap(err, "decode produtos response")}
	}
	return res, nil
}

// CalculateShipping requests rate quotes for the given packages. It
// implements shipping.Requester.
func (c *Client) CalculateShipping(ctx context.Context, provider, postalCode string, pkgs []shipping.Package) ([]shipping.Option, error) {
	payload := encodeQuoteRequest(provider, postalCode, pkgs)

	body, err := c.do(ctx, http.MethodPost, "/api/calcular-frete", payload)
	if err != nil {
		return nil, err
	}

	options, err := decodeQuoteResponse(body)
	if err != nil {
		return nil, &TransportError{Err: errors.Wrap(err, "decode frete response")}
	}
	return options, nil
}

// do performs one request and returns the raw success body. Non-2xx
// responses become BackendError; anything below that becomes TransportError.
func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, &TransportError{Err: errors.Wrap(err, "build request")}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.New().String())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.lg.Warn("request failed", zap.String("path", path), zap.Error(err))
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, &TransportError{Err: errors.Wrap(err, "read body")}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := decodeErrorMessage(body)
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		c.lg.Warn("backend error",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("message", msg),
		)
		return nil, &BackendError{StatusCode: resp.StatusCode, Message: msg}
	}

	return body, nil
}

func encodeQuoteRequest(provider, postalCode string, pkgs []shipping.Package) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("provider", func(e *jx.Encoder) { e.Str(provider) })
		e.Field("cep_destino", func(e *jx.Encoder) { e.Str(postalCode) })
		e.Field("packages", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, p := range pkgs {
					e.Obj(func(e *jx.Encoder) {
						e.Field("width", func(e *jx.Encoder) { e.Float64(p.WidthCm) })
						e.Field("height", func(e *jx.Encoder) { e.Float64(p.HeightCm) })
						e.Field("length", func(e *jx.Encoder) { e.Float64(p.LengthCm) })
						e.Field("weight", func(e *jx.Encoder) { e.Float64(p.WeightKg) })
						e.Field("insurance", func(e *jx.Encoder) { e.Num(jx.Num(p.Insurance.String())) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(1) })
					})
				}
			})
		})
	})
	return e.Bytes()
}

func decodeSearchResult(data []byte) (SearchResult, error) {
	var res SearchResult
	d := jx.DecodeBytes(data)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "produtos":
			return d.Arr(func(d *jx.Decoder) error {
				p, err := decodeProduct(d)
				if err != nil {
					return err
				}
				res.Products = append(res.Products, p)
				return nil
			})
		case "total_ativos":
			n, err := d.Int()
			res.ActiveCount = n
			return err
		default:
			return d.Skip()
		}
	}); err != nil {
		return SearchResult{}, err
	}
	return res, nil
}

func decodeProduct(d *jx.Decoder) (catalog.Product, error) {
	var p catalog.Product
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "id":
			s, err := stringOrNumber(d)
			p.ID = s
			return err
		case "sku":
			s, err := stringOrNumber(d)
			p.SKU = s
			return err
		case "nome":
			s, err := d.Str()
			p.Name = s
			return err
		case "preco":
			v, err := decodeDecimal(d)
			p.Price = v
			return err
		case "peso":
			if d.Next() == jx.Null {
				return d.Null()
			}
			w, err := d.Float64()
			p.WeightKg = w
			p.HasWeight = err == nil
			return err
		case "estoque":
			if d.Next() == jx.Null {
				return d.Null()
			}
			n, err := d.Int()
			if err != nil {
				return err
			}
			p.Stock = &n
			return nil
		case "imagem_url":
			if d.Next() == jx.Null {
				return d.Null()
			}
			s, err := d.Str()
			p.ImageURL = s
			return err
		default:
			return d.Skip()
		}
	})
	return p, err
}

func decodeQuoteResponse(data []byte) ([]shipping.Option, error) {
	var options []shipping.Option
	d := jx.DecodeBytes(data)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "opcoes" {
			return d.Skip()
		}
		return d.Arr(func(d *jx.Decoder) error {
			opt, err := decodeOption(d)
			if err != nil {
				return err
			}
			options = append(options, opt)
			return nil
		})
	}); err != nil {
		return nil, err
	}
	return options, nil
}

func decodeOption(d *jx.Decoder) (shipping.Option, error) {
	var opt shipping.Option
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "nome":
			s, err := d.Str()
			opt.Service = s
			return err
		case "preco":
			v, err := decodeDecimal(d)
			opt.Price = v
			return err
		case "prazo":
			raw, err := d.Raw()
			if err != nil {
				return err
			}
			opt.Delivery = append([]byte(nil), raw...)
			return nil
		default:
			return d.Skip()
		}
	})
	return opt, err
}

// decodeErrorMessage extracts the "error" field from a failure payload.
// Returns "" when the body is not the expected shape.
func decodeErrorMessage(data []byte) string {
	var msg string
	d := jx.DecodeBytes(data)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "error" {
			return d.Skip()
		}
		s, err := d.Str()
		msg = s
		return err
	}); err != nil {
		return ""
	}
	return msg
}

// stringOrNumber reads a value that some backends serialize as a string and
// others as a bare number.
func stringOrNumber(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return strings.Trim(string(n), `"`), nil
	case jx.Null:
		return "", d.Null()
	default:
		return d.Str()
	}
}

// decodeDecimal reads a JSON number into a decimal without a float round trip.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	n, err := d.Num()
	if err != nil {
		return decimal.Zero, err
	}
	v, err := decimal.NewFromString(strings.Trim(string(n), `"`))
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "parse decimal")
	}
	return v, nil
}
