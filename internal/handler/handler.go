// Package handler exposes the proxy's storefront endpoints:
// GET /api/produtos and POST /api/calcular-frete.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
	"github.com/go-playground/validator/v10"

	"github.com/posv-labs/storefront/internal/domain/catalog"
	"github.com/posv-labs/storefront/internal/domain/shipping"
	"github.com/posv-labs/storefront/internal/upstream/rates"
)

// ProductSource serves the cached product catalog. *erp.Cache satisfies it.
type ProductSource interface {
	Products(ctx context.Context, forceRefresh bool) ([]catalog.Product, int, error)
}

// RateSelector picks a rate provider by name. *rates.Set satisfies it.
type RateSelector interface {
	ByName(name string) rates.Provider
}

// Handler holds the endpoint dependencies.
type Handler struct {
	products  ProductSource
	rates     RateSelector
	originCEP string
	validate  *validator.Validate
}

// New constructs a Handler. originCEP is the shipment origin used on every
// rate quote.
func New(products ProductSource, rates RateSelector, originCEP string) *Handler {
	return &Handler{
		products:  products,
		rates:     rates,
		originCEP: originCEP,
		validate:  validator.New(),
	}
}

// Routes returns the /api route tree.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/produtos", h.listProducts)
	r.Post("/calcular-frete", h.calculateShipping)
	return r
}

// writeJSON sends an already-encoded jx payload.
func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeError sends the {"error": ...} payload the widget client surfaces
// verbatim to the user.
func writeError(w http.ResponseWriter, status int, msg string) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("error", func(e *jx.Encoder) { e.Str(msg) })
	})
	writeJSON(w, status, &e)
}

func encodeProduct(e *jx.Encoder, p catalog.Product) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
		e.Field("sku", func(e *jx.Encoder) { e.Str(p.SKU) })
		e.Field("nome", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("preco", func(e *jx.Encoder) { e.Num(jx.Num(p.Price.String())) })
		e.Field("peso", func(e *jx.Encoder) {
			if !p.HasWeight {
				e.Null()
				return
			}
			e.Float64(p.WeightKg)
		})
		e.Field("estoque", func(e *jx.Encoder) {
			if p.Stock == nil {
				e.Null()
				return
			}
			e.Int(*p.Stock)
		})
		e.Field("imagem_url", func(e *jx.Encoder) {
			if p.ImageURL == "" {
				e.Null()
				return
			}
			e.Str(p.ImageURL)
		})
	})
}

func encodeOption(e *jx.Encoder, opt shipping.Option) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("nome", func(e *jx.Encoder) { e.Str(opt.Service) })
		e.Field("preco", func(e *jx.Encoder) { e.Num(jx.Num(opt.Price.String())) })
		e.Field("prazo", func(e *jx.Encoder) {
			if len(opt.Delivery) == 0 {
				e.Null()
				return
			}
			e.Raw(jx.Raw(opt.Delivery))
		})
	})
}
