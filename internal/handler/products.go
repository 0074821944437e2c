package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/posv-labs/storefront/internal/domain/catalog"
	"github.com/posv-labs/storefront/internal/upstream/erp"
)

// listProducts serves GET /produtos. It filters the cached catalog by the
// busca term; reload=1 bypasses the cache.
func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	force := query.Get("reload") == "1"
	term := query.Get("busca")

	products, totalActive, err := h.products.Products(ctx, force)
	if err != nil {
		zctx.From(ctx).Error("catalog fetch failed", zap.Error(err))
		if errors.Is(err, erp.ErrUnauthorized) {
			writeError(w, http.StatusUnauthorized, "Token do ERP inválido ou expirado.")
			return
		}
		writeError(w, http.StatusBadGateway, "Erro ao consultar o catálogo de produtos.")
		return
	}

	matched := catalog.Filter(products, term)

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("produtos", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, p := range matched {
					encodeProduct(e, p)
				}
			})
		})
		e.Field("total_ativos", func(e *jx.Encoder) { e.Int(totalActive) })
	})
	writeJSON(w, http.StatusOK, &e)
}
