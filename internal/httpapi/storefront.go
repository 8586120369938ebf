package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
)

// storefront handles GET /api/storefronts/{slug}
func (s *Server) storefront(w http.ResponseWriter, r *http.Request) {
	store, err := s.deps.Storefronts.StorefrontBySlug(r.Context(), mux.Vars(r)["slug"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, store)
}

// storeProducts handles GET /api/stores/{storeID}/products
func (s *Server) storeProducts(w http.ResponseWriter, r *http.Request) {
	storeID := mux.Vars(r)["storeID"]
	products, err := s.deps.Storefronts.StoreProducts(r.Context(), storeID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"storeId":  storeID,
		"products": products,
		"count":    len(products),
	})
}

// product handles GET /api/products/{productID}
func (s *Server) product(w http.ResponseWriter, r *http.Request) {
	product, err := s.deps.Storefronts.Product(r.Context(), mux.Vars(r)["productID"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}
