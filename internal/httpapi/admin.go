package httpapi

import (
	"encoding/json"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-storefront-cache/invalidation"
)

// cacheStats handles GET /api/admin/cache/stats
func (s *Server) cacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Cache.Stats())
}

// resetCacheStats handles POST /api/admin/cache/stats/reset
func (s *Server) resetCacheStats(w http.ResponseWriter, r *http.Request) {
	s.deps.Cache.ResetStats()
	writeJSON(w, http.StatusOK, s.deps.Cache.Stats())
}

// invalidateRequest is the body of the write hook called by the dashboard
// after it mutates a store or product outside this process.
type invalidateRequest struct {
	Kind invalidation.Kind `json:"kind"`
	invalidation.Target
	Tags []string `json:"tags,omitempty"`
}

func (req invalidateRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Kind, validation.Required, validation.In(
			invalidation.KindStore,
			invalidation.KindProduct,
			invalidation.KindSingleProduct,
			invalidation.KindAnalytics,
		)),
		validation.Field(&req.StoreID, validation.Required),
		validation.Field(&req.Slug, validation.When(req.Kind != invalidation.KindAnalytics, validation.Required)),
		validation.Field(&req.ProductID, validation.When(req.Kind == invalidation.KindSingleProduct, validation.Required)),
	)
}

// invalidate handles POST /api/admin/invalidate
func (s *Server) invalidate(w http.ResponseWriter, r *http.Request) {
	var req invalidateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBody)).Decode(&req); err != nil {
		writeError(w, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid invalidation request"))
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, goerrors.FromOzzoValidation(err, "invalid invalidation request"))
		return
	}

	ctx := r.Context()
	if len(req.Tags) > 0 {
		ctx = invalidation.WithRevalidationTags(ctx, req.Tags...)
	}
	writeJSON(w, http.StatusOK, s.deps.Invalidator.Invalidate(ctx, req.Kind, req.Target))
}
