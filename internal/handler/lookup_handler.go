package handler

import (
	"net/http"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Categories
// ============================================================

// listCategoriesHandler lists categories, or looks one up with ?name=.
func listCategoriesHandler(svc *service.LookupService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/categories")
		defer span.End()

		userID := UserIDFromContext(ctx)
		if name := r.URL.Query().Get("name"); name != "" {
			writeResult(w, svc.FindCategoryByName(ctx, userID, name), logger)
			return
		}
		writeResult(w, svc.ListCategories(ctx, userID), logger)
	}
}

func addCategoryHandler(svc *service.LookupService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/categories")
		defer span.End()

		var c domain.Category
		if !decodeBody(w, r, &c) {
			return
		}
		writeResult(w, svc.AddCategory(ctx, UserIDFromContext(ctx), c), logger)
	}
}

func updateCategoryHandler(svc *service.LookupService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/categories/{categoryId}")
		defer span.End()

		var c domain.Category
		if !decodeBody(w, r, &c) {
			return
		}
		writeResult(w, svc.UpdateCategory(ctx, UserIDFromContext(ctx), chi.URLParam(r, "categoryId"), c), logger)
	}
}

func deleteCategoryHandler(svc *service.LookupService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/categories/{categoryId}")
		defer span.End()

		writeResult(w, svc.DeleteCategory(ctx, UserIDFromContext(ctx), chi.URLParam(r, "categoryId")), logger)
	}
}

// ============================================================
// Payment methods
// ============================================================

func listPaymentMethodsHandler(svc *service.LookupService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/payment-methods")
		defer span.End()

		userID := UserIDFromContext(ctx)
		if name := r.URL.Query().Get("name"); name != "" {
			writeResult(w, svc.FindPaymentMethodByName(ctx, userID, name), logger)
			return
		}
		writeResult(w, svc.ListPaymentMethods(ctx, userID), logger)
	}
}

func addPaymentMethodHandler(svc *service.LookupService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/payment-methods")
		defer span.End()

		var m domain.PaymentMethod
		if !decodeBody(w, r, &m) {
			return
		}
		writeResult(w, svc.AddPaymentMethod(ctx, UserIDFromContext(ctx), m), logger)
	}
}

func updatePaymentMethodHandler(svc *service.LookupService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/payment-methods/{paymentMethodId}")
		defer span.End()

		var m domain.PaymentMethod
		if !decodeBody(w, r, &m) {
			return
		}
		res := svc.UpdatePaymentMethod(ctx, UserIDFromContext(ctx), chi.URLParam(r, "paymentMethodId"), m)
		writeResult(w, res, logger)
	}
}

func deletePaymentMethodHandler(svc *service.LookupService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/payment-methods/{paymentMethodId}")
		defer span.End()

		writeResult(w, svc.DeletePaymentMethod(ctx, UserIDFromContext(ctx), chi.URLParam(r, "paymentMethodId")), logger)
	}
}
