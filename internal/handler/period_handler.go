package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Periods
// ============================================================

func listPeriodsHandler(svc *service.PeriodService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/periods")
		defer span.End()

		writeResult(w, svc.ListPeriods(ctx, UserIDFromContext(ctx)), logger)
	}
}

func getPeriodHandler(svc *service.PeriodService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/periods/{periodId}")
		defer span.End()

		periodID := chi.URLParam(r, "periodId")
		span.SetAttributes(attribute.String("period.id", periodID))
		writeResult(w, svc.GetPeriod(ctx, UserIDFromContext(ctx), periodID), logger)
	}
}

func addPeriodHandler(svc *service.PeriodService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/periods")
		defer span.End()

		var p domain.Period
		if !decodeBody(w, r, &p) {
			return
		}
		writeResult(w, svc.AddPeriod(ctx, UserIDFromContext(ctx), p), logger)
	}
}

func updatePeriodHandler(svc *service.PeriodService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/periods/{periodId}")
		defer span.End()

		periodID := chi.URLParam(r, "periodId")
		span.SetAttributes(attribute.String("period.id", periodID))

		var p domain.Period
		unset, ok := decodeUpdate(w, r, &p)
		if !ok {
			return
		}
		writeResult(w, svc.UpdatePeriod(ctx, UserIDFromContext(ctx), periodID, p, unset...), logger)
	}
}

func deletePeriodHandler(svc *service.PeriodService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/periods/{periodId}")
		defer span.End()

		periodID := chi.URLParam(r, "periodId")
		span.SetAttributes(attribute.String("period.id", periodID))
		writeResult(w, svc.DeletePeriod(ctx, UserIDFromContext(ctx), periodID), logger)
	}
}

func periodSummaryHandler(svc *service.PeriodService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/periods/{periodId}/summary")
		defer span.End()

		periodID := chi.URLParam(r, "periodId")
		span.SetAttributes(attribute.String("period.id", periodID))
		writeResult(w, svc.Summary(ctx, UserIDFromContext(ctx), periodID), logger)
	}
}

// ============================================================
// Incomes
// ============================================================

func listIncomesHandler(svc *service.PeriodService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/periods/{periodId}/incomes")
		defer span.End()

		writeResult(w, svc.ListIncomes(ctx, UserIDFromContext(ctx), chi.URLParam(r, "periodId")), logger)
	}
}

func addIncomeHandler(svc *service.PeriodService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/periods/{periodId}/incomes")
		defer span.End()

		var in domain.Income
		if !decodeBody(w, r, &in) {
			return
		}
		writeResult(w, svc.AddIncome(ctx, UserIDFromContext(ctx), chi.URLParam(r, "periodId"), in), logger)
	}
}

func updateIncomeHandler(svc *service.PeriodService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/periods/{periodId}/incomes/{incomeId}")
		defer span.End()

		var in domain.Income
		unset, ok := decodeUpdate(w, r, &in)
		if !ok {
			return
		}
		res := svc.UpdateIncome(ctx, UserIDFromContext(ctx), chi.URLParam(r, "periodId"), chi.URLParam(r, "incomeId"), in, unset...)
		writeResult(w, res, logger)
	}
}

func deleteIncomeHandler(svc *service.PeriodService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/periods/{periodId}/incomes/{incomeId}")
		defer span.End()

		res := svc.DeleteIncome(ctx, UserIDFromContext(ctx), chi.URLParam(r, "periodId"), chi.URLParam(r, "incomeId"))
		writeResult(w, res, logger)
	}
}

// ============================================================
// Outcomes
// ============================================================

func listOutcomesHandler(svc *service.PeriodService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/periods/{periodId}/outcomes")
		defer span.End()

		writeResult(w, svc.ListOutcomes(ctx, UserIDFromContext(ctx), chi.URLParam(r, "periodId")), logger)
	}
}

func addOutcomeHandler(svc *service.PeriodService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/periods/{periodId}/outcomes")
		defer span.End()

		var o domain.Outcome
		if !decodeBody(w, r, &o) {
			return
		}
		writeResult(w, svc.AddOutcome(ctx, UserIDFromContext(ctx), chi.URLParam(r, "periodId"), o), logger)
	}
}

func updateOutcomeHandler(svc *service.PeriodService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/periods/{periodId}/outcomes/{outcomeId}")
		defer span.End()

		var o domain.Outcome
		unset, ok := decodeUpdate(w, r, &o)
		if !ok {
			return
		}
		res := svc.UpdateOutcome(ctx, UserIDFromContext(ctx), chi.URLParam(r, "periodId"), chi.URLParam(r, "outcomeId"), o, unset...)
		writeResult(w, res, logger)
	}
}

// setOutcomeStateHandler accepts {"state": "paid"} or {"state": 1}.
func setOutcomeStateHandler(svc *service.PeriodService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/periods/{periodId}/outcomes/{outcomeId}/state")
		defer span.End()

		var req struct {
			State json.RawMessage `json:"state"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		state, err := parseState(req.State)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.String("outcome.state", state.String()))

		res := svc.SetOutcomeState(ctx, UserIDFromContext(ctx), chi.URLParam(r, "periodId"), chi.URLParam(r, "outcomeId"), state)
		writeResult(w, res, logger)
	}
}

func deleteOutcomeHandler(svc *service.PeriodService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/periods/{periodId}/outcomes/{outcomeId}")
		defer span.End()

		res := svc.DeleteOutcome(ctx, UserIDFromContext(ctx), chi.URLParam(r, "periodId"), chi.URLParam(r, "outcomeId"))
		writeResult(w, res, logger)
	}
}

func parseState(raw json.RawMessage) (domain.OutcomeState, error) {
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		if n, err := strconv.Atoi(name); err == nil {
			return domain.OutcomeState(n), nil
		}
		return domain.ParseOutcomeState(name)
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, &domain.ErrValidation{Field: "state", Message: "must be a state name or number"}
	}
	return domain.OutcomeState(n), nil
}
