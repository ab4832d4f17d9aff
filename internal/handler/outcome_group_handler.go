package handler

import (
	"net/http"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

func listGroupsHandler(svc *service.OutcomeGroupService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/outcome-groups")
		defer span.End()

		writeResult(w, svc.ListGroups(ctx, UserIDFromContext(ctx)), logger)
	}
}

func getGroupHandler(svc *service.OutcomeGroupService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/outcome-groups/{groupId}")
		defer span.End()

		writeResult(w, svc.GetGroup(ctx, UserIDFromContext(ctx), chi.URLParam(r, "groupId")), logger)
	}
}

func addGroupHandler(svc *service.OutcomeGroupService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/outcome-groups")
		defer span.End()

		var g domain.OutcomeGroup
		if !decodeBody(w, r, &g) {
			return
		}
		writeResult(w, svc.AddGroup(ctx, UserIDFromContext(ctx), g), logger)
	}
}

func updateGroupHandler(svc *service.OutcomeGroupService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/outcome-groups/{groupId}")
		defer span.End()

		var g domain.OutcomeGroup
		if !decodeBody(w, r, &g) {
			return
		}
		writeResult(w, svc.UpdateGroup(ctx, UserIDFromContext(ctx), chi.URLParam(r, "groupId"), g), logger)
	}
}

func deleteGroupHandler(svc *service.OutcomeGroupService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/outcome-groups/{groupId}")
		defer span.End()

		groupID := chi.URLParam(r, "groupId")
		span.SetAttributes(attribute.String("group.id", groupID))
		writeResult(w, svc.DeleteGroup(ctx, UserIDFromContext(ctx), groupID), logger)
	}
}

func listGroupOutcomesHandler(svc *service.OutcomeGroupService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/outcome-groups/{groupId}/outcomes")
		defer span.End()

		writeResult(w, svc.ListGroupOutcomes(ctx, UserIDFromContext(ctx), chi.URLParam(r, "groupId")), logger)
	}
}

func addGroupOutcomeHandler(svc *service.OutcomeGroupService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/outcome-groups/{groupId}/outcomes")
		defer span.End()

		var o domain.Outcome
		if !decodeBody(w, r, &o) {
			return
		}
		writeResult(w, svc.AddGroupOutcome(ctx, UserIDFromContext(ctx), chi.URLParam(r, "groupId"), o), logger)
	}
}

func updateGroupOutcomeHandler(svc *service.OutcomeGroupService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/outcome-groups/{groupId}/outcomes/{outcomeId}")
		defer span.End()

		var o domain.Outcome
		unset, ok := decodeUpdate(w, r, &o)
		if !ok {
			return
		}
		res := svc.UpdateGroupOutcome(ctx, UserIDFromContext(ctx), chi.URLParam(r, "groupId"), chi.URLParam(r, "outcomeId"), o, unset...)
		writeResult(w, res, logger)
	}
}

func deleteGroupOutcomeHandler(svc *service.OutcomeGroupService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/outcome-groups/{groupId}/outcomes/{outcomeId}")
		defer span.End()

		res := svc.DeleteGroupOutcome(ctx, UserIDFromContext(ctx), chi.URLParam(r, "groupId"), chi.URLParam(r, "outcomeId"))
		writeResult(w, res, logger)
	}
}

// applyGroupHandler copies a group's outcomes into a period.
func applyGroupHandler(svc *service.OutcomeGroupService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/periods/{periodId}/outcome-groups/{groupId}/apply")
		defer span.End()

		periodID := chi.URLParam(r, "periodId")
		groupID := chi.URLParam(r, "groupId")
		span.SetAttributes(
			attribute.String("period.id", periodID),
			attribute.String("group.id", groupID),
		)
		writeResult(w, svc.ApplyToPeriod(ctx, UserIDFromContext(ctx), periodID, groupID), logger)
	}
}
