package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/agrolinkhq/agrolink-backend/api/middleware"
	"github.com/agrolinkhq/agrolink-backend/internal/checkout"
	"github.com/agrolinkhq/agrolink-backend/pkg/enums"
	pkgerrors "github.com/agrolinkhq/agrolink-backend/pkg/errors"
)

func userIDFromRequest(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user context")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return id, nil
}

func actorFromRequest(r *http.Request) (checkout.Actor, error) {
	userID, err := userIDFromRequest(r)
	if err != nil {
		return checkout.Actor{}, err
	}
	role, err := enums.ParseUserRole(middleware.RoleFromContext(r.Context()))
	if err != nil {
		return checkout.Actor{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid role")
	}
	return checkout.Actor{UserID: userID, Role: role}, nil
}

func pathUUID(r *http.Request, raw string, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid "+field).
			WithDetails(map[string]any{"field": field})
	}
	return id, nil
}
