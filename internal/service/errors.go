package service

import (
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/modcenter/internal/repository"
	apperrors "github.com/spec-kit/modcenter/pkg/util/errorutil"
)

// ErrAlreadyRemoved reports a moderator removal that found nothing to delete.
// Callers treat it as a soft outcome.
var ErrAlreadyRemoved = errors.New("moderator already removed")

// mapStoreError translates repository failures into domain errors. resource
// names the entity for not-found responses.
func mapStoreError(err error, resource string, details map[string]any) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return apperrors.NewNotFound(resource, details)
	case errors.Is(err, repository.ErrStatusConflict):
		return apperrors.NewStateConflict(resource+" is not in a state that allows this action", details)
	case errors.Is(err, repository.ErrDuplicate):
		return apperrors.NewConflict(resource+" already exists", details)
	case errors.Is(err, repository.ErrUnknownModerator):
		return apperrors.NewNotFound("moderator", details)
	default:
		return apperrors.MapError(err)
	}
}
