package conversationrepo

import (
	"context"
	"strings"

	"github.com/deskline/queue-api/internal/utils/platformerrors"
)

func requireIDs(ctx context.Context, code string, ids ...string) error {
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			return validationError(ctx, "organization, conversation and agent ids must not be empty", code)
		}
	}
	return nil
}

func validationError(ctx context.Context, message, code string) error {
	return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeValidation, message, nil, code)
}

func notFoundError(ctx context.Context, message, code string) error {
	return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, message, nil, code)
}

func databaseError(ctx context.Context, message string, err error, code string) error {
	return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, message, err, code)
}

func tenantViolation(ctx context.Context, kind, id, code string) error {
	return platformerrors.NewErrorWithContext(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeForbidden,
		kind+" belongs to another organization", nil, code, map[string]any{kind + "_id": id})
}
