package sqlite

import (
	"context"
	"time"

	"github.com/talhabektas/smartdesk-sub000/internal/domain"
)

type credentialsRepo struct {
	q *queries
}

func (r *credentialsRepo) GetCredentials(ctx context.Context) (domain.Credentials, error) {
	row, err := r.q.GetCredentials(ctx)
	if err != nil {
		return domain.Credentials{}, mapNotFound(err)
	}
	return mapCredentials(row), nil
}

func (r *credentialsRepo) SaveTokens(ctx context.Context, accessToken, refreshToken string, at time.Time) error {
	return r.q.SaveTokens(ctx, accessToken, refreshToken, at.UTC())
}

func (r *credentialsRepo) SaveUserProfile(ctx context.Context, profile string, at time.Time) error {
	return r.q.SaveUserProfile(ctx, mapStringNull(profile), at.UTC())
}

func (r *credentialsRepo) ClearCredentials(ctx context.Context, at time.Time) error {
	return r.q.ClearCredentials(ctx, at.UTC())
}

func mapCredentials(row credentialsRow) domain.Credentials {
	return domain.Credentials{
		AccessToken:  row.AccessToken,
		RefreshToken: row.RefreshToken,
		UserProfile:  mapNullString(row.UserProfile),
		Revision:     row.Revision,
		UpdatedAt:    row.UpdatedAt,
	}
}
