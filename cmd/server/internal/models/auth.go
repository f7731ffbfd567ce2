package models

import (
	"context"
	"fmt"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hackhub/submissions-api/internal/config"
)

type Permissions struct {
	Admin       bool `json:"admin"`
	Participant bool `json:"participant"`
}

// Holder of an API key or a verified bearer token
type Auth struct {
	Token string // argon2id hash
	Note  string // will be logged nonsensitive
	Model
	Permissions Permissions `gorm:"type:jsonb;serializer:json"`
	Active      datatypes.Null[bool]
}

func (Auth) TableName() string {
	return "auth"
}

func (a Auth) GetID() uuid.UUID {
	return a.ID
}

// Config is the authoritative list of api keys
//
// 1. Upsert auth data
// 2. Disable keys not currently contained in the config
func LoadAPIKeysFromConfig(ctx context.Context, db *gorm.DB, accounts []config.Account) error {
	ctx, span := tracer.Start(ctx, "LoadAPIKeysFromConfig")
	defer span.End()

	db = db.WithContext(ctx)

	keysToUpsert := make([]*Auth, len(accounts))
	keysInConfig := make([]uuid.UUID, len(accounts))
	for i, account := range accounts {
		accountID, err := uuid.Parse(account.ID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "invalid account id")
			span.SetAttributes(attribute.String("failedAccount", account.ID))
			return err
		}

		hash, err := argon2id.CreateHash(account.APIKey.Token, argon2id.DefaultParams)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "error creating hash for api key")
			span.SetAttributes(attribute.String("failedAccount", account.ID))
			return err
		}

		keysToUpsert[i] = &Auth{
			Model:  Model{ID: accountID},
			Token:  hash,
			Note:   account.Note,
			Active: NewNull(account.APIKey.Active),
			Permissions: Permissions{
				Admin:       account.APIKey.Permissions.Admin,
				Participant: account.APIKey.Permissions.Participant,
			},
		}
		keysInConfig[i] = accountID
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		//nolint:govet // shadow: intentionally shadow ctx and span to avoid using the incorrect one.
		ctx, span := tracer.Start(ctx, "LoadAPIKeysFromConfig/Transaction")
		defer span.End()

		tx = tx.WithContext(ctx)

		if len(keysToUpsert) != 0 {
			span.AddEvent("upserting defined auths")
			result := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(keysToUpsert)
			if result.Error != nil {
				span.RecordError(result.Error)
				span.SetStatus(codes.Error, "failed to upsert defined auths")
				return fmt.Errorf("failed to upsert defined auths: %w", result.Error)
			}
		} else {
			span.AddEvent("no defined auths to upsert")
		}

		span.AddEvent("setting all rows not in defined auth inactive")

		query := tx.Model(&Auth{})
		if len(keysInConfig) != 0 {
			query = query.Where("id NOT IN ?", keysInConfig)
		} else {
			query = query.Where("1 = 1")
		}

		result := query.Updates(&Auth{Active: NewNullFromData(false)})
		if result.Error != nil {
			span.RecordError(result.Error)
			span.SetStatus(codes.Error, "failed to set all rows not in defined auth inactive")
			return fmt.Errorf(
				"failed to set all rows not in defined auth inactive: %w",
				result.Error,
			)
		}

		span.RecordError(nil)
		span.SetStatus(codes.Ok, "updated auths")
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to update auth")
		return fmt.Errorf("failed to update auth: %w", err)
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "updated auth")
	return nil
}
