package redisstore

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/otp"
)

// expiryGrace keeps expired codes around long enough to report them as expired rather than invalid.
const expiryGrace = time.Hour

// Open connects to redis and pings it.
func Open(ctx context.Context, conf *core.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Address,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return rdb, nil
}

func otpKey(email string) string {
	return "otp:" + email
}

// otpRepository keeps the single live code of an email in a hash.
type otpRepository struct {
	rdb redis.UniversalClient
}

var _ otp.Repository = (*otpRepository)(nil) // interface compliance check

func NewOTPRepository(rdb redis.UniversalClient) otp.Repository {
	return &otpRepository{rdb: rdb}
}

func (repo *otpRepository) Replace(ctx context.Context, code otp.Code) error {
	key := otpKey(code.Email)
	_, err := repo.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			"id", code.ID,
			"code", code.Code,
			"verified", strconv.FormatBool(code.Verified),
			"created_at", code.CreatedAt.UTC().Format(time.RFC3339Nano),
			"expires_at", code.ExpiresAt.UTC().Format(time.RFC3339Nano),
		)
		pipe.ExpireAt(ctx, key, code.ExpiresAt.Add(expiryGrace))
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "storing code")
	}
	return nil
}

type hashReader interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

func (repo *otpRepository) get(ctx context.Context, getter hashReader, email string) (otp.Code, error) {
	fields, err := getter.HGetAll(ctx, otpKey(email)).Result()
	if err != nil {
		return otp.Code{}, errors.Wrap(err, "reading code")
	}
	if len(fields) == 0 {
		return otp.Code{}, otp.ErrNotFound
	}

	c := otp.Code{ID: fields["id"], Email: email, Code: fields["code"]}
	if c.Verified, err = strconv.ParseBool(fields["verified"]); err != nil {
		return otp.Code{}, errors.Wrap(err, "parsing verified")
	}
	if c.CreatedAt, err = time.Parse(time.RFC3339Nano, fields["created_at"]); err != nil {
		return otp.Code{}, errors.Wrap(err, "parsing created_at")
	}
	if c.ExpiresAt, err = time.Parse(time.RFC3339Nano, fields["expires_at"]); err != nil {
		return otp.Code{}, errors.Wrap(err, "parsing expires_at")
	}
	return c, nil
}

func (repo *otpRepository) Find(ctx context.Context, email, code string) (otp.Code, error) {
	c, err := repo.get(ctx, repo.rdb, email)
	if err != nil {
		return otp.Code{}, err
	}
	if c.Code != code {
		return otp.Code{}, otp.ErrNotFound
	}
	return c, nil
}

// MarkVerified fails with otp.ErrNotFound if the code was replaced concurrently.
func (repo *otpRepository) MarkVerified(ctx context.Context, code otp.Code) error {
	key := otpKey(code.Email)
	err := repo.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := repo.get(ctx, tx, code.Email)
		if err != nil {
			return err
		}
		if cur.ID != code.ID {
			return otp.ErrNotFound
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, "verified", strconv.FormatBool(true))
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, otp.ErrNotFound), errors.Is(err, redis.TxFailedErr):
		return otp.ErrNotFound
	default:
		return errors.Wrap(err, "marking code verified")
	}
}

// Claim deletes the key under WATCH so a concurrent claim or replace of the same code fails.
func (repo *otpRepository) Claim(ctx context.Context, code otp.Code, now time.Time) error {
	key := otpKey(code.Email)
	err := repo.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := repo.get(ctx, tx, code.Email)
		if err != nil {
			return err
		}
		if cur.ID != code.ID || !cur.Verified || cur.Expired(now) {
			return otp.ErrNotFound
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, otp.ErrNotFound), errors.Is(err, redis.TxFailedErr):
		return otp.ErrNotFound
	default:
		return errors.Wrap(err, "claiming code")
	}
}
