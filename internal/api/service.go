// Package api is the operation boundary of the conversation and relationship core.
//
// Every exported Service method returns an output embedding Result; errors
// never cross this boundary. Transient storage failures are retried once
// before being reported; logical failures are reported immediately.
package api

import (
	"context"
	"errors"
	"time"

	"gator-social/internal/config"
	"gator-social/internal/database"
	"gator-social/internal/messages"
	"gator-social/internal/pagination"
	"gator-social/internal/presence"
	"gator-social/internal/relations"
	"gator-social/internal/rooms"
	"gator-social/internal/utils"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

const defaultRetryInterval = 50 * time.Millisecond

// Deps wires a Service. Paging, Metrics and RetryInterval fall back to defaults when zero.
type Deps struct {
	Store         database.DBAdapter
	Rooms         *rooms.Directory
	Ledger        *messages.Ledger
	Notifier      *presence.Notifier
	Toggler       *relations.Toggler
	Paging        *config.PagingConfig
	Metrics       *utils.MetricsCollector
	Logger        zerolog.Logger
	RetryInterval time.Duration
}

type Service struct {
	store         database.DBAdapter
	rooms         *rooms.Directory
	ledger        *messages.Ledger
	notifier      *presence.Notifier
	toggler       *relations.Toggler
	paging        config.PagingConfig
	metrics       *utils.MetricsCollector
	logger        zerolog.Logger
	retryInterval time.Duration
}

func NewService(deps Deps) *Service {
	s := &Service{
		store:         deps.Store,
		rooms:         deps.Rooms,
		ledger:        deps.Ledger,
		notifier:      deps.Notifier,
		toggler:       deps.Toggler,
		paging:        *config.DefaultPagingConfig(),
		metrics:       deps.Metrics,
		logger:        deps.Logger.With().Str("component", "api").Logger(),
		retryInterval: deps.RetryInterval,
	}
	if deps.Paging != nil {
		s.paging = *deps.Paging
	}
	if s.metrics == nil {
		s.metrics = utils.NewMetricsCollector(nil)
	}
	if s.retryInterval <= 0 {
		s.retryInterval = defaultRetryInterval
	}
	return s
}

// retryTransient runs fn, running it a second time only if the first attempt failed with ErrTransient.
func retryTransient[T any](ctx context.Context, interval time.Duration, fn func(context.Context) (T, error)) (T, error) {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), 1), ctx)
	return backoff.RetryWithData(func() (T, error) {
		v, err := fn(ctx)
		if err != nil && !utils.IsErrorCode(err, utils.ErrTransient) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, policy)
}

// finish converts err into a Result, logging and counting the operation.
func (s *Service) finish(operation string, start time.Time, err error) Result {
	res := Result{Ok: true}
	if err != nil {
		res = s.failure(operation, err)
	}
	s.metrics.RecordOperation(operation, res.Code, time.Since(start))
	return res
}

func (s *Service) failure(operation string, err error) Result {
	code := utils.ErrorCode(err)
	switch {
	case utils.IsLogicalError(err):
		s.logger.Debug().Err(err).Str("operation", operation).Str("code", code).Msg("operation rejected")
		if code == utils.ErrDuplicate {
			code = utils.ErrConflict
		}
		var appErr *utils.AppError
		errors.As(err, &appErr)
		return Result{Code: code, Error: appErr.Message}

	case code == utils.ErrTransient:
		s.logger.Warn().Err(err).Str("operation", operation).Msg("operation failed after retry")
		return Result{Code: utils.ErrTransient, Error: "Service temporarily unavailable, please try again"}

	default:
		s.logger.Error().Err(err).Str("operation", operation).Msg("operation failed")
		return Result{Code: utils.ErrDatabase, Error: "Internal error"}
	}
}

// window applies the configured page size bounds.
func (s *Service) window(w pagination.Window) (pagination.Window, error) {
	return w.Normalize(s.paging.DefaultSize, s.paging.MaxSize)
}
