package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// TxFn is the body of a transactional operation. Returning an error rolls
// the transaction back.
type TxFn func(tx pgx.Tx) error

// inTx runs fn within a transaction on db. The transaction commits only when
// fn returns nil; on error or panic it is rolled back before returning. The
// rollback ignores ctx cancellation so an abandoned caller still releases
// its connection cleanly.
func inTx(ctx context.Context, db DB, op string, log zerolog.Logger, fn TxFn) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to begin transaction")
		return storeFault(op+": begin", err)
	}

	rollbackCtx := context.WithoutCancel(ctx)

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback(rollbackCtx)
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(rollbackCtx); rbErr != nil {
			log.Error().Err(rbErr).AnErr("cause", err).Msg("Failed to rollback transaction")
			return errors.Join(err, storeFault(op+": rollback", rbErr))
		}
		if errors.Is(err, ErrStoreFault) || errors.Is(err, ErrInconsistentState) {
			log.Error().Err(err).Msg("Transaction rolled back")
		} else {
			log.Warn().Err(err).Msg("Transaction rolled back")
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to commit transaction")
		return storeFault(op+": commit", err)
	}

	log.Debug().Msg("Transaction committed")
	return nil
}
