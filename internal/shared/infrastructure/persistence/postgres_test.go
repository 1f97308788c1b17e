package persistence

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTx struct {
	commits   int
	rollbacks int
}

func (f *fakeTx) Begin(context.Context) (pgx.Tx, error) { return f, nil }
func (f *fakeTx) Commit(context.Context) error          { f.commits++; return nil }
func (f *fakeTx) Rollback(context.Context) error        { f.rollbacks++; return nil }
func (f *fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (f *fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (f *fakeTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (f *fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (f *fakeTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (f *fakeTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (f *fakeTx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (f *fakeTx) Conn() *pgx.Conn                                         { return nil }

func TestTxInfoFromContext(t *testing.T) {
	_, ok := TxInfoFromContext(context.Background())
	assert.False(t, ok)

	tx := &fakeTx{}
	info, ok := TxInfoFromContext(WithTx(context.Background(), tx, true))
	require.True(t, ok)
	assert.Same(t, tx, info.Tx)
	assert.True(t, info.Owned)
}

func TestExecutor_PrefersTransaction(t *testing.T) {
	tx := &fakeTx{}
	ctx := WithTx(context.Background(), tx, true)

	assert.Same(t, tx, Executor(ctx, nil))
}

func TestPostgresUnitOfWork_JoinedTransactionIsNotOwned(t *testing.T) {
	tx := &fakeTx{}
	uow := NewPostgresUnitOfWork(nil)
	outer := WithTx(context.Background(), tx, true)

	inner, err := uow.Begin(outer)
	require.NoError(t, err)

	require.NoError(t, uow.Commit(inner))
	require.NoError(t, uow.Rollback(inner))
	assert.Zero(t, tx.commits)
	assert.Zero(t, tx.rollbacks)

	require.NoError(t, uow.Commit(outer))
	assert.Equal(t, 1, tx.commits)
}

func TestPostgresUnitOfWork_RequiresTransaction(t *testing.T) {
	uow := NewPostgresUnitOfWork(nil)

	assert.ErrorIs(t, uow.Commit(context.Background()), ErrNoTransaction)
	assert.ErrorIs(t, uow.Rollback(context.Background()), ErrNoTransaction)
}
