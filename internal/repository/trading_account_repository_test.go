package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tradecopier/copier/internal/apperr"
	"github.com/tradecopier/copier/internal/model"
)

func TestTradingAccountRepository_CreateAndFindByID(t *testing.T) {
	repo := &TradingAccountRepository{db: newSQLiteDB(t)}
	ctx := context.Background()

	account := &model.TradingAccount{
		UserID:        "user-1",
		Firm:          model.FirmTopstepX,
		Platform:      model.PlatformProjectX,
		AccountNumber: "PX-001",
	}
	require.NoError(t, repo.Create(ctx, account))
	require.NotEmpty(t, account.ID)

	got, err := repo.FindByID(ctx, account.ID)
	require.NoError(t, err)
	require.Equal(t, "PX-001", got.AccountNumber)
}

func TestTradingAccountRepository_FindByID_NotFound(t *testing.T) {
	repo := &TradingAccountRepository{db: newSQLiteDB(t)}

	_, err := repo.FindByID(context.Background(), "missing")
	require.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestTradingAccountRepository_FindAllByUser(t *testing.T) {
	repo := &TradingAccountRepository{db: newSQLiteDB(t)}
	ctx := context.Background()

	mine := &model.TradingAccount{UserID: "user-1", Firm: model.FirmTopstepX, Platform: model.PlatformProjectX, AccountNumber: "A1"}
	theirs := &model.TradingAccount{UserID: "user-2", Firm: model.FirmTopstepX, Platform: model.PlatformProjectX, AccountNumber: "A2"}
	require.NoError(t, repo.Create(ctx, mine))
	require.NoError(t, repo.Create(ctx, theirs))

	found, err := repo.FindAllByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, "A1", found[0].AccountNumber)
}

func TestTradingAccountRepository_FindByUserFirmAccountNumber(t *testing.T) {
	repo := &TradingAccountRepository{db: newSQLiteDB(t)}
	ctx := context.Background()

	account := &model.TradingAccount{UserID: "user-1", Firm: model.FirmTopstepX, Platform: model.PlatformProjectX, AccountNumber: "A1"}
	require.NoError(t, repo.Create(ctx, account))

	got, err := repo.FindByUserFirmAccountNumber(ctx, "user-1", model.FirmTopstepX, "A1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, account.ID, got.ID)

	missing, err := repo.FindByUserFirmAccountNumber(ctx, "user-1", model.FirmTopstepX, "does-not-exist")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestTradingAccountRepository_UpdateCredentials(t *testing.T) {
	repo := &TradingAccountRepository{db: newSQLiteDB(t)}
	ctx := context.Background()

	account := &model.TradingAccount{UserID: "user-1", Firm: model.FirmTopstepX, Platform: model.PlatformProjectX, AccountNumber: "A1"}
	require.NoError(t, repo.Create(ctx, account))

	creds := model.ConnectConfig{APIKey: "key", APISecret: "secret"}
	require.NoError(t, repo.UpdateCredentials(ctx, account.ID, creds))

	got, err := repo.FindByID(ctx, account.ID)
	require.NoError(t, err)
	require.Equal(t, "key", got.APIKey)
	require.True(t, got.IsConnected)
	require.NotNil(t, got.LastSyncAt)
}

func TestTradingAccountRepository_UpdateRiskSettings(t *testing.T) {
	repo := &TradingAccountRepository{db: newSQLiteDB(t)}
	ctx := context.Background()

	account := &model.TradingAccount{UserID: "user-1", Firm: model.FirmTopstepX, Platform: model.PlatformProjectX, AccountNumber: "A1"}
	require.NoError(t, repo.Create(ctx, account))

	dailyLossLimit := 750.0
	require.NoError(t, repo.UpdateRiskSettings(ctx, account.ID, AccountPatch{DailyLossLimit: &dailyLossLimit}))

	got, err := repo.FindByID(ctx, account.ID)
	require.NoError(t, err)
	require.NotNil(t, got.DailyLossLimit)
	require.Equal(t, dailyLossLimit, *got.DailyLossLimit)
}

func TestTradingAccountRepository_UpdateConnectionState(t *testing.T) {
	repo := &TradingAccountRepository{db: newSQLiteDB(t)}
	ctx := context.Background()

	account := &model.TradingAccount{UserID: "user-1", Firm: model.FirmTopstepX, Platform: model.PlatformProjectX, AccountNumber: "A1"}
	require.NoError(t, repo.Create(ctx, account))

	require.NoError(t, repo.UpdateConnectionState(ctx, account.ID, false, "auth discovery exhausted all candidates"))

	got, err := repo.FindByID(ctx, account.ID)
	require.NoError(t, err)
	require.False(t, got.IsConnected)
	require.Equal(t, "auth discovery exhausted all candidates", got.ErrorMessage)
}

func TestTradingAccountRepository_UpdateBalance(t *testing.T) {
	repo := &TradingAccountRepository{db: newSQLiteDB(t)}
	ctx := context.Background()

	account := &model.TradingAccount{UserID: "user-1", Firm: model.FirmTopstepX, Platform: model.PlatformProjectX, AccountNumber: "A1"}
	require.NoError(t, repo.Create(ctx, account))

	require.NoError(t, repo.UpdateBalance(ctx, account.ID, 52341.17))

	got, err := repo.FindByID(ctx, account.ID)
	require.NoError(t, err)
	require.Equal(t, 52341.17, got.LiveBalance)
}

func TestTradingAccountRepository_Delete(t *testing.T) {
	repo := &TradingAccountRepository{db: newSQLiteDB(t)}
	ctx := context.Background()

	account := &model.TradingAccount{UserID: "user-1", Firm: model.FirmTopstepX, Platform: model.PlatformProjectX, AccountNumber: "A1"}
	require.NoError(t, repo.Create(ctx, account))

	require.NoError(t, repo.Delete(ctx, account.ID))

	_, err := repo.FindByID(ctx, account.ID)
	require.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestTradingAccountRepository_Delete_ConflictsWhileReferencedByCopier(t *testing.T) {
	db := newSQLiteDB(t)
	repo := &TradingAccountRepository{db: db}
	copiers := &CopierRepository{db: db}
	ctx := context.Background()

	account := &model.TradingAccount{UserID: "user-1", Firm: model.FirmTopstepX, Platform: model.PlatformProjectX, AccountNumber: "A1"}
	require.NoError(t, repo.Create(ctx, account))

	dependent := &model.Copier{UserID: "user-1", Name: "depends on A1", MasterAccountID: account.ID, Status: model.CopierStopped}
	require.NoError(t, copiers.Create(ctx, dependent))

	err := repo.Delete(ctx, account.ID)
	require.Error(t, err)
	require.True(t, apperr.Is(err, apperr.KindConflict))
}
