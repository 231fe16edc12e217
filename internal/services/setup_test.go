package services

import (
	"context"
	"reflect"
	"testing"

	"github.com/pointgrid/loyalty-core/internal/model"
	"github.com/pointgrid/loyalty-core/internal/repository"
	"github.com/pointgrid/loyalty-core/pkg/pg"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// testEnv wires the full service stack over an in-memory database, the same
// way cmd/api does against postgres.
type testEnv struct {
	db       *pg.DB
	users    *repository.EndUserRepository
	clients  *repository.MerchantClientRepository
	ledgerR  *repository.LedgerRepository
	vouchers *repository.VoucherRepository

	identity *IdentityService
	ledger   *LedgerService
	merge    *MergeService
	voucher  *VoucherService
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&repository.EndUserEntity{},
		&repository.AliasEntity{},
		&repository.MerchantEntity{},
		&repository.MerchantClientEntity{},
		&repository.LedgerEntryEntity{},
		&repository.MergeRecordEntity{},
		&repository.VoucherEntity{},
	)
	require.NoError(t, err)

	pgDB := &pg.DB{}
	pgDBValue := reflect.ValueOf(pgDB).Elem()
	readField := pgDBValue.FieldByName("read")
	writeField := pgDBValue.FieldByName("write")
	readField = reflect.NewAt(readField.Type(), readField.Addr().UnsafePointer()).Elem()
	writeField = reflect.NewAt(writeField.Type(), writeField.Addr().UnsafePointer()).Elem()
	readField.Set(reflect.ValueOf(db))
	writeField.Set(reflect.ValueOf(db))

	users := repository.NewEndUserRepository(pgDB)
	aliases := repository.NewAliasRepository(pgDB)
	merchants := repository.NewMerchantRepository(pgDB)
	clients := repository.NewMerchantClientRepository(pgDB)
	ledgerR := repository.NewLedgerRepository(pgDB)
	merges := repository.NewMergeRepository(pgDB)
	vouchers := repository.NewVoucherRepository(pgDB)

	identity := NewIdentityService(users, aliases, "+49")
	ledger := NewLedgerService(merchants, clients, ledgerR, vouchers, identity, pgDB, NopDispatcher{})
	merge := NewMergeService(clients, ledgerR, vouchers, users, aliases, merges, pgDB, NopDispatcher{})
	voucher := NewVoucherService(vouchers, clients, ledgerR, users, pgDB, NopDispatcher{}, 0)

	return &testEnv{
		db:       pgDB,
		users:    users,
		clients:  clients,
		ledgerR:  ledgerR,
		vouchers: vouchers,
		identity: identity,
		ledger:   ledger,
		merge:    merge,
		voucher:  voucher,
	}
}

func (e *testEnv) seedMerchant(t *testing.T) *model.Merchant {
	t.Helper()
	m, err := repository.NewMerchantRepository(e.db).Create(context.Background(), &model.Merchant{
		Name:              "Cafe Eleven",
		Status:            model.MerchantStatusActive,
		PointsPerUnit:     decimal.NewFromInt(2),
		PointsForReward:   100,
		RewardDescription: "free coffee",
	})
	require.NoError(t, err)
	return m
}
