package main

import (
	"context"
	"os"
	"strings"

	"github.com/pointgrid/loyalty-core/internal/config"
	"github.com/pointgrid/loyalty-core/internal/repository"
	"github.com/pointgrid/loyalty-core/pkg/logger"
	"github.com/pointgrid/loyalty-core/pkg/pg"
)

func main() {
	err := config.Load(getEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
	}

	if hasArg("--audit") {
		runAudit(hasArg("--repair"))
		return
	}

	// main.go --dir=./migrations
	pgConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}
	err = pg.Migrate(pgConf, getMigrationPath())
	if err != nil {
		logger.Error("migration: error running migrations", "error", err)
	}
}

// runAudit re-derives every client balance from the ledger and reports rows
// where the materialized balance drifted. With --repair the ledger sum wins
// and the balance is rewritten.
func runAudit(repair bool) {
	readConf := pg.Config{
		User:     config.Get().PostgresReadUser,
		Host:     config.Get().PostgresReadHost,
		Port:     config.Get().PostgresReadPort,
		Password: config.Get().PostgresReadPassword,
		Database: config.Get().PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}
	db, err := pg.CreateReadWrite(readConf, writeConf, false)
	if err != nil {
		logger.Error("audit: failed connecting to pg", "error", err)
		return
	}

	clientRepo := repository.NewMerchantClientRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)

	ctx := context.Background()
	var checked, drifted, repaired int
	var afterID int64

	for {
		clients, err := clientRepo.ListAll(ctx, afterID, 500)
		if err != nil {
			logger.Error("audit: failed listing clients", "error", err)
			return
		}
		if len(clients) == 0 {
			break
		}

		for _, c := range clients {
			afterID = c.ID
			checked++

			sum, err := ledgerRepo.SumPointsByClient(ctx, c.ID)
			if err != nil {
				logger.Error("audit: failed summing ledger", "client_id", c.ID, "error", err)
				continue
			}
			if sum == c.PointsBalance {
				continue
			}
			drifted++
			logger.Warn("audit: balance drift",
				"merchant_id", c.MerchantID,
				"client_id", c.ID,
				"balance", c.PointsBalance,
				"ledger_sum", sum)

			if !repair {
				continue
			}
			clientID := c.ID
			merchantID := c.MerchantID
			err = db.WithinTransaction(ctx, func(ctx context.Context) error {
				locked, err := clientRepo.GetForUpdate(ctx, merchantID, clientID)
				if err != nil {
					return err
				}
				// re-derive under lock; the first read raced with live traffic
				sum, err := ledgerRepo.SumPointsByClient(ctx, locked.ID)
				if err != nil {
					return err
				}
				if sum == locked.PointsBalance {
					return nil
				}
				locked.PointsBalance = sum
				_, err = clientRepo.Update(ctx, locked)
				return err
			})
			if err != nil {
				logger.Error("audit: repair failed", "client_id", clientID, "error", err)
				continue
			}
			repaired++
		}
	}

	logger.Info("audit: done", "checked", checked, "drifted", drifted, "repaired", repaired)
}

func hasArg(flag string) bool {
	for _, v := range os.Args {
		if v == flag {
			return true
		}
	}
	return false
}

func getEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	if _, err := os.Open(".env"); err != nil {
		logger.Error("failed to open the passed env file, got error" + err.Error())
		return ""
	}
	return ".env"
}

func getMigrationPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--dir=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	if _, err := os.Open("./migrations"); err != nil {
		logger.Error("failed to open the passed env file, got error" + err.Error())
		return ""
	}
	return "./migrations"
}
