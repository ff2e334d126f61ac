// Command reconcile recomputes every account's expected balance from its
// transaction history and reports any drift against the stored value.
package main

import (
	"context"
	"os"
	"time"

	"ledger/internal/config"
	"ledger/internal/repositories"
	"ledger/internal/services/query"
	"ledger/internal/utils"
)

func main() {
	config.LoadEnv()
	log := utils.GetLogger()

	db, err := repositories.InitDB()
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}

	lockWait := config.GetDurationEnv("LEDGER_LOCK_WAIT", 5*time.Second)
	repo := repositories.NewLedgerRepository(db, lockWait)
	querySvc := query.NewService(repo, nil)

	ctx := context.Background()
	accounts, err := repo.ListAccounts(ctx)
	if err != nil {
		log.WithError(err).Fatal("failed to list accounts")
	}

	drifted := 0
	for _, account := range accounts {
		result, err := querySvc.ReconcileAccount(ctx, account.ID)
		if err != nil {
			log.WithError(err).WithField("account_id", account.ID).Error("reconciliation failed")
			drifted++
			continue
		}

		entry := log.WithFields(map[string]interface{}{
			"account_id": result.AccountID,
			"stored":     result.Stored.String(),
			"expected":   result.Expected.String(),
			"drift":      result.Drift.String(),
		})
		if result.Balanced {
			entry.Debug("account balanced")
		} else {
			entry.Warn("account drift detected")
			drifted++
		}
	}

	log.WithFields(map[string]interface{}{
		"accounts": len(accounts),
		"drifted":  drifted,
	}).Info("reconciliation finished")

	if drifted > 0 {
		os.Exit(1)
	}
}
