// SPDX-License-Identifier: GPL-3.0-only

package migrations

import (
	"fmt"
	"silently-server/models"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func List() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		{
			ID: "001_add_plans",
			Migrate: func(tx *gorm.DB) error {
				proDurationInDays := uint(30)
				advancedDurationInDays := uint(365)
				plans := []models.Plan{
					{
						Name:     models.FreePlan,
						Currency: "INR",
						Credits:  models.StarterGrant,
					},
					{
						Name:           models.ProPlan,
						Price:          49900,
						Currency:       "INR",
						DurationInDays: &proDurationInDays,
						Credits:        100,
					},
					{
						Name:           models.AdvancedPlan,
						Price:          399900,
						Currency:       "INR",
						DurationInDays: &advancedDurationInDays,
						Credits:        300,
					},
				}

				for _, plan := range plans {
					if err := tx.Where("name = ?", plan.Name).FirstOrCreate(&plan).Error; err != nil {
						return fmt.Errorf("failed to create plan %s: %w", plan.Name, err)
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Unscoped().Where("name IN ?", []models.PlanName{models.FreePlan, models.ProPlan, models.AdvancedPlan}).
					Delete(&models.Plan{}).Error
			},
		},
		{
			ID: "002_add_credit_packages",
			Migrate: func(tx *gorm.DB) error {
				packages := []models.CreditPackage{
					{Code: "credits_100", Credits: 100, Price: 90000, Currency: "INR"},
					{Code: "credits_500", Credits: 500, Price: 400000, Currency: "INR"},
					{Code: "credits_1000", Credits: 1000, Price: 700000, Currency: "INR"},
					{Code: "credits_2500", Credits: 2500, Price: 1500000, Currency: "INR"},
				}

				for _, pkg := range packages {
					if err := tx.Where("code = ?", pkg.Code).FirstOrCreate(&pkg).Error; err != nil {
						return fmt.Errorf("failed to create credit package %s: %w", pkg.Code, err)
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Unscoped().Where("code LIKE ?", "credits_%").Delete(&models.CreditPackage{}).Error
			},
		},
		{
			ID: "003_backfill_starter_grant",
			Migrate: func(tx *gorm.DB) error {
				// Accounts created before the starter grant existed hold zero credits
				// and have never made a call.
				if err := tx.Model(&models.Account{}).
					Where("plan = ? AND credit_balance = 0 AND total_calls_ever = 0", models.FreePlan).
					Update("credit_balance", models.StarterGrant).Error; err != nil {
					return fmt.Errorf("failed to backfill starter grant: %w", err)
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error { return nil },
		},
	}
}
