// SPDX-License-Identifier: GPL-3.0-only

package handlers

import (
	"fmt"
	"net/http"

	"silently-server/models"

	"github.com/labstack/echo/v4"
)

// GetPlansHandler godoc
// @Summary      Get available plans
// @Description  Retrieves the plan catalog and the credit packages that can be bought as top-ups.
// @Tags         plans
// @Produce      json
// @Success      200 {object}  GetPlansResponse "Plans retrieved successfully"
// @Failure      500 {object} echo.HTTPError     "Internal server error"
// @Router       /api/plans [get]
func (h *Handler) GetPlansHandler(c echo.Context) error {
	logger := c.Logger()
	ctx := c.Request().Context()

	var plans []models.Plan
	if err := h.DB.WithContext(ctx).Order("price ASC").Find(&plans).Error; err != nil {
		logger.Error("Failed to retrieve plans:", err)
		return &echo.HTTPError{
			Code:    http.StatusInternalServerError,
			Message: "Failed to retrieve plans",
		}
	}

	var packages []models.CreditPackage
	if err := h.DB.WithContext(ctx).Order("credits ASC").Find(&packages).Error; err != nil {
		logger.Error("Failed to retrieve credit packages:", err)
		return &echo.HTTPError{
			Code:    http.StatusInternalServerError,
			Message: "Failed to retrieve plans",
		}
	}

	planOptions := make([]PlanOption, 0, len(plans))
	for _, plan := range plans {
		var features []string
		switch plan.Name {
		case models.FreePlan:
			features = []string{
				fmt.Sprintf("%d starter credits", models.StarterGrant),
				"Web dashboard",
				"Community support",
			}
		case models.ProPlan:
			features = []string{
				fmt.Sprintf("%d credits per month", plan.Credits),
				"Desktop license key",
				"Credit top-ups",
				"Email support",
			}
		case models.AdvancedPlan:
			features = []string{
				fmt.Sprintf("%d credits per year", plan.Credits),
				"Desktop license key",
				"Credit top-ups",
				"Priority support",
			}
		}

		planOptions = append(planOptions, PlanOption{
			Name:           string(plan.Name),
			Price:          plan.Price,
			Currency:       plan.Currency,
			Credits:        plan.Credits,
			DurationInDays: plan.DurationInDays,
			Recommended:    plan.Name == models.ProPlan,
			Features:       features,
		})
	}

	packageOptions := make([]CreditPackageOption, 0, len(packages))
	for _, pkg := range packages {
		packageOptions = append(packageOptions, CreditPackageOption{
			Code:     pkg.Code,
			Credits:  pkg.Credits,
			Price:    pkg.Price,
			Currency: pkg.Currency,
		})
	}

	return c.JSON(http.StatusOK, GetPlansResponse{
		Plans:          planOptions,
		CreditPackages: packageOptions,
		Message:        "Plans retrieved successfully",
	})
}
