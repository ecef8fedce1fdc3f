package dto

import "github.com/fekuna/omnipos-billing-service/internal/model"

type MovementFilters struct {
	ProductID     string
	Reason        model.MovementReason
	ReferenceType string
	ReferenceID   string
	Page          int
	PageSize      int
}
