package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/bher20/ebillmanager/internal/anomaly"
	"github.com/bher20/ebillmanager/internal/auth"
	"github.com/bher20/ebillmanager/internal/inflight"
	"github.com/bher20/ebillmanager/internal/storage"
	apperrors "github.com/bher20/ebillmanager/pkg/errors"
)

// listAlerts
// @Summary List usage anomaly alerts with severity
// @Tags alerts
// @Produce json
// @Param status query string false "new, acknowledged or resolved"
// @Param customer_id query int false "Only this customer's alerts"
// @Success 200 {array} anomaly.View
// @Router /alerts [get]
func (s *server) listAlerts(w http.ResponseWriter, r *http.Request) error {
	raw := r.URL.Query().Get("status")
	status, ok := anomaly.ParseStatus(raw)
	if !ok {
		return apperrors.Validation("invalid status").WithDetails(map[string]string{"status": raw})
	}
	requested, err := queryID(r, "customer_id")
	if err != nil {
		return err
	}
	customerID, err := scopedCustomerID(r, requested)
	if err != nil {
		return err
	}
	alerts, err := s.Store.ListAlerts(r.Context(), storage.AlertFilter{CustomerID: customerID, Status: status})
	if err != nil {
		return apperrors.Upstream(err, "list alerts")
	}
	writeJSON(w, http.StatusOK, anomaly.Decorate(alerts))
	return nil
}

// acknowledgeAlert
// @Summary Mark an alert as acknowledged
// @Tags alerts
// @Produce json
// @Param id path int true "Alert ID"
// @Success 200 {object} anomaly.View
// @Router /alerts/{id}/acknowledge [post]
func (s *server) acknowledgeAlert(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	ctx := r.Context()
	alert, err := s.Store.GetAlert(ctx, id)
	if err != nil {
		return apperrors.Upstream(err, "load alert")
	}
	if alert == nil || !auth.CanAccessCustomer(ctx, alert.CustomerID) {
		return apperrors.NotFound(fmt.Sprintf("alert %d not found", id))
	}

	release, err := s.Guard.Acquire(ctx, inflight.Entity("alert", id))
	if err != nil {
		return err
	}
	defer release()

	if err := s.Store.UpdateAlertStatus(ctx, id, storage.AlertAcknowledged); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.NotFound(fmt.Sprintf("alert %d not found", id))
		}
		return apperrors.Upstream(err, "acknowledge alert")
	}
	alert.Status = storage.AlertAcknowledged
	writeJSON(w, http.StatusOK, anomaly.Decorate([]storage.Alert{*alert})[0])
	return nil
}
