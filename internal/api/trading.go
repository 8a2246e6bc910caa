package api

import (
	"net/http"
)

// HandleRunCycle запускает торговый цикл вне расписания.
// Если цикл уже идет, запрос проглатывается skip-if-running логикой.
func (h *Handler) HandleRunCycle(w http.ResponseWriter, r *http.Request) {
	h.scheduler.RunCycle(r.Context())
	h.respondSuccess(w, "Trading cycle executed", nil)
}

// HandleRunReconcile запускает сверку зависших ордеров вне расписания
func (h *Handler) HandleRunReconcile(w http.ResponseWriter, r *http.Request) {
	h.scheduler.RunReconcile(r.Context())
	h.respondSuccess(w, "Reconcile executed", nil)
}
