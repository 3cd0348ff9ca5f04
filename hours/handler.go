package hours

import (
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"liontech/config"
	"liontech/database"
	"liontech/httpx"
	"liontech/model"
	"liontech/render"
)

type dayView struct {
	model.BusinessHour
	Name string `json:"name"`
}

type statusView struct {
	Open        bool       `json:"open"`
	NextOpening *time.Time `json:"nextOpening,omitempty"`
	Timezone    string     `json:"timezone"`
	Days        []dayView  `json:"days"`
}

// GetHandler handles GET /api/hours.
func GetHandler(db *sqlx.DB, settings func() config.Settings, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hours, err := database.GetBusinessHours(r.Context(), db)
		if err != nil {
			log.Error("load business hours failed", zap.Error(err))
			httpx.WriteError(w, "Falha ao carregar horários.", http.StatusInternalServerError)
			return
		}
		s := settings()
		now := time.Now().In(s.StoreLocation())
		v := statusView{Open: IsOpen(hours, now), Timezone: s.Timezone, Days: make([]dayView, 0, len(hours))}
		if !v.Open {
			if next, ok := NextOpening(hours, now); ok {
				v.NextOpening = &next
			}
		}
		for _, h := range hours {
			v.Days = append(v.Days, dayView{BusinessHour: h, Name: render.WeekdayName(time.Weekday(h.Weekday))})
		}
		httpx.WriteJSON(w, http.StatusOK, v)
	}
}

// UpdateHandler handles PUT /api/admin/hours with all seven days.
func UpdateHandler(db *sqlx.DB, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req []model.BusinessHour
		if err := httpx.DecodeJSON(w, r, &req); err != nil {
			httpx.WriteError(w, "Requisição inválida.", http.StatusBadRequest)
			return
		}
		hours, err := Normalize(req)
		if err != nil {
			log.Debug("rejected business hours", zap.Error(err))
			httpx.WriteError(w, "Horários inválidos: informe os sete dias no formato HH:MM, com fechamento após a abertura.", http.StatusBadRequest)
			return
		}
		err = database.WithTx(r.Context(), db, func(tx *sqlx.Tx) error {
			return database.ReplaceBusinessHoursInTx(r.Context(), tx, hours)
		})
		if err != nil {
			log.Error("save business hours failed", zap.Error(err))
			httpx.WriteError(w, "Falha ao salvar horários.", http.StatusInternalServerError)
			return
		}
		log.Info("business hours updated")
		httpx.WriteJSON(w, http.StatusOK, hours)
	}
}
