package main

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"liontech/config"
	"liontech/httpx"
	"liontech/whatsapp"
)

// GetConfigHandler returns the current business settings.
func GetConfigHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, config.GetConfig())
	}
}

// SaveConfigHandler validates and persists the settings file.
func SaveConfigHandler(log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var newCfg config.Settings
		if err := httpx.DecodeJSON(w, r, &newCfg); err != nil {
			httpx.WriteError(w, "Requisição inválida.", http.StatusBadRequest)
			return
		}

		phones, err := normalizeStaffPhones(newCfg.StaffPhones)
		if err != nil {
			httpx.WriteError(w, err.Error(), http.StatusBadRequest)
			return
		}
		newCfg.StaffPhones = phones

		if err := newCfg.Validate(); err != nil {
			httpx.WriteError(w, "Configuração inválida: "+err.Error(), http.StatusBadRequest)
			return
		}
		if err := config.SaveConfig(newCfg); err != nil {
			log.Error("error saving config", zap.Error(err))
			httpx.WriteError(w, "Falha ao salvar a configuração.", http.StatusInternalServerError)
			return
		}
		log.Info("settings saved")
		httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"message":  "Configuração salva.",
			"settings": config.GetConfig(),
		})
	}
}

// normalizeStaffPhones rewrites every staff number to the gateway format
// and drops duplicates.
func normalizeStaffPhones(phones []string) ([]string, error) {
	out := make([]string, 0, len(phones))
	seen := make(map[string]bool, len(phones))
	for _, p := range phones {
		if p == "" {
			continue
		}
		n, err := whatsapp.NormalizePhone(p)
		if err != nil {
			return nil, fmt.Errorf("Telefone da equipe inválido: %s", p)
		}
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out, nil
}
