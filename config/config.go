package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Settings are the business settings editable from the dashboard. They are
// kept in a YAML file next to the database.
type Settings struct {
	StoreName                  string   `yaml:"storeName" json:"storeName"`
	StorePhone                 string   `yaml:"storePhone" json:"storePhone"`
	StoreAddress               string   `yaml:"storeAddress" json:"storeAddress"`
	Timezone                   string   `yaml:"timezone" json:"timezone"`
	StaffPhones                []string `yaml:"staffPhones" json:"staffPhones"`
	ShippingFeeCents           int64    `yaml:"shippingFeeCents" json:"shippingFeeCents"`
	FreeShippingThresholdCents int64    `yaml:"freeShippingThresholdCents" json:"freeShippingThresholdCents"`
	PixDiscountPercent         int      `yaml:"pixDiscountPercent" json:"pixDiscountPercent"`
	MaxInstallments            int      `yaml:"maxInstallments" json:"maxInstallments"`
	LowStockThreshold          int      `yaml:"lowStockThreshold" json:"lowStockThreshold"`
	DeadStockDays              int      `yaml:"deadStockDays" json:"deadStockDays"`
	PendingOrderTTLHours       int      `yaml:"pendingOrderTTLHours" json:"pendingOrderTTLHours"`
	BackupIntervalHours        int      `yaml:"backupIntervalHours" json:"backupIntervalHours"`
	BackupRetention            int      `yaml:"backupRetention" json:"backupRetention"`
}

var (
	cfg  = Defaults()
	path = "./liontech.yaml"
	mu   sync.RWMutex
)

// Defaults returns the settings used when no file exists.
func Defaults() Settings {
	return Settings{
		StoreName:            "Lion Tech",
		Timezone:             "America/Sao_Paulo",
		ShippingFeeCents:     2500,
		MaxInstallments:      12,
		LowStockThreshold:    3,
		DeadStockDays:        90,
		PendingOrderTTLHours: 24,
		BackupIntervalHours:  24,
		BackupRetention:      14,
	}
}

func applyDefaults(s *Settings) {
	d := Defaults()
	if s.StoreName == "" {
		s.StoreName = d.StoreName
	}
	if s.Timezone == "" {
		s.Timezone = d.Timezone
	}
	if s.MaxInstallments <= 0 || s.MaxInstallments > 12 {
		s.MaxInstallments = d.MaxInstallments
	}
	if s.DeadStockDays <= 0 {
		s.DeadStockDays = d.DeadStockDays
	}
	if s.PendingOrderTTLHours <= 0 {
		s.PendingOrderTTLHours = d.PendingOrderTTLHours
	}
	if s.BackupRetention <= 0 {
		s.BackupRetention = d.BackupRetention
	}
}

// Validate rejects settings that would break checkout or scheduling.
func (s Settings) Validate() error {
	var problems []string
	if s.ShippingFeeCents < 0 {
		problems = append(problems, "shippingFeeCents must not be negative")
	}
	if s.FreeShippingThresholdCents < 0 {
		problems = append(problems, "freeShippingThresholdCents must not be negative")
	}
	if s.PixDiscountPercent < 0 || s.PixDiscountPercent > 50 {
		problems = append(problems, "pixDiscountPercent must be between 0 and 50")
	}
	if s.LowStockThreshold < 0 {
		problems = append(problems, "lowStockThreshold must not be negative")
	}
	if s.BackupIntervalHours < 0 {
		problems = append(problems, "backupIntervalHours must not be negative")
	}
	if s.Timezone != "" {
		if _, err := s.Location(); err != nil {
			problems = append(problems, "unknown timezone "+s.Timezone)
		}
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// SetPath changes the settings file location. It must be called before
// LoadConfig.
func SetPath(p string) {
	mu.Lock()
	defer mu.Unlock()
	if p != "" {
		path = p
	}
}

func LoadConfig() (Settings, error) {
	mu.Lock()
	defer mu.Unlock()

	file, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg = Defaults()
			return cfg, nil
		}
		return Settings{}, fmt.Errorf("read settings %s: %w", path, err)
	}

	var tmp Settings
	if err := yaml.Unmarshal(file, &tmp); err != nil {
		return Settings{}, fmt.Errorf("parse settings %s: %w", path, err)
	}
	applyDefaults(&tmp)
	cfg = tmp
	return cfg, nil
}

func SaveConfig(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	applyDefaults(&s)

	mu.Lock()
	defer mu.Unlock()

	file, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, file, 0644); err != nil {
		return fmt.Errorf("write settings %s: %w", path, err)
	}
	cfg = s
	return nil
}

func GetConfig() Settings {
	mu.RLock()
	defer mu.RUnlock()
	s := cfg
	s.StaffPhones = append([]string(nil), cfg.StaffPhones...)
	return s
}
