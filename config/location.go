package config

import "time"

// Location resolves the store timezone, falling back to UTC.
func (s Settings) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(s.Timezone)
}

// StoreLocation is Location without the error, for callers that only
// format times.
func (s Settings) StoreLocation() *time.Location {
	loc, err := s.Location()
	if err != nil {
		return time.UTC
	}
	return loc
}

func (s Settings) PendingOrderTTL() time.Duration {
	return time.Duration(s.PendingOrderTTLHours) * time.Hour
}

func (s Settings) BackupInterval() time.Duration {
	return time.Duration(s.BackupIntervalHours) * time.Hour
}
