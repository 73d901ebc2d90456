package sqlitestore

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ebobo/cellular_go/pkg/model"
)

// configRow is the flattened database form of model.Config
type configRow struct {
	ID                    int    `db:"id"`
	Enable                bool   `db:"enable"`
	PDPStatic             bool   `db:"pdp_static"`
	PDPID                 int    `db:"pdp_id"`
	PDPRetryTimeout       int    `db:"pdp_retry_timeout"`
	PDPPrimaryAPN         string `db:"pdp_primary_apn"`
	PDPPrimaryType        string `db:"pdp_primary_type"`
	PDPSecondaryAPN       string `db:"pdp_secondary_apn"`
	PDPSecondaryType      string `db:"pdp_secondary_type"`
	PINCode               string `db:"pin_code"`
	KeepaliveEnable       bool   `db:"keepalive_enable"`
	KeepaliveTargetHost   string `db:"keepalive_target_host"`
	KeepaliveIntervalSec  int    `db:"keepalive_interval_sec"`
	KeepaliveRebootEnable bool   `db:"keepalive_reboot_enable"`
	KeepaliveRebootCycles int    `db:"keepalive_reboot_cycles"`
	LastUpdated           int64  `db:"last_updated"`
}

func toRow(c model.Config) configRow {
	return configRow{
		ID:                    model.ResourceID,
		Enable:                c.Enable,
		PDPStatic:             c.PDPContext.Static,
		PDPID:                 c.PDPContext.ID,
		PDPRetryTimeout:       c.PDPContext.RetryTimeout,
		PDPPrimaryAPN:         c.PDPContext.Primary.APN,
		PDPPrimaryType:        c.PDPContext.Primary.Type,
		PDPSecondaryAPN:       c.PDPContext.Secondary.APN,
		PDPSecondaryType:      c.PDPContext.Secondary.Type,
		PINCode:               c.PINCode,
		KeepaliveEnable:       c.Keepalive.Enable,
		KeepaliveTargetHost:   c.Keepalive.TargetHost,
		KeepaliveIntervalSec:  c.Keepalive.IntervalSec,
		KeepaliveRebootEnable: c.Keepalive.Reboot.Enable,
		KeepaliveRebootCycles: c.Keepalive.Reboot.Cycles,
		LastUpdated:           time.Now().Unix(),
	}
}

func (r configRow) config() model.Config {
	return model.Config{
		ID:     r.ID,
		Enable: r.Enable,
		PDPContext: model.PDPContextConfig{
			Static:       r.PDPStatic,
			ID:           r.PDPID,
			RetryTimeout: r.PDPRetryTimeout,
			Primary:      model.PDPProfile{APN: r.PDPPrimaryAPN, Type: r.PDPPrimaryType},
			Secondary:    model.PDPProfile{APN: r.PDPSecondaryAPN, Type: r.PDPSecondaryType},
		},
		PINCode: r.PINCode,
		Keepalive: model.Keepalive{
			Enable:      r.KeepaliveEnable,
			TargetHost:  r.KeepaliveTargetHost,
			IntervalSec: r.KeepaliveIntervalSec,
			Reboot: model.Reboot{
				Enable: r.KeepaliveRebootEnable,
				Cycles: r.KeepaliveRebootCycles,
			},
		},
	}
}

// LoadConfig returns the stored cellular configuration
func (s *SqliteStore) LoadConfig() (model.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var row configRow
	err := s.db.Get(&row, "SELECT * FROM cellular_config WHERE id = ?", model.ResourceID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Config{}, ErrConfigNotFound
	}
	if err != nil {
		return model.Config{}, fmt.Errorf("unable to load configuration: %w", err)
	}
	return row.config(), nil
}

// SaveConfig replaces the stored configuration. The write happens in a single
// transaction, so a failed save leaves the previous configuration in place.
func (s *SqliteStore) SaveConfig(c model.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("unable to begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = CheckForZeroRowsAffected(tx.NamedExec(
		`INSERT INTO cellular_config (
			id,
			enable,
			pdp_static,
			pdp_id,
			pdp_retry_timeout,
			pdp_primary_apn,
			pdp_primary_type,
			pdp_secondary_apn,
			pdp_secondary_type,
			pin_code,
			keepalive_enable,
			keepalive_target_host,
			keepalive_interval_sec,
			keepalive_reboot_enable,
			keepalive_reboot_cycles,
			last_updated)
		 VALUES(
			:id,
			:enable,
			:pdp_static,
			:pdp_id,
			:pdp_retry_timeout,
			:pdp_primary_apn,
			:pdp_primary_type,
			:pdp_secondary_apn,
			:pdp_secondary_type,
			:pin_code,
			:keepalive_enable,
			:keepalive_target_host,
			:keepalive_interval_sec,
			:keepalive_reboot_enable,
			:keepalive_reboot_cycles,
			:last_updated)
		 ON CONFLICT(id) DO UPDATE SET
			enable = excluded.enable,
			pdp_static = excluded.pdp_static,
			pdp_id = excluded.pdp_id,
			pdp_retry_timeout = excluded.pdp_retry_timeout,
			pdp_primary_apn = excluded.pdp_primary_apn,
			pdp_primary_type = excluded.pdp_primary_type,
			pdp_secondary_apn = excluded.pdp_secondary_apn,
			pdp_secondary_type = excluded.pdp_secondary_type,
			pin_code = excluded.pin_code,
			keepalive_enable = excluded.keepalive_enable,
			keepalive_target_host = excluded.keepalive_target_host,
			keepalive_interval_sec = excluded.keepalive_interval_sec,
			keepalive_reboot_enable = excluded.keepalive_reboot_enable,
			keepalive_reboot_cycles = excluded.keepalive_reboot_cycles,
			last_updated = excluded.last_updated`, toRow(c)))
	if err != nil {
		return fmt.Errorf("unable to save configuration: %w", err)
	}

	return tx.Commit()
}

// LoadOrSeedConfig returns the stored configuration, writing seed first when
// nothing has been stored yet.
func (s *SqliteStore) LoadOrSeedConfig(seed model.Config) (model.Config, error) {
	c, err := s.LoadConfig()
	if errors.Is(err, ErrConfigNotFound) {
		seed.Normalize()
		if err := s.SaveConfig(seed); err != nil {
			return model.Config{}, err
		}
		return seed, nil
	}
	return c, err
}
