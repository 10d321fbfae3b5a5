package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/simonvc/contaledger/internal/ledger"
)

const fiscalConfigKey = "fiscal_config"

// FiscalConfig loads the tenant's fiscal configuration. found is false for
// a tenant that has never saved one.
func (t *Tx) FiscalConfig(ctx context.Context) (cfg ledger.FiscalConfig, found bool, err error) {
	var raw string
	err = t.tx.GetContext(ctx, &raw, `SELECT value FROM settings WHERE name = ?`, fiscalConfigKey)
	if errors.Is(err, sql.ErrNoRows) {
		return cfg, false, nil
	}
	if err != nil {
		return cfg, false, fmt.Errorf("get fiscal config: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return cfg, false, fmt.Errorf("decode fiscal config: %w", err)
	}
	return cfg, true, nil
}

func (t *Tx) SaveFiscalConfig(ctx context.Context, cfg ledger.FiscalConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode fiscal config: %w", err)
	}
	_, err = t.tx.ExecContext(ctx,
		`INSERT INTO settings (name, value) VALUES (?, ?)
		ON CONFLICT (name) DO UPDATE SET value = excluded.value`,
		fiscalConfigKey, string(raw))
	if err != nil {
		return fmt.Errorf("save fiscal config: %w", err)
	}
	return nil
}
