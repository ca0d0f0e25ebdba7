package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/jeffersonsilva11/cashflow-school-nexus-sub000/internal/models"
)

// TerminalService tracks physical point-of-sale terminals, their assigned
// gateway and connectivity state.
type TerminalService struct {
	db *sql.DB
}

func NewTerminalService(db *sql.DB) *TerminalService {
	return &TerminalService{db: db}
}

// Register creates a terminal. terminal_id is unique; registering an existing
// id fails with ErrTerminalExists.
func (s *TerminalService) Register(ctx context.Context, t *models.Terminal) error {
	if t.Status == "" {
		t.Status = models.TerminalStatusActive
	}
	if t.ConnectionStatus == "" {
		t.ConnectionStatus = models.ConnectionOffline
	}

	_, err := s.db.ExecContext(ctx, `
        INSERT INTO terminals
        (terminal_id, serial_number, model, gateway, vendor_id, school_id,
         status, connection_status, firmware_version, battery_level, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
    `, t.TerminalID, t.SerialNumber, t.Model, t.Gateway, t.VendorID, t.SchoolID,
		t.Status, t.ConnectionStatus, t.FirmwareVersion, t.BatteryLevel)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrTerminalExists
	}
	return err
}

// GetByID fetches one terminal.
func (s *TerminalService) GetByID(ctx context.Context, terminalID string) (*models.Terminal, error) {
	t := &models.Terminal{}
	err := s.db.QueryRowContext(ctx, `
        SELECT terminal_id, serial_number, model, gateway, vendor_id, school_id,
               status, connection_status, last_sync_at, COALESCE(firmware_version, ''),
               battery_level, created_at, updated_at
        FROM terminals
        WHERE terminal_id = $1
    `, terminalID).Scan(
		&t.TerminalID, &t.SerialNumber, &t.Model, &t.Gateway, &t.VendorID, &t.SchoolID,
		&t.Status, &t.ConnectionStatus, &t.LastSyncAt, &t.FirmwareVersion,
		&t.BatteryLevel, &t.CreatedAt, &t.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrTerminalNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// UpdateStatus performs a merge update: status always changes, the optional
// fields only when explicitly supplied. Omitted fields are untouched.
func (s *TerminalService) UpdateStatus(ctx context.Context, terminalID, status string, fields models.TerminalStatusFields) (bool, error) {
	sets := []string{"status = $2", "updated_at = NOW()"}
	args := []any{terminalID, status}
	argIndex := 3

	if fields.FirmwareVersion != nil {
		sets = append(sets, fmt.Sprintf("firmware_version = $%d", argIndex))
		args = append(args, *fields.FirmwareVersion)
		argIndex++
	}
	if fields.BatteryLevel != nil {
		sets = append(sets, fmt.Sprintf("battery_level = $%d", argIndex))
		args = append(args, *fields.BatteryLevel)
		argIndex++
	}
	if fields.ConnectionStatus != nil {
		sets = append(sets, fmt.Sprintf("connection_status = $%d", argIndex))
		args = append(args, *fields.ConnectionStatus)
		argIndex++
	}

	query := "UPDATE terminals SET " + strings.Join(sets, ", ") + " WHERE terminal_id = $1"
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if rowsAffected == 0 {
		return false, ErrTerminalNotFound
	}
	return true, nil
}

// List returns terminals matching the filter.
func (s *TerminalService) List(ctx context.Context, filter models.TerminalFilter) ([]models.Terminal, error) {
	var conditions []string
	var args []any
	argIndex := 1

	baseQuery := `
        SELECT terminal_id, serial_number, model, gateway, vendor_id, school_id,
               status, connection_status, last_sync_at, COALESCE(firmware_version, ''),
               battery_level, created_at, updated_at
        FROM terminals
    `

	if filter.VendorID != "" {
		conditions = append(conditions, fmt.Sprintf("vendor_id = $%d", argIndex))
		args = append(args, filter.VendorID)
		argIndex++
	}
	if filter.SchoolID != "" {
		conditions = append(conditions, fmt.Sprintf("school_id = $%d", argIndex))
		args = append(args, filter.SchoolID)
		argIndex++
	}

	query := baseQuery
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY terminal_id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	terminals := []models.Terminal{}
	for rows.Next() {
		var t models.Terminal
		err := rows.Scan(
			&t.TerminalID, &t.SerialNumber, &t.Model, &t.Gateway, &t.VendorID, &t.SchoolID,
			&t.Status, &t.ConnectionStatus, &t.LastSyncAt, &t.FirmwareVersion,
			&t.BatteryLevel, &t.CreatedAt, &t.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		terminals = append(terminals, t)
	}
	return terminals, rows.Err()
}

// MarkSynced is the reconciliation heartbeat: the terminal just uploaded a
// batch, so it is active and online regardless of per-item mismatches.
func (s *TerminalService) MarkSynced(ctx context.Context, terminalID string) error {
	result, err := s.db.ExecContext(ctx, `
        UPDATE terminals
        SET status = $2, connection_status = $3, last_sync_at = NOW(), updated_at = NOW()
        WHERE terminal_id = $1
    `, terminalID, models.TerminalStatusActive, models.ConnectionOnline)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrTerminalNotFound
	}
	return nil
}
