package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/png"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
)

const pixChargeTTL = 5 * time.Minute

// PixCharge is a short-lived Pix payment intent rendered as a QR code for
// the payer's banking app.
type PixCharge struct {
	ChargeID   string `json:"charge_id"`
	TerminalID string `json:"terminal_id"`
	VendorID   string `json:"vendor_id"`
	Amount     int64  `json:"amount"`
	CreatedAt  int64  `json:"created_at"`
}

// PixService issues and consumes Pix charges. Charges live in Redis with a
// short TTL; a charge can be consumed exactly once.
type PixService struct {
	redis     *redis.Client
	terminals *TerminalService
}

func NewPixService(redisClient *redis.Client, terminals *TerminalService) *PixService {
	return &PixService{redis: redisClient, terminals: terminals}
}

// CreateCharge issues a charge for a terminal and returns the charge payload
// plus a base64 PNG QR code encoding it.
func (s *PixService) CreateCharge(ctx context.Context, terminalID string, amount int64) (*PixCharge, string, error) {
	terminal, err := s.terminals.GetByID(ctx, terminalID)
	if err != nil {
		return nil, "", err
	}

	charge := &PixCharge{
		ChargeID:   uuid.New().String(),
		TerminalID: terminal.TerminalID,
		VendorID:   terminal.VendorID,
		Amount:     amount,
		CreatedAt:  time.Now().Unix(),
	}

	jsonData, err := json.Marshal(charge)
	if err != nil {
		return nil, "", err
	}

	payload := base64.URLEncoding.EncodeToString(jsonData)

	key := fmt.Sprintf("pix:%s", charge.ChargeID)
	if err := s.redis.Set(ctx, key, jsonData, pixChargeTTL).Err(); err != nil {
		return nil, "", err
	}

	qr, err := qrcode.New(payload, qrcode.Medium)
	if err != nil {
		return nil, "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return nil, "", err
	}

	qrImage := base64.StdEncoding.EncodeToString(buf.Bytes())
	return charge, qrImage, nil
}

// ConsumeCharge redeems a charge. Expired or already-consumed charges fail.
func (s *PixService) ConsumeCharge(ctx context.Context, chargeID string) (*PixCharge, error) {
	key := fmt.Sprintf("pix:%s", chargeID)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("invalid or expired pix charge")
	}
	if err != nil {
		return nil, err
	}

	var charge PixCharge
	if err := json.Unmarshal(data, &charge); err != nil {
		return nil, err
	}

	s.redis.Del(ctx, key)
	return &charge, nil
}
