package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
)

func TestPixService_CreateCharge(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	redisClient, redisMock := redismock.NewClientMock()
	service := NewPixService(redisClient, NewTerminalService(db))

	expectTerminalFetch(mock)
	redisMock.Regexp().ExpectSet(`pix:.+`, `.+`, 5*time.Minute).SetVal("OK")

	charge, qrImage, err := service.CreateCharge(context.Background(), "POS-001", 1500)
	assert.NoError(t, err)
	assert.NotEmpty(t, charge.ChargeID)
	assert.Equal(t, "POS-001", charge.TerminalID)
	assert.Equal(t, "VND1", charge.VendorID)
	assert.Equal(t, int64(1500), charge.Amount)
	assert.NotEmpty(t, qrImage)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestPixService_ConsumeCharge(t *testing.T) {
	t.Run("valid charge is consumed once", func(t *testing.T) {
		redisClient, redisMock := redismock.NewClientMock()
		service := NewPixService(redisClient, nil)

		stored, _ := json.Marshal(PixCharge{
			ChargeID:   "CH1",
			TerminalID: "POS-001",
			VendorID:   "VND1",
			Amount:     1500,
		})
		redisMock.ExpectGet("pix:CH1").SetVal(string(stored))
		redisMock.ExpectDel("pix:CH1").SetVal(1)

		charge, err := service.ConsumeCharge(context.Background(), "CH1")
		assert.NoError(t, err)
		assert.Equal(t, "CH1", charge.ChargeID)
		assert.Equal(t, int64(1500), charge.Amount)
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("expired charge", func(t *testing.T) {
		redisClient, redisMock := redismock.NewClientMock()
		service := NewPixService(redisClient, nil)

		redisMock.ExpectGet("pix:GONE").RedisNil()

		_, err := service.ConsumeCharge(context.Background(), "GONE")
		assert.Error(t, err)
	})
}
