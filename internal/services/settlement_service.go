package services

import (
	"context"
	"encoding/xml"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/moov-io/iso20022/pkg/common"
	"github.com/moov-io/iso20022/pkg/pacs_v08"

	"github.com/jeffersonsilva11/cashflow-school-nexus-sub000/internal/audit"
	"github.com/jeffersonsilva11/cashflow-school-nexus-sub000/internal/models"
)

const settlementQueueKey = "settlement_queue"

const settlementCurrency = "BRL"

// SettlementService drains the settlement queue and emits ISO 20022 pacs.008
// credit transfer messages towards the acquirer clearing system. Completed
// payments are queued by PaymentService; the worker picks them up here.
type SettlementService struct {
	ledger  *LedgerService
	redis   *redis.Client
	auditor *audit.AuditLogger
}

func NewSettlementService(ledger *LedgerService, redisClient *redis.Client, auditor *audit.AuditLogger) *SettlementService {
	return &SettlementService{ledger: ledger, redis: redisClient, auditor: auditor}
}

// Run drains the queue on a fixed interval until ctx is cancelled.
func (s *SettlementService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("[SETTLEMENT] Worker started, interval %s", interval)
	for {
		select {
		case <-ctx.Done():
			log.Println("[SETTLEMENT] Worker stopped")
			return
		case <-ticker.C:
			if err := s.ProcessQueue(ctx); err != nil {
				log.Printf("[SETTLEMENT] Queue processing failed: %v", err)
			}
		}
	}
}

// ProcessQueue pops queued transaction ids until the queue is empty and
// settles each one. A transaction that fails to settle is pushed back for
// the next cycle.
func (s *SettlementService) ProcessQueue(ctx context.Context) error {
	if s.redis == nil {
		return nil
	}

	for {
		transactionID, err := s.redis.LPop(ctx, settlementQueueKey).Result()
		if err == redis.Nil {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to pop settlement queue: %w", err)
		}

		if err := s.Settle(ctx, transactionID); err != nil {
			log.Printf("[SETTLEMENT] Failed to settle %s, requeueing: %v", transactionID, err)
			if pushErr := s.redis.RPush(ctx, settlementQueueKey, transactionID).Err(); pushErr != nil {
				log.Printf("[SETTLEMENT] Failed to requeue %s: %v", transactionID, pushErr)
			}
			return err
		}
	}
}

// Settle builds and dispatches the pacs.008 message for one transaction.
func (s *SettlementService) Settle(ctx context.Context, transactionID string) error {
	tx, err := s.ledger.GetByID(ctx, transactionID)
	if err != nil {
		return err
	}
	if tx.Status != models.TxStatusCompleted {
		log.Printf("[SETTLEMENT] Skipping %s: status %s", transactionID, tx.Status)
		return nil
	}

	doc, messageID := s.CreatePacs008(tx)
	xmlData, err := s.ConvertToXML(doc)
	if err != nil {
		return err
	}

	if err := s.dispatch(xmlData); err != nil {
		return err
	}

	s.auditor.LogSettlement(tx.TransactionID, messageID, tx.Amount)
	return nil
}

func (s *SettlementService) dispatch(xmlData string) error {
	// TODO: replace with the acquirer SFTP drop once credentials are issued.
	log.Printf("[SETTLEMENT] Dispatching message (%d bytes)", len(xmlData))
	return nil
}

// CreatePacs008 builds a FIToFICustomerCreditTransfer for one completed
// transaction. The school is the debtor and the vendor the creditor.
func (s *SettlementService) CreatePacs008(tx *models.Transaction) (*pacs_v08.FIToFICustomerCreditTransferV08, string) {
	messageID := uuid.New().String()
	now := time.Now()
	settlementDate := now
	amount := float64(tx.Amount) / 100

	doc := &pacs_v08.FIToFICustomerCreditTransferV08{
		GrpHdr: pacs_v08.GroupHeader93{
			MsgId:   common.Max35Text(messageID),
			CreDtTm: common.ISODateTime(now),
			NbOfTxs: "1",
			TtlIntrBkSttlmAmt: &pacs_v08.ActiveCurrencyAndAmount{
				Ccy:   common.ActiveCurrencyCode(settlementCurrency),
				Value: amount,
			},
			IntrBkSttlmDt: (*common.ISODate)(&settlementDate),
			SttlmInf: pacs_v08.SettlementInstruction7{
				SttlmMtd: "CLRG",
			},
		},
		CdtTrfTxInf: []pacs_v08.CreditTransferTransaction39{
			{
				PmtId: pacs_v08.PaymentIdentification7{
					InstrId:    &[]common.Max35Text{common.Max35Text(tx.TransactionID)}[0],
					EndToEndId: common.Max35Text(tx.TransactionID),
					TxId:       &[]common.Max35Text{common.Max35Text(tx.TransactionID)}[0],
				},
				IntrBkSttlmAmt: pacs_v08.ActiveCurrencyAndAmount{
					Ccy:   common.ActiveCurrencyCode(settlementCurrency),
					Value: amount,
				},
				IntrBkSttlmDt: (*common.ISODate)(&settlementDate),
				ChrgBr:        "SLEV",
				DbtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						BICFI: &[]common.BICFIDec2014Identifier{common.BICFIDec2014Identifier("CASHLESS")}[0],
					},
				},
				Dbtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(tx.SchoolID)}[0],
				},
				CdtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						ClrSysMmbId: &pacs_v08.ClearingSystemMemberIdentification2{
							MmbId: common.Max35Text(tx.Gateway),
						},
					},
				},
				Cdtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(tx.VendorID)}[0],
				},
			},
		},
	}

	return doc, messageID
}

// ConvertToXML renders an ISO 20022 document as an XML string.
func (s *SettlementService) ConvertToXML(doc interface{}) (string, error) {
	xmlData, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal XML: %w", err)
	}
	return xml.Header + string(xmlData), nil
}
