package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"poscore/internal/model"
	"poscore/internal/repository"
	"poscore/internal/syncapi"
	ws "poscore/internal/websocket"

	"github.com/google/uuid"
)

// ErrSyncInProgress is returned when a pull or push is requested while
// another sync operation holds the engine.
var ErrSyncInProgress = errors.New("sync already in progress")

// SyncResult summarizes one pull. Per-resource failures are collected in
// Errors; Success is true only when every resource applied cleanly.
type SyncResult struct {
	Success          bool     `json:"success"`
	ProductsUpdated  int      `json:"products_updated"`
	CustomersUpdated int      `json:"customers_updated"`
	EmployeesUpdated int      `json:"employees_updated"`
	BanksUpdated     int      `json:"banks_updated"`
	Errors           []string `json:"errors,omitempty"`
}

// SendResult summarizes one push.
type SendResult struct {
	Success     bool   `json:"success"`
	SentCount   int    `json:"sent_count"`
	FailedCount int    `json:"failed_count"`
	Error       string `json:"error,omitempty"`
}

type SyncService interface {
	PullFromServer(ctx context.Context) (*SyncResult, error)
	PushSales(ctx context.Context) (*SendResult, error)
	GetLastSyncTime(ctx context.Context) (*time.Time, error)
	PendingSales(ctx context.Context) (int, error)
	History(ctx context.Context, limit int) ([]model.SyncLog, error)
}

type syncService struct {
	client      *syncapi.Client
	txRepo      repository.TransactionRepository
	productRepo repository.ProductRepository
	masterRepo  repository.MasterDataRepository
	logRepo     repository.SyncLogRepository
	configRepo  repository.ConfigRepository
	txManager   repository.TransactionManager
	hub         *ws.Hub

	terminalID string
	guard      *Guard
}

func NewSyncService(
	client *syncapi.Client,
	txRepo repository.TransactionRepository,
	productRepo repository.ProductRepository,
	masterRepo repository.MasterDataRepository,
	logRepo repository.SyncLogRepository,
	configRepo repository.ConfigRepository,
	txManager repository.TransactionManager,
	hub *ws.Hub,
	guard *Guard,
	terminalID string,
) SyncService {
	return &syncService{
		client:      client,
		txRepo:      txRepo,
		productRepo: productRepo,
		masterRepo:  masterRepo,
		logRepo:     logRepo,
		configRepo:  configRepo,
		txManager:   txManager,
		hub:         hub,
		guard:       guard,
		terminalID:  terminalID,
	}
}

// PullFromServer refreshes local master data from the head office. The server
// is probed first; if it is unreachable nothing is touched. Each resource is
// then fetched and applied independently, so a bad payload in one feed does
// not block the others.
func (s *syncService) PullFromServer(ctx context.Context) (*SyncResult, error) {
	if !s.guard.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer s.guard.Unlock()

	start := time.Now()
	result := &SyncResult{}

	if !s.client.TestConnection(ctx) {
		err := errors.New("sync server unreachable")
		s.writeLog(ctx, model.SyncTypePull, model.SyncStatusFailed, 0, err.Error(), start)
		return nil, err
	}

	result.ProductsUpdated = s.pullResource(ctx, "products", result, s.pullProducts)
	result.CustomersUpdated = s.pullResource(ctx, "customers", result, s.pullCustomers)
	result.EmployeesUpdated = s.pullResource(ctx, "employees", result, s.pullEmployees)
	result.BanksUpdated = s.pullResource(ctx, "bank accounts", result, s.pullBankAccounts)

	result.Success = len(result.Errors) == 0
	total := result.ProductsUpdated + result.CustomersUpdated + result.EmployeesUpdated + result.BanksUpdated

	status := model.SyncStatusSuccess
	if !result.Success {
		status = model.SyncStatusFailed
	}
	s.writeLog(ctx, model.SyncTypePull, status, total, strings.Join(result.Errors, "; "), start)
	s.broadcast("sync_pull_completed", result)
	return result, nil
}

func (s *syncService) pullResource(ctx context.Context, name string, result *SyncResult, pull func(context.Context) (int, error)) int {
	count, err := pull(ctx)
	if err != nil {
		log.Printf("sync: pull %s failed: %v", name, err)
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", name, err))
		return 0
	}
	return count
}

func (s *syncService) pullProducts(ctx context.Context) (int, error) {
	remote, err := s.client.FetchProducts(ctx)
	if err != nil {
		return 0, err
	}
	count := 0
	now := time.Now()
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		for _, rp := range remote {
			id, err := uuid.Parse(rp.ID)
			if err != nil {
				return fmt.Errorf("product %s: bad id: %w", rp.SKU, err)
			}
			product := model.Product{
				ID:       id,
				SKU:      rp.SKU,
				Name:     rp.Name,
				NameEn:   rp.NameEn,
				NameLo:   rp.NameLo,
				Category: rp.Category,
				IsActive: rp.IsActive,
				SyncedAt: &now,
			}
			if err := s.productRepo.Upsert(txCtx, &product); err != nil {
				return err
			}
			for _, ru := range rp.Units {
				unitID, err := uuid.Parse(ru.ID)
				if err != nil {
					return fmt.Errorf("product %s unit %s: bad id: %w", rp.SKU, ru.UnitCode, err)
				}
				unit := model.ProductUnit{
					ID:             unitID,
					ProductID:      id,
					UnitCode:       ru.UnitCode,
					UnitName:       ru.UnitName,
					ConversionRate: ru.ConversionRate,
					Barcode:        ru.Barcode,
					IsBaseUnit:     ru.IsBaseUnit,
				}
				if err := s.productRepo.UpsertUnit(txCtx, &unit); err != nil {
					return err
				}
			}
			for _, rprc := range rp.Prices {
				priceID, err := uuid.Parse(rprc.ID)
				if err != nil {
					return fmt.Errorf("product %s price: bad id: %w", rp.SKU, err)
				}
				unitID, err := uuid.Parse(rprc.UnitID)
				if err != nil {
					return fmt.Errorf("product %s price: bad unit id: %w", rp.SKU, err)
				}
				price := model.ProductPrice{
					ID:            priceID,
					ProductID:     id,
					UnitID:        unitID,
					PriceLevel:    rprc.PriceLevel,
					Price:         rprc.Price,
					EffectiveDate: rprc.EffectiveDate,
				}
				if err := s.productRepo.UpsertPrice(txCtx, &price); err != nil {
					return err
				}
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *syncService) pullCustomers(ctx context.Context) (int, error) {
	remote, err := s.client.FetchCustomers(ctx)
	if err != nil {
		return 0, err
	}
	count := 0
	now := time.Now()
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		for _, rc := range remote {
			id, err := uuid.Parse(rc.ID)
			if err != nil {
				return fmt.Errorf("customer %s: bad id: %w", rc.Code, err)
			}
			level := rc.PriceLevel
			if level < 1 {
				level = 1
			}
			customer := model.Customer{
				ID:          id,
				Code:        rc.Code,
				Name:        rc.Name,
				Phone:       rc.Phone,
				Email:       rc.Email,
				Address:     rc.Address,
				PriceLevel:  level,
				CreditLimit: rc.CreditLimit,
				IsActive:    rc.IsActive,
				SyncedAt:    &now,
			}
			if err := s.masterRepo.UpsertCustomer(txCtx, &customer); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *syncService) pullEmployees(ctx context.Context) (int, error) {
	remote, err := s.client.FetchEmployees(ctx)
	if err != nil {
		return 0, err
	}
	count := 0
	now := time.Now()
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		for _, re := range remote {
			id, err := uuid.Parse(re.ID)
			if err != nil {
				return fmt.Errorf("employee %s: bad id: %w", re.Code, err)
			}
			empType := re.Type
			if empType != model.EmployeeTypeSales && empType != model.EmployeeTypeService {
				empType = model.EmployeeTypeSales
			}
			employee := model.Employee{
				ID:       id,
				Code:     re.Code,
				Name:     re.Name,
				Type:     empType,
				IsActive: re.IsActive,
				SyncedAt: &now,
			}
			if err := s.masterRepo.UpsertEmployee(txCtx, &employee); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *syncService) pullBankAccounts(ctx context.Context) (int, error) {
	remote, err := s.client.FetchBankAccounts(ctx)
	if err != nil {
		return 0, err
	}
	count := 0
	now := time.Now()
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		for _, rb := range remote {
			id, err := uuid.Parse(rb.ID)
			if err != nil {
				return fmt.Errorf("bank account %s: bad id: %w", rb.Code, err)
			}
			account := model.BankAccount{
				ID:            id,
				Code:          rb.Code,
				Name:          rb.Name,
				BankName:      rb.BankName,
				AccountNumber: rb.AccountNumber,
				AccountName:   rb.AccountName,
				IsActive:      rb.IsActive,
				SyncedAt:      &now,
			}
			if err := s.masterRepo.UpsertBankAccount(txCtx, &account); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// PushSales sends every completed, unsynced transaction in chronological
// order as one batch. The batch is atomic: either the server accepts it and
// every transaction is marked synced with one shared timestamp, or nothing
// changes locally.
func (s *syncService) PushSales(ctx context.Context) (*SendResult, error) {
	if !s.guard.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer s.guard.Unlock()

	start := time.Now()
	pending, err := s.txRepo.FindUnsynced(ctx)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return &SendResult{Success: true}, nil
	}

	docInfos, skuMoves := s.buildWireBatch(ctx, pending)

	if err := s.client.SendSales(ctx, docInfos, skuMoves); err != nil {
		s.writeLog(ctx, model.SyncTypePush, model.SyncStatusFailed, 0, err.Error(), start)
		return &SendResult{FailedCount: len(pending), Error: err.Error()}, nil
	}

	syncedAt := time.Now()
	ids := make([]uuid.UUID, len(pending))
	for i, tx := range pending {
		ids[i] = tx.ID
	}
	if err := s.txRepo.MarkSynced(ctx, ids, syncedAt); err != nil {
		s.writeLog(ctx, model.SyncTypePush, model.SyncStatusFailed, 0, err.Error(), start)
		return nil, fmt.Errorf("batch accepted but local mark failed: %w", err)
	}

	result := &SendResult{Success: true, SentCount: len(pending)}
	s.writeLog(ctx, model.SyncTypePush, model.SyncStatusSuccess, len(pending), "", start)
	s.broadcast("sync_push_completed", result)
	return result, nil
}

// buildWireBatch converts local transactions into the legacy DOCINFO/SKUMOVE
// records. Monetary amounts switch to minor units and dates to serial day
// counts here and nowhere else. Lookups against master data are best-effort:
// a customer or employee dropped by a later re-import must not block the
// push, the record goes out as a walk-in sale instead.
func (s *syncService) buildWireBatch(ctx context.Context, txs []model.Transaction) ([]syncapi.DocInfo, []syncapi.SkuMove) {
	branch := s.configRepo.GetOrDefault(ctx, model.ConfigBranchCode, s.terminalID)
	currency := s.configRepo.GetOrDefault(ctx, model.ConfigCurrency, "THB")
	warehouseKey, _ := parseLegacyKey(s.configRepo.GetOrDefault(ctx, model.ConfigWarehouseKey, "1"))
	if warehouseKey == 0 {
		warehouseKey = 1
	}

	docInfos := make([]syncapi.DocInfo, 0, len(txs))
	var skuMoves []syncapi.SkuMove

	for _, tx := range txs {
		serial := syncapi.SerialDate(tx.TransactionDate)
		stamp := tx.TransactionDate.Format("2006-01-02 15:04:05")

		creBy := s.terminalID
		svBy := ""
		if tx.SalesEmployeeID != nil {
			if emp, err := s.masterRepo.FindEmployee(ctx, *tx.SalesEmployeeID); err == nil {
				creBy = emp.Code
			}
		}
		if tx.ServiceEmployeeID != nil {
			if emp, err := s.masterRepo.FindEmployee(ctx, *tx.ServiceEmployeeID); err == nil {
				svBy = emp.Code
			}
		}

		arCode := ""
		var arprbKey *int
		if tx.CustomerID != nil {
			if cust, err := s.masterRepo.FindCustomer(ctx, *tx.CustomerID); err == nil {
				arCode = cust.Code
				level := cust.PriceLevel
				arprbKey = &level
			}
		}

		pmBy, diBank := syncapi.PaymentWire(tx.PaymentMethod)
		docInfos = append(docInfos, syncapi.DocInfo{
			DIDate:     serial,
			DIBranch:   branch,
			DIRef:      tx.TransactionNumber,
			DICreBy:    creBy,
			DIAmount:   syncapi.MinorUnits(tx.GrandTotal),
			DIPmBy:     pmBy,
			DICcy:      currency,
			DIBank:     diBank,
			DIDateTime: stamp,
		})

		for _, item := range tx.Items {
			unitQty := 1.0
			goodsCode := item.ProductSKU
			if unit, err := s.productRepo.FindUnit(ctx, item.UnitID); err == nil {
				unitQty, _ = unit.ConversionRate.Float64()
				if unit.UnitCode != "" {
					goodsCode = unit.UnitCode
				}
			}
			qty, _ := item.Quantity.Float64()
			skuMoves = append(skuMoves, syncapi.SkuMove{
				SKMDate:     serial,
				SKMBch:      branch,
				DIRef:       tx.TransactionNumber,
				SKMNo:       item.LineNumber,
				SKUCode:     item.ProductSKU,
				GoodsCode:   goodsCode,
				UTQName:     item.UnitName,
				UTQQty:      unitQty,
				Qty:         qty,
				SKMPrc:      syncapi.MinorUnits(item.UnitPrice),
				SKMAmount:   syncapi.MinorUnits(item.LineTotal),
				SKMCcy:      currency,
				WLKey:       warehouseKey,
				ARCode:      arCode,
				ARPRBKey:    arprbKey,
				CreBy:       creBy,
				SvBy:        svBy,
				SKMDateTime: stamp,
			})
		}
	}
	return docInfos, skuMoves
}

// GetLastSyncTime returns the end time of the most recent successful pull,
// or nil when the terminal has never synced.
func (s *syncService) GetLastSyncTime(ctx context.Context) (*time.Time, error) {
	entry, err := s.logRepo.LastSuccessfulPull(ctx)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}
	t := entry.EndTime
	return &t, nil
}

// PendingSales counts completed transactions still waiting to be pushed.
func (s *syncService) PendingSales(ctx context.Context) (int, error) {
	pending, err := s.txRepo.FindUnsynced(ctx)
	if err != nil {
		return 0, err
	}
	return len(pending), nil
}

func (s *syncService) History(ctx context.Context, limit int) ([]model.SyncLog, error) {
	return s.logRepo.List(ctx, limit)
}

func (s *syncService) writeLog(ctx context.Context, syncType, status string, records int, errMsg string, start time.Time) {
	entry := &model.SyncLog{
		Type:            syncType,
		Status:          status,
		RecordsAffected: records,
		ErrorMessage:    errMsg,
		StartTime:       start,
		EndTime:         time.Now(),
	}
	if err := s.logRepo.Create(ctx, entry); err != nil {
		log.Printf("sync: failed to write sync log: %v", err)
	}
}

func (s *syncService) broadcast(event string, data interface{}) {
	if s.hub == nil {
		return
	}
	payload, _ := json.Marshal(map[string]interface{}{"event": event, "data": data})
	s.hub.Broadcast <- payload
}
