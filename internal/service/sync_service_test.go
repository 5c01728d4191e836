package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"poscore/internal/model"
	"poscore/internal/repository"
	"poscore/internal/syncapi"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestSyncService(db *gorm.DB, baseURL string) SyncService {
	return newTestSyncServiceWithGuard(db, baseURL, NewGuard())
}

func newTestSyncServiceWithGuard(db *gorm.DB, baseURL string, guard *Guard) SyncService {
	return NewSyncService(
		syncapi.NewClient(baseURL, "test-key", "POS01"),
		repository.NewTransactionRepository(db),
		repository.NewProductRepository(db),
		repository.NewMasterDataRepository(db),
		repository.NewSyncLogRepository(db),
		repository.NewConfigRepository(db),
		repository.NewTransactionManager(db),
		nil,
		guard,
		"POS01",
	)
}

func ok(data interface{}) map[string]interface{} {
	return map[string]interface{}{"success": true, "data": data}
}

func TestPullFromServerUpserts(t *testing.T) {
	db := setupTestDB(t)

	productID := uuid.New()
	unitID := uuid.New()
	priceID := uuid.New()
	customerID := uuid.New()
	employeeID := uuid.New()
	bankID := uuid.New()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("X-API-Key"))
		assert.Equal(t, "POS01", r.Header.Get("X-Terminal-ID"))
		json.NewEncoder(w).Encode(ok(nil))
	})
	mux.HandleFunc("/products", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ok([]map[string]interface{}{{
			"id": productID.String(), "sku": "R001", "name": "Remote", "isActive": true,
			"units": []map[string]interface{}{{
				"id": unitID.String(), "unitCode": "U1", "unitName": "Piece",
				"conversionRate": "1", "isBaseUnit": true,
			}},
			"prices": []map[string]interface{}{{
				"id": priceID.String(), "unitId": unitID.String(), "priceLevel": 1, "price": "25.50",
			}},
		}}))
	})
	mux.HandleFunc("/customers", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ok([]map[string]interface{}{{
			"id": customerID.String(), "code": "C1", "name": "Remote Customer", "priceLevel": 2, "isActive": true,
		}}))
	})
	mux.HandleFunc("/employees", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ok([]map[string]interface{}{{
			"id": employeeID.String(), "code": "E1", "name": "Remote Employee", "type": "SERVICE", "isActive": true,
		}}))
	})
	mux.HandleFunc("/bank-accounts", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ok([]map[string]interface{}{{
			"id": bankID.String(), "code": "B1", "name": "Account", "bankName": "First", "isActive": true,
		}}))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	svc := newTestSyncService(db, server.URL)
	result, err := svc.PullFromServer(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.ProductsUpdated)
	assert.Equal(t, 1, result.CustomersUpdated)
	assert.Equal(t, 1, result.EmployeesUpdated)
	assert.Equal(t, 1, result.BanksUpdated)

	var product model.Product
	require.NoError(t, db.Preload("Units").Preload("Prices").First(&product, "id = ?", productID).Error)
	assert.Equal(t, "R001", product.SKU)
	require.NotNil(t, product.SyncedAt)
	require.Len(t, product.Units, 1)
	require.Len(t, product.Prices, 1)
	assert.True(t, product.Prices[0].Price.Equal(decimal.RequireFromString("25.50")))

	var customer model.Customer
	require.NoError(t, db.First(&customer, "id = ?", customerID).Error)
	assert.Equal(t, 2, customer.PriceLevel)

	lastSync, err := svc.GetLastSyncTime(context.Background())
	require.NoError(t, err)
	require.NotNil(t, lastSync)
}

func TestPullOverwritesLocalChanges(t *testing.T) {
	db := setupTestDB(t)
	productID := uuid.New()
	require.NoError(t, db.Create(&model.Product{ID: productID, SKU: "R001", Name: "Stale", IsActive: true}).Error)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { json.NewEncoder(w).Encode(ok(nil)) })
	mux.HandleFunc("/products", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ok([]map[string]interface{}{{
			"id": productID.String(), "sku": "R001", "name": "Fresh", "isActive": true,
		}}))
	})
	mux.HandleFunc("/customers", func(w http.ResponseWriter, r *http.Request) { json.NewEncoder(w).Encode(ok([]interface{}{})) })
	mux.HandleFunc("/employees", func(w http.ResponseWriter, r *http.Request) { json.NewEncoder(w).Encode(ok([]interface{}{})) })
	mux.HandleFunc("/bank-accounts", func(w http.ResponseWriter, r *http.Request) { json.NewEncoder(w).Encode(ok([]interface{}{})) })
	server := httptest.NewServer(mux)
	defer server.Close()

	svc := newTestSyncService(db, server.URL)
	result, err := svc.PullFromServer(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success)

	var product model.Product
	require.NoError(t, db.First(&product, "id = ?", productID).Error)
	assert.Equal(t, "Fresh", product.Name)
}

func TestPullUnreachableServerAborts(t *testing.T) {
	db := setupTestDB(t)
	server := httptest.NewServer(http.NewServeMux())
	server.Close() // nothing listening

	svc := newTestSyncService(db, server.URL)
	_, err := svc.PullFromServer(context.Background())
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&model.Product{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)

	var logs []model.SyncLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, model.SyncTypePull, logs[0].Type)
	assert.Equal(t, model.SyncStatusFailed, logs[0].Status)
}

func TestPullPartialFailureIsReported(t *testing.T) {
	db := setupTestDB(t)
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { json.NewEncoder(w).Encode(ok(nil)) })
	mux.HandleFunc("/products", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "message": "feed offline"})
	})
	mux.HandleFunc("/customers", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ok([]map[string]interface{}{{
			"id": uuid.NewString(), "code": "C1", "name": "Customer", "priceLevel": 1, "isActive": true,
		}}))
	})
	mux.HandleFunc("/employees", func(w http.ResponseWriter, r *http.Request) { json.NewEncoder(w).Encode(ok([]interface{}{})) })
	mux.HandleFunc("/bank-accounts", func(w http.ResponseWriter, r *http.Request) { json.NewEncoder(w).Encode(ok([]interface{}{})) })
	server := httptest.NewServer(mux)
	defer server.Close()

	svc := newTestSyncService(db, server.URL)
	result, err := svc.PullFromServer(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 0, result.ProductsUpdated)
	assert.Equal(t, 1, result.CustomersUpdated, "other feeds still apply")
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "feed offline")
}

func seedCompletedTransaction(t *testing.T, db *gorm.DB, number string, date time.Time) *model.Transaction {
	t.Helper()
	product, unit := seedProduct(t, db, 1, "107.00")
	tx := &model.Transaction{
		TransactionNumber: number,
		TerminalID:        "POS01",
		TransactionDate:   date,
		Subtotal:          d("107"),
		VatAmount:         d("7"),
		VatType:           model.VatInclusive,
		VatRate:           d("7"),
		Discount:          decimal.Zero,
		GrandTotal:        d("107"),
		PaymentMethod:     model.PaymentCash,
		Status:            model.TxStatusCompleted,
		Items: []model.TransactionItem{{
			ProductID:   product.ID,
			ProductSKU:  product.SKU,
			ProductName: product.Name,
			UnitID:      unit.ID,
			UnitName:    unit.UnitName,
			Quantity:    decimal.NewFromInt(1),
			UnitPrice:   d("107"),
			LineTotal:   d("107"),
			Discount:    decimal.Zero,
			LineNumber:  1,
		}},
	}
	require.NoError(t, db.Create(tx).Error)
	return tx
}

func TestPushSalesMarksBatchSynced(t *testing.T) {
	db := setupTestDB(t)
	tx := seedCompletedTransaction(t, db, "POS01-20240615-0001", time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC))

	var captured struct {
		DocInfo []syncapi.DocInfo `json:"docInfo"`
		SkuMove []syncapi.SkuMove `json:"skuMove"`
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/sync/sales", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		json.NewEncoder(w).Encode(ok(nil))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	svc := newTestSyncService(db, server.URL)
	result, err := svc.PushSales(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.SentCount)

	require.Len(t, captured.DocInfo, 1)
	assert.Equal(t, "POS01-20240615-0001", captured.DocInfo[0].DIRef)
	assert.Equal(t, int64(10700), captured.DocInfo[0].DIAmount, "amount crosses in minor units")
	assert.Equal(t, syncapi.SerialDate(tx.TransactionDate), captured.DocInfo[0].DIDate)
	assert.Equal(t, "Cash", captured.DocInfo[0].DIPmBy)
	assert.Nil(t, captured.DocInfo[0].DIBank)
	require.Len(t, captured.SkuMove, 1)
	assert.Equal(t, "P001", captured.SkuMove[0].SKUCode)
	assert.Equal(t, int64(10700), captured.SkuMove[0].SKMPrc)

	var stored model.Transaction
	require.NoError(t, db.First(&stored, "id = ?", tx.ID).Error)
	assert.True(t, stored.IsSynced)
	require.NotNil(t, stored.SyncedAt)

	var logs []model.SyncLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, model.SyncTypePush, logs[0].Type)
	assert.Equal(t, model.SyncStatusSuccess, logs[0].Status)
}

func TestPushSalesTransferPaymentCrossesAsBank(t *testing.T) {
	db := setupTestDB(t)
	tx := seedCompletedTransaction(t, db, "POS01-20240615-0001", time.Now())
	require.NoError(t, db.Model(tx).Update("payment_method", model.PaymentTransfer).Error)

	var captured struct {
		DocInfo []syncapi.DocInfo `json:"docInfo"`
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/sync/sales", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		json.NewEncoder(w).Encode(ok(nil))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	svc := newTestSyncService(db, server.URL)
	result, err := svc.PushSales(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success)

	require.Len(t, captured.DocInfo, 1)
	assert.Equal(t, "BANK", captured.DocInfo[0].DIPmBy)
	require.NotNil(t, captured.DocInfo[0].DIBank)
	assert.Equal(t, 1, *captured.DocInfo[0].DIBank)
}

func TestPushSalesOrphanedCustomerStillSends(t *testing.T) {
	db := setupTestDB(t)
	tx := seedCompletedTransaction(t, db, "POS01-20240615-0001", time.Now())
	// Customer was removed by a master-data re-import after the sale.
	orphan := uuid.New()
	require.NoError(t, db.Model(tx).Update("customer_id", orphan).Error)

	var captured struct {
		SkuMove []syncapi.SkuMove `json:"skuMove"`
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/sync/sales", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		json.NewEncoder(w).Encode(ok(nil))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	svc := newTestSyncService(db, server.URL)
	result, err := svc.PushSales(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.SentCount)

	// The record goes out as a walk-in sale rather than blocking the queue.
	require.Len(t, captured.SkuMove, 1)
	assert.Empty(t, captured.SkuMove[0].ARCode)
	assert.Nil(t, captured.SkuMove[0].ARPRBKey)

	var stored model.Transaction
	require.NoError(t, db.First(&stored, "id = ?", tx.ID).Error)
	assert.True(t, stored.IsSynced)
}

func TestPushSalesRejectedBatchStaysLocal(t *testing.T) {
	db := setupTestDB(t)
	tx := seedCompletedTransaction(t, db, "POS01-20240615-0001", time.Now())

	mux := http.NewServeMux()
	mux.HandleFunc("/sync/sales", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "message": "validation failed"})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	svc := newTestSyncService(db, server.URL)
	result, err := svc.PushSales(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 1, result.FailedCount)
	assert.Contains(t, result.Error, "validation failed")

	var stored model.Transaction
	require.NoError(t, db.First(&stored, "id = ?", tx.ID).Error)
	assert.False(t, stored.IsSynced, "rejected batch must not be marked synced")

	var logs []model.SyncLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, model.SyncStatusFailed, logs[0].Status)
}

func TestPushSalesNothingPending(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestSyncService(db, "http://127.0.0.1:0")

	result, err := svc.PushSales(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 0, result.SentCount)
}

func TestSyncOperationsAreExclusive(t *testing.T) {
	db := setupTestDB(t)

	release := make(chan struct{})
	entered := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "message": "shutting down"})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	guard := NewGuard()
	svc := newTestSyncServiceWithGuard(db, server.URL, guard)
	importSvc := NewImportService(db, repository.NewTransactionManager(db), nil, guard)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = svc.PullFromServer(context.Background())
	}()

	<-entered
	_, err := svc.PushSales(context.Background())
	assert.ErrorIs(t, err, ErrSyncInProgress)
	// The workbook import shares the same guard
	_, err = importSvc.RunImport(context.Background(), "irrelevant.xlsx")
	assert.ErrorIs(t, err, ErrSyncInProgress)
	close(release)
	<-done
}
