package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"poscore/internal/model"
	"poscore/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrTransactionSynced    = errors.New("transaction already synced and cannot be modified")
	ErrTransactionNotParked = errors.New("transaction is not in PARKED status")
	ErrEmptyTransaction     = errors.New("transaction has no items")
)

// Totals is the monetary summary of a bill.
type Totals struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	VatAmount  decimal.Decimal `json:"vat_amount"`
	GrandTotal decimal.Decimal `json:"grand_total"`
}

// CalculateTotals computes bill totals from line totals, a bill-level
// discount, and the VAT mode.
//
// INCLUSIVE: the discounted subtotal already contains VAT, so the grand total
// equals the subtotal and the VAT portion is backed out of it.
// EXCLUSIVE: VAT is added on top of the discounted subtotal.
// All three results are rounded to 2 decimal places.
func CalculateTotals(lineTotals []decimal.Decimal, billDiscount decimal.Decimal, vatType string, vatRate decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, lt := range lineTotals {
		subtotal = subtotal.Add(lt)
	}
	subtotal = subtotal.Sub(billDiscount)

	hundred := decimal.NewFromInt(100)
	var vat, grand decimal.Decimal
	if vatType == model.VatExclusive {
		vat = subtotal.Mul(vatRate).Div(hundred)
		grand = subtotal.Add(vat)
	} else {
		grand = subtotal
		divisor := decimal.NewFromInt(1).Add(vatRate.Div(hundred))
		vat = grand.Sub(grand.Div(divisor))
	}

	return Totals{
		Subtotal:   subtotal.Round(2),
		VatAmount:  vat.Round(2),
		GrandTotal: grand.Round(2),
	}
}

// ItemInput is one requested bill line. UnitPrice may be zero, in which case
// the price is looked up from the product's price list at the given level.
type ItemInput struct {
	ProductID uuid.UUID       `json:"product_id" binding:"required"`
	UnitID    uuid.UUID       `json:"unit_id" binding:"required"`
	Quantity  decimal.Decimal `json:"quantity" binding:"required"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Discount  decimal.Decimal `json:"discount"`
}

type TransactionInput struct {
	CustomerID        *uuid.UUID       `json:"customer_id"`
	SalesEmployeeID   *uuid.UUID       `json:"sales_employee_id"`
	ServiceEmployeeID *uuid.UUID       `json:"service_employee_id"`
	ShiftID           *uuid.UUID       `json:"shift_id"`
	Items             []ItemInput      `json:"items" binding:"required"`
	Discount          decimal.Decimal  `json:"discount"`
	VatType           string           `json:"vat_type"`
	VatRate           *decimal.Decimal `json:"vat_rate"`
	PaymentMethod     string           `json:"payment_method"`
	Park              bool             `json:"park"`
}

type TransactionService interface {
	Create(ctx context.Context, input TransactionInput) (*model.Transaction, error)
	Update(ctx context.Context, id uuid.UUID, input TransactionInput) (*model.Transaction, error)
	Complete(ctx context.Context, id uuid.UUID) (*model.Transaction, error)
	Cancel(ctx context.Context, id uuid.UUID) (*model.Transaction, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Transaction, error)
	ListByStatus(ctx context.Context, status string) ([]model.Transaction, error)
}

type transactionService struct {
	txRepo      repository.TransactionRepository
	productRepo repository.ProductRepository
	masterRepo  repository.MasterDataRepository
	configRepo  repository.ConfigRepository
	txManager   repository.TransactionManager
	terminalID  string
}

func NewTransactionService(
	txRepo repository.TransactionRepository,
	productRepo repository.ProductRepository,
	masterRepo repository.MasterDataRepository,
	configRepo repository.ConfigRepository,
	txManager repository.TransactionManager,
	terminalID string,
) TransactionService {
	return &transactionService{
		txRepo:      txRepo,
		productRepo: productRepo,
		masterRepo:  masterRepo,
		configRepo:  configRepo,
		txManager:   txManager,
		terminalID:  terminalID,
	}
}

// Create builds a new bill. With Park set the bill is saved as PARKED and
// stays editable; otherwise it is COMPLETED immediately and becomes eligible
// for the next sales push.
func (s *transactionService) Create(ctx context.Context, input TransactionInput) (*model.Transaction, error) {
	if len(input.Items) == 0 {
		return nil, ErrEmptyTransaction
	}

	vatType, vatRate := s.vatDefaults(ctx, input)
	priceLevel := s.priceLevelFor(ctx, input.CustomerID)

	var created *model.Transaction
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		items, totals, err := s.buildItems(txCtx, input, priceLevel, vatType, vatRate)
		if err != nil {
			return err
		}

		number, err := s.nextNumber(txCtx)
		if err != nil {
			return err
		}

		status := model.TxStatusCompleted
		if input.Park {
			status = model.TxStatusParked
		}
		payment := input.PaymentMethod
		if payment == "" {
			payment = model.PaymentCash
		}

		tx := &model.Transaction{
			TransactionNumber: number,
			TerminalID:        s.terminalID,
			ShiftID:           input.ShiftID,
			CustomerID:        input.CustomerID,
			SalesEmployeeID:   input.SalesEmployeeID,
			ServiceEmployeeID: input.ServiceEmployeeID,
			TransactionDate:   time.Now(),
			Subtotal:          totals.Subtotal,
			VatAmount:         totals.VatAmount,
			VatType:           vatType,
			VatRate:           vatRate,
			Discount:          input.Discount,
			GrandTotal:        totals.GrandTotal,
			PaymentMethod:     payment,
			Status:            status,
			Items:             items,
		}
		if err := s.txRepo.Create(txCtx, tx); err != nil {
			return err
		}
		created = tx
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Update replaces the contents of a PARKED bill and recalculates its totals.
func (s *transactionService) Update(ctx context.Context, id uuid.UUID, input TransactionInput) (*model.Transaction, error) {
	if len(input.Items) == 0 {
		return nil, ErrEmptyTransaction
	}

	var updated *model.Transaction
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		tx, err := s.txRepo.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		if tx.IsSynced {
			return ErrTransactionSynced
		}
		if tx.Status != model.TxStatusParked {
			return ErrTransactionNotParked
		}

		vatType, vatRate := s.vatDefaults(txCtx, input)
		priceLevel := s.priceLevelFor(txCtx, input.CustomerID)

		items, totals, err := s.buildItems(txCtx, input, priceLevel, vatType, vatRate)
		if err != nil {
			return err
		}
		for i := range items {
			items[i].TransactionID = tx.ID
		}
		if err := s.txRepo.ReplaceItems(txCtx, tx.ID, items); err != nil {
			return err
		}

		tx.CustomerID = input.CustomerID
		tx.SalesEmployeeID = input.SalesEmployeeID
		tx.ServiceEmployeeID = input.ServiceEmployeeID
		tx.Subtotal = totals.Subtotal
		tx.VatAmount = totals.VatAmount
		tx.VatType = vatType
		tx.VatRate = vatRate
		tx.Discount = input.Discount
		tx.GrandTotal = totals.GrandTotal
		if input.PaymentMethod != "" {
			tx.PaymentMethod = input.PaymentMethod
		}
		tx.Items = nil
		if err := s.txRepo.Save(txCtx, tx); err != nil {
			return err
		}

		updated, err = s.txRepo.FindByID(txCtx, tx.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Complete promotes a PARKED bill to COMPLETED, stamping the completion time
// as the transaction date.
func (s *transactionService) Complete(ctx context.Context, id uuid.UUID) (*model.Transaction, error) {
	return s.transition(ctx, id, model.TxStatusCompleted)
}

// Cancel voids a PARKED bill. Completed bills cannot be cancelled; they are
// part of the sales record.
func (s *transactionService) Cancel(ctx context.Context, id uuid.UUID) (*model.Transaction, error) {
	return s.transition(ctx, id, model.TxStatusCancelled)
}

func (s *transactionService) transition(ctx context.Context, id uuid.UUID, target string) (*model.Transaction, error) {
	var result *model.Transaction
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		tx, err := s.txRepo.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		if tx.IsSynced {
			return ErrTransactionSynced
		}
		if tx.Status != model.TxStatusParked {
			return ErrTransactionNotParked
		}
		tx.Status = target
		if target == model.TxStatusCompleted {
			tx.TransactionDate = time.Now()
		}
		if err := s.txRepo.Save(txCtx, tx); err != nil {
			return err
		}
		result = tx
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *transactionService) Get(ctx context.Context, id uuid.UUID) (*model.Transaction, error) {
	return s.txRepo.FindByID(ctx, id)
}

func (s *transactionService) ListByStatus(ctx context.Context, status string) ([]model.Transaction, error) {
	return s.txRepo.ListByStatus(ctx, status)
}

// buildItems resolves each requested line against the product catalog,
// denormalizes names for history, and computes line and bill totals.
func (s *transactionService) buildItems(ctx context.Context, input TransactionInput, priceLevel int, vatType string, vatRate decimal.Decimal) ([]model.TransactionItem, Totals, error) {
	items := make([]model.TransactionItem, 0, len(input.Items))
	lineTotals := make([]decimal.Decimal, 0, len(input.Items))

	for i, line := range input.Items {
		if !line.Quantity.IsPositive() {
			return nil, Totals{}, fmt.Errorf("line %d: quantity must be positive", i+1)
		}
		product, err := s.productRepo.FindByID(ctx, line.ProductID)
		if err != nil {
			return nil, Totals{}, fmt.Errorf("line %d: product not found", i+1)
		}
		unit, err := s.productRepo.FindUnit(ctx, line.UnitID)
		if err != nil || unit.ProductID != product.ID {
			return nil, Totals{}, fmt.Errorf("line %d: unit does not belong to product %s", i+1, product.SKU)
		}

		price := line.UnitPrice
		if price.IsZero() {
			price, err = s.lookupPrice(product, unit.ID, priceLevel)
			if err != nil {
				return nil, Totals{}, fmt.Errorf("line %d: %w", i+1, err)
			}
		}

		lineTotal := price.Mul(line.Quantity).Sub(line.Discount).Round(2)
		items = append(items, model.TransactionItem{
			ProductID:   product.ID,
			ProductSKU:  product.SKU,
			ProductName: product.Name,
			UnitID:      unit.ID,
			UnitName:    unit.UnitName,
			Quantity:    line.Quantity,
			UnitPrice:   price,
			LineTotal:   lineTotal,
			Discount:    line.Discount,
			LineNumber:  i + 1,
		})
		lineTotals = append(lineTotals, lineTotal)
	}

	return items, CalculateTotals(lineTotals, input.Discount, vatType, vatRate), nil
}

// lookupPrice picks the price for the unit at the requested level, falling
// back to level 1 when the customer's tier has no entry.
func (s *transactionService) lookupPrice(product *model.Product, unitID uuid.UUID, level int) (decimal.Decimal, error) {
	var fallback *decimal.Decimal
	for i := range product.Prices {
		p := &product.Prices[i]
		if p.UnitID != unitID {
			continue
		}
		if p.PriceLevel == level {
			return p.Price, nil
		}
		if p.PriceLevel == 1 {
			fallback = &p.Price
		}
	}
	if fallback != nil {
		return *fallback, nil
	}
	return decimal.Zero, fmt.Errorf("no price for product %s at level %d", product.SKU, level)
}

func (s *transactionService) vatDefaults(ctx context.Context, input TransactionInput) (string, decimal.Decimal) {
	vatType := input.VatType
	if vatType != model.VatInclusive && vatType != model.VatExclusive {
		vatType = s.configRepo.GetOrDefault(ctx, model.ConfigVatType, model.VatInclusive)
	}
	if input.VatRate != nil {
		return vatType, *input.VatRate
	}
	raw := s.configRepo.GetOrDefault(ctx, model.ConfigVatRate, "7")
	rate, err := decimal.NewFromString(raw)
	if err != nil {
		rate = decimal.NewFromInt(7)
	}
	return vatType, rate
}

func (s *transactionService) priceLevelFor(ctx context.Context, customerID *uuid.UUID) int {
	if customerID == nil {
		return 1
	}
	customer, err := s.masterRepo.FindCustomer(ctx, *customerID)
	if err != nil || customer.PriceLevel < 1 {
		return 1
	}
	return customer.PriceLevel
}

// nextNumber generates the next bill number for this terminal:
// <terminal>-<yyyymmdd>-<seq>, sequence resetting each day.
func (s *transactionService) nextNumber(ctx context.Context) (string, error) {
	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	count, err := s.txRepo.CountForTerminalSince(ctx, s.terminalID, midnight)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-%04d", s.terminalID, now.Format("20060102"), count+1), nil
}
