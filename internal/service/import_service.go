package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"poscore/internal/excel"
	"poscore/internal/model"
	"poscore/internal/repository"
	ws "poscore/internal/websocket"

	"gorm.io/gorm"
)

// Legacy workbook sheet names. These, the column names and the per-sheet
// header/data offsets are the contract with the legacy export format.
const (
	sheetBranch    = "BRANCH"
	sheetCategory  = "ICCAT"
	sheetDept      = "ICDEPT"
	sheetWarehouse = "WARELOCATION"
	sheetCustomer  = "ARFILE"
	sheetEmployee  = "USER"
	sheetBank      = "BANK"
	sheetProduct   = "SKUMASTER"
	sheetUnit      = "UOFQTY"
	sheetGoods     = "GOODSMASTER"
	sheetPrice     = "ARPLU"
)

// sheetLayout holds the 0-based header and first-data row per sheet. The
// legacy workbook is inconsistent: ICCAT has its header on the first row,
// ICDEPT on the fourth, everything else on the third.
type sheetLayout struct {
	headerRow int
	dataRow   int
}

var sheetLayouts = map[string]sheetLayout{
	sheetBranch:    {2, 3},
	sheetCategory:  {0, 1},
	sheetDept:      {3, 4},
	sheetWarehouse: {2, 3},
	sheetCustomer:  {2, 3},
	sheetEmployee:  {2, 3},
	sheetBank:      {2, 3},
	sheetProduct:   {2, 3},
	sheetUnit:      {2, 3},
	sheetGoods:     {2, 3},
	sheetPrice:     {2, 3},
}

// ImportReport accumulates per-sheet counters. Row-level problems never abort
// a run; they are counted here instead.
type ImportReport struct {
	Imported map[string]int `json:"imported"`
	Skipped  map[string]int `json:"skipped"`
	Errors   []string       `json:"errors"`
}

func newImportReport() *ImportReport {
	return &ImportReport{
		Imported: make(map[string]int),
		Skipped:  make(map[string]int),
	}
}

func (r *ImportReport) add(sheet string)  { r.Imported[sheet]++ }
func (r *ImportReport) skip(sheet string) { r.Skipped[sheet]++ }

type ImportService interface {
	RunImport(ctx context.Context, workbookPath string) (*ImportReport, error)
}

type importService struct {
	db        *gorm.DB
	txManager repository.TransactionManager
	hub       *ws.Hub
	guard     *Guard
}

func NewImportService(db *gorm.DB, txManager repository.TransactionManager, hub *ws.Hub, guard *Guard) ImportService {
	return &importService{db: db, txManager: txManager, hub: hub, guard: guard}
}

// RunImport bootstraps the normalized schema from the legacy workbook.
// Sheets run in dependency order: units must be resolved before goods and
// goods before prices, because each stage resolves rows against the lookup
// tables the previous stage populated. Each sheet clears its target table
// and repopulates it inside one database transaction, so re-running the
// import is idempotent and a failure rolls back only the sheet in progress.
func (s *importService) RunImport(ctx context.Context, workbookPath string) (*ImportReport, error) {
	if !s.guard.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer s.guard.Unlock()

	reader, err := excel.Open(workbookPath)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	report := newImportReport()
	resolver := newKeyResolver()

	stages := []struct {
		sheet string
		run   func(context.Context, *excel.Reader, *keyResolver, *ImportReport) error
	}{
		{sheetBranch, s.importBranches},
		{sheetCategory, s.importCategories},
		{sheetDept, s.importDepartments},
		{sheetWarehouse, s.importWarehouses},
		{sheetCustomer, s.importCustomers},
		{sheetEmployee, s.importEmployees},
		{sheetBank, s.importBanks},
		{sheetProduct, s.importProducts},
		{sheetUnit, s.loadUnitDefinitions},
		{sheetGoods, s.importGoods},
		{sheetPrice, s.importPrices},
	}

	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := stage.run(ctx, reader, resolver, report); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return report, err
			}
			// Sheet-scope persistence failure: already rolled back, record it
			// and keep going — later sheets that depend on this one will
			// simply skip their unresolvable rows.
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", stage.sheet, err))
			log.Printf("import: sheet %s failed: %v", stage.sheet, err)
			continue
		}
		log.Printf("import: %s done (%d imported, %d skipped)",
			stage.sheet, report.Imported[stage.sheet], report.Skipped[stage.sheet])
		s.broadcastProgress(stage.sheet, report)
	}

	return report, nil
}

func (s *importService) broadcastProgress(sheet string, report *ImportReport) {
	if s.hub == nil {
		return
	}
	payload, _ := json.Marshal(map[string]interface{}{
		"event": "import_progress",
		"data": map[string]interface{}{
			"sheet":    sheet,
			"imported": report.Imported[sheet],
			"skipped":  report.Skipped[sheet],
		},
	})
	s.hub.Broadcast <- payload
}

func (s *importService) rows(r *excel.Reader, sheet string) ([]excel.Row, error) {
	layout := sheetLayouts[sheet]
	return r.Rows(sheet, layout.headerRow, layout.dataRow)
}

// importSheet wraps the clear-then-insert cycle for one sheet in a single
// transaction. Duplicate-key failures are expected source-data noise and are
// skipped and counted; anything else aborts and rolls back the sheet.
func (s *importService) importSheet(ctx context.Context, sheet string, clearModels []interface{}, rows []excel.Row, report *ImportReport,
	insert func(txCtx context.Context, db *gorm.DB, row excel.Row, index int) (bool, error)) error {

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		db := repository.GetDB(txCtx, s.db)
		for _, m := range clearModels {
			if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(m).Error; err != nil {
				return fmt.Errorf("failed to clear table for sheet %s: %w", sheet, err)
			}
		}
		for i, row := range rows {
			if err := ctx.Err(); err != nil {
				return err
			}
			// Each row runs in a savepoint: on postgres a failed INSERT
			// poisons the enclosing transaction, so the duplicate-key skip
			// must roll back just the row, not the sheet.
			var ok bool
			err := db.Transaction(func(rowDB *gorm.DB) error {
				var insErr error
				ok, insErr = insert(txCtx, rowDB, row, i)
				return insErr
			})
			if err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					report.skip(sheet)
					continue
				}
				return fmt.Errorf("sheet %s row %d: %w", sheet, i+1, err)
			}
			if ok {
				report.add(sheet)
			} else {
				report.skip(sheet)
			}
		}
		return nil
	})
}

func (s *importService) importBranches(ctx context.Context, r *excel.Reader, _ *keyResolver, report *ImportReport) error {
	rows, err := s.rows(r, sheetBranch)
	if err != nil {
		return err
	}
	return s.importSheet(ctx, sheetBranch, []interface{}{&model.Branch{}}, rows, report,
		func(_ context.Context, db *gorm.DB, row excel.Row, _ int) (bool, error) {
			if row["BRANCH_CODE"] == "" {
				return false, nil
			}
			branch := model.Branch{
				Code:     row["BRANCH_CODE"],
				Name:     row["BRANCH_NAME"],
				Address:  row["Branch_address"],
				Phone:    row["Branch_TEL"],
				IsActive: true,
			}
			return true, db.Create(&branch).Error
		})
}

func (s *importService) importCategories(ctx context.Context, r *excel.Reader, _ *keyResolver, report *ImportReport) error {
	rows, err := s.rows(r, sheetCategory)
	if err != nil {
		return err
	}
	return s.importSheet(ctx, sheetCategory, []interface{}{&model.Category{}}, rows, report,
		func(_ context.Context, db *gorm.DB, row excel.Row, _ int) (bool, error) {
			code := row["ICCAT_CODE"]
			if code == "" || code == "0" {
				return false, nil
			}
			category := model.Category{Code: code, Name: row["ICCAT_NAME"], IsActive: true}
			return true, db.Create(&category).Error
		})
}

func (s *importService) importDepartments(ctx context.Context, r *excel.Reader, _ *keyResolver, report *ImportReport) error {
	rows, err := s.rows(r, sheetDept)
	if err != nil {
		return err
	}
	seen := make(map[string]bool)
	counter := 0
	return s.importSheet(ctx, sheetDept, []interface{}{&model.Department{}}, rows, report,
		func(_ context.Context, db *gorm.DB, row excel.Row, _ int) (bool, error) {
			if row["ICDEPT_NAME"] == "" {
				return false, nil
			}
			// Department keys repeat in the source; generate a unique code
			// when the sheet's own key collides.
			code := row["ICDEPT_KEY"]
			if code == "" {
				code = fmt.Sprintf("DEPT%d", counter)
			}
			for seen[code] {
				counter++
				code = fmt.Sprintf("DEPT%d", counter)
			}
			seen[code] = true
			counter++

			level := 1
			if n, ok := parseLegacyKey(row["ICDEPT_LEVEL"]); ok && n > 0 {
				level = n
			}
			dept := model.Department{
				Code:         code,
				Name:         row["ICDEPT_NAME"],
				Level:        level,
				CategoryCode: row["ICDEPT_ICCAT"],
				IsActive:     true,
			}
			return true, db.Create(&dept).Error
		})
}

func (s *importService) importWarehouses(ctx context.Context, r *excel.Reader, _ *keyResolver, report *ImportReport) error {
	rows, err := s.rows(r, sheetWarehouse)
	if err != nil {
		return err
	}
	counter := 0
	return s.importSheet(ctx, sheetWarehouse, []interface{}{&model.Warehouse{}}, rows, report,
		func(_ context.Context, db *gorm.DB, row excel.Row, _ int) (bool, error) {
			if row["WL_NAME"] == "" {
				return false, nil
			}
			code := row["WL_KEY"]
			if code == "" {
				code = fmt.Sprintf("WH%d", counter)
			}
			counter++
			warehouse := model.Warehouse{
				Code:       code,
				Name:       row["WL_NAME"],
				BranchCode: row["WL_BRANCH"],
				IsActive:   true,
			}
			return true, db.Create(&warehouse).Error
		})
}

func (s *importService) importCustomers(ctx context.Context, r *excel.Reader, _ *keyResolver, report *ImportReport) error {
	rows, err := s.rows(r, sheetCustomer)
	if err != nil {
		return err
	}
	return s.importSheet(ctx, sheetCustomer, []interface{}{&model.Customer{}}, rows, report,
		func(_ context.Context, db *gorm.DB, row excel.Row, _ int) (bool, error) {
			if row["AR_CODE"] == "" {
				return false, nil
			}
			customer := model.Customer{
				Code:       row["AR_CODE"],
				Name:       row["AR_NAME"],
				Branch:     row["AR_BRANCH"],
				PriceLevel: parseLevel(row["AR_ARPRB"]),
				IsActive:   true,
			}
			return true, db.Create(&customer).Error
		})
}

func (s *importService) importEmployees(ctx context.Context, r *excel.Reader, _ *keyResolver, report *ImportReport) error {
	rows, err := s.rows(r, sheetEmployee)
	if err != nil {
		return err
	}
	return s.importSheet(ctx, sheetEmployee, []interface{}{&model.Employee{}}, rows, report,
		func(_ context.Context, db *gorm.DB, row excel.Row, _ int) (bool, error) {
			if row["USER_CODE"] == "" {
				return false, nil
			}
			employee := model.Employee{
				Code:       row["USER_CODE"],
				Name:       row["USER_NAME"],
				Type:       model.EmployeeTypeSales,
				BranchCode: row["USER_BRANCH"],
				IsActive:   true,
			}
			return true, db.Create(&employee).Error
		})
}

func (s *importService) importBanks(ctx context.Context, r *excel.Reader, _ *keyResolver, report *ImportReport) error {
	rows, err := s.rows(r, sheetBank)
	if err != nil {
		return err
	}
	return s.importSheet(ctx, sheetBank, []interface{}{&model.BankAccount{}}, rows, report,
		func(_ context.Context, db *gorm.DB, row excel.Row, _ int) (bool, error) {
			if row["BANK_CODE"] == "" {
				return false, nil
			}
			account := model.BankAccount{
				Code:          row["BANK_CODE"],
				Name:          row["BANK_NAME"],
				BranchCode:    row["BRANCH"],
				BankName:      row["BANK_NAME"],
				Currency:      row["BANK_Ccy"],
				AccountNumber: row["BANK_A/C_No"],
				AccountName:   row["BANK_A/C_NAME"],
				IsActive:      true,
			}
			return true, db.Create(&account).Error
		})
}

// importProducts also populates the resolver's SKU-key table. Only the first
// occurrence of a SKU code is imported; later duplicates are counted.
func (s *importService) importProducts(ctx context.Context, r *excel.Reader, resolver *keyResolver, report *ImportReport) error {
	rows, err := s.rows(r, sheetProduct)
	if err != nil {
		return err
	}
	seenSKU := make(map[string]bool)
	return s.importSheet(ctx, sheetProduct, []interface{}{&model.ProductPrice{}, &model.ProductUnit{}, &model.Product{}}, rows, report,
		func(_ context.Context, db *gorm.DB, row excel.Row, _ int) (bool, error) {
			sku := row["SKU_CODE"]
			if sku == "" {
				return false, nil
			}
			if seenSKU[sku] {
				return false, nil
			}
			seenSKU[sku] = true

			product := model.Product{
				SKU:        sku,
				Name:       row["SKU_NAME"],
				NameEn:     row["SKU_NAME"],
				NameLo:     row["SKU_NAME"],
				Category:   row["SKU_ICCAT"],
				Department: row["SKU_ICDEPT"],
				IsActive:   true,
			}
			if err := db.Create(&product).Error; err != nil {
				return false, err
			}
			if key, ok := parseLegacyKey(row["SKU_KEY"]); ok {
				resolver.products[key] = product.ID
			}
			return true, nil
		})
}

// loadUnitDefinitions feeds the resolver only — UOFQTY has no table of its
// own, its rows exist to give GOODSMASTER rows a unit name and conversion
// quantity.
func (s *importService) loadUnitDefinitions(_ context.Context, r *excel.Reader, resolver *keyResolver, report *ImportReport) error {
	rows, err := s.rows(r, sheetUnit)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if row["UTQ_NAME"] == "" {
			report.skip(sheetUnit)
			continue
		}
		key, ok := parseLegacyKey(row["UTQ_KEY"])
		if !ok {
			report.skip(sheetUnit)
			continue
		}
		resolver.units[key] = unitDef{name: row["UTQ_NAME"], qty: parseQuantity(row["UTQ_QTY"])}
		report.add(sheetUnit)
	}
	return nil
}

// importGoods creates ProductUnits from the SKU-unit association sheet and
// populates the resolver's goods table for the price stage. The first unit
// created for a product becomes its base unit.
func (s *importService) importGoods(ctx context.Context, r *excel.Reader, resolver *keyResolver, report *ImportReport) error {
	rows, err := s.rows(r, sheetGoods)
	if err != nil {
		return err
	}
	hasBase := make(map[string]bool)
	return s.importSheet(ctx, sheetGoods, []interface{}{&model.ProductUnit{}}, rows, report,
		func(_ context.Context, db *gorm.DB, row excel.Row, _ int) (bool, error) {
			if row["GOODS_CODE"] == "" || row["GOODS_SKU"] == "" {
				return false, nil
			}
			skuKey, ok := parseLegacyKey(row["GOODS_SKU"])
			if !ok {
				return false, nil
			}
			productID, ok := resolver.products[skuKey]
			if !ok {
				return false, nil
			}

			def := fallbackUnit
			if utqKey, ok := parseLegacyKey(row["GOODS_UTQ"]); ok {
				def = resolver.unitFor(utqKey)
			}

			unit := model.ProductUnit{
				ProductID:      productID,
				UnitCode:       row["GOODS_CODE"],
				UnitName:       def.name,
				UnitNameEn:     def.name,
				UnitNameLo:     def.name,
				ConversionRate: def.qty,
				Barcode:        row["GOODS_CODE"],
				IsBaseUnit:     !hasBase[productID.String()],
			}
			if err := db.Create(&unit).Error; err != nil {
				return false, err
			}
			hasBase[productID.String()] = true

			if goodsKey, ok := parseLegacyKey(row["GOODS_KEY"]); ok {
				resolver.goods[goodsKey] = goodsRef{productID: productID, unitID: unit.ID}
			}
			return true, nil
		})
}

func (s *importService) importPrices(ctx context.Context, r *excel.Reader, resolver *keyResolver, report *ImportReport) error {
	rows, err := s.rows(r, sheetPrice)
	if err != nil {
		return err
	}
	now := time.Now()
	return s.importSheet(ctx, sheetPrice, []interface{}{&model.ProductPrice{}}, rows, report,
		func(_ context.Context, db *gorm.DB, row excel.Row, _ int) (bool, error) {
			goodsKey, ok := parseLegacyKey(row["ARPLU_GOODS"])
			if !ok {
				return false, nil
			}
			ref, ok := resolver.goods[goodsKey]
			if !ok {
				return false, nil
			}
			price, ok := parsePrice(row["ARPLU_PRC_K"])
			if !ok {
				return false, nil
			}
			record := model.ProductPrice{
				ProductID:     ref.productID,
				UnitID:        ref.unitID,
				PriceLevel:    parseLevel(row["ARPLU_ARPRB"]),
				Price:         price,
				EffectiveDate: now,
			}
			return true, db.Create(&record).Error
		})
}
