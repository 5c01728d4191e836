package service

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"poscore/internal/database"
	"poscore/internal/model"
	"poscore/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

// sheetDef describes one sheet to synthesize: a header row at the given
// 0-based offset followed immediately by data rows.
type sheetDef struct {
	headerRow int
	headers   []string
	data      [][]string
}

func buildWorkbook(t *testing.T, sheets map[string]sheetDef) string {
	t.Helper()
	f := excelize.NewFile()
	for name, def := range sheets {
		_, err := f.NewSheet(name)
		require.NoError(t, err)

		cell, err := excelize.CoordinatesToCellName(1, def.headerRow+1)
		require.NoError(t, err)
		headers := make([]interface{}, len(def.headers))
		for i, h := range def.headers {
			headers[i] = h
		}
		require.NoError(t, f.SetSheetRow(name, cell, &headers))

		for i, row := range def.data {
			cell, err := excelize.CoordinatesToCellName(1, def.headerRow+2+i)
			require.NoError(t, err)
			cells := make([]interface{}, len(row))
			for j, v := range row {
				cells[j] = v
			}
			require.NoError(t, f.SetSheetRow(name, cell, &cells))
		}
	}
	path := filepath.Join(t.TempDir(), "import.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
	return path
}

func productSheets() map[string]sheetDef {
	return map[string]sheetDef{
		sheetProduct: {2, []string{"SKU_CODE", "SKU_KEY", "SKU_NAME", "SKU_ICCAT", "SKU_ICDEPT"}, [][]string{
			{"P001", "10", "Test", "C1", "D1"},
		}},
		sheetUnit: {2, []string{"UTQ_KEY", "UTQ_NAME", "UTQ_QTY"}, [][]string{
			{"5", "Box", "1"},
		}},
		sheetGoods: {2, []string{"GOODS_KEY", "GOODS_SKU", "GOODS_UTQ", "GOODS_CODE"}, [][]string{
			{"20", "10", "5", "G001"},
		}},
		sheetPrice: {2, []string{"ARPLU_GOODS", "ARPLU_PRC_K", "ARPLU_ARPRB"}, [][]string{
			{"20", "99.00", "1"},
		}},
	}
}

func newTestImportService(db *gorm.DB) ImportService {
	return NewImportService(db, repository.NewTransactionManager(db), nil, NewGuard())
}

func TestRunImportProductChain(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestImportService(db)

	report, err := svc.RunImport(context.Background(), buildWorkbook(t, productSheets()))
	require.NoError(t, err)
	assert.Empty(t, report.Errors)
	assert.Equal(t, 1, report.Imported[sheetProduct])
	assert.Equal(t, 1, report.Imported[sheetGoods])
	assert.Equal(t, 1, report.Imported[sheetPrice])

	var product model.Product
	require.NoError(t, db.Preload("Units").Preload("Prices").First(&product, "sku = ?", "P001").Error)
	assert.Equal(t, "Test", product.Name)
	require.Len(t, product.Units, 1)
	assert.Equal(t, "G001", product.Units[0].UnitCode)
	assert.Equal(t, "Box", product.Units[0].UnitName)
	assert.True(t, product.Units[0].IsBaseUnit)
	require.Len(t, product.Prices, 1)
	assert.Equal(t, 1, product.Prices[0].PriceLevel)
	assert.True(t, product.Prices[0].Price.Equal(decimal.NewFromInt(99)))
	assert.Equal(t, product.Units[0].ID, product.Prices[0].UnitID)
}

func TestRunImportDuplicateSKUSkipped(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestImportService(db)

	sheets := productSheets()
	def := sheets[sheetProduct]
	def.data = append(def.data, []string{"P001", "11", "Duplicate", "C1", "D1"})
	sheets[sheetProduct] = def

	report, err := svc.RunImport(context.Background(), buildWorkbook(t, sheets))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Imported[sheetProduct])
	assert.Equal(t, 1, report.Skipped[sheetProduct])

	var count int64
	require.NoError(t, db.Model(&model.Product{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// First occurrence wins
	var product model.Product
	require.NoError(t, db.First(&product, "sku = ?", "P001").Error)
	assert.Equal(t, "Test", product.Name)
}

func TestRunImportDuplicateCodeRowSkipped(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestImportService(db)

	// The duplicate C1 trips the unique index mid-sheet; the row after it
	// must still land.
	sheets := map[string]sheetDef{
		sheetCategory: {0, []string{"ICCAT_CODE", "ICCAT_NAME"}, [][]string{
			{"C1", "Drinks"},
			{"C1", "Drinks again"},
			{"C2", "Food"},
		}},
	}

	report, err := svc.RunImport(context.Background(), buildWorkbook(t, sheets))
	require.NoError(t, err)
	assert.Empty(t, report.Errors)
	assert.Equal(t, 2, report.Imported[sheetCategory])
	assert.Equal(t, 1, report.Skipped[sheetCategory])

	var codes []string
	require.NoError(t, db.Model(&model.Category{}).Order("code").Pluck("code", &codes).Error)
	assert.Equal(t, []string{"C1", "C2"}, codes)
}

func TestRunImportBadPriceSkipped(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestImportService(db)

	sheets := productSheets()
	sheets[sheetPrice] = sheetDef{2, []string{"ARPLU_GOODS", "ARPLU_PRC_K", "ARPLU_ARPRB"}, [][]string{
		{"20", "0", "1"},
		{"20", "not a price", "1"},
		{"20", "50.00", "2"},
	}}

	report, err := svc.RunImport(context.Background(), buildWorkbook(t, sheets))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Imported[sheetPrice])
	assert.Equal(t, 2, report.Skipped[sheetPrice])

	var price model.ProductPrice
	require.NoError(t, db.First(&price).Error)
	assert.Equal(t, 2, price.PriceLevel)
}

func TestRunImportUnresolvedReferencesSkipped(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestImportService(db)

	sheets := productSheets()
	// Goods row pointing at a SKU key that was never imported, and a price
	// row pointing at a goods key that does not exist.
	def := sheets[sheetGoods]
	def.data = append(def.data, []string{"21", "999", "5", "G002"})
	sheets[sheetGoods] = def
	def = sheets[sheetPrice]
	def.data = append(def.data, []string{"888", "10.00", "1"})
	sheets[sheetPrice] = def

	report, err := svc.RunImport(context.Background(), buildWorkbook(t, sheets))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Imported[sheetGoods])
	assert.Equal(t, 1, report.Skipped[sheetGoods])
	assert.Equal(t, 1, report.Imported[sheetPrice])
	assert.Equal(t, 1, report.Skipped[sheetPrice])
}

func TestRunImportIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestImportService(db)
	path := buildWorkbook(t, productSheets())

	_, err := svc.RunImport(context.Background(), path)
	require.NoError(t, err)
	report, err := svc.RunImport(context.Background(), path)
	require.NoError(t, err)
	assert.Empty(t, report.Errors)

	var products, units, prices int64
	require.NoError(t, db.Model(&model.Product{}).Count(&products).Error)
	require.NoError(t, db.Model(&model.ProductUnit{}).Count(&units).Error)
	require.NoError(t, db.Model(&model.ProductPrice{}).Count(&prices).Error)
	assert.Equal(t, int64(1), products)
	assert.Equal(t, int64(1), units)
	assert.Equal(t, int64(1), prices)
}

func TestRunImportMasterDataSheets(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestImportService(db)

	sheets := map[string]sheetDef{
		sheetBranch: {2, []string{"BRANCH_CODE", "BRANCH_NAME", "Branch_address", "Branch_TEL"}, [][]string{
			{"B01", "Main", "1 High St", "555-0100"},
		}},
		sheetCategory: {0, []string{"ICCAT_CODE", "ICCAT_NAME"}, [][]string{
			{"0", "placeholder"},
			{"C1", "Drinks"},
		}},
		sheetDept: {3, []string{"ICDEPT_KEY", "ICDEPT_NAME", "ICDEPT_LEVEL", "ICDEPT_ICCAT"}, [][]string{
			{"D1", "Front", "1", "C1"},
			{"D1", "Back", "2", "C1"},
		}},
		sheetCustomer: {2, []string{"AR_CODE", "AR_NAME", "AR_ARPRB", "AR_BRANCH"}, [][]string{
			{"CUST1", "Walk In", "2", "B01"},
		}},
		sheetEmployee: {2, []string{"USER_CODE", "USER_NAME", "USER_BRANCH"}, [][]string{
			{"E1", "Alice", "B01"},
		}},
		sheetBank: {2, []string{"BANK_CODE", "BANK_NAME", "BRANCH", "BANK_Ccy", "BANK_A/C_No", "BANK_A/C_NAME"}, [][]string{
			{"BK1", "First Bank", "B01", "THB", "12345", "Shop Account"},
		}},
	}

	report, err := svc.RunImport(context.Background(), buildWorkbook(t, sheets))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Imported[sheetBranch])
	assert.Equal(t, 1, report.Imported[sheetCategory])
	assert.Equal(t, 1, report.Skipped[sheetCategory], "code 0 must be skipped")
	assert.Equal(t, 2, report.Imported[sheetDept])
	assert.Equal(t, 1, report.Imported[sheetCustomer])
	assert.Equal(t, 1, report.Imported[sheetEmployee])
	assert.Equal(t, 1, report.Imported[sheetBank])

	// Duplicate department keys get regenerated, not dropped.
	var depts []model.Department
	require.NoError(t, db.Order("level ASC").Find(&depts).Error)
	require.Len(t, depts, 2)
	assert.NotEqual(t, depts[0].Code, depts[1].Code)

	var customer model.Customer
	require.NoError(t, db.First(&customer, "code = ?", "CUST1").Error)
	assert.Equal(t, 2, customer.PriceLevel)
}

func TestRunImportMissingWorkbookFails(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestImportService(db)

	_, err := svc.RunImport(context.Background(), filepath.Join(t.TempDir(), "absent.xlsx"))
	assert.Error(t, err)
}
