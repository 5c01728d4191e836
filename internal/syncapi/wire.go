package syncapi

import (
	"time"

	"github.com/shopspring/decimal"
)

// Legacy wire records for POST /sync/sales. Field names mirror the DOCINFO
// and SKUMOVE sheets of the legacy workbook and are the binding contract with
// the head-office server — do not rename.
//
// All monetary fields cross the wire in minor currency units (satang, x100),
// applied only at this boundary; everything inside the schema stays in major
// units. Dates cross as 1900-epoch serial day counts the way the spreadsheet
// format encodes them.

type DocInfo struct {
	DIDate     int    `json:"DI_DATE"`
	DIBranch   string `json:"DI_BRANCH"`
	DIRef      string `json:"DI_REF"`
	DICreBy    string `json:"DI_CRE_BY"`
	DIAmount   int64  `json:"DI_AMOUNT"`
	DIPmBy     string `json:"DI_PM_BY"`
	DICcy      string `json:"DI_Ccy"`
	DIBank     *int   `json:"DI_BANK,omitempty"`
	DIDateTime string `json:"DI_DATE_TIME"`
}

type SkuMove struct {
	SKMDate     int     `json:"SKM_DATE"`
	SKMBch      string  `json:"SKM_BCH"`
	DIRef       string  `json:"DI_REF"`
	SKMNo       int     `json:"SKM_No"`
	SKUCode     string  `json:"SKU_CODE"`
	GoodsCode   string  `json:"GOODS_CODE"`
	UTQName     string  `json:"UTQ_NAME"`
	UTQQty      float64 `json:"UTQ_QTY"`
	Qty         float64 `json:"QTY"`
	SKMPrc      int64   `json:"SKM_PRC"`
	SKMAmount   int64   `json:"SKM_AMOUNT"`
	SKMCcy      string  `json:"SKM_Ccy"`
	WLKey       int     `json:"WL_KEY"`
	ARCode      string  `json:"AR_CODE,omitempty"`
	ARPRBKey    *int    `json:"ARPRB_KEY,omitempty"`
	CreBy       string  `json:"CRE_BY,omitempty"`
	SvBy        string  `json:"SV_BY,omitempty"`
	SKMDateTime string  `json:"SKM_DATE_TIME"`
}

// PaymentWire maps a local payment method to the DI_PM_BY value the server
// expects and the DI_BANK flag that accompanies bank transfers. Unknown
// methods pass through unchanged.
func PaymentWire(method string) (string, *int) {
	switch method {
	case "CASH":
		return "Cash", nil
	case "TRANSFER":
		bank := 1
		return "BANK", &bank
	default:
		return method, nil
	}
}

var serialEpoch = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

// SerialDate converts a timestamp to the legacy serial day count: days since
// 1900-01-01 plus the spreadsheet epoch offset of 2.
func SerialDate(t time.Time) int {
	days := int(t.UTC().Sub(serialEpoch).Hours() / 24)
	return days + 2
}

// MinorUnits converts a major-unit amount to integer minor units (x100),
// rounding half away from zero the way the legacy exporter did.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
