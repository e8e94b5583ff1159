package report

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/evmtrack/evmtrack/internal/datastore/entities"
)

const dateLayout = "02-01-2006"

// Document names, also used as metric labels.
const (
	DocRegistrationReceipt = "annexure-1"
	DocFLCCUCertificate    = "flc-cu-certificate"
	DocFLCBUCertificate    = "flc-bu-certificate"
	DocTransferReceipt     = "transfer-receipt"
	DocDistribution        = "annexure-8"
)

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Format(dateLayout)
}

// ReceiptRow is one newly registered component.
type ReceiptRow struct {
	Serial            string
	Type              entities.ComponentType
	DateOfManufacture *time.Time
	BoxNo             string
}

// RegistrationReceipt builds the Annexure-1 acknowledgement of a bulk
// registration. Batches made only of CUs and BUs carry manufacture date and box
// number columns; any other batch uses the short layout.
func RegistrationReceipt(orderNo, warehouse string, date time.Time, rows []ReceiptRow) *Document {
	full := len(rows) > 0
	for _, r := range rows {
		if r.Type != entities.TypeCU && r.Type != entities.TypeBU {
			full = false
			break
		}
	}

	doc := &Document{
		Name:        DocRegistrationReceipt,
		Title:       "ANNEXURE-1",
		Subtitle:    "Acknowledgement of receipt of EVM components",
		Orientation: Portrait,
		Header: []Field{
			{"Order No", orderNo},
			{"Warehouse", warehouse},
			{"Date", date.Format(dateLayout)},
		},
		Signatures: []string{"Received by", "Warehouse In-charge"},
	}

	if full {
		doc.Columns = []Column{{"S.No", 0.6}, {"Serial No", 2}, {"Type", 1}, {"Date of Manufacture", 1.5}, {"Box No", 1}}
	} else {
		doc.Columns = []Column{{"S.No", 0.6}, {"Serial No", 2.5}, {"Type", 1.5}}
	}

	for i, r := range rows {
		row := []string{strconv.Itoa(i + 1), r.Serial, string(r.Type)}
		if full {
			row = append(row, formatDate(r.DateOfManufacture), dashIfEmpty(r.BoxNo))
		}
		doc.Rows = append(doc.Rows, row)
	}
	doc.Footer = []string{fmt.Sprintf("Total Count: %d", len(rows))}
	return doc
}

// FLCCURow is one CU certification line.
type FLCCURow struct {
	CUSerial      string
	DMMSerial     string
	DMMSeal       string
	PinkPaperSeal string
	BoxNo         string
	Passed        bool
	Remarks       string
}

// SortFLCCURows orders rows failed first, then by CU serial.
func SortFLCCURows(rows []FLCCURow) {
	slices.SortStableFunc(rows, func(a, b FLCCURow) int {
		if a.Passed != b.Passed {
			if !a.Passed {
				return -1
			}
			return 1
		}
		return strings.Compare(a.CUSerial, b.CUSerial)
	})
}

// FLCCUCertificate builds the landscape CU first level check certificate.
func FLCCUCertificate(district string, date time.Time, rows []FLCCURow) *Document {
	sorted := slices.Clone(rows)
	SortFLCCURows(sorted)

	doc := &Document{
		Name:        DocFLCCUCertificate,
		Title:       "FIRST LEVEL CHECK CERTIFICATE - CONTROL UNITS",
		Orientation: Landscape,
		Header: []Field{
			{"District", district},
			{"Date", date.Format(dateLayout)},
		},
		Columns: []Column{
			{"S.No", 0.5}, {"CU Serial", 1.6}, {"DMM Serial", 1.6}, {"DMM Seal", 1.3},
			{"Pink Paper Seal", 1.3}, {"Box No", 0.8}, {"Result", 0.8}, {"Remarks", 2},
		},
		Signatures: []string{"FLC Engineer", "FLC Supervisor", "District Election Officer"},
	}
	passed := 0
	for i, r := range sorted {
		if r.Passed {
			passed++
		}
		doc.Rows = append(doc.Rows, []string{
			strconv.Itoa(i + 1), r.CUSerial, r.DMMSerial, r.DMMSeal, r.PinkPaperSeal,
			dashIfEmpty(r.BoxNo), result(r.Passed), r.Remarks,
		})
	}
	doc.Footer = []string{
		fmt.Sprintf("Total Count: %d", len(sorted)),
		fmt.Sprintf("Passed: %d  Failed: %d", passed, len(sorted)-passed),
	}
	return doc
}

// FLCBURow is one BU certification line.
type FLCBURow struct {
	Serial  string
	BoxNo   string
	Passed  bool
	Remarks string
}

// SortFLCBURows orders rows failed first, then by serial.
func SortFLCBURows(rows []FLCBURow) {
	slices.SortStableFunc(rows, func(a, b FLCBURow) int {
		if a.Passed != b.Passed {
			if !a.Passed {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Serial, b.Serial)
	})
}

// FLCBUCertificate builds the BU first level check certificate.
func FLCBUCertificate(district string, date time.Time, rows []FLCBURow) *Document {
	sorted := slices.Clone(rows)
	SortFLCBURows(sorted)

	doc := &Document{
		Name:        DocFLCBUCertificate,
		Title:       "FIRST LEVEL CHECK CERTIFICATE - BALLOT UNITS",
		Orientation: Portrait,
		Header: []Field{
			{"District", district},
			{"Date", date.Format(dateLayout)},
		},
		Columns:    []Column{{"S.No", 0.5}, {"BU Serial", 2}, {"Box No", 1}, {"Result", 1}, {"Remarks", 2.5}},
		Signatures: []string{"FLC Engineer", "FLC Supervisor"},
	}
	for i, r := range sorted {
		doc.Rows = append(doc.Rows, []string{
			strconv.Itoa(i + 1), r.Serial, dashIfEmpty(r.BoxNo), result(r.Passed), r.Remarks,
		})
	}
	doc.Footer = []string{fmt.Sprintf("Total Count: %d", len(sorted))}
	return doc
}

// TransferHeader carries the parties of a custody transfer.
type TransferHeader struct {
	AllotmentID uint
	OrderNo     string
	From        string
	To          string
	District    string
	LocalBody   string
	Reason      string
	Date        time.Time
}

// TransferRow is one component handed over.
type TransferRow struct {
	Serial     string
	Type       entities.ComponentType
	BoxNo      string
	PairedWith string
	Warehouse  string
	Remarks    string
}

// TransferReceipt builds the receipt for an allotment. DEO to BO, BO to RO and
// the two return directions each have their own title and columns; every other
// type uses the generic receipt.
func TransferReceipt(kind entities.AllotmentType, h TransferHeader, rows []TransferRow) *Document {
	doc := &Document{
		Name:        DocTransferReceipt,
		Orientation: Portrait,
		Header: []Field{
			{"Allotment No", strconv.FormatUint(uint64(h.AllotmentID), 10)},
			{"From", h.From},
			{"To", h.To},
			{"District", h.District},
			{"Date", h.Date.Format(dateLayout)},
		},
	}
	if h.OrderNo != "" {
		doc.Header = append(doc.Header, Field{"Order No", h.OrderNo})
	}
	if h.LocalBody != "" {
		doc.Header = append(doc.Header, Field{"Local Body", h.LocalBody})
	}
	if h.Reason != "" {
		doc.Header = append(doc.Header, Field{"Reason", h.Reason})
	}

	var cell func(i int, r TransferRow) []string
	switch kind {
	case entities.AllotDEOToBO:
		doc.Title = "ISSUE OF EVM COMPONENTS FROM DISTRICT TO BLOCK"
		doc.Columns = []Column{{"S.No", 0.5}, {"Serial No", 2}, {"Type", 1}, {"Box No", 1}, {"Warehouse", 2}}
		cell = func(i int, r TransferRow) []string {
			return []string{strconv.Itoa(i), r.Serial, string(r.Type), dashIfEmpty(r.BoxNo), dashIfEmpty(r.Warehouse)}
		}
		doc.Signatures = []string{"District Election Officer", "Block Officer"}
	case entities.AllotBOToRO:
		doc.Title = "ISSUE OF EVM COMPONENTS TO RETURNING OFFICER"
		doc.Orientation = Landscape
		doc.Columns = []Column{{"S.No", 0.5}, {"Serial No", 2}, {"Type", 1}, {"Paired With", 3}, {"Remarks", 2}}
		cell = func(i int, r TransferRow) []string {
			return []string{strconv.Itoa(i), r.Serial, string(r.Type), dashIfEmpty(r.PairedWith), r.Remarks}
		}
		doc.Signatures = []string{"Block Officer", "Returning Officer"}
	case entities.AllotROToBO:
		doc.Title = "RETURN OF EVM COMPONENTS FROM RETURNING OFFICER"
		doc.Columns = []Column{{"S.No", 0.5}, {"Serial No", 2}, {"Type", 1}, {"Condition / Remarks", 3}}
		cell = func(i int, r TransferRow) []string {
			return []string{strconv.Itoa(i), r.Serial, string(r.Type), r.Remarks}
		}
		doc.Signatures = []string{"Returning Officer", "Block Officer"}
	case entities.AllotBOToDEO:
		doc.Title = "RETURN OF EVM COMPONENTS TO DISTRICT"
		doc.Columns = []Column{{"S.No", 0.5}, {"Serial No", 2}, {"Type", 1}, {"Box No", 1}, {"Remarks", 2.5}}
		cell = func(i int, r TransferRow) []string {
			return []string{strconv.Itoa(i), r.Serial, string(r.Type), dashIfEmpty(r.BoxNo), r.Remarks}
		}
		doc.Signatures = []string{"Block Officer", "District Election Officer"}
	default:
		doc.Title = "TRANSFER OF EVM COMPONENTS"
		doc.Subtitle = string(kind)
		doc.Columns = []Column{{"S.No", 0.5}, {"Serial No", 2}, {"Type", 1}, {"Remarks", 3}}
		cell = func(i int, r TransferRow) []string {
			return []string{strconv.Itoa(i), r.Serial, string(r.Type), r.Remarks}
		}
		doc.Signatures = []string{"Issued by", "Received by"}
	}

	for i, r := range rows {
		doc.Rows = append(doc.Rows, cell(i+1, r))
	}
	doc.Footer = []string{fmt.Sprintf("Total Count: %d", len(rows))}
	return doc
}

// DistributionRow is one commissioned EVM at a polling station.
type DistributionRow struct {
	PSNo          int
	PSName        string
	EVMID         string
	CU            string
	DMM           string
	DMMSeal       string
	PinkPaperSeal string
	BUs           []string
	BUSeals       []string
}

// Distribution builds the Annexure-8 district EVM distribution statement,
// ordered by polling station number.
func Distribution(district, localBody string, date time.Time, rows []DistributionRow) *Document {
	sorted := slices.Clone(rows)
	slices.SortStableFunc(sorted, func(a, b DistributionRow) int { return a.PSNo - b.PSNo })

	doc := &Document{
		Name:        DocDistribution,
		Title:       "ANNEXURE-8",
		Subtitle:    "Distribution of EVMs to polling stations",
		Orientation: Landscape,
		Header: []Field{
			{"District", district},
			{"Local Body", localBody},
			{"Date", date.Format(dateLayout)},
		},
		Columns: []Column{
			{"PS No", 0.6}, {"Polling Station", 2}, {"EVM No", 1.2}, {"CU", 1.3}, {"DMM", 1.3},
			{"DMM Seal", 1.1}, {"Pink Seal", 1.1}, {"BU", 2}, {"BU Seals", 2},
		},
		Signatures: []string{"Returning Officer", "District Election Officer"},
	}
	for _, r := range sorted {
		doc.Rows = append(doc.Rows, []string{
			strconv.Itoa(r.PSNo), r.PSName, r.EVMID, r.CU, dashIfEmpty(r.DMM),
			dashIfEmpty(r.DMMSeal), dashIfEmpty(r.PinkPaperSeal),
			strings.Join(r.BUs, ", "), strings.Join(r.BUSeals, ", "),
		})
	}
	doc.Footer = []string{fmt.Sprintf("Total EVMs: %d", len(sorted))}
	return doc
}

func result(passed bool) string {
	if passed {
		return "Passed"
	}
	return "Failed"
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
