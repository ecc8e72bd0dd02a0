package contacts

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/contactbook-backend/pkg/errors"
	"github.com/angelmondragon/contactbook-backend/pkg/types"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/language"
)

const (
	// SheetName is the worksheet written by Export.
	SheetName = "Contacts"
	// ExportTimeLayout formats created/updated cells.
	ExportTimeLayout = "2006-01-02 15:04:05"
	// SpreadsheetContentType is the xlsx MIME type.
	SpreadsheetContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	// ExportFilename is the suggested download name.
	ExportFilename = "contacts.xlsx"
)

type columnKey string

const (
	colName      columnKey = "name"
	colPhone     columnKey = "phone"
	colEmail     columnKey = "email"
	colSocial    columnKey = "socialAccount"
	colAddress   columnKey = "address"
	colFavorite  columnKey = "favorite"
	colCreatedAt columnKey = "createdAt"
	colUpdatedAt columnKey = "updatedAt"
)

type column struct {
	key    columnKey
	width  float64
	labels map[language.Base]string
}

var (
	baseEnglish, _ = language.English.Base()
	baseChinese, _ = language.Chinese.Base()

	exportLocales = language.NewMatcher([]language.Tag{language.English, language.Chinese})

	columns = []column{
		{colName, 20, map[language.Base]string{baseEnglish: "Name", baseChinese: "姓名"}},
		{colPhone, 15, map[language.Base]string{baseEnglish: "Phone", baseChinese: "电话"}},
		{colEmail, 25, map[language.Base]string{baseEnglish: "Email", baseChinese: "邮箱"}},
		{colSocial, 20, map[language.Base]string{baseEnglish: "Social Account", baseChinese: "社交账号"}},
		{colAddress, 30, map[language.Base]string{baseEnglish: "Address", baseChinese: "地址"}},
		{colFavorite, 10, map[language.Base]string{baseEnglish: "Favorite", baseChinese: "收藏"}},
		{colCreatedAt, 20, map[language.Base]string{baseEnglish: "Created At", baseChinese: "创建时间"}},
		{colUpdatedAt, 20, map[language.Base]string{baseEnglish: "Updated At", baseChinese: "更新时间"}},
	}

	yesNo = map[language.Base][2]string{
		baseEnglish: {"Yes", "No"},
		baseChinese: {"是", "否"},
	}
)

// ExportOptions localizes the workbook.
type ExportOptions struct {
	Locale   string
	Location *time.Location
}

func (o ExportOptions) base() language.Base {
	tag, _ := language.MatchStrings(exportLocales, o.Locale)
	base, _ := tag.Base()
	if base == baseChinese {
		return baseChinese
	}
	return baseEnglish
}

func (o ExportOptions) location() *time.Location {
	if o.Location == nil {
		return time.UTC
	}
	return o.Location
}

// EncodeWorkbook renders contacts, in the given order, as an xlsx workbook
// with one header row.
func EncodeWorkbook(items []Contact, opts ExportOptions) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, fmt.Errorf("name sheet: %w", err)
	}

	base := opts.base()
	loc := opts.location()
	words := yesNo[base]

	header := make([]any, len(columns))
	for i, col := range columns {
		header[i] = col.labels[base]
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(SheetName, name, name, col.width); err != nil {
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	for i, c := range items {
		favorite := words[1]
		if c.Favorite {
			favorite = words[0]
		}
		row := []any{
			c.Name,
			c.Phone,
			c.Email,
			c.SocialAccount,
			c.Address,
			favorite,
			c.CreatedAt.In(loc).Format(ExportTimeLayout),
			c.UpdatedAt.In(loc).Format(ExportTimeLayout),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// headerIndex maps every known header spelling, in any locale, to its column.
var headerIndex = func() map[string]columnKey {
	idx := map[string]columnKey{}
	for _, col := range columns {
		idx[normalizeHeader(string(col.key))] = col.key
		for _, label := range col.labels {
			idx[normalizeHeader(label)] = col.key
		}
	}
	idx[normalizeHeader("social_account")] = colSocial
	return idx
}()

func normalizeHeader(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(label)
}

// ParseSpreadsheet reads the first worksheet of an xlsx workbook and returns
// one candidate per non-empty data row. Columns are located by header label
// in either export locale.
func ParseSpreadsheet(r io.Reader) ([]Candidate, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable spreadsheet")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "spreadsheet has no worksheets")
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read worksheet")
	}
	if len(rows) == 0 {
		return []Candidate{}, nil
	}

	positions := map[columnKey]int{}
	for i, label := range rows[0] {
		if key, ok := headerIndex[normalizeHeader(label)]; ok {
			if _, dup := positions[key]; !dup {
				positions[key] = i
			}
		}
	}
	_, hasName := positions[colName]
	_, hasPhone := positions[colPhone]
	if !hasName || !hasPhone {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "spreadsheet is missing name or phone columns")
	}

	cell := func(row []string, key columnKey) string {
		i, ok := positions[key]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	out := make([]Candidate, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		out = append(out, Candidate{
			Name:          types.LooseString{Value: cell(row, colName)},
			Phone:         types.LooseString{Value: cell(row, colPhone)},
			Email:         types.LooseString{Value: cell(row, colEmail)},
			SocialAccount: types.LooseString{Value: cell(row, colSocial)},
			Address:       types.LooseString{Value: cell(row, colAddress)},
			Favorite:      types.LooseBool{Value: types.ParseLooseBool(cell(row, colFavorite))},
		})
	}
	return out, nil
}

func blankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// readAll buffers at most limit bytes of an upload.
func readAll(r io.Reader, limit int64) (*bytes.Reader, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read upload")
	}
	if int64(len(data)) > limit {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "spreadsheet too large").WithDetails(map[string]any{"maxBytes": limit})
	}
	return bytes.NewReader(data), nil
}
