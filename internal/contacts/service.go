package contacts

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/angelmondragon/contactbook-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/contactbook-backend/pkg/errors"
	"github.com/angelmondragon/contactbook-backend/pkg/logger"
	"github.com/angelmondragon/contactbook-backend/pkg/metrics"
	"github.com/angelmondragon/contactbook-backend/pkg/pagination"
)

// MaxSpreadsheetBytes caps uploaded workbooks.
const MaxSpreadsheetBytes = 10 << 20

const (
	importSourceJSON = "json"
	importSourceXLSX = "xlsx"
)

// Service exposes contact CRUD, listing, export and import semantics.
type Service interface {
	Create(ctx context.Context, input NewContact) (*Contact, error)
	Get(ctx context.Context, id int64) (*Contact, error)
	Update(ctx context.Context, id int64, patch Patch) (*Contact, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, q Query) (*Page, error)
	Export(ctx context.Context) ([]byte, error)
	Import(ctx context.Context, candidates []Candidate) (*ImportResult, error)
	ImportSpreadsheet(ctx context.Context, r io.Reader) (*ImportResult, error)
	Ping(ctx context.Context) error
}

type service struct {
	store     Store
	logg      *logger.Logger
	metrics   *metrics.ImportMetrics
	limits    pagination.Limits
	importOpt ImportOptions
	maxRows   int
	export    ExportOptions
	now       func() time.Time
}

// NewService builds a contacts service over store using the contacts config.
func NewService(store Store, cfg config.ContactsConfig, logg *logger.Logger, importMetrics *metrics.ImportMetrics) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("contact store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if importMetrics == nil {
		importMetrics = metrics.NewImportMetrics(nil)
	}
	return &service{
		store:   store,
		logg:    logg,
		metrics: importMetrics,
		limits:  pagination.Limits{Default: cfg.DefaultPageSize, Max: cfg.MaxPageSize},
		importOpt: ImportOptions{
			Mode:        ParseImportMode(cfg.ImportMode),
			DetailLimit: cfg.ImportDetailLimit,
		},
		maxRows: cfg.ImportMaxRows,
		export: ExportOptions{
			Locale:   cfg.ExportLocale,
			Location: cfg.Location(),
		},
		now: time.Now,
	}, nil
}

func (s *service) Create(ctx context.Context, input NewContact) (*Contact, error) {
	c, err := s.store.Create(ctx, input)
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithContactID(ctx, c.ID), "contact created")
	return c, nil
}

func (s *service) Get(ctx context.Context, id int64) (*Contact, error) {
	if id <= 0 {
		return nil, notFound(id)
	}
	return s.store.Get(ctx, id)
}

func (s *service) Update(ctx context.Context, id int64, patch Patch) (*Contact, error) {
	if id <= 0 {
		return nil, notFound(id)
	}
	c, err := s.store.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithContactID(ctx, id), "contact updated")
	return c, nil
}

func (s *service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return notFound(id)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logg.Info(s.logg.WithContactID(ctx, id), "contact deleted")
	return nil
}

func (s *service) List(ctx context.Context, q Query) (*Page, error) {
	return s.store.List(ctx, q.Normalize(s.limits))
}

func (s *service) Export(ctx context.Context) ([]byte, error) {
	items, err := s.store.All(ctx)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no contacts to export")
	}
	data, err := EncodeWorkbook(items, s.export)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode export workbook")
	}
	s.logg.Info(s.logg.WithField(ctx, "count", len(items)), "contacts exported")
	return data, nil
}

func (s *service) Import(ctx context.Context, candidates []Candidate) (*ImportResult, error) {
	return s.runImport(ctx, importSourceJSON, candidates)
}

func (s *service) ImportSpreadsheet(ctx context.Context, r io.Reader) (*ImportResult, error) {
	if r == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "spreadsheet file is required")
	}
	buf, err := readAll(r, MaxSpreadsheetBytes)
	if err != nil {
		s.metrics.IncFailure(importSourceXLSX)
		return nil, err
	}
	candidates, err := ParseSpreadsheet(buf)
	if err != nil {
		s.metrics.IncFailure(importSourceXLSX)
		return nil, err
	}
	return s.runImport(ctx, importSourceXLSX, candidates)
}

func (s *service) runImport(ctx context.Context, source string, candidates []Candidate) (*ImportResult, error) {
	ctx = s.logg.WithFields(ctx, map[string]any{"import_source": source, "rows": len(candidates)})
	if s.maxRows > 0 && len(candidates) > s.maxRows {
		s.metrics.IncFailure(source)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "too many rows in import").WithDetails(map[string]any{"maxRows": s.maxRows})
	}

	started := s.now()
	result, err := s.store.Import(ctx, candidates, s.importOpt)
	if err != nil {
		s.metrics.IncFailure(source)
		return nil, err
	}
	s.metrics.ObserveBatch(source, s.now().Sub(started), result.Imported, result.Duplicates, result.Updated, result.Errors)

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"imported":   result.Imported,
		"duplicates": result.Duplicates,
		"updated":    result.Updated,
		"errors":     result.Errors,
	}), "contacts imported")
	return result, nil
}

func (s *service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
