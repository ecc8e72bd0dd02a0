package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/contactbook-backend/api/responses"
	"github.com/angelmondragon/contactbook-backend/api/validators"
	"github.com/angelmondragon/contactbook-backend/internal/contacts"
	pkgerrors "github.com/angelmondragon/contactbook-backend/pkg/errors"
	"github.com/angelmondragon/contactbook-backend/pkg/logger"
)

// multipartOverhead leaves room for boundaries and form fields around the workbook.
const multipartOverhead = 1 << 20

type createContactPayload struct {
	Name          string `json:"name"`
	Phone         string `json:"phone"`
	Email         string `json:"email"`
	SocialAccount string `json:"socialAccount"`
	Address       string `json:"address"`
	Favorite      bool   `json:"favorite"`
}

func (p createContactPayload) toInput() contacts.NewContact {
	return contacts.NewContact{
		Name:          p.Name,
		Phone:         p.Phone,
		Email:         p.Email,
		SocialAccount: p.SocialAccount,
		Address:       p.Address,
		Favorite:      p.Favorite,
	}
}

type importContactsPayload struct {
	Data []contacts.Candidate `json:"data" validate:"required"`
}

// ContactsList returns one page of contacts filtered by q and favoriteOnly.
func ContactsList(svc contacts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "contacts service unavailable"))
			return
		}

		favoriteOnly, err := validators.ParseQueryBool(r, "favoriteOnly")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		page, err := validators.ParseQueryInt(r, "page", 0, minQueryInt, maxQueryInt)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		pageSize, err := validators.ParseQueryInt(r, "pageSize", 0, minQueryInt, maxQueryInt)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.List(ctx, contacts.Query{
			Text:         r.URL.Query().Get("q"),
			FavoriteOnly: favoriteOnly,
			Page:         page,
			PageSize:     pageSize,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WritePage(w, result.Items, result.Total, result.Page, result.PageSize)
	}
}

// Out-of-range pages are normalized by the query engine, so the parser only
// guards against overflow.
const (
	minQueryInt = -1 << 31
	maxQueryInt = 1<<31 - 1
)

// ContactsGet returns a single contact.
func ContactsGet(svc contacts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := contactID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		contact, err := svc.Get(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, contact)
	}
}

// ContactsCreate stores a new contact and returns it with 201.
func ContactsCreate(svc contacts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var payload createContactPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		contact, err := svc.Create(ctx, payload.toInput())
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, contact)
	}
}

// ContactsUpdate applies a partial update.
func ContactsUpdate(svc contacts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := contactID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var patch contacts.Patch
		if err := validators.DecodeJSONBody(r, &patch); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		contact, err := svc.Update(ctx, id, patch)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, contact)
	}
}

// ContactsDelete removes a contact.
func ContactsDelete(svc contacts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := contactID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if err := svc.Delete(ctx, id); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"deleted": true})
	}
}

// ContactsExport streams the whole collection as an xlsx workbook.
func ContactsExport(svc contacts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		data, err := svc.Export(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteFile(w, contacts.SpreadsheetContentType, contacts.ExportFilename, data)
	}
}

// ContactsImport reconciles a JSON batch of candidate rows.
func ContactsImport(svc contacts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var payload importContactsPayload
		if err := validators.DecodeLenientJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		result, err := svc.Import(ctx, payload.Data)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// ContactsImportFile reconciles the rows of an uploaded xlsx workbook sent
// as the multipart field "file".
func ContactsImportFile(svc contacts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		r.Body = http.MaxBytesReader(w, r.Body, contacts.MaxSpreadsheetBytes+multipartOverhead)

		file, _, err := r.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			switch {
			case errors.As(err, &tooLarge):
				err = pkgerrors.New(pkgerrors.CodeValidation, "spreadsheet too large").WithDetails(map[string]any{"maxBytes": contacts.MaxSpreadsheetBytes})
			case errors.Is(err, http.ErrMissingFile):
				err = pkgerrors.New(pkgerrors.CodeValidation, "spreadsheet file is required")
			default:
				err = pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart upload")
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}
		defer file.Close()

		result, err := svc.ImportSpreadsheet(ctx, file)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// contactID parses the {id} URL parameter. Anything that is not a positive
// integer cannot name a contact and reads as not found.
func contactID(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "id"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeNotFound, "contact not found").WithDetails(map[string]any{"id": raw})
	}
	return id, nil
}
