package contacts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	pkgerrors "github.com/angelmondragon/contactbook-backend/pkg/errors"
	"go.uber.org/multierr"
)

var errStoreClosed = errors.New("contact store closed")

// fileState is the persisted document: {"nextId": n, "items": [...]}.
type fileState struct {
	NextID int64     `json:"nextId"`
	Items  []Contact `json:"items"`
}

func (s fileState) clone() fileState {
	items := make([]Contact, len(s.Items))
	copy(items, s.Items)
	return fileState{NextID: s.NextID, Items: items}
}

func (s fileState) indexOf(id int64) int {
	for i := range s.Items {
		if s.Items[i].ID == id {
			return i
		}
	}
	return -1
}

func (s fileState) phoneTaken(phone string, exceptID int64) bool {
	for i := range s.Items {
		if s.Items[i].Phone == phone && s.Items[i].ID != exceptID {
			return true
		}
	}
	return false
}

func (s fileState) phones() PhoneMap {
	m := make(PhoneMap, len(s.Items))
	for _, c := range s.Items {
		m[c.Phone] = c.ID
	}
	return m
}

// FileStore keeps the collection in memory and writes a full snapshot to a
// JSON file on every mutation. One mutex serializes all operations.
type FileStore struct {
	mu     sync.Mutex
	path   string
	state  fileState
	closed bool
	opts   storeOptions
}

// OpenFileStore loads path, creating an empty document when it does not
// exist. An unreadable document is reset to an empty collection once.
func OpenFileStore(ctx context.Context, path string, opts ...Option) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("data file path is required")
	}
	s := &FileStore{path: path, opts: applyOptions(opts)}
	ctx = s.opts.logg.WithField(ctx, "data_file", path)

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.opts.logg.Info(ctx, "contact data file missing, creating empty collection")
		return s, s.reset()
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read contact data file")
	}

	state, err := decodeFileState(raw)
	if err != nil {
		s.opts.logg.Warn(s.opts.logg.WithField(ctx, "error", err.Error()), "contact data file unreadable, resetting to empty collection")
		return s, s.reset()
	}
	s.state = state
	return s, nil
}

func (s *FileStore) reset() error {
	empty := fileState{NextID: 1, Items: []Contact{}}
	if err := s.persist(empty); err != nil {
		return err
	}
	s.state = empty
	return nil
}

// decodeFileState parses the document, recomputing a missing or invalid
// nextId as max(id)+1. nextId never trails the highest stored id.
func decodeFileState(raw []byte) (fileState, error) {
	var doc struct {
		NextID json.RawMessage `json:"nextId"`
		Items  []Contact       `json:"items"`
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return fileState{NextID: 1, Items: []Contact{}}, nil
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fileState{}, err
	}

	state := fileState{Items: doc.Items}
	if state.Items == nil {
		state.Items = []Contact{}
	}

	var maxID int64
	for _, c := range state.Items {
		if c.ID > maxID {
			maxID = c.ID
		}
	}
	if next, err := strconv.ParseInt(string(bytes.TrimSpace(doc.NextID)), 10, 64); err == nil && next > maxID {
		state.NextID = next
	} else {
		state.NextID = maxID + 1
	}
	return state, nil
}

// persist writes next to a temp file in the target directory and renames it
// over the data file.
func (s *FileStore) persist(next fileState) (err error) {
	payload, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode contact data")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create contact data directory")
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create temp contact data file")
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	_, writeErr := tmp.Write(payload)
	if writeErr == nil {
		writeErr = tmp.Sync()
	}
	if writeErr = multierr.Append(writeErr, tmp.Close()); writeErr != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, writeErr, "write contact data file")
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replace contact data file")
	}
	return nil
}

// commit persists next and swaps it in only when the write succeeded.
func (s *FileStore) commit(next fileState) error {
	if err := s.persist(next); err != nil {
		return err
	}
	s.state = next
	return nil
}

func (s *FileStore) checkOpen() error {
	if s.closed {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, errStoreClosed, "contact store unavailable")
	}
	return nil
}

func (s *FileStore) Create(ctx context.Context, input NewContact) (*Contact, error) {
	input = input.Normalize()
	if err := input.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if s.state.phoneTaken(input.Phone, 0) {
		return nil, duplicatePhone(input.Phone)
	}

	now := s.opts.now()
	c := Contact{ID: s.state.NextID, CreatedAt: now, UpdatedAt: now}
	c.assign(input)

	next := s.state.clone()
	next.Items = append(next.Items, c)
	next.NextID++
	if err := s.commit(next); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *FileStore) Get(ctx context.Context, id int64) (*Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	idx := s.state.indexOf(id)
	if idx < 0 {
		return nil, notFound(id)
	}
	c := s.state.Items[idx]
	return &c, nil
}

func (s *FileStore) Update(ctx context.Context, id int64, patch Patch) (*Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	idx := s.state.indexOf(id)
	if idx < 0 {
		return nil, notFound(id)
	}

	updated, err := patch.Apply(s.state.Items[idx])
	if err != nil {
		return nil, err
	}
	if s.state.phoneTaken(updated.Phone, id) {
		return nil, duplicatePhone(updated.Phone)
	}
	touch(&updated, s.opts.now())

	next := s.state.clone()
	next.Items[idx] = updated
	if err := s.commit(next); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *FileStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	idx := s.state.indexOf(id)
	if idx < 0 {
		return notFound(id)
	}

	next := s.state.clone()
	next.Items = append(next.Items[:idx], next.Items[idx+1:]...)
	return s.commit(next)
}

func (s *FileStore) List(ctx context.Context, q Query) (*Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	page := Run(s.state.Items, q, s.opts.limits)
	return &page, nil
}

func (s *FileStore) All(ctx context.Context) ([]Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	out := make([]Contact, len(s.state.Items))
	copy(out, s.state.Items)
	sortByName(out)
	return out, nil
}

func (s *FileStore) Import(ctx context.Context, candidates []Candidate, opts ImportOptions) (*ImportResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	plan := Reconcile(candidates, s.state.phones(), opts)
	if plan.Empty() {
		return plan.Result(), nil
	}

	now := s.opts.now()
	next := s.state.clone()
	for _, u := range plan.Updates {
		idx := next.indexOf(u.ID)
		if idx < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "planned update target vanished")
		}
		next.Items[idx].assign(u.Fields)
		touch(&next.Items[idx], now)
	}
	for _, fields := range plan.Creates {
		c := Contact{ID: next.NextID, CreatedAt: now, UpdatedAt: now}
		c.assign(fields)
		next.Items = append(next.Items, c)
		next.NextID++
	}

	if err := s.commit(next); err != nil {
		return nil, err
	}
	return plan.Result(), nil
}

// Ping fails once the store is closed.
func (s *FileStore) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkOpen()
}

// Close marks the store closed. Data is already durable.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
