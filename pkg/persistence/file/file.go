// Package file provides file-based persistence: one JSON document per record
// under a root directory.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dukex/leadflow/pkg/persistence"
	"github.com/google/uuid"
)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root           string
	mu             sync.RWMutex
	automationRepo *AutomationRepository
	webhookRepo    *WebhookRepository
	leadRepo       *LeadRepository
	propertyRepo   *PropertyRepository
	deliveryRepo   *DeliveryRepository
	runRepo        *RunRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	p := &Persistence{root: cleanRoot}
	p.automationRepo = &AutomationRepository{records: newCollection[automationRecord](p, "automations")}
	p.webhookRepo = &WebhookRepository{records: newCollection[webhookRecord](p, "webhooks")}
	p.leadRepo = &LeadRepository{records: newCollection[leadRecord](p, "leads")}
	p.propertyRepo = &PropertyRepository{records: newCollection[propertyRecord](p, "properties")}
	p.deliveryRepo = &DeliveryRepository{records: newCollection[deliveryRecord](p, "deliveries")}
	p.runRepo = &RunRepository{records: newCollection[runRecord](p, "runs")}

	return p
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) AutomationRepository() persistence.AutomationRepository {
	return fp.automationRepo
}

func (fp *Persistence) WebhookRepository() persistence.WebhookRepository {
	return fp.webhookRepo
}

func (fp *Persistence) LeadRepository() persistence.LeadRepository {
	return fp.leadRepo
}

func (fp *Persistence) PropertyRepository() persistence.PropertyRepository {
	return fp.propertyRepo
}

func (fp *Persistence) DeliveryRepository() persistence.DeliveryRepository {
	return fp.deliveryRepo
}

func (fp *Persistence) RunRepository() persistence.RunRepository {
	return fp.runRepo
}

var errRecordMissing = errors.New("record missing")

// collection stores records of one kind in root/<name>/<id>.json. All
// collections share the Persistence lock so read-modify-write updates are
// atomic per record.
type collection[T any] struct {
	p   *Persistence
	dir string
}

func newCollection[T any](p *Persistence, name string) collection[T] {
	return collection[T]{p: p, dir: filepath.Join(p.root, name)}
}

func (c collection[T]) path(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", errRecordMissing
	}

	return filepath.Join(c.dir, id+".json"), nil
}

func (c collection[T]) read(id string) (*T, error) {
	path, err := c.path(id)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errRecordMissing
		}

		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var record T

	err = json.Unmarshal(data, &record)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	return &record, nil
}

func (c collection[T]) write(id string, record *T) error {
	path, err := c.path(id)
	if err != nil {
		return err
	}

	err = os.MkdirAll(c.dir, 0o750)
	if err != nil {
		return fmt.Errorf("failed to create directory %s: %w", c.dir, err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode record %s: %w", id, err)
	}

	tmp := path + ".tmp"

	err = os.WriteFile(tmp, data, 0o600)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}

	return os.Rename(tmp, path)
}

func (c collection[T]) remove(id string) error {
	path, err := c.path(id)
	if err != nil {
		return err
	}

	err = os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return errRecordMissing
	}

	return err
}

func (c collection[T]) all() ([]*T, error) {
	files, err := filepath.Glob(filepath.Join(c.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", c.dir, err)
	}

	records := make([]*T, 0, len(files))

	for _, file := range files {
		id := strings.TrimSuffix(filepath.Base(file), ".json")

		record, err := c.read(id)
		if err != nil {
			if errors.Is(err, errRecordMissing) {
				continue
			}

			return nil, err
		}

		records = append(records, record)
	}

	return records, nil
}

func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}

	return id.String(), nil
}

// stamp fills the id and timestamps of a record being saved.
func stamp(id *string, createdAt, updatedAt *time.Time) error {
	now := time.Now().UTC()

	if *id == "" {
		generated, err := newID()
		if err != nil {
			return fmt.Errorf("failed to generate ID: %w", err)
		}

		*id = generated
	}

	if createdAt.IsZero() {
		*createdAt = now
	}

	*updatedAt = now

	return nil
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return persistence.DefaultHistoryLimit
	}

	return limit
}
