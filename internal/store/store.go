// Package store persists the bills document: detected bills, the
// transactions they came from, and the user profile.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dvloznov/bill-tracker/internal/config"
	"github.com/dvloznov/bill-tracker/internal/domain"
	"github.com/dvloznov/bill-tracker/internal/pipeline"
)

// ErrNotFound is returned by backends when no document has been saved yet.
var ErrNotFound = errors.New("document not found")

// Store loads and saves the whole document. Load returns a fresh default
// document when nothing has been saved.
type Store interface {
	Load(ctx context.Context) (*domain.Document, error)
	Save(ctx context.Context, doc *domain.Document) error
}

// FromConfig builds the store selected by cfg.Store.Backend.
func FromConfig(cfg config.Config) (Store, error) {
	switch cfg.Store.Backend {
	case "file", "":
		path, err := expandHome(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("FromConfig: %w", err)
		}
		return NewFileStore(path, cfg.User.Name), nil
	case "gcs":
		return NewGCSStore(NewGCSStorage(), cfg.Store.Bucket, cfg.Store.Object, cfg.User.Name), nil
	default:
		return nil, fmt.Errorf("FromConfig: unknown store backend %q", cfg.Store.Backend)
	}
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// documentFields has the fields of domain.Document without its methods.
type documentFields domain.Document

// decodeDocument parses data and fills in collections an older or
// hand-edited document may lack. Transactions are decoded with the same
// rules as an imported batch: malformed amounts read as 0 and a missing or
// unparsable date rejects the document.
func decodeDocument(data []byte, userName string) (*domain.Document, error) {
	doc := domain.NewDocument(userName)
	wire := struct {
		*documentFields
		Transactions json.RawMessage `json:"transactions"`
	}{documentFields: (*documentFields)(doc)}
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}

	if len(wire.Transactions) > 0 && string(wire.Transactions) != "null" {
		txs, err := pipeline.DecodeTransactions(wire.Transactions)
		if err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		doc.Transactions = txs
	}

	if doc.Bills == nil {
		doc.Bills = []domain.Bill{}
	}
	if doc.Transactions == nil {
		doc.Transactions = []domain.Transaction{}
	}
	p := &doc.UserProfile
	if p.Name == "" {
		p.Name = userName
	}
	if p.ConnectedAccounts == nil {
		p.ConnectedAccounts = []string{}
	}
	if p.BillStreaks == nil {
		p.BillStreaks = map[string]int{}
	}
	if p.Preferences == nil {
		p.Preferences = map[string]interface{}{}
	}
	return doc, nil
}

func encodeDocument(doc *domain.Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return append(data, '\n'), nil
}
