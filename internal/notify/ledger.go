// ArtSwap - Peer Image Recommendation and Moderation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/artswap

package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/artswap/internal/models"
)

const deliveryKeyPrefix = "delivery:"

// ErrAlreadyDelivered is returned by Record when the pair is already in the ledger.
var ErrAlreadyDelivered = errors.New("recommendation already delivered")

// delivery is the value stored per (user, item) pair.
type delivery struct {
	UserID      models.UserID `json:"user_id"`
	ItemID      models.ItemID `json:"item_id"`
	DeliveredAt time.Time     `json:"delivered_at"`
}

// Ledger remembers which recommendations were pushed to which users so the
// sweep never sends the same item twice within the TTL.
type Ledger struct {
	db  *badger.DB
	ttl time.Duration
}

// OpenLedger opens the badger ledger at path. An empty path keeps the ledger
// in memory.
func OpenLedger(path string, ttl time.Duration) (*Ledger, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db for notification ledger: %w", err)
	}
	return &Ledger{db: db, ttl: ttl}, nil
}

func deliveryKey(user models.UserID, item models.ItemID) []byte {
	return []byte(fmt.Sprintf("%s%d:%d", deliveryKeyPrefix, user, item))
}

// Delivered reports whether the pair is in the ledger.
func (l *Ledger) Delivered(_ context.Context, user models.UserID, item models.ItemID) (bool, error) {
	var found bool
	err := l.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(deliveryKey(user, item))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("read delivery ledger: %w", err)
	}
	return found, nil
}

// Record stores the pair with the ledger TTL. It returns ErrAlreadyDelivered
// when the pair is already present.
func (l *Ledger) Record(_ context.Context, user models.UserID, item models.ItemID, at time.Time) error {
	key := deliveryKey(user, item)
	data, err := json.Marshal(delivery{UserID: user, ItemID: item, DeliveredAt: at.UTC()})
	if err != nil {
		return fmt.Errorf("marshal delivery: %w", err)
	}

	err = l.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return ErrAlreadyDelivered
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.SetEntry(badger.NewEntry(key, data).WithTTL(l.ttl))
	})
	if err != nil && !errors.Is(err, ErrAlreadyDelivered) {
		return fmt.Errorf("write delivery ledger: %w", err)
	}
	return err
}

// Close closes the underlying badger database.
func (l *Ledger) Close() error {
	return l.db.Close()
}
