// Package repotest provides in-memory repositories for usecase and handler tests.
package repotest

import (
	"context"
	"sort"
	"sync"
	"time"

	"shoppingcart/internal/domain/model"
	"shoppingcart/internal/repository"
)

// Users is an in-memory repository.UserRepository.
type Users struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]model.User

	// Err, when set, is returned from every call.
	Err error
}

func NewUsers() *Users {
	return &Users{nextID: 1, rows: map[int64]model.User{}}
}

var _ repository.UserRepository = (*Users)(nil)

func (s *Users) Create(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}

	for _, u := range s.rows {
		if u.Email == user.Email {
			return repository.ErrDuplicate
		}
		if user.GoogleSubject != nil && u.GoogleSubject != nil && *u.GoogleSubject == *user.GoogleSubject {
			return repository.ErrDuplicate
		}
	}

	user.ID = s.nextID
	s.nextID++
	now := time.Now()
	user.CreatedAt, user.UpdatedAt = now, now
	s.rows[user.ID] = copyUser(*user)
	return nil
}

func (s *Users) FindByID(_ context.Context, userID int64) (*model.User, error) {
	return s.find(func(u model.User) bool { return u.ID == userID })
}

func (s *Users) FindByEmail(_ context.Context, email string) (*model.User, error) {
	return s.find(func(u model.User) bool { return u.Email == email })
}

func (s *Users) FindByGoogleSubject(_ context.Context, subject string) (*model.User, error) {
	return s.find(func(u model.User) bool { return u.GoogleSubject != nil && *u.GoogleSubject == subject })
}

func (s *Users) find(match func(model.User) bool) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for _, u := range s.rows {
		if match(u) {
			out := copyUser(u)
			return &out, nil
		}
	}
	return nil, nil
}

// Update keeps the stored email, like the SQL implementation.
func (s *Users) Update(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	cur, ok := s.rows[user.ID]
	if !ok {
		return repository.ErrUserNotFound
	}
	cur.Username = user.Username
	cur.GoogleSubject = user.GoogleSubject
	cur.LastLoginAt = user.LastLoginAt
	cur.UpdatedAt = time.Now()
	s.rows[user.ID] = copyUser(cur)
	return nil
}

func (s *Users) IncrementSessionVersion(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	cur, ok := s.rows[userID]
	if !ok {
		return repository.ErrUserNotFound
	}
	cur.SessionVersion++
	s.rows[userID] = cur
	return nil
}

// Count returns the number of stored users.
func (s *Users) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func copyUser(u model.User) model.User {
	if u.GoogleSubject != nil {
		sub := *u.GoogleSubject
		u.GoogleSubject = &sub
	}
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		u.LastLoginAt = &t
	}
	return u
}

// CartItems is an in-memory repository.CartItemRepository.
type CartItems struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]model.CartItem

	Err error
}

func NewCartItems() *CartItems {
	return &CartItems{nextID: 1, rows: map[int64]model.CartItem{}}
}

var _ repository.CartItemRepository = (*CartItems)(nil)

func (s *CartItems) Create(_ context.Context, item *model.CartItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}

	if item.IdempotencyKey != nil {
		for _, it := range s.rows {
			if it.UserID == item.UserID && it.IdempotencyKey != nil && *it.IdempotencyKey == *item.IdempotencyKey {
				return repository.ErrDuplicate
			}
		}
	}

	item.ID = s.nextID
	s.nextID++
	now := time.Now()
	item.CreatedAt, item.UpdatedAt = now, now
	s.rows[item.ID] = copyItem(*item)
	return nil
}

func (s *CartItems) FindOwned(_ context.Context, itemID int64, userID int64) (model.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return model.CartItem{}, s.Err
	}
	it, ok := s.rows[itemID]
	if !ok || it.UserID != userID {
		return model.CartItem{}, repository.ErrNotFound
	}
	return copyItem(it), nil
}

func (s *CartItems) ListByUserID(_ context.Context, userID int64, offset int, limit int) ([]model.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	owned := []model.CartItem{}
	for _, it := range s.rows {
		if it.UserID == userID {
			owned = append(owned, copyItem(it))
		}
	}
	sort.Slice(owned, func(i, j int) bool { return owned[i].ID < owned[j].ID })

	if offset < 0 || limit <= 0 || offset >= len(owned) {
		return []model.CartItem{}, nil
	}
	end := offset + limit
	if end > len(owned) || end < offset {
		end = len(owned)
	}
	return owned[offset:end], nil
}

func (s *CartItems) UpdateFields(_ context.Context, item model.CartItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	cur, ok := s.rows[item.ID]
	if !ok || cur.UserID != item.UserID {
		return repository.ErrNotFound
	}
	cur.Name = item.Name
	cur.Price = item.Price
	cur.Quantity = item.Quantity
	cur.UpdatedAt = time.Now()
	s.rows[item.ID] = cur
	return nil
}

func (s *CartItems) DeleteOwned(_ context.Context, itemID int64, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	cur, ok := s.rows[itemID]
	if !ok || cur.UserID != userID {
		return repository.ErrNotFound
	}
	delete(s.rows, itemID)
	return nil
}

func (s *CartItems) FindByIdempotencyKey(_ context.Context, userID int64, key string) (model.CartItem, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return model.CartItem{}, false, s.Err
	}
	for _, it := range s.rows {
		if it.UserID == userID && it.IdempotencyKey != nil && *it.IdempotencyKey == key {
			return copyItem(it), true, nil
		}
	}
	return model.CartItem{}, false, nil
}

// Len returns the number of stored items across all users.
func (s *CartItems) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func copyItem(it model.CartItem) model.CartItem {
	if it.ImageData != nil {
		it.ImageData = append([]byte(nil), it.ImageData...)
	}
	if it.IdempotencyKey != nil {
		k := *it.IdempotencyKey
		it.IdempotencyKey = &k
	}
	return it
}

// AuditLogs records entries in memory.
type AuditLogs struct {
	mu   sync.Mutex
	rows []model.AuditLog
}

func NewAuditLogs() *AuditLogs {
	return &AuditLogs{}
}

var _ repository.AuditLogRepository = (*AuditLogs)(nil)

func (s *AuditLogs) Create(_ context.Context, log model.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	log.ID = int64(len(s.rows) + 1)
	s.rows = append(s.rows, log)
	return nil
}

// Entries returns a copy of everything recorded so far.
func (s *AuditLogs) Entries() []model.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.AuditLog(nil), s.rows...)
}

// TxManager runs fn directly against the in-memory stores (no rollback).
type TxManager struct {
	UsersRepo     repository.UserRepository
	CartItemsRepo repository.CartItemRepository
	Audit         *AuditLogs

	Err error
}

func NewTxManager(users repository.UserRepository, items repository.CartItemRepository) *TxManager {
	return &TxManager{UsersRepo: users, CartItemsRepo: items, Audit: NewAuditLogs()}
}

func (tm *TxManager) Users() repository.UserRepository         { return tm.UsersRepo }
func (tm *TxManager) CartItems() repository.CartItemRepository { return tm.CartItemsRepo }
func (tm *TxManager) AuditLogs() repository.AuditLogRepository { return tm.Audit }

func (tm *TxManager) WithinTx(_ context.Context, fn func(r repository.TxRepos) error) error {
	if tm.Err != nil {
		return tm.Err
	}
	return fn(tm)
}
